// Package upstream mirrors the status of a real Minecraft server so the
// decoy can present live metadata instead of static config values. The
// version object of every mirrored response is rewritten so the decoy never
// claims a supported protocol number.
package upstream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Tnze/go-mc/bot"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

// Syncer periodically pings the upstream server and caches its raw status
// JSON for sessions to serve verbatim.
type Syncer struct {
	config  *config.Config
	logger  zerolog.Logger
	ctx     context.Context
	mu      sync.RWMutex
	cached  []byte
	offline bool
	running bool
}

// NewSyncer creates the syncer. The cache starts with a response built from
// the static config so sessions never see an empty cache.
func NewSyncer(cfg *config.Config, logger zerolog.Logger, ctx context.Context) *Syncer {
	s := &Syncer{
		config: cfg,
		logger: logger.With().Str("component", "upstream").Logger(),
		ctx:    ctx,
	}
	s.cached = s.defaultResponse()
	return s
}

// defaultResponse builds a status document from the static config, shaped
// like the one the sessions would build themselves.
func (s *Syncer) defaultResponse() []byte {
	resp := map[string]any{
		"version": map[string]any{
			"name":     s.config.Messages.VersionName,
			"protocol": -1,
		},
		"players": map[string]any{
			"max":    s.config.Messages.MaxPlayers,
			"online": s.config.Messages.OnlinePlayers,
		},
		"description": map[string]any{
			"text": s.config.Messages.MOTD,
		},
	}

	data, err := sonic.Marshal(resp)
	if err != nil {
		s.logger.Error().Err(err).Msg("default response marshal failed")
		return []byte(`{"version":{"name":"unknown","protocol":-1},"players":{"max":0,"online":0},"description":{"text":""}}`)
	}
	return data
}

// Start begins the periodic sync. No-op when upstream mirroring is disabled.
func (s *Syncer) Start() error {
	if !s.config.Upstream.Enabled {
		s.logger.Info().Msg("upstream mirroring disabled")
		return nil
	}

	if s.running {
		return fmt.Errorf("syncer already running")
	}
	s.running = true

	s.logger.Info().
		Str("address", s.config.Upstream.Address).
		Dur("interval", s.config.Upstream.SyncInterval).
		Msg("starting upstream status sync")

	s.syncOnce()
	go s.syncLoop()

	return nil
}

// RawStatus returns the cached status JSON.
func (s *Syncer) RawStatus() []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cached
}

// IsRunning reports whether the sync loop was started.
func (s *Syncer) IsRunning() bool {
	return s.running
}

func (s *Syncer) syncLoop() {
	ticker := time.NewTicker(s.config.Upstream.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.syncOnce()
		}
	}
}

func (s *Syncer) syncOnce() {
	start := time.Now()
	addr := s.config.Upstream.Address

	var lastErr error
	for attempt := 0; attempt <= s.config.Upstream.RetryCount; attempt++ {
		if attempt > 0 {
			time.Sleep(s.config.Upstream.RetryInterval)
		}

		// go-mc resolves IPs, hostnames and SRV records transparently.
		resp, _, err := bot.PingAndListTimeout(addr, s.config.Upstream.Timeout)
		if err != nil {
			lastErr = err
			continue
		}

		s.updateCache(resp)
		s.logger.Info().
			Str("upstream", addr).
			Dur("response_time", time.Since(start)).
			Msg("upstream sync succeeded")
		return
	}

	s.logger.Warn().
		Err(lastErr).
		Str("upstream", addr).
		Int("retry_count", s.config.Upstream.RetryCount).
		Msg("upstream sync failed, retries exhausted")

	s.markOffline()
}

func (s *Syncer) updateCache(resp []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rewritten := s.rewriteVersion(resp); rewritten != nil {
		s.cached = rewritten
	} else {
		s.cached = resp
	}
	s.offline = false
}

// markOffline degrades the cached response to zero players online. Done only
// once per outage to avoid rewriting on every failed sync.
func (s *Syncer) markOffline() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.offline {
		return
	}

	if degraded := s.zeroOnline(s.cached); degraded != nil {
		s.cached = degraded
		s.logger.Info().Msg("upstream unavailable, cached response degraded to zero online")
	}
	s.offline = true
}

// rewriteVersion replaces the version object of an upstream response with
// the configured label and protocol -1.
func (s *Syncer) rewriteVersion(resp []byte) []byte {
	var doc map[string]any
	if err := sonic.Unmarshal(resp, &doc); err != nil {
		s.logger.Error().Err(err).Msg("upstream response unparseable")
		return nil
	}

	doc["version"] = map[string]any{
		"name":     s.config.Messages.VersionName,
		"protocol": -1,
	}

	rewritten, err := sonic.Marshal(doc)
	if err != nil {
		s.logger.Error().Err(err).Msg("rewritten response marshal failed")
		return nil
	}
	return rewritten
}

func (s *Syncer) zeroOnline(resp []byte) []byte {
	var doc map[string]any
	if err := sonic.Unmarshal(resp, &doc); err != nil {
		s.logger.Error().Err(err).Msg("cached response unparseable")
		return nil
	}

	if players, ok := doc["players"].(map[string]any); ok {
		players["online"] = 0
	}

	degraded, err := sonic.Marshal(doc)
	if err != nil {
		s.logger.Error().Err(err).Msg("degraded response marshal failed")
		return nil
	}
	return degraded
}
