package protocol

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
	"github.com/ryusei-star/FakeMinecraftServer/internal/logger"
	"github.com/ryusei-star/FakeMinecraftServer/internal/monitor"
	"github.com/ryusei-star/FakeMinecraftServer/internal/network"
	"github.com/ryusei-star/FakeMinecraftServer/internal/upstream"
)

// pingPayloadSize is the opaque payload echoed back after a status reply.
const pingPayloadSize = 8

// Handler runs one handshake session per accepted connection: it reads the
// handshake, decides whether the client is a status probe or a login
// attempt, and drives the matching reply sequence. Terminal after one reply
// cycle; the connection is closed on every exit path.
type Handler struct {
	config    *config.Config
	logger    zerolog.Logger
	desc      *Descriptor
	limiter   RateLimiter
	mirror    *upstream.Syncer // nil when mirroring is disabled
	probeLog  *logger.ProbeLogger
	metrics   *monitor.Metrics
	throttled *logger.Throttled
}

// NewHandler creates the session handler.
func NewHandler(
	cfg *config.Config,
	log zerolog.Logger,
	desc *Descriptor,
	limiter RateLimiter,
	mirror *upstream.Syncer,
	probeLog *logger.ProbeLogger,
	metrics *monitor.Metrics,
) *Handler {
	scoped := log.With().Str("component", "session").Logger()
	return &Handler{
		config:    cfg,
		logger:    scoped,
		desc:      desc,
		limiter:   limiter,
		mirror:    mirror,
		probeLog:  probeLog,
		metrics:   metrics,
		throttled: logger.NewThrottled(scoped, 5*time.Second),
	}
}

// HandleConnection implements network.ConnectionHandler.
func (h *Handler) HandleConnection(ctx context.Context, conn *network.Connection) error {
	defer conn.Close()

	h.metrics.ConnectionOpened()
	defer h.metrics.ConnectionClosed()

	if !h.limiter.Allow(conn.RemoteIP) {
		h.throttled.Warn("rate limited").Str("remote_ip", conn.RemoteIP).Msg("rate limited, dropping connection")
		return nil
	}

	delay := h.limiter.CalculateDelay(conn.RemoteIP)
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	h.setReadDeadline(conn)
	r := bufio.NewReaderSize(conn, 512)

	packetID, payload, err := ReadFrame(r)
	if err != nil {
		if err == io.EOF {
			// Port scan or banner grab: connected and sent nothing.
			conn.Logger.Debug().Msg("connection closed before handshake")
			return nil
		}
		h.violation(conn, err)
		return fmt.Errorf("read handshake frame: %w", err)
	}

	if packetID != HandshakePacketID {
		h.violation(conn, ErrUnexpectedPacketID)
		conn.Logger.Warn().Uint32("packet_id", packetID).Msg("first packet is not a handshake, dropping")
		return nil
	}

	hs, err := ReadHandshake(bytes.NewReader(payload))
	if err != nil {
		h.violation(conn, err)
		return fmt.Errorf("decode handshake: %w", err)
	}

	display := hs.DisplayName(conn.RemoteIP)
	conn.Logger.Info().
		Str("player", display).
		Int("protocol", hs.ProtocolVersion).
		Str("address", hs.ServerAddress).
		Int("port", int(hs.ServerPort)).
		Int("next_state", hs.NextState).
		Msg("handshake received")

	if h.probeLog.IsEnabled() {
		h.probeLog.LogHandshake(
			conn.RemoteIP,
			hs.ProtocolVersion,
			hs.ServerAddress,
			hs.ServerPort,
			hs.NextState,
			hs.Username,
			h.limiter.GetIPFrequency(conn.RemoteIP),
		)
	}

	switch hs.NextState {
	case IntentStatus:
		h.metrics.Handshake("status")
		return h.replyStatus(conn, r, display)
	case IntentLogin:
		h.metrics.Handshake("login")
		return h.replyKick(conn, hs.Username, display, delay)
	default:
		h.metrics.Handshake("other")
		conn.Logger.Warn().Int("next_state", hs.NextState).Msg("unknown intent, dropping")
		return nil
	}
}

// replyStatus sends the status document, then blocks for the opaque 8-byte
// ping payload and echoes it back unmodified.
func (h *Handler) replyStatus(conn *network.Connection, r Reader, display string) error {
	body := h.statusBody()
	if err := WritePacket(conn, HandshakePacketID, AppendString(nil, string(body))); err != nil {
		return fmt.Errorf("send status reply: %w", err)
	}
	h.metrics.Reply("status")

	h.setReadDeadline(conn)
	var ping [pingPayloadSize]byte
	if _, err := io.ReadFull(r, ping[:]); err != nil {
		return fmt.Errorf("read ping payload: %w", err)
	}

	if err := WritePacket(conn, 0x01, ping[:]); err != nil {
		return fmt.Errorf("send pong reply: %w", err)
	}
	h.metrics.Reply("pong")

	conn.Logger.Info().Str("player", display).Msg("ping echoed")
	return nil
}

// replyKick rejects a login attempt with the configured kick message.
func (h *Handler) replyKick(conn *network.Connection, username, display string, delay time.Duration) error {
	payload, err := h.desc.KickJSON()
	if err != nil {
		return fmt.Errorf("build kick message: %w", err)
	}

	if err := WritePacket(conn, HandshakePacketID, AppendString(nil, string(payload))); err != nil {
		return fmt.Errorf("send kick reply: %w", err)
	}
	h.metrics.Reply("kick")

	if h.probeLog.IsEnabled() {
		h.probeLog.LogLoginAttempt(conn.RemoteIP, username, delay.Milliseconds())
	}

	firstLine, _, _ := strings.Cut(strings.TrimSpace(h.desc.KickMessage), "\n")
	conn.Logger.Info().
		Str("player", display).
		Str("reason", firstLine).
		Msg("login rejected")
	return nil
}

// statusBody returns the status JSON: the mirrored upstream response when
// mirroring runs, the static descriptor otherwise.
func (h *Handler) statusBody() []byte {
	if h.mirror != nil && h.mirror.IsRunning() {
		if cached := h.mirror.RawStatus(); len(cached) > 0 {
			return cached
		}
	}

	body, err := h.desc.StatusJSON()
	if err != nil {
		h.logger.Error().Err(err).Msg("status marshal failed")
		return []byte(`{"version":{"name":"unknown","protocol":-1},"players":{"max":0,"online":0},"description":{"text":""}}`)
	}
	return body
}

func (h *Handler) violation(conn *network.Connection, err error) {
	h.metrics.ProtocolError()
	h.throttled.Warn(err.Error()).
		Str("remote_ip", conn.RemoteIP).
		Err(err).
		Msg("protocol violation")
	if h.probeLog.IsEnabled() {
		h.probeLog.LogProtocolViolation(conn.RemoteIP, err.Error())
	}
}

func (h *Handler) setReadDeadline(conn *network.Connection) {
	if t := h.config.Server.ReadTimeout; t > 0 {
		conn.SetReadDeadline(time.Now().Add(t))
	}
}
