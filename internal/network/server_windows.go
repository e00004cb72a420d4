//go:build windows

package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

// Server accepts connections and dispatches each to an independent session.
// Windows build, backed by the standard library with one goroutine per
// connection.
type Server struct {
	config      *config.Config
	logger      zerolog.Logger
	listener    net.Listener
	handler     ConnectionHandler
	running     atomic.Bool
	connections sync.Map // map[string]*Connection
	connCount   atomic.Int64
	ctx         context.Context
}

// NewServer binds the listening socket. A bind failure here is the one
// unrecoverable condition in the system; the caller exits non-zero.
func NewServer(cfg *config.Config, logger zerolog.Logger, handler ConnectionHandler, ctx context.Context) (*Server, error) {
	server := &Server{
		config:  cfg,
		logger:  logger.With().Str("component", "network").Logger(),
		handler: handler,
		ctx:     ctx,
	}

	listener, err := net.Listen("tcp", cfg.GetAddress())
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.GetAddress(), err)
	}
	server.listener = listener

	return server, nil
}

// Start runs the accept loop until the context is cancelled.
func (s *Server) Start() error {
	if !s.running.CompareAndSwap(false, true) {
		return fmt.Errorf("server already running")
	}

	s.logger.Info().
		Str("address", s.config.GetAddress()).
		Int("max_connections", s.config.Server.MaxConnections).
		Msg("listening")

	go s.cleanupConnections()
	go s.lifecycleManager()

	return s.acceptConnections()
}

// lifecycleManager stops accepting and releases the listener on shutdown.
// Sessions already in flight are closed rather than drained.
func (s *Server) lifecycleManager() {
	<-s.ctx.Done()

	s.logger.Info().Msg("shutdown signal received, stopping server")
	s.running.Store(false)

	s.connections.Range(func(key, value any) bool {
		if conn, ok := value.(*Connection); ok {
			conn.Close()
		}
		return true
	})

	if err := s.listener.Close(); err != nil {
		s.logger.Error().Err(err).Msg("listener close failed")
	} else {
		s.logger.Info().Msg("server stopped")
	}
}

// acceptConnections never blocks on a session: every accepted connection is
// handed to its own goroutine.
func (s *Server) acceptConnections() error {
	for s.running.Load() {
		conn, err := s.listener.Accept()
		if err != nil {
			if !s.running.Load() || errors.Is(err, net.ErrClosed) {
				return nil
			}

			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				time.Sleep(50 * time.Millisecond)
				continue
			}

			s.logger.Error().Err(err).Msg("accept failed")
			continue
		}

		go s.handleConnection(conn)
	}

	return nil
}

func (s *Server) handleConnection(conn net.Conn) {
	if s.connCount.Load() >= int64(s.config.Server.MaxConnections) {
		s.logger.Warn().
			Str("remote_addr", conn.RemoteAddr().String()).
			Msg("connection limit reached, rejecting")
		conn.Close()
		return
	}

	remoteAddr := conn.RemoteAddr().String()
	remoteIP, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		s.logger.Error().Err(err).Str("remote_addr", remoteAddr).Msg("unparseable remote address")
		conn.Close()
		return
	}

	connID := fmt.Sprintf("%s-%d", remoteIP, time.Now().UnixNano())
	connection := &Connection{
		Conn:      conn,
		ID:        connID,
		RemoteIP:  remoteIP,
		StartTime: time.Now(),
		Logger: s.logger.With().
			Str("conn_id", connID).
			Str("remote_ip", remoteIP).
			Logger(),
	}

	s.connections.Store(connID, connection)
	s.connCount.Add(1)

	if err := s.handler.HandleConnection(s.ctx, connection); err != nil {
		connection.Logger.Warn().Err(err).Msg("session failed")
	}

	s.onConnectionClose(connection)
}

func (s *Server) onConnectionClose(conn *Connection) {
	s.connections.Delete(conn.ID)
	s.connCount.Add(-1)
}

func (s *Server) cleanupConnections() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-ticker.C:
			s.cleanupExpiredConnections()
		}
	}
}

// cleanupExpiredConnections closes connections that accepted but never
// completed a session within the idle timeout.
func (s *Server) cleanupExpiredConnections() {
	now := time.Now()
	maxIdleTime := s.config.Server.IdleTimeout

	s.connections.Range(func(key, value any) bool {
		if conn, ok := value.(*Connection); ok {
			if now.Sub(conn.StartTime) > maxIdleTime {
				conn.Logger.Info().Msg("closing stale connection")
				conn.Close()
			}
		}
		return true
	})
}

// GetStats returns a server stats snapshot.
func (s *Server) GetStats() map[string]any {
	return map[string]any{
		"connection_count": s.connCount.Load(),
		"running":          s.running.Load(),
	}
}
