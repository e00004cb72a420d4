//go:build !windows

package network

import (
	"context"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cloudwego/netpoll"
	"github.com/rs/zerolog"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

// Server accepts connections and dispatches each to an independent session.
// Unix build, backed by a netpoll event loop.
type Server struct {
	config      *config.Config
	logger      zerolog.Logger
	eventLoop   netpoll.EventLoop
	listener    netpoll.Listener
	handler     ConnectionHandler
	running     atomic.Bool
	connections sync.Map // map[string]*Connection
	connCount   atomic.Int64
	ctx         context.Context
}

type connCtxKey struct{}

// NewServer binds the listening socket. A bind failure here is the one
// unrecoverable condition in the system; the caller exits non-zero.
func NewServer(cfg *config.Config, logger zerolog.Logger, handler ConnectionHandler, ctx context.Context) (*Server, error) {
	server := &Server{
		config:  cfg,
		logger:  logger.With().Str("component", "network").Logger(),
		handler: handler,
		ctx:     ctx,
	}

	listener, err := netpoll.CreateListener("tcp", cfg.GetAddress())
	if err != nil {
		return nil, fmt.Errorf("bind %s: %w", cfg.GetAddress(), err)
	}
	server.listener = listener

	eventLoop, err := netpoll.NewEventLoop(
		server.onRequest,
		netpoll.WithOnPrepare(server.onPrepare),
		netpoll.WithReadTimeout(cfg.Server.ReadTimeout),
		netpoll.WithIdleTimeout(cfg.Server.IdleTimeout),
	)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("create event loop: %w", err)
	}
	server.eventLoop = eventLoop

	return server, nil
}

// Start serves the event loop until the context is cancelled.
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

	return s.eventLoop.Serve(s.listener)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.eventLoop.Shutdown(shutdownCtx); err != nil {
		s.logger.Error().Err(err).Msg("event loop shutdown failed")
	} else {
		s.logger.Info().Msg("server stopped")
	}
}

func (s *Server) onPrepare(connection netpoll.Connection) context.Context {
	if s.connCount.Load() >= int64(s.config.Server.MaxConnections) {
		s.logger.Warn().
			Str("remote_addr", connection.RemoteAddr().String()).
			Msg("connection limit reached, rejecting")
		connection.Close()
		return s.ctx
	}

	remoteAddr := connection.RemoteAddr().String()
	remoteIP, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		s.logger.Error().Err(err).Str("remote_addr", remoteAddr).Msg("unparseable remote address")
		connection.Close()
		return s.ctx
	}

	connID := fmt.Sprintf("%s-%d", remoteIP, time.Now().UnixNano())
	conn := &Connection{
		Conn:      connection,
		ID:        connID,
		RemoteIP:  remoteIP,
		StartTime: time.Now(),
		Logger: s.logger.With().
			Str("conn_id", connID).
			Str("remote_ip", remoteIP).
			Logger(),
	}

	connection.AddCloseCallback(func(connection netpoll.Connection) error {
		s.onConnectionClose(conn)
		return nil
	})

	s.connections.Store(connID, conn)
	s.connCount.Add(1)

	return context.WithValue(s.ctx, connCtxKey{}, conn)
}

func (s *Server) onRequest(ctx context.Context, connection netpoll.Connection) error {
	conn, ok := ctx.Value(connCtxKey{}).(*Connection)
	if !ok {
		connection.Close()
		return nil
	}

	if err := s.handler.HandleConnection(ctx, conn); err != nil {
		conn.Logger.Warn().Err(err).Msg("session failed")
		connection.Close()
		return err
	}

	return nil
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
