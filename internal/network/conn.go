package network

import (
	"context"
	"net"
	"time"

	"github.com/rs/zerolog"
)

// ConnectionHandler runs one session on an accepted connection. Failures are
// isolated to the session: the handler's error is logged and the connection
// closed, the listener is unaffected.
type ConnectionHandler interface {
	HandleConnection(ctx context.Context, conn *Connection) error
}

// Connection wraps an accepted socket with per-connection metadata and a
// scoped logger.
type Connection struct {
	net.Conn
	ID        string
	RemoteIP  string
	StartTime time.Time
	Logger    zerolog.Logger
}
