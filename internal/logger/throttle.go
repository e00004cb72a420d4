package logger

import (
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Throttled suppresses repeats of the same noisy message, demoting them to
// debug level between intervals. Used for protocol-violation spam from
// scanners hammering the listener.
type Throttled struct {
	logger    zerolog.Logger
	lastLog   atomic.Int64 // unix nanoseconds
	interval  time.Duration
	lastMsg   atomic.Value // string
	skipCount atomic.Int64
}

// NewThrottled creates a throttled logger with the given minimum interval
// between identical messages.
func NewThrottled(logger zerolog.Logger, interval time.Duration) *Throttled {
	return &Throttled{
		logger:   logger,
		interval: interval,
	}
}

// Warn returns a warn event, or a debug event when msg is being throttled.
func (t *Throttled) Warn(msg string) *zerolog.Event {
	if t.shouldLog(msg) {
		return t.logger.Warn()
	}
	return t.logger.Debug()
}

func (t *Throttled) shouldLog(msg string) bool {
	now := time.Now().UnixNano()
	lastLog := t.lastLog.Load()

	if now-lastLog > int64(t.interval) {
		t.lastLog.Store(now)

		if skipped := t.skipCount.Swap(0); skipped > 0 {
			t.logger.Debug().
				Int64("skipped_count", skipped).
				Str("last_message", msg).
				Msg("suppressed repeated messages")
		}

		t.lastMsg.Store(msg)
		return true
	}

	if last, ok := t.lastMsg.Load().(string); ok && last == msg {
		t.skipCount.Add(1)
	}

	return false
}
