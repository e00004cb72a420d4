package logger

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestThrottledShouldLog(t *testing.T) {
	th := NewThrottled(zerolog.Nop(), 100*time.Millisecond)

	if !th.shouldLog("rate limited") {
		t.Error("first message must pass")
	}
	if th.shouldLog("rate limited") {
		t.Error("immediate repeat must be suppressed")
	}
	if th.skipCount.Load() != 1 {
		t.Errorf("skip count = %d, want 1", th.skipCount.Load())
	}

	time.Sleep(110 * time.Millisecond)
	if !th.shouldLog("rate limited") {
		t.Error("message must pass again after the interval")
	}
	if th.skipCount.Load() != 0 {
		t.Errorf("skip count = %d after flush, want 0", th.skipCount.Load())
	}
}

func TestThrottledDifferentMessages(t *testing.T) {
	th := NewThrottled(zerolog.Nop(), time.Minute)

	th.shouldLog("first")
	// A different message within the interval is suppressed but does not
	// count against the repeat counter.
	if th.shouldLog("second") {
		t.Error("second message within the interval must be suppressed")
	}
	if th.skipCount.Load() != 0 {
		t.Errorf("skip count = %d, want 0 for a different message", th.skipCount.Load())
	}
}
