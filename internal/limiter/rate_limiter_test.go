package limiter

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		RateLimit: config.RateLimitConfig{
			IPLimit:         2,
			GlobalLimit:     100,
			CleanupInterval: time.Minute,
		},
		Delay: config.DelayConfig{
			BaseDelay:            50 * time.Millisecond,
			MaxIPPenalty:         5 * time.Second,
			MaxGlobalPenalty:     2 * time.Second,
			IPFrequencyFactor:    1.5,
			GlobalLoadFactor:     1.2,
			IPRateMultiplier:     2.0,
			GlobalRateMultiplier: 1.5,
		},
	}
}

func TestAllowPerIPBurst(t *testing.T) {
	rl := New(testConfig(), zerolog.Nop())

	// Burst of IPLimit passes, the next request from the same IP is denied.
	for i := 0; i < 2; i++ {
		if !rl.Allow("192.0.2.1") {
			t.Fatalf("request %d denied within the burst", i+1)
		}
	}
	if rl.Allow("192.0.2.1") {
		t.Error("request beyond the burst was allowed")
	}

	// A different IP has its own bucket.
	if !rl.Allow("192.0.2.2") {
		t.Error("fresh IP denied")
	}
}

func TestAllowGlobalLimit(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.GlobalLimit = 3
	cfg.RateLimit.IPLimit = 100
	rl := New(cfg, zerolog.Nop())

	allowed := 0
	for i := 0; i < 10; i++ {
		if rl.Allow("192.0.2.1") {
			allowed++
		}
	}
	if allowed > 3 {
		t.Errorf("%d requests allowed, global burst is 3", allowed)
	}
}

func TestCalculateDelay(t *testing.T) {
	cfg := testConfig()
	rl := New(cfg, zerolog.Nop())

	delay := rl.CalculateDelay("192.0.2.1")
	if delay < cfg.Delay.BaseDelay {
		t.Errorf("delay = %v, must be at least the base delay %v", delay, cfg.Delay.BaseDelay)
	}

	ceiling := cfg.Delay.BaseDelay + cfg.Delay.MaxIPPenalty + cfg.Delay.MaxGlobalPenalty
	if delay > ceiling {
		t.Errorf("delay = %v, exceeds the penalty ceiling %v", delay, ceiling)
	}
}

func TestGetIPFrequency(t *testing.T) {
	rl := New(testConfig(), zerolog.Nop())

	if f := rl.GetIPFrequency("203.0.113.9"); f != 0 {
		t.Errorf("frequency for unseen IP = %f, want 0", f)
	}

	rl.Allow("192.0.2.1")
	time.Sleep(10 * time.Millisecond)
	if f := rl.GetIPFrequency("192.0.2.1"); f <= 0 {
		t.Errorf("frequency after a request = %f, want > 0", f)
	}
}

func TestCleanupExpired(t *testing.T) {
	cfg := testConfig()
	cfg.RateLimit.CleanupInterval = time.Millisecond
	rl := New(cfg, zerolog.Nop())

	rl.Allow("192.0.2.1")
	time.Sleep(5 * time.Millisecond)
	rl.cleanupExpired()

	if _, ok := rl.ipLimiters.Load("192.0.2.1"); ok {
		t.Error("idle IP limiter survived cleanup")
	}
}
