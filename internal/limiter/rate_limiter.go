package limiter

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ryusei-star/FakeMinecraftServer/internal/config"
)

// RateLimiter gates inbound sessions with a global token bucket plus one
// bucket per client IP, and computes a tarpit delay that grows with abuse.
type RateLimiter struct {
	config        *config.Config
	logger        zerolog.Logger
	globalLimiter *rate.Limiter
	ipLimiters    sync.Map // map[string]*ipLimiterInfo

	mu            sync.RWMutex
	totalRequests int64
	startTime     time.Time
}

type ipLimiterInfo struct {
	limiter      *rate.Limiter
	mu           sync.RWMutex
	requestCount int64
	firstRequest time.Time
	lastRequest  time.Time
}

// New creates the rate limiter from config.
func New(cfg *config.Config, logger zerolog.Logger) *RateLimiter {
	return &RateLimiter{
		config: cfg,
		logger: logger.With().Str("component", "rate_limiter").Logger(),
		globalLimiter: rate.NewLimiter(
			rate.Limit(cfg.RateLimit.GlobalLimit),
			cfg.RateLimit.GlobalLimit,
		),
		startTime: time.Now(),
	}
}

// Allow reports whether a new session from ip may proceed.
func (rl *RateLimiter) Allow(ip string) bool {
	if !rl.globalLimiter.Allow() {
		rl.logger.Debug().Str("ip", ip).Msg("global limit hit")
		return false
	}

	info := rl.getOrCreateIPLimiter(ip)
	if !info.limiter.Allow() {
		rl.logger.Debug().Str("ip", ip).Msg("per-IP limit hit")
		return false
	}

	rl.updateStats(info)
	return true
}

// CalculateDelay returns the tarpit delay to apply before replying to ip.
func (rl *RateLimiter) CalculateDelay(ip string) time.Duration {
	info := rl.getOrCreateIPLimiter(ip)

	ipFrequency := rl.ipFrequencyFactor(info)
	globalLoad := rl.globalLoadFactor()

	baseDelay := float64(rl.config.Delay.BaseDelay.Nanoseconds())

	ipPenalty := math.Min(
		float64(rl.config.Delay.MaxIPPenalty.Nanoseconds()),
		ipFrequency*rl.config.Delay.IPRateMultiplier*baseDelay,
	)

	globalPenalty := math.Min(
		float64(rl.config.Delay.MaxGlobalPenalty.Nanoseconds()),
		globalLoad*rl.config.Delay.GlobalRateMultiplier*baseDelay,
	)

	return time.Duration(baseDelay + ipPenalty + globalPenalty)
}

// GetIPFrequency returns the observed requests per second for ip, 0 when the
// IP has never been seen.
func (rl *RateLimiter) GetIPFrequency(ip string) float64 {
	value, ok := rl.ipLimiters.Load(ip)
	if !ok {
		return 0
	}
	info := value.(*ipLimiterInfo)

	info.mu.RLock()
	defer info.mu.RUnlock()

	duration := time.Since(info.firstRequest)
	if duration.Seconds() == 0 {
		return 0
	}
	return float64(info.requestCount) / duration.Seconds()
}

func (rl *RateLimiter) getOrCreateIPLimiter(ip string) *ipLimiterInfo {
	if value, ok := rl.ipLimiters.Load(ip); ok {
		return value.(*ipLimiterInfo)
	}

	info := &ipLimiterInfo{
		limiter: rate.NewLimiter(
			rate.Limit(rl.config.RateLimit.IPLimit),
			rl.config.RateLimit.IPLimit,
		),
		firstRequest: time.Now(),
		lastRequest:  time.Now(),
	}

	if actual, loaded := rl.ipLimiters.LoadOrStore(ip, info); loaded {
		return actual.(*ipLimiterInfo)
	}
	return info
}

func (rl *RateLimiter) ipFrequencyFactor(info *ipLimiterInfo) float64 {
	info.mu.RLock()
	defer info.mu.RUnlock()

	duration := time.Since(info.firstRequest)
	if duration == 0 {
		return 1.0
	}

	requestsPerSecond := float64(info.requestCount) / duration.Seconds()
	factor := requestsPerSecond / float64(rl.config.RateLimit.IPLimit)

	return math.Max(1.0, factor*rl.config.Delay.IPFrequencyFactor)
}

func (rl *RateLimiter) globalLoadFactor() float64 {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	duration := time.Since(rl.startTime)
	if duration == 0 {
		return 1.0
	}

	requestsPerSecond := float64(rl.totalRequests) / duration.Seconds()
	factor := requestsPerSecond / float64(rl.config.RateLimit.GlobalLimit)

	return math.Max(1.0, factor*rl.config.Delay.GlobalLoadFactor)
}

func (rl *RateLimiter) updateStats(info *ipLimiterInfo) {
	now := time.Now()

	info.mu.Lock()
	info.requestCount++
	info.lastRequest = now
	info.mu.Unlock()

	rl.mu.Lock()
	rl.totalRequests++
	rl.mu.Unlock()
}

// cleanupExpired drops per-IP limiters idle past the cleanup interval.
func (rl *RateLimiter) cleanupExpired() {
	now := time.Now()
	var expired []string

	rl.ipLimiters.Range(func(key, value any) bool {
		info := value.(*ipLimiterInfo)

		info.mu.RLock()
		lastRequest := info.lastRequest
		info.mu.RUnlock()

		if now.Sub(lastRequest) > rl.config.RateLimit.CleanupInterval {
			expired = append(expired, key.(string))
		}
		return true
	})

	for _, ip := range expired {
		rl.ipLimiters.Delete(ip)
	}

	if len(expired) > 0 {
		rl.logger.Debug().Int("count", len(expired)).Msg("dropped idle IP limiters")
	}
}

// StartCleanup runs the idle-limiter cleanup until ctx is cancelled.
func (rl *RateLimiter) StartCleanup(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(rl.config.RateLimit.CleanupInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				rl.cleanupExpired()
			}
		}
	}()
}
