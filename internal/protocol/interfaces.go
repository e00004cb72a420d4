package protocol

import "time"

// RateLimiter gates sessions before any protocol exchange happens.
type RateLimiter interface {
	Allow(ip string) bool
	CalculateDelay(ip string) time.Duration
	GetIPFrequency(ip string) float64
}
