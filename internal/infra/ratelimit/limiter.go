// Package ratelimit provides fixed-window request limiters scoped to a
// tenant and endpoint pair. Limiters fail open: backend errors and
// saturated limiter state produce an allowing decision, never a refusal.
package ratelimit

import (
	"time"

	"veritas/internal/domain"
)

// Config fixes the request allowance at construction time. Requests <= 0
// disables limiting.
type Config struct {
	Requests int
	Window   time.Duration

	// MaxBuckets caps in-memory window state. Ignored by the Redis limiter.
	MaxBuckets int

	Now func() time.Time
}

func (c *Config) defaults() {
	if c.Window <= 0 {
		c.Window = time.Second
	}
	if c.MaxBuckets <= 0 {
		c.MaxBuckets = 10000
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

func bucketKey(tenantID, endpoint string) string {
	return "veritas:rl:tenant:" + tenantID + ":endpoint:" + endpoint
}

func openDecision(limit int) domain.RateLimitDecision {
	return domain.RateLimitDecision{Allowed: true, Limit: limit, Remaining: limit}
}
