package domain

import (
	"context"
	"time"
)

type RateLimitDecision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RateLimiter applies a fixed-window request allowance to a tenant and
// endpoint pair. Implementations always return a decision; backend
// failures fail open rather than blocking the request.
type RateLimiter interface {
	Allow(ctx context.Context, tenantID, endpoint string) RateLimitDecision
}
