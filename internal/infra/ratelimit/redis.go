package ratelimit

import (
	"context"
	"errors"
	"time"

	"veritas/internal/domain"

	"github.com/redis/go-redis/v9"
)

type redisLimiter struct {
	cfg    Config
	client *redis.Client
}

// redisWindowScript counts the hit and stamps the window expiry on the
// first one, so the counter and its TTL always move together.
var redisWindowScript = redis.NewScript(`
local hits = redis.call("INCR", KEYS[1])
if hits == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return {hits, redis.call("PTTL", KEYS[1])}
`)

func NewRedisLimiter(addr, password string, db int, cfg Config) (domain.RateLimiter, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	cfg.defaults()
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &redisLimiter{cfg: cfg, client: client}, nil
}

func (r *redisLimiter) Allow(ctx context.Context, tenantID, endpoint string) domain.RateLimitDecision {
	if r.cfg.Requests <= 0 {
		return openDecision(0)
	}
	key := bucketKey(tenantID, endpoint)
	result, err := redisWindowScript.Run(ctx, r.client, []string{key}, r.cfg.Window.Milliseconds()).Result()
	if err != nil {
		// Redis errors fail open.
		return openDecision(r.cfg.Requests)
	}
	values, ok := result.([]any)
	if !ok || len(values) < 2 {
		return openDecision(r.cfg.Requests)
	}
	hits, ok := values[0].(int64)
	if !ok {
		return openDecision(r.cfg.Requests)
	}
	ttlMillis, _ := values[1].(int64)
	resetAt := r.cfg.Now()
	if ttlMillis > 0 {
		resetAt = resetAt.Add(time.Duration(ttlMillis) * time.Millisecond)
	}
	remaining := r.cfg.Requests - int(hits)
	if remaining < 0 {
		remaining = 0
	}
	return domain.RateLimitDecision{
		Allowed:   hits <= int64(r.cfg.Requests),
		Limit:     r.cfg.Requests,
		Remaining: remaining,
		ResetAt:   resetAt,
	}
}
