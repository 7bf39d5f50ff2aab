// Package noncestore provides the advisory replay guard backed by Redis.
// The transactional uniqueness constraint in Postgres remains authoritative;
// this store rejects obvious replays before a transaction is opened and
// expires entries on the configured retention window.
package noncestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"veritas/internal/domain"

	"github.com/redis/go-redis/v9"
)

type RedisStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisStore(addr, password string, db int, retention time.Duration) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis addr is required")
	}
	if retention <= 0 {
		retention = 24 * time.Hour
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	return &RedisStore{client: client, retention: retention}, nil
}

func (r *RedisStore) Record(ctx context.Context, tenantID, nonce string) error {
	ok, err := r.client.SetNX(ctx, nonceKey(tenantID, nonce), "1", r.retention).Result()
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrReplayDetected
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func nonceKey(tenantID, nonce string) string {
	return fmt.Sprintf("veritas:nonce:%s:%s", tenantID, nonce)
}
