package ratelimit

import (
	"context"
	"sync"
	"time"

	"veritas/internal/domain"
)

type memoryLimiter struct {
	cfg Config

	mu      sync.Mutex
	tenants map[string]map[string]*windowBucket
	buckets int
}

type windowBucket struct {
	hits      int
	expiresAt time.Time
}

func NewMemoryLimiter(cfg Config) domain.RateLimiter {
	cfg.defaults()
	return &memoryLimiter{
		cfg:     cfg,
		tenants: make(map[string]map[string]*windowBucket),
	}
}

func (m *memoryLimiter) Allow(_ context.Context, tenantID, endpoint string) domain.RateLimitDecision {
	if m.cfg.Requests <= 0 {
		return openDecision(0)
	}
	now := m.cfg.Now()

	m.mu.Lock()
	defer m.mu.Unlock()

	endpoints := m.tenants[tenantID]
	bucket := endpoints[endpoint]
	if bucket != nil && !now.Before(bucket.expiresAt) {
		delete(endpoints, endpoint)
		m.buckets--
		bucket = nil
	}
	if bucket == nil {
		if m.buckets >= m.cfg.MaxBuckets {
			m.sweep(now)
		}
		if m.buckets >= m.cfg.MaxBuckets {
			// Saturated state fails open.
			return openDecision(m.cfg.Requests)
		}
		if endpoints == nil {
			endpoints = make(map[string]*windowBucket)
			m.tenants[tenantID] = endpoints
		}
		bucket = &windowBucket{expiresAt: now.Add(m.cfg.Window)}
		endpoints[endpoint] = bucket
		m.buckets++
	}

	decision := domain.RateLimitDecision{
		Limit:   m.cfg.Requests,
		ResetAt: bucket.expiresAt,
	}
	if bucket.hits < m.cfg.Requests {
		bucket.hits++
		decision.Allowed = true
	}
	decision.Remaining = m.cfg.Requests - bucket.hits
	return decision
}

func (m *memoryLimiter) sweep(now time.Time) {
	for tenantID, endpoints := range m.tenants {
		for endpoint, bucket := range endpoints {
			if !now.Before(bucket.expiresAt) {
				delete(endpoints, endpoint)
				m.buckets--
			}
		}
		if len(endpoints) == 0 {
			delete(m.tenants, tenantID)
		}
	}
}
