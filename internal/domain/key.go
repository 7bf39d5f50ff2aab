package domain

import (
	"context"
	"time"
)

type KeyStatus string

const (
	KeyStatusActive  KeyStatus = "active"
	KeyStatusRotated KeyStatus = "rotated"
)

type KeyRef struct {
	TenantID string
	KID      string
}

type SigningKey struct {
	ID        string
	TenantID  string
	KID       string
	Alg       string
	PublicKey []byte // PKIX DER
	Status    KeyStatus
	CreatedAt time.Time
}

// KeyManager performs cryptographic operations using keys resolved by KeyRef.
// Verify accepts a public key to keep offline verification independent of key
// stores; a production deployment can swap the implementation for an external
// KMS without touching chain or canonicalization logic.
type KeyManager interface {
	Sign(ctx context.Context, ref KeyRef, digest []byte) ([]byte, error)
	Verify(ctx context.Context, payload []byte, sig []byte, pubKey []byte) error
}

// KeyRegistry owns the per-tenant key lifecycle. Exactly one active key per
// tenant is an invariant the registry enforces; callers never see a tenant
// with zero or two active keys. Lookups are always tenant-scoped: a KID that
// belongs to another tenant resolves to ErrKeyNotFound.
type KeyRegistry interface {
	EnsureActive(ctx context.Context, tenantID string) (SigningKey, error)
	GetActive(ctx context.Context, tenantID string) (SigningKey, error)
	GetByKID(ctx context.Context, tenantID, kid string) (SigningKey, error)
	Rotate(ctx context.Context, tenantID string) (SigningKey, error)
}
