package usecase

import (
	"context"
	"time"

	"veritas/internal/domain"
)

type Clock func() time.Time

// CertificateRepository is the storage boundary for certificates and the
// per-tenant chain tip. CommitIssuance is the engine's single hard
// serialization point: certificate insert, tip advance, and nonce record
// happen in one atomic unit, or not at all.
type CertificateRepository interface {
	// CommitIssuance persists cert, advances the tenant tip from expectedTip
	// to cert.Chain.ChainHash, and records cert.Nonce. Returns
	// domain.ErrChainConflict if the tip moved past expectedTip, and
	// domain.ErrReplayDetected if the nonce was already recorded for the
	// tenant. Nothing is persisted on failure.
	CommitIssuance(ctx context.Context, cert domain.Certificate, expectedTip string) error

	GetByID(ctx context.Context, tenantID, certificateID string) (domain.Certificate, error)
	GetByChainHash(ctx context.Context, tenantID, chainHash string) (domain.Certificate, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.Certificate, error)

	// GetTip returns domain.ErrNotFound for a tenant with no certificates.
	GetTip(ctx context.Context, tenantID string) (domain.ChainTip, error)
}

// NonceStore is an advisory replay guard in front of the transactional
// uniqueness constraint, typically Redis with a retention-window TTL.
// Record returns domain.ErrReplayDetected on reuse.
type NonceStore interface {
	Record(ctx context.Context, tenantID, nonce string) error
}

type AuditEventRepository interface {
	// Append assigns the next sequence number and the tenant's tail hash,
	// seals the event hash, and inserts, all in one atomic unit.
	Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error)
	ListByTenant(ctx context.Context, tenantID string) ([]domain.AuditEvent, error)
	ListRange(ctx context.Context, tenantID string, fromSeq, toSeq int64) ([]domain.AuditEvent, error)
	ListWindow(ctx context.Context, tenantID string, start, end time.Time) ([]domain.AuditEvent, error)
}

type AnchorRepository interface {
	Append(ctx context.Context, anchor domain.LedgerAnchor) error
	ListByTenant(ctx context.Context, tenantID string) ([]domain.LedgerAnchor, error)
}

// PolicyResolver maps a caller-supplied policy identifier to the hash pinned
// into the certificate, and may veto issuance.
type PolicyResolver interface {
	ResolvePolicyHash(ctx context.Context, policyID string) (string, error)
}

// TenantPurger removes everything a tenant owns: keys, certificates, chain
// tip, and nonces, in one atomic unit. Audit events are append-only and
// survive the purge.
type TenantPurger interface {
	PurgeTenant(ctx context.Context, tenantID string) error
}
