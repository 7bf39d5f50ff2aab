package soft

import (
	"context"
	"errors"
	"fmt"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

// KeyStore is the persistence boundary for key rows. Every method is
// tenant-scoped; a (tenant, kid) pair that belongs to another tenant
// resolves to domain.ErrKeyNotFound.
type KeyStore interface {
	GetActive(ctx context.Context, tenantID string) (domain.SigningKey, error)
	GetByKID(ctx context.Context, tenantID, kid string) (domain.SigningKey, error)

	// CreateActive inserts key as the tenant's active key. If an active key
	// already exists it returns that key instead, making bootstrap
	// idempotent under concurrent callers.
	CreateActive(ctx context.Context, key domain.SigningKey, privateKeyDER []byte) (domain.SigningKey, error)

	// RotateActive atomically flips the current active key to rotated and
	// inserts key as the new active one.
	RotateActive(ctx context.Context, key domain.SigningKey, privateKeyDER []byte) (domain.SigningKey, error)

	PrivateKeyDER(ctx context.Context, ref domain.KeyRef) ([]byte, error)
}

// Manager implements domain.KeyManager with software keys held in the key
// store. Private material never leaves this package except as signatures;
// swapping in an external KMS means replacing this type, nothing else.
type Manager struct {
	store KeyStore
}

func NewManager(store KeyStore) *Manager {
	return &Manager{store: store}
}

func (m *Manager) Sign(ctx context.Context, ref domain.KeyRef, payload []byte) ([]byte, error) {
	if ref.TenantID == "" || ref.KID == "" {
		return nil, errors.New("key ref requires tenant_id and kid")
	}
	privDER, err := m.store.PrivateKeyDER(ctx, ref)
	if err != nil {
		return nil, fmt.Errorf("resolve private key: %w", err)
	}
	return crypto.Sign(privDER, payload)
}

func (m *Manager) Verify(_ context.Context, payload []byte, sig []byte, pubKey []byte) error {
	return crypto.Verify(pubKey, payload, sig)
}
