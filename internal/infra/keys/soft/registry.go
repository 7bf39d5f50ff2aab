package soft

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

// Registry implements domain.KeyRegistry over a KeyStore. The one-active-key
// invariant lives in the store's transactional operations; the registry only
// generates material and shapes rows.
type Registry struct {
	store KeyStore
	clock func() time.Time
}

func NewRegistry(store KeyStore) *Registry {
	return &Registry{store: store, clock: time.Now}
}

func NewRegistryWithClock(store KeyStore, clock func() time.Time) *Registry {
	return &Registry{store: store, clock: clock}
}

func (r *Registry) EnsureActive(ctx context.Context, tenantID string) (domain.SigningKey, error) {
	if tenantID == "" {
		return domain.SigningKey{}, domain.ErrTenantRequired
	}
	key, err := r.store.GetActive(ctx, tenantID)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, domain.ErrKeyNotFound) && !errors.Is(err, domain.ErrNotFound) {
		return domain.SigningKey{}, err
	}
	fresh, privDER, err := r.newKey(tenantID)
	if err != nil {
		return domain.SigningKey{}, err
	}
	// CreateActive returns the winner if a concurrent bootstrap got there
	// first, so both callers observe the same active key.
	return r.store.CreateActive(ctx, fresh, privDER)
}

func (r *Registry) GetActive(ctx context.Context, tenantID string) (domain.SigningKey, error) {
	if tenantID == "" {
		return domain.SigningKey{}, domain.ErrTenantRequired
	}
	return r.store.GetActive(ctx, tenantID)
}

func (r *Registry) GetByKID(ctx context.Context, tenantID, kid string) (domain.SigningKey, error) {
	if tenantID == "" {
		return domain.SigningKey{}, domain.ErrTenantRequired
	}
	if kid == "" {
		return domain.SigningKey{}, domain.ErrKeyNotFound
	}
	return r.store.GetByKID(ctx, tenantID, kid)
}

func (r *Registry) Rotate(ctx context.Context, tenantID string) (domain.SigningKey, error) {
	if tenantID == "" {
		return domain.SigningKey{}, domain.ErrTenantRequired
	}
	fresh, privDER, err := r.newKey(tenantID)
	if err != nil {
		return domain.SigningKey{}, err
	}
	return r.store.RotateActive(ctx, fresh, privDER)
}

func (r *Registry) newKey(tenantID string) (domain.SigningKey, []byte, error) {
	pair, err := crypto.GenerateKeyPair()
	if err != nil {
		return domain.SigningKey{}, nil, err
	}
	key := domain.SigningKey{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		KID:       pair.KID,
		Alg:       domain.SignatureAlgECDSAP256SHA256,
		PublicKey: pair.PublicKey,
		Status:    domain.KeyStatusActive,
		CreatedAt: r.clock().UTC(),
	}
	return key, pair.PrivateKey, nil
}
