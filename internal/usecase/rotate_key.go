package usecase

import (
	"context"

	"veritas/internal/domain"
)

// KeyRotator rotates a tenant's signing key and records the rotation in the
// audit ledger. The registry performs the flip-and-insert atomically, so a
// concurrent issuance either signs with the old key or the new one, never a
// half-rotated state.
type KeyRotator struct {
	Keys  domain.KeyRegistry
	Audit *AuditEmitter
}

func (r *KeyRotator) Rotate(ctx context.Context, tenantID, actorID string) (domain.SigningKey, error) {
	if tenantID == "" {
		return domain.SigningKey{}, domain.ErrTenantRequired
	}
	previous, _ := r.Keys.GetActive(ctx, tenantID)

	key, err := r.Keys.Rotate(ctx, tenantID)
	if err != nil {
		return domain.SigningKey{}, err
	}
	if r.Audit != nil {
		payload := map[string]any{"key_id": key.KID, "alg": key.Alg}
		if previous.KID != "" {
			payload["previous_key_id"] = previous.KID
		}
		_, _ = r.Audit.Append(ctx, AuditAppend{
			TenantID:   tenantID,
			ActorID:    actorID,
			ObjectType: domain.AuditObjectKey,
			ObjectID:   key.KID,
			Action:     domain.AuditActionKeyRotated,
			Payload:    payload,
		})
	}
	return key, nil
}

// TenantPurge deletes everything a tenant owns. The purge itself is recorded
// in the audit ledger, which is append-only and survives.
type TenantPurge struct {
	Store TenantPurger
	Audit *AuditEmitter
}

func (p *TenantPurge) Purge(ctx context.Context, tenantID, actorID string) error {
	if tenantID == "" {
		return domain.ErrTenantRequired
	}
	if err := p.Store.PurgeTenant(ctx, tenantID); err != nil {
		return err
	}
	if p.Audit != nil {
		_, _ = p.Audit.Append(ctx, AuditAppend{
			TenantID:   tenantID,
			ActorID:    actorID,
			ObjectType: domain.AuditObjectTenant,
			ObjectID:   tenantID,
			Action:     domain.AuditActionTenantPurged,
			Payload:    map[string]any{"tenant_id": tenantID},
		})
	}
	return nil
}
