package db

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"veritas/internal/domain"
)

type AnchorRepository struct {
	db *gorm.DB
}

func NewAnchorRepository(gdb *gorm.DB) *AnchorRepository {
	return &AnchorRepository{db: gdb}
}

func (r *AnchorRepository) Append(ctx context.Context, anchor domain.LedgerAnchor) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if anchor.TenantID == "" {
		return domain.ErrTenantRequired
	}
	model := LedgerAnchorModel{
		ID:          anchor.ID,
		TenantID:    anchor.TenantID,
		PeriodStart: anchor.PeriodStart,
		PeriodEnd:   anchor.PeriodEnd,
		Root:        anchor.Root,
		Method:      anchor.Method,
		EventCount:  anchor.EventCount,
		AnchoredAt:  anchor.AnchoredAt,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model).Error
}

func (r *AnchorRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.LedgerAnchor, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []LedgerAnchorModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("period_start ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	anchors := make([]domain.LedgerAnchor, 0, len(models))
	for _, model := range models {
		anchors = append(anchors, domain.LedgerAnchor{
			ID:          model.ID,
			TenantID:    model.TenantID,
			PeriodStart: model.PeriodStart.UTC(),
			PeriodEnd:   model.PeriodEnd.UTC(),
			Root:        model.Root,
			Method:      model.Method,
			EventCount:  model.EventCount,
			AnchoredAt:  model.AnchoredAt.UTC(),
		})
	}
	return anchors, nil
}

// TenantRepository covers tenant listing for the anchor scheduler and the
// transactional purge.
type TenantRepository struct {
	db *gorm.DB
}

func NewTenantRepository(gdb *gorm.DB) *TenantRepository {
	return &TenantRepository{db: gdb}
}

func (r *TenantRepository) ListTenantIDs(ctx context.Context) ([]string, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var ids []string
	if err := r.db.WithContext(ctx).
		Model(&TenantModel{}).
		Order("id ASC").
		Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// PurgeTenant removes everything the tenant owns in one transaction: keys,
// certificates, chain tip, and nonces. Audit events and anchors are
// append-only history and survive.
func (r *TenantRepository) PurgeTenant(ctx context.Context, tenantID string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if tenantID == "" {
		return domain.ErrTenantRequired
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&SigningKeyModel{},
			&CertificateModel{},
			&ChainTipModel{},
			&NonceModel{},
		} {
			if err := tx.Where("tenant_id = ?", tenantID).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Where("id = ?", tenantID).Delete(&TenantModel{}).Error
	})
}
