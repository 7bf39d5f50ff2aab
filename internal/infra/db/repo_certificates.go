package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"veritas/internal/domain"
)

type CertificateRepository struct {
	db *gorm.DB
}

func NewCertificateRepository(gdb *gorm.DB) *CertificateRepository {
	return &CertificateRepository{db: gdb}
}

// CommitIssuance is the engine's commit point: certificate row, chain tip
// advance, and nonce record succeed or fail as one transaction. The tip row
// is taken FOR UPDATE, so concurrent issuances for the same tenant serialize
// here; a tip that moved past expectedTip surfaces as ErrChainConflict for
// the caller to retry with a refreshed tip.
func (r *CertificateRepository) CommitIssuance(ctx context.Context, cert domain.Certificate, expectedTip string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if cert.TenantID == "" {
		return domain.ErrTenantRequired
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()

		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&ChainTipModel{TenantID: cert.TenantID, ChainHash: "", UpdatedAt: now}).Error; err != nil {
			return err
		}
		var tip ChainTipModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", cert.TenantID).
			First(&tip).Error; err != nil {
			return err
		}
		if tip.ChainHash != expectedTip {
			return domain.ErrChainConflict
		}

		nonce := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&NonceModel{
			TenantID:  cert.TenantID,
			Nonce:     cert.Nonce,
			CreatedAt: now,
		})
		if nonce.Error != nil {
			return nonce.Error
		}
		if nonce.RowsAffected == 0 {
			return domain.ErrReplayDetected
		}

		model := certToModel(cert, tip.ChainIndex+1, now)
		if err := tx.Create(&model).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return domain.ErrChainConflict
			}
			return err
		}

		return tx.Model(&ChainTipModel{}).
			Where("tenant_id = ?", cert.TenantID).
			Updates(map[string]any{
				"certificate_id": cert.CertificateID,
				"chain_hash":     cert.Chain.ChainHash,
				"chain_index":    tip.ChainIndex + 1,
				"updated_at":     now,
			}).Error
	})
}

func (r *CertificateRepository) GetByID(ctx context.Context, tenantID, certificateID string) (domain.Certificate, error) {
	if r.db == nil {
		return domain.Certificate{}, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, certificateID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Certificate{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Certificate{}, err
	}
	return certFromModel(model), nil
}

func (r *CertificateRepository) GetByChainHash(ctx context.Context, tenantID, chainHash string) (domain.Certificate, error) {
	if r.db == nil {
		return domain.Certificate{}, errDBUnavailable
	}
	var model CertificateModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND chain_hash = ?", tenantID, chainHash).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Certificate{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Certificate{}, err
	}
	return certFromModel(model), nil
}

func (r *CertificateRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.Certificate, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []CertificateModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("chain_index ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	certs := make([]domain.Certificate, 0, len(models))
	for _, model := range models {
		certs = append(certs, certFromModel(model))
	}
	return certs, nil
}

func (r *CertificateRepository) GetTip(ctx context.Context, tenantID string) (domain.ChainTip, error) {
	if r.db == nil {
		return domain.ChainTip{}, errDBUnavailable
	}
	var tip ChainTipModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&tip).Error
	if errors.Is(err, gorm.ErrRecordNotFound) || (err == nil && tip.ChainHash == "") {
		return domain.ChainTip{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.ChainTip{}, err
	}
	return domain.ChainTip{
		TenantID:      tip.TenantID,
		CertificateID: tip.CertificateID,
		ChainHash:     tip.ChainHash,
		UpdatedAt:     tip.UpdatedAt,
	}, nil
}

// DeleteNoncesBefore garbage-collects nonce rows older than cutoff. Nonces
// exist only to block replay inside the retention window, so expiring them
// never breaks correctness.
func (r *CertificateRepository) DeleteNoncesBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if r.db == nil {
		return 0, errDBUnavailable
	}
	res := r.db.WithContext(ctx).
		Where("created_at < ?", cutoff).
		Delete(&NonceModel{})
	return res.RowsAffected, res.Error
}

func certToModel(cert domain.Certificate, chainIndex int64, now time.Time) CertificateModel {
	return CertificateModel{
		ID:                    cert.CertificateID,
		TenantID:              cert.TenantID,
		ChainIndex:            chainIndex,
		Schema:                cert.Schema,
		IssuedAt:              cert.IssuedAt,
		ContentHash:           cert.ContentHash,
		PolicyHash:            cert.PolicyHash,
		LinkedHash:            cert.Chain.LinkedHash,
		ChainHash:             cert.Chain.ChainHash,
		Nonce:                 cert.Nonce,
		KID:                   cert.Signature.KeyID,
		SigAlg:                cert.Signature.Algorithm,
		Signature:             cert.Signature.Value,
		CanonicalMessage:      cert.Signature.CanonicalMessage,
		ExternalReferenceTime: cert.ExternalReferenceTime,
		CreatedAt:             now,
	}
}

func certFromModel(model CertificateModel) domain.Certificate {
	return domain.Certificate{
		Schema:        model.Schema,
		CertificateID: model.ID,
		TenantID:      model.TenantID,
		IssuedAt:      model.IssuedAt.UTC(),
		ContentHash:   model.ContentHash,
		PolicyHash:    model.PolicyHash,
		Chain: domain.ChainLink{
			LinkedHash: model.LinkedHash,
			ChainHash:  model.ChainHash,
		},
		Nonce: model.Nonce,
		Signature: domain.SignatureBundle{
			KeyID:            model.KID,
			Algorithm:        model.SigAlg,
			Value:            model.Signature,
			CanonicalMessage: model.CanonicalMessage,
		},
		ExternalReferenceTime: utcPtr(model.ExternalReferenceTime),
	}
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
