package db

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"veritas/internal/domain"
)

// KeyRepository implements soft.KeyStore on Postgres. Key rows are never
// deleted except by tenant purge; rotation flips status only.
type KeyRepository struct {
	db *gorm.DB
}

func NewKeyRepository(gdb *gorm.DB) *KeyRepository {
	return &KeyRepository{db: gdb}
}

func (r *KeyRepository) GetActive(ctx context.Context, tenantID string) (domain.SigningKey, error) {
	if r.db == nil {
		return domain.SigningKey{}, errDBUnavailable
	}
	var model SigningKeyModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND status = ?", tenantID, string(domain.KeyStatusActive)).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SigningKey{}, domain.ErrKeyNotFound
	}
	if err != nil {
		return domain.SigningKey{}, err
	}
	return keyFromModel(model), nil
}

func (r *KeyRepository) GetByKID(ctx context.Context, tenantID, kid string) (domain.SigningKey, error) {
	if r.db == nil {
		return domain.SigningKey{}, errDBUnavailable
	}
	var model SigningKeyModel
	err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND kid = ?", tenantID, kid).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.SigningKey{}, domain.ErrKeyNotFound
	}
	if err != nil {
		return domain.SigningKey{}, err
	}
	return keyFromModel(model), nil
}

func (r *KeyRepository) CreateActive(ctx context.Context, key domain.SigningKey, privateKeyDER []byte) (domain.SigningKey, error) {
	if r.db == nil {
		return domain.SigningKey{}, errDBUnavailable
	}
	var out domain.SigningKey
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTenantKeys(tx, key.TenantID); err != nil {
			return err
		}
		var existing SigningKeyModel
		err := tx.Where("tenant_id = ? AND status = ?", key.TenantID, string(domain.KeyStatusActive)).
			First(&existing).Error
		if err == nil {
			// concurrent bootstrap won; bootstrap is idempotent
			out = keyFromModel(existing)
			return nil
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return err
		}
		model := keyToModel(key, privateKeyDER)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = keyFromModel(model)
		return nil
	})
	if err != nil {
		return domain.SigningKey{}, err
	}
	return out, nil
}

func (r *KeyRepository) RotateActive(ctx context.Context, key domain.SigningKey, privateKeyDER []byte) (domain.SigningKey, error) {
	if r.db == nil {
		return domain.SigningKey{}, errDBUnavailable
	}
	var out domain.SigningKey
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockTenantKeys(tx, key.TenantID); err != nil {
			return err
		}
		if err := tx.Model(&SigningKeyModel{}).
			Where("tenant_id = ? AND status = ?", key.TenantID, string(domain.KeyStatusActive)).
			Update("status", string(domain.KeyStatusRotated)).Error; err != nil {
			return err
		}
		model := keyToModel(key, privateKeyDER)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		out = keyFromModel(model)
		return nil
	})
	if err != nil {
		return domain.SigningKey{}, err
	}
	return out, nil
}

func (r *KeyRepository) PrivateKeyDER(ctx context.Context, ref domain.KeyRef) ([]byte, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SigningKeyModel
	err := r.db.WithContext(ctx).
		Select("private_key").
		Where("tenant_id = ? AND kid = ?", ref.TenantID, ref.KID).
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrKeyNotFound
	}
	if err != nil {
		return nil, err
	}
	return model.PrivateKey, nil
}

// lockTenantKeys serializes key lifecycle changes for one tenant so rotation
// is atomic with respect to concurrent bootstrap and signing key reads.
func lockTenantKeys(tx *gorm.DB, tenantID string) error {
	tenant := TenantModel{ID: tenantID, Name: tenantID, CreatedAt: time.Now().UTC()}
	if err := tx.Exec(
		"INSERT INTO tenants (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (id) DO NOTHING",
		tenant.ID, tenant.Name, tenant.CreatedAt,
	).Error; err != nil {
		return err
	}
	return tx.Exec("SELECT id FROM tenants WHERE id = ? FOR UPDATE", tenantID).Error
}

func keyToModel(key domain.SigningKey, privateKeyDER []byte) SigningKeyModel {
	return SigningKeyModel{
		ID:         key.ID,
		TenantID:   key.TenantID,
		KID:        key.KID,
		Alg:        key.Alg,
		PublicKey:  key.PublicKey,
		PrivateKey: privateKeyDER,
		Status:     string(key.Status),
		CreatedAt:  key.CreatedAt,
	}
}

func keyFromModel(model SigningKeyModel) domain.SigningKey {
	return domain.SigningKey{
		ID:        model.ID,
		TenantID:  model.TenantID,
		KID:       model.KID,
		Alg:       model.Alg,
		PublicKey: model.PublicKey,
		Status:    domain.KeyStatus(model.Status),
		CreatedAt: model.CreatedAt,
	}
}
