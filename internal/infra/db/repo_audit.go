package db

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(gdb *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: gdb}
}

// Append assigns the next sequence number from the tenant's tail row (taken
// FOR UPDATE), seals the event hash, and inserts event and tail in one
// transaction.
func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	if r.db == nil {
		return domain.AuditEvent{}, errDBUnavailable
	}
	if event.TenantID == "" {
		return domain.AuditEvent{}, domain.ErrTenantRequired
	}
	var sealed domain.AuditEvent
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now().UTC()
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&AuditTailModel{TenantID: event.TenantID, Seq: 0, EventHash: domain.AuditGenesisHash, UpdatedAt: now}).Error; err != nil {
			return err
		}
		var tail AuditTailModel
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("tenant_id = ?", event.TenantID).
			First(&tail).Error; err != nil {
			return err
		}

		var err error
		sealed, err = crypto.SealAuditEvent(event, tail.Seq+1, tail.EventHash)
		if err != nil {
			return err
		}
		model := auditToModel(sealed)
		if err := tx.Create(&model).Error; err != nil {
			return err
		}
		return tx.Model(&AuditTailModel{}).
			Where("tenant_id = ?", event.TenantID).
			Updates(map[string]any{
				"seq":        sealed.Seq,
				"event_hash": sealed.EventHash,
				"updated_at": now,
			}).Error
	})
	if err != nil {
		return domain.AuditEvent{}, err
	}
	return sealed, nil
}

func (r *AuditEventRepository) ListByTenant(ctx context.Context, tenantID string) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return auditEventsFromModels(models), nil
}

func (r *AuditEventRepository) ListRange(ctx context.Context, tenantID string, fromSeq, toSeq int64) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND seq >= ? AND seq <= ?", tenantID, fromSeq, toSeq).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return auditEventsFromModels(models), nil
}

func (r *AuditEventRepository) ListWindow(ctx context.Context, tenantID string, start, end time.Time) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []AuditEventModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND occurred_at >= ? AND occurred_at < ?", tenantID, start, end).
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return auditEventsFromModels(models), nil
}

func auditToModel(event domain.AuditEvent) AuditEventModel {
	return AuditEventModel{
		ID:            event.EventID,
		TenantID:      event.TenantID,
		Seq:           event.Seq,
		OccurredAt:    event.OccurredAt,
		ActorIDHash:   stringPtrIfNotEmpty(event.ActorIDHash),
		ObjectType:    string(event.ObjectType),
		ObjectID:      event.ObjectID,
		Action:        string(event.Action),
		PayloadJSON:   event.Payload,
		PayloadHash:   event.PayloadHash,
		PrevEventHash: event.PrevEventHash,
		EventHash:     event.EventHash,
		CreatedAt:     time.Now().UTC(),
	}
}

func auditFromModel(model AuditEventModel) domain.AuditEvent {
	return domain.AuditEvent{
		EventID:       model.ID,
		TenantID:      model.TenantID,
		Seq:           model.Seq,
		OccurredAt:    model.OccurredAt.UTC(),
		ActorIDHash:   stringFromPtr(model.ActorIDHash),
		ObjectType:    domain.AuditObjectType(model.ObjectType),
		ObjectID:      model.ObjectID,
		Action:        domain.AuditAction(model.Action),
		Payload:       json.RawMessage(model.PayloadJSON),
		PayloadHash:   model.PayloadHash,
		PrevEventHash: model.PrevEventHash,
		EventHash:     model.EventHash,
	}
}

func auditEventsFromModels(models []AuditEventModel) []domain.AuditEvent {
	events := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		events = append(events, auditFromModel(model))
	}
	return events
}
