package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

// AuditAppend is one domain event for the ledger. Payload must hold
// identifiers and hashes only; the ledger trusts callers on this contract
// and never re-derives it.
type AuditAppend struct {
	TenantID   string
	ActorID    string
	ObjectType domain.AuditObjectType
	ObjectID   string
	Action     domain.AuditAction
	Payload    map[string]any
	OccurredAt time.Time
}

type AuditEmitter struct {
	Repo  AuditEventRepository
	Clock Clock
}

func NewAuditEmitter(repo AuditEventRepository, clock Clock) *AuditEmitter {
	return &AuditEmitter{Repo: repo, Clock: clock}
}

func (e *AuditEmitter) Append(ctx context.Context, in AuditAppend) (domain.AuditEvent, error) {
	if e == nil || e.Repo == nil {
		return domain.AuditEvent{}, errors.New("audit repository required")
	}
	if in.TenantID == "" {
		return domain.AuditEvent{}, domain.ErrTenantRequired
	}
	if in.ObjectType == "" || in.Action == "" {
		return domain.AuditEvent{}, errors.New("audit event missing object_type or action")
	}
	if in.Payload == nil {
		in.Payload = map[string]any{}
	}
	payloadJSON, err := crypto.Canonicalize(in.Payload)
	if err != nil {
		return domain.AuditEvent{}, fmt.Errorf("canonicalize audit payload: %w", err)
	}
	occurredAt := in.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = e.now()
	}
	event := domain.AuditEvent{
		EventID:     uuid.NewString(),
		TenantID:    in.TenantID,
		OccurredAt:  occurredAt.UTC().Truncate(time.Second),
		ActorIDHash: hashActorID(in.ActorID),
		ObjectType:  in.ObjectType,
		ObjectID:    in.ObjectID,
		Action:      in.Action,
		Payload:     json.RawMessage(payloadJSON),
		PayloadHash: crypto.SHA256Hex(payloadJSON),
	}
	return e.Repo.Append(ctx, event)
}

func (e *AuditEmitter) now() time.Time {
	if e != nil && e.Clock != nil {
		return e.Clock()
	}
	return time.Now().UTC()
}

// Actor identifiers are stored hashed so the ledger never carries raw
// principal names.
func hashActorID(actorID string) string {
	if actorID == "" {
		return ""
	}
	return crypto.SHA256Hex([]byte(actorID))
}
