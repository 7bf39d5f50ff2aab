package domain

import (
	"encoding/json"
	"time"
)

const (
	AuditChainSchemaV1 = "audit_chain_v1"

	// AuditGenesisHash is the prev_event_hash sentinel for the first event in
	// a tenant's ledger.
	AuditGenesisHash = GenesisHash
)

type AuditAction string

const (
	AuditActionCertificateIssued AuditAction = "certificate_issued"
	AuditActionKeyRegistered     AuditAction = "key_registered"
	AuditActionKeyRotated        AuditAction = "key_rotated"
	AuditActionAnchorCreated     AuditAction = "anchor_created"
	AuditActionTenantPurged      AuditAction = "tenant_purged"
)

type AuditObjectType string

const (
	AuditObjectCertificate AuditObjectType = "certificate"
	AuditObjectKey         AuditObjectType = "key"
	AuditObjectAnchor      AuditObjectType = "anchor"
	AuditObjectTenant      AuditObjectType = "tenant"
)

// AuditEvent is one link of the per-tenant append-only ledger. Payload holds
// identifiers and hashes only; callers must never put raw content in it.
type AuditEvent struct {
	EventID       string
	TenantID      string
	Seq           int64
	OccurredAt    time.Time
	ActorIDHash   string
	ObjectType    AuditObjectType
	ObjectID      string
	Action        AuditAction
	Payload       json.RawMessage
	PayloadHash   string
	PrevEventHash string
	EventHash     string
}
