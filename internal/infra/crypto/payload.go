package crypto

import (
	"fmt"
	"time"

	"veritas/internal/domain"
)

// Canonical payload shapes are pinned per schema version. A certificate
// verifies under the rules of the schema it was issued with, so these structs
// must never change shape for an existing version; evolution happens by
// adding a new version tag.

type certPayloadV1 struct {
	Schema                string `json:"schema"`
	CertificateID         string `json:"certificate_id"`
	TenantID              string `json:"tenant_id"`
	IssuedAt              string `json:"issued_at"`
	ContentHash           string `json:"content_hash"`
	PolicyHash            string `json:"policy_hash"`
	LinkedHash            string `json:"linked_hash"`
	Nonce                 string `json:"nonce"`
	ExternalReferenceTime string `json:"external_reference_time,omitempty"`
}

type signedMessageV1 struct {
	certPayloadV1
	ChainHash string `json:"chain_hash"`
	KeyID     string `json:"key_id"`
	Algorithm string `json:"algorithm"`
}

type auditPayloadV1 struct {
	Schema      string `json:"schema"`
	TenantID    string `json:"tenant_id"`
	Seq         int64  `json:"seq"`
	OccurredAt  string `json:"occurred_at"`
	ActorIDHash string `json:"actor_id_hash,omitempty"`
	ObjectType  string `json:"object_type"`
	ObjectID    string `json:"object_id"`
	Action      string `json:"action"`
	PayloadHash string `json:"payload_hash"`
}

// CertificateChainPayload returns the canonical bytes hashed into the chain
// link: every certificate field except the chain hash and the signature.
func CertificateChainPayload(cert domain.Certificate) ([]byte, error) {
	payload, err := buildCertPayload(cert)
	if err != nil {
		return nil, err
	}
	return Canonicalize(payload)
}

// CertificateSignedMessage returns the canonical bytes the tenant key signs:
// the chain payload plus the derived chain hash and the key binding.
func CertificateSignedMessage(cert domain.Certificate) ([]byte, error) {
	payload, err := buildCertPayload(cert)
	if err != nil {
		return nil, err
	}
	return Canonicalize(signedMessageV1{
		certPayloadV1: payload,
		ChainHash:     cert.Chain.ChainHash,
		KeyID:         cert.Signature.KeyID,
		Algorithm:     cert.Signature.Algorithm,
	})
}

// AuditEventPayload returns the canonical bytes hashed into an audit chain
// link. The event payload itself participates through its hash, keeping the
// chain computation independent of payload size.
func AuditEventPayload(event domain.AuditEvent) ([]byte, error) {
	return Canonicalize(auditPayloadV1{
		Schema:      domain.AuditChainSchemaV1,
		TenantID:    event.TenantID,
		Seq:         event.Seq,
		OccurredAt:  FormatTime(event.OccurredAt),
		ActorIDHash: event.ActorIDHash,
		ObjectType:  string(event.ObjectType),
		ObjectID:    event.ObjectID,
		Action:      string(event.Action),
		PayloadHash: event.PayloadHash,
	})
}

// SealAuditEvent assigns the chain position to an event and computes its
// hash. Repositories call this inside the same transaction that reads the
// tenant tail, so seq and prev_event_hash are always consistent.
func SealAuditEvent(event domain.AuditEvent, seq int64, prevHash string) (domain.AuditEvent, error) {
	if seq < 1 {
		return domain.AuditEvent{}, fmt.Errorf("seq must be positive, got %d", seq)
	}
	if prevHash == "" {
		prevHash = domain.AuditGenesisHash
	}
	event.Seq = seq
	event.PrevEventHash = prevHash
	if event.PayloadHash == "" {
		event.PayloadHash = SHA256Hex(event.Payload)
	}
	canonical, err := AuditEventPayload(event)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	event.EventHash = ChainHash(prevHash, canonical)
	return event, nil
}

func buildCertPayload(cert domain.Certificate) (certPayloadV1, error) {
	if cert.Schema != domain.CertificateSchemaV1 {
		return certPayloadV1{}, fmt.Errorf("%w: unknown schema %q", domain.ErrCanonicalization, cert.Schema)
	}
	payload := certPayloadV1{
		Schema:        cert.Schema,
		CertificateID: cert.CertificateID,
		TenantID:      cert.TenantID,
		IssuedAt:      FormatTime(cert.IssuedAt),
		ContentHash:   cert.ContentHash,
		PolicyHash:    cert.PolicyHash,
		LinkedHash:    cert.Chain.LinkedHash,
		Nonce:         cert.Nonce,
	}
	if cert.ExternalReferenceTime != nil {
		payload.ExternalReferenceTime = FormatTime(*cert.ExternalReferenceTime)
	}
	return payload, nil
}

// FormatTime renders timestamps for canonical payloads: RFC 3339 UTC, whole
// seconds. Issuance truncates server timestamps to seconds so a JSON round
// trip reproduces identical bytes.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}
