package domain

import "time"

const (
	// CertificateSchemaV1 pins the canonicalization rules a certificate was
	// issued under. Old certificates verify under their recorded schema.
	CertificateSchemaV1 = "integrity_cert_v1"

	// GenesisHash is the linked_hash sentinel for the first certificate in a
	// tenant's chain.
	GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

	SignatureAlgECDSAP256SHA256 = "ecdsa-p256-sha256"
	HashAlgSHA256               = "sha256"
)

type ChainLink struct {
	LinkedHash string `json:"linked_hash"`
	ChainHash  string `json:"chain_hash"`
}

type SignatureBundle struct {
	KeyID            string `json:"key_id"`
	Algorithm        string `json:"algorithm"`
	Value            string `json:"signature"` // base64 ASN.1 DER
	CanonicalMessage []byte `json:"canonical_message"` // JCS bytes, base64 on the wire
}

// Certificate is immutable once issued. Every field except Signature.Value
// participates in the canonical message; mutating any of them invalidates
// the signature and every later link in the tenant's chain.
type Certificate struct {
	Schema                string          `json:"schema"`
	CertificateID         string          `json:"certificate_id"`
	TenantID              string          `json:"tenant_id"`
	IssuedAt              time.Time       `json:"issued_at"`
	ContentHash           string          `json:"content_hash"`
	PolicyHash            string          `json:"policy_hash"`
	Chain                 ChainLink       `json:"chain"`
	Nonce                 string          `json:"nonce"`
	Signature             SignatureBundle `json:"signature"`
	ExternalReferenceTime *time.Time      `json:"external_reference_time,omitempty"`
}

// ChainTip is the per-tenant pointer to the most recently issued
// certificate's chain hash. It advances exactly once per issuance, inside
// the same transaction that persists the certificate.
type ChainTip struct {
	TenantID      string
	CertificateID string
	ChainHash     string
	UpdatedAt     time.Time
}
