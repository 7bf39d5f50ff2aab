package db

import "time"

type TenantModel struct {
	ID        string    `gorm:"type:text;primaryKey"`
	Name      string    `gorm:"uniqueIndex;not null"`
	CreatedAt time.Time `gorm:"not null"`
}

func (TenantModel) TableName() string {
	return "tenants"
}

type SigningKeyModel struct {
	ID         string    `gorm:"type:uuid;primaryKey"`
	TenantID   string    `gorm:"type:text;uniqueIndex:idx_tenant_kid;index;not null"`
	KID        string    `gorm:"column:kid;uniqueIndex:idx_tenant_kid;not null"`
	Alg        string    `gorm:"not null"`
	PublicKey  []byte    `gorm:"type:bytea;not null"`
	PrivateKey []byte    `gorm:"type:bytea;not null"`
	Status     string    `gorm:"index;not null"`
	CreatedAt  time.Time `gorm:"not null"`
}

func (SigningKeyModel) TableName() string {
	return "signing_keys"
}

type CertificateModel struct {
	ID                    string    `gorm:"type:uuid;primaryKey"`
	TenantID              string    `gorm:"type:text;index;uniqueIndex:idx_tenant_chain_index;uniqueIndex:idx_tenant_chain_hash;not null"`
	ChainIndex            int64     `gorm:"uniqueIndex:idx_tenant_chain_index;not null"`
	Schema                string    `gorm:"not null"`
	IssuedAt              time.Time `gorm:"not null"`
	ContentHash           string    `gorm:"not null"`
	PolicyHash            string    `gorm:"not null"`
	LinkedHash            string    `gorm:"not null"`
	ChainHash             string    `gorm:"uniqueIndex:idx_tenant_chain_hash;not null"`
	Nonce                 string    `gorm:"not null"`
	KID                   string    `gorm:"column:kid;not null"`
	SigAlg                string    `gorm:"not null"`
	Signature             string    `gorm:"not null"`
	CanonicalMessage      []byte    `gorm:"type:bytea;not null"`
	ExternalReferenceTime *time.Time
	CreatedAt             time.Time `gorm:"not null"`
}

func (CertificateModel) TableName() string {
	return "certificates"
}

// ChainTipModel rows are created empty (ChainHash "") on first issuance and
// advanced under a row lock; the tip is never an in-memory singleton.
type ChainTipModel struct {
	TenantID      string    `gorm:"type:text;primaryKey"`
	CertificateID string    `gorm:"type:uuid"`
	ChainHash     string    `gorm:"not null"`
	ChainIndex    int64     `gorm:"not null"`
	UpdatedAt     time.Time `gorm:"not null"`
}

func (ChainTipModel) TableName() string {
	return "chain_tips"
}

type NonceModel struct {
	ID        int64     `gorm:"primaryKey"`
	TenantID  string    `gorm:"type:text;uniqueIndex:idx_tenant_nonce;not null"`
	Nonce     string    `gorm:"uniqueIndex:idx_tenant_nonce;not null"`
	CreatedAt time.Time `gorm:"index;not null"`
}

func (NonceModel) TableName() string {
	return "nonces"
}

type AuditEventModel struct {
	ID            string    `gorm:"type:uuid;primaryKey"`
	TenantID      string    `gorm:"type:text;index;uniqueIndex:idx_tenant_seq;not null"`
	Seq           int64     `gorm:"uniqueIndex:idx_tenant_seq;not null"`
	OccurredAt    time.Time `gorm:"index;not null"`
	ActorIDHash   *string
	ObjectType    string    `gorm:"not null"`
	ObjectID      string    `gorm:"not null"`
	Action        string    `gorm:"not null"`
	PayloadJSON   []byte    `gorm:"type:jsonb;not null"`
	PayloadHash   string    `gorm:"not null"`
	PrevEventHash string    `gorm:"not null"`
	EventHash     string    `gorm:"not null"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (AuditEventModel) TableName() string {
	return "audit_events"
}

type AuditTailModel struct {
	TenantID  string    `gorm:"type:text;primaryKey"`
	Seq       int64     `gorm:"not null"`
	EventHash string    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

func (AuditTailModel) TableName() string {
	return "audit_tails"
}

type LedgerAnchorModel struct {
	ID          string    `gorm:"type:uuid;primaryKey"`
	TenantID    string    `gorm:"type:text;index;not null"`
	PeriodStart time.Time `gorm:"not null"`
	PeriodEnd   time.Time `gorm:"not null"`
	Root        string    `gorm:"not null"`
	Method      string    `gorm:"not null"`
	EventCount  int64     `gorm:"not null"`
	AnchoredAt  time.Time `gorm:"not null"`
}

func (LedgerAnchorModel) TableName() string {
	return "ledger_anchors"
}
