package domain

import "time"

const (
	AnchorMethodMerkleV1   = "merkle_v1"
	AnchorMethodChainTipV1 = "chain_tip_v1"
)

// LedgerAnchor is a periodic checkpoint over a window of audit events. It is
// written once by the anchor scheduler and never mutated; the root can be
// handed to an external notary for independent spot-checks.
type LedgerAnchor struct {
	ID          string
	TenantID    string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Root        string // hex
	Method      string
	EventCount  int64
	AnchoredAt  time.Time
}
