package anchor

import (
	"context"
	"log"
	"time"

	"veritas/internal/domain"
)

type Anchorer interface {
	Anchor(ctx context.Context, tenantID string, periodStart, periodEnd time.Time) (domain.LedgerAnchor, error)
}

type TenantLister interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
}

// Scheduler anchors every tenant's ledger once per period. Anchoring is
// best-effort per tenant: one failing tenant does not block the others, and
// a missed window is covered by the next run since windows are derived from
// the wall clock, not from run history.
type Scheduler struct {
	Anchorer Anchorer
	Tenants  TenantLister
	Period   time.Duration
	Clock    func() time.Time
}

func (s *Scheduler) Run(ctx context.Context) {
	period := s.Period
	if period <= 0 {
		period = time.Hour
	}
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.anchorAll(ctx, period)
		}
	}
}

func (s *Scheduler) anchorAll(ctx context.Context, period time.Duration) {
	now := s.now().UTC()
	periodEnd := now.Truncate(period)
	periodStart := periodEnd.Add(-period)

	tenantIDs, err := s.Tenants.ListTenantIDs(ctx)
	if err != nil {
		log.Printf("anchor scheduler: list tenants: %v", err)
		return
	}
	for _, tenantID := range tenantIDs {
		if _, err := s.Anchorer.Anchor(ctx, tenantID, periodStart, periodEnd); err != nil {
			log.Printf("anchor scheduler: tenant %s: %v", tenantID, err)
		}
	}
}

func (s *Scheduler) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
