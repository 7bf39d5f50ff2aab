package usecase

import (
	"context"
	"errors"
	"testing"

	"veritas/internal/domain"
)

type purgerStub struct {
	purged []string
	err    error
}

func (s *purgerStub) PurgeTenant(_ context.Context, tenantID string) error {
	if s.err != nil {
		return s.err
	}
	s.purged = append(s.purged, tenantID)
	return nil
}

func TestTenantPurgeRecordsAuditEvent(t *testing.T) {
	store := &purgerStub{}
	audits := &auditRepoStub{}
	purge := &TenantPurge{Store: store, Audit: NewAuditEmitter(audits, nil)}

	if err := purge.Purge(context.Background(), "t-1", "admin"); err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if len(store.purged) != 1 || store.purged[0] != "t-1" {
		t.Fatalf("purged = %v", store.purged)
	}
	if len(audits.events) != 1 || audits.events[0].Action != domain.AuditActionTenantPurged {
		t.Fatalf("audit events = %+v", audits.events)
	}
}

func TestTenantPurgeFailureSkipsAudit(t *testing.T) {
	store := &purgerStub{err: errors.New("storage down")}
	audits := &auditRepoStub{}
	purge := &TenantPurge{Store: store, Audit: NewAuditEmitter(audits, nil)}

	if err := purge.Purge(context.Background(), "t-1", "admin"); err == nil {
		t.Fatal("purge failure swallowed")
	}
	if len(audits.events) != 0 {
		t.Fatalf("audit events = %d, want 0", len(audits.events))
	}
}

func TestTenantPurgeRequiresTenant(t *testing.T) {
	purge := &TenantPurge{Store: &purgerStub{}}

	if err := purge.Purge(context.Background(), "", "admin"); !errors.Is(err, domain.ErrTenantRequired) {
		t.Fatalf("err = %v, want ErrTenantRequired", err)
	}
}

func TestKeyRotatorRequiresTenant(t *testing.T) {
	rotator := &KeyRotator{}

	if _, err := rotator.Rotate(context.Background(), "", "admin"); !errors.Is(err, domain.ErrTenantRequired) {
		t.Fatalf("err = %v, want ErrTenantRequired", err)
	}
}
