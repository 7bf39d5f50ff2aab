package usecase

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"veritas/internal/domain"
)

func newTestAnchorer(repo *auditRepoStub, anchors *anchorRepoStub, method string) *LedgerAnchorer {
	now := time.Date(2026, 3, 14, 11, 0, 0, 0, time.UTC)
	return &LedgerAnchorer{
		Events:  repo,
		Anchors: anchors,
		Audit:   NewAuditEmitter(repo, fixedClock(now)),
		Clock:   fixedClock(now),
		Method:  method,
	}
}

func TestAnchorMerkleRoundTrip(t *testing.T) {
	repo := &auditRepoStub{}
	anchors := &anchorRepoStub{}
	appendTestEvents(t, repo, "t-1", 3)
	anchorer := newTestAnchorer(repo, anchors, "")
	ctx := context.Background()

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Hour)
	anchor, err := anchorer.Anchor(ctx, "t-1", start, end)
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if anchor.Method != domain.AnchorMethodMerkleV1 {
		t.Errorf("method = %q, want merkle default", anchor.Method)
	}
	if anchor.EventCount != 3 {
		t.Errorf("event_count = %d, want 3", anchor.EventCount)
	}
	if anchor.Root == "" {
		t.Error("empty root")
	}
	if len(anchors.anchors) != 1 {
		t.Fatalf("stored anchors = %d, want 1", len(anchors.anchors))
	}

	ok, err := anchorer.VerifyAnchor(ctx, anchor)
	if err != nil {
		t.Fatalf("VerifyAnchor: %v", err)
	}
	if !ok {
		t.Error("fresh anchor does not verify")
	}

	var sawAnchorEvent bool
	for _, event := range repo.events {
		if event.Action == domain.AuditActionAnchorCreated {
			sawAnchorEvent = true
		}
	}
	if !sawAnchorEvent {
		t.Error("anchor creation not recorded in the ledger")
	}
}

func TestAnchorDetectsLedgerMutation(t *testing.T) {
	repo := &auditRepoStub{}
	anchors := &anchorRepoStub{}
	appendTestEvents(t, repo, "t-1", 3)
	anchorer := newTestAnchorer(repo, anchors, "")
	ctx := context.Background()

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	anchor, err := anchorer.Anchor(ctx, "t-1", start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}

	repo.events[1].Payload = json.RawMessage(`{"index":99}`)
	repo.events[1].EventHash = "f00d" + repo.events[1].EventHash[4:]

	ok, err := anchorer.VerifyAnchor(ctx, anchor)
	if err != nil {
		t.Fatalf("VerifyAnchor: %v", err)
	}
	if ok {
		t.Error("mutated ledger still matches the anchor")
	}
}

func TestAnchorChainTipMethod(t *testing.T) {
	repo := &auditRepoStub{}
	anchors := &anchorRepoStub{}
	appendTestEvents(t, repo, "t-1", 2)
	anchorer := newTestAnchorer(repo, anchors, domain.AnchorMethodChainTipV1)
	ctx := context.Background()

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	anchor, err := anchorer.Anchor(ctx, "t-1", start, start.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	last := repo.events[len(repo.events)-1]
	if anchor.Root != last.EventHash {
		t.Errorf("root = %q, want tail event hash %q", anchor.Root, last.EventHash)
	}
}

func TestAnchorEmptyWindow(t *testing.T) {
	repo := &auditRepoStub{}
	anchors := &anchorRepoStub{}
	anchorer := newTestAnchorer(repo, anchors, domain.AnchorMethodChainTipV1)

	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	anchor, err := anchorer.Anchor(context.Background(), "t-1", start, start.Add(time.Hour))
	if err != nil {
		t.Fatalf("Anchor: %v", err)
	}
	if anchor.EventCount != 0 {
		t.Errorf("event_count = %d, want 0", anchor.EventCount)
	}
	if anchor.Root != domain.AuditGenesisHash {
		t.Errorf("root = %q, want genesis sentinel", anchor.Root)
	}
}

func TestAnchorRejectsBadPeriod(t *testing.T) {
	anchorer := newTestAnchorer(&auditRepoStub{}, &anchorRepoStub{}, "")
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if _, err := anchorer.Anchor(context.Background(), "t-1", start, start); err == nil {
		t.Error("zero-length period accepted")
	}
	if _, err := anchorer.Anchor(context.Background(), "", start, start.Add(time.Hour)); err == nil {
		t.Error("missing tenant accepted")
	}
}

func TestAnchorRejectsUnknownMethod(t *testing.T) {
	anchorer := newTestAnchorer(&auditRepoStub{}, &anchorRepoStub{}, "sha1_tree_v0")
	start := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	if _, err := anchorer.Anchor(context.Background(), "t-1", start, start.Add(time.Hour)); err == nil {
		t.Error("unknown anchor method accepted")
	}
}
