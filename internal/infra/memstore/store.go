// Package memstore provides in-memory implementations of the engine's
// storage interfaces, used by the offline CLI mode and by tests. Semantics
// mirror the Postgres repositories, including atomicity and uniqueness
// guarantees, under a single mutex per store.
package memstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

type Store struct {
	mu      sync.Mutex
	tenants map[string]*tenantState
	clock   func() time.Time
}

type tenantState struct {
	keys    []keyRecord
	certs   []domain.Certificate
	tip     domain.ChainTip
	hasTip  bool
	nonces  map[string]time.Time
	events  []domain.AuditEvent
	anchors []domain.LedgerAnchor
}

type keyRecord struct {
	key     domain.SigningKey
	privDER []byte
}

func New() *Store {
	return NewWithClock(time.Now)
}

func NewWithClock(clock func() time.Time) *Store {
	return &Store{
		tenants: make(map[string]*tenantState),
		clock:   clock,
	}
}

// Certificates returns the usecase.CertificateRepository view.
func (s *Store) Certificates() *CertificateStore { return &CertificateStore{s} }

// AuditEvents returns the usecase.AuditEventRepository view.
func (s *Store) AuditEvents() *AuditEventStore { return &AuditEventStore{s} }

// Anchors returns the usecase.AnchorRepository view.
func (s *Store) Anchors() *AnchorStore { return &AnchorStore{s} }

// tenant allocates state on first use and is reserved for writes. Reads go
// through lookup so probing an unknown tenant leaves the store unchanged.
func (s *Store) tenant(tenantID string) *tenantState {
	state, ok := s.tenants[tenantID]
	if !ok {
		state = &tenantState{nonces: make(map[string]time.Time)}
		s.tenants[tenantID] = state
	}
	return state
}

func (s *Store) lookup(tenantID string) (*tenantState, bool) {
	state, ok := s.tenants[tenantID]
	return state, ok
}

// --- soft.KeyStore ---

func (s *Store) GetActive(_ context.Context, tenantID string) (domain.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.lookup(tenantID); ok {
		for _, record := range state.keys {
			if record.key.Status == domain.KeyStatusActive {
				return record.key, nil
			}
		}
	}
	return domain.SigningKey{}, domain.ErrKeyNotFound
}

func (s *Store) GetByKID(_ context.Context, tenantID, kid string) (domain.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.lookup(tenantID); ok {
		for _, record := range state.keys {
			if record.key.KID == kid {
				return record.key, nil
			}
		}
	}
	return domain.SigningKey{}, domain.ErrKeyNotFound
}

func (s *Store) CreateActive(_ context.Context, key domain.SigningKey, privateKeyDER []byte) (domain.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.tenant(key.TenantID)
	for _, record := range state.keys {
		if record.key.Status == domain.KeyStatusActive {
			// concurrent bootstrap won; bootstrap is idempotent
			return record.key, nil
		}
	}
	state.keys = append(state.keys, keyRecord{key: key, privDER: append([]byte(nil), privateKeyDER...)})
	return key, nil
}

func (s *Store) RotateActive(_ context.Context, key domain.SigningKey, privateKeyDER []byte) (domain.SigningKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.tenant(key.TenantID)
	for i := range state.keys {
		if state.keys[i].key.Status == domain.KeyStatusActive {
			state.keys[i].key.Status = domain.KeyStatusRotated
		}
	}
	state.keys = append(state.keys, keyRecord{key: key, privDER: append([]byte(nil), privateKeyDER...)})
	return key, nil
}

func (s *Store) PrivateKeyDER(_ context.Context, ref domain.KeyRef) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if state, ok := s.lookup(ref.TenantID); ok {
		for _, record := range state.keys {
			if record.key.KID == ref.KID {
				return append([]byte(nil), record.privDER...), nil
			}
		}
	}
	return nil, domain.ErrKeyNotFound
}

// --- usecase.NonceStore ---

func (s *Store) Record(_ context.Context, tenantID, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state := s.tenant(tenantID)
	if _, used := state.nonces[nonce]; used {
		return domain.ErrReplayDetected
	}
	state.nonces[nonce] = s.clock().UTC()
	return nil
}

// DeleteNoncesBefore expires nonce entries older than cutoff across all
// tenants, mirroring the Postgres retention sweep.
func (s *Store) DeleteNoncesBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var removed int64
	for _, state := range s.tenants {
		for nonce, recorded := range state.nonces {
			if recorded.Before(cutoff) {
				delete(state.nonces, nonce)
				removed++
			}
		}
	}
	return removed, nil
}

// --- tenant listing / purge ---

func (s *Store) ListTenantIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tenants))
	for id := range s.tenants {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// PurgeTenant drops keys, certificates, tip, and nonces. The audit ledger
// and anchors are append-only history and survive the purge.
func (s *Store) PurgeTenant(_ context.Context, tenantID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	state, ok := s.tenants[tenantID]
	if !ok {
		return nil
	}
	s.tenants[tenantID] = &tenantState{
		nonces:  make(map[string]time.Time),
		events:  state.events,
		anchors: state.anchors,
	}
	return nil
}

// CertificateStore implements usecase.CertificateRepository.
type CertificateStore struct {
	s *Store
}

func (c *CertificateStore) CommitIssuance(_ context.Context, cert domain.Certificate, expectedTip string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	state := c.s.tenant(cert.TenantID)

	currentTip := ""
	if state.hasTip {
		currentTip = state.tip.ChainHash
	}
	if currentTip != expectedTip {
		return domain.ErrChainConflict
	}
	if _, used := state.nonces[cert.Nonce]; used {
		return domain.ErrReplayDetected
	}

	state.nonces[cert.Nonce] = c.s.clock().UTC()
	state.certs = append(state.certs, cert)
	state.tip = domain.ChainTip{
		TenantID:      cert.TenantID,
		CertificateID: cert.CertificateID,
		ChainHash:     cert.Chain.ChainHash,
		UpdatedAt:     c.s.clock().UTC(),
	}
	state.hasTip = true
	return nil
}

func (c *CertificateStore) GetByID(_ context.Context, tenantID, certificateID string) (domain.Certificate, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if state, ok := c.s.lookup(tenantID); ok {
		for _, cert := range state.certs {
			if cert.CertificateID == certificateID {
				return cert, nil
			}
		}
	}
	return domain.Certificate{}, domain.ErrNotFound
}

func (c *CertificateStore) GetByChainHash(_ context.Context, tenantID, chainHash string) (domain.Certificate, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	if state, ok := c.s.lookup(tenantID); ok {
		for _, cert := range state.certs {
			if cert.Chain.ChainHash == chainHash {
				return cert, nil
			}
		}
	}
	return domain.Certificate{}, domain.ErrNotFound
}

func (c *CertificateStore) ListByTenant(_ context.Context, tenantID string) ([]domain.Certificate, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	state, _ := c.s.lookup(tenantID)
	if state == nil {
		return nil, nil
	}
	return append([]domain.Certificate(nil), state.certs...), nil
}

func (c *CertificateStore) GetTip(_ context.Context, tenantID string) (domain.ChainTip, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	state, ok := c.s.lookup(tenantID)
	if !ok || !state.hasTip {
		return domain.ChainTip{}, domain.ErrNotFound
	}
	return state.tip, nil
}

// AuditEventStore implements usecase.AuditEventRepository.
type AuditEventStore struct {
	s *Store
}

func (a *AuditEventStore) Append(_ context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	state := a.s.tenant(event.TenantID)
	seq := int64(len(state.events)) + 1
	prevHash := domain.AuditGenesisHash
	if len(state.events) > 0 {
		prevHash = state.events[len(state.events)-1].EventHash
	}
	sealed, err := crypto.SealAuditEvent(event, seq, prevHash)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	state.events = append(state.events, sealed)
	return sealed, nil
}

func (a *AuditEventStore) ListByTenant(_ context.Context, tenantID string) ([]domain.AuditEvent, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	state, _ := a.s.lookup(tenantID)
	if state == nil {
		return nil, nil
	}
	return append([]domain.AuditEvent(nil), state.events...), nil
}

func (a *AuditEventStore) ListRange(_ context.Context, tenantID string, fromSeq, toSeq int64) ([]domain.AuditEvent, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	state, _ := a.s.lookup(tenantID)
	if state == nil {
		return nil, nil
	}
	var out []domain.AuditEvent
	for _, event := range state.events {
		if event.Seq >= fromSeq && event.Seq <= toSeq {
			out = append(out, event)
		}
	}
	return out, nil
}

func (a *AuditEventStore) ListWindow(_ context.Context, tenantID string, start, end time.Time) ([]domain.AuditEvent, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	state, _ := a.s.lookup(tenantID)
	if state == nil {
		return nil, nil
	}
	var out []domain.AuditEvent
	for _, event := range state.events {
		if !event.OccurredAt.Before(start) && event.OccurredAt.Before(end) {
			out = append(out, event)
		}
	}
	return out, nil
}

// AnchorStore implements usecase.AnchorRepository.
type AnchorStore struct {
	s *Store
}

func (a *AnchorStore) Append(_ context.Context, anchor domain.LedgerAnchor) error {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	state := a.s.tenant(anchor.TenantID)
	state.anchors = append(state.anchors, anchor)
	return nil
}

func (a *AnchorStore) ListByTenant(_ context.Context, tenantID string) ([]domain.LedgerAnchor, error) {
	a.s.mu.Lock()
	defer a.s.mu.Unlock()
	state, _ := a.s.lookup(tenantID)
	if state == nil {
		return nil, nil
	}
	return append([]domain.LedgerAnchor(nil), state.anchors...), nil
}
