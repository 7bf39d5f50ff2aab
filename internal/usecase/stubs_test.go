package usecase

import (
	"context"
	"time"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

type certRepoStub struct {
	certs  []domain.Certificate
	tip    string
	hasTip bool
	nonces map[string]bool

	// forceConflicts makes the next N commits fail with ErrChainConflict
	// regardless of the expected tip, to exercise the retry loop.
	forceConflicts int
	commits        int
}

func newCertRepoStub() *certRepoStub {
	return &certRepoStub{nonces: make(map[string]bool)}
}

func (s *certRepoStub) CommitIssuance(_ context.Context, cert domain.Certificate, expectedTip string) error {
	s.commits++
	if s.forceConflicts > 0 {
		s.forceConflicts--
		return domain.ErrChainConflict
	}
	current := ""
	if s.hasTip {
		current = s.tip
	}
	if current != expectedTip {
		return domain.ErrChainConflict
	}
	if s.nonces[cert.Nonce] {
		return domain.ErrReplayDetected
	}
	s.nonces[cert.Nonce] = true
	s.certs = append(s.certs, cert)
	s.tip = cert.Chain.ChainHash
	s.hasTip = true
	return nil
}

func (s *certRepoStub) GetByID(_ context.Context, _, certificateID string) (domain.Certificate, error) {
	for _, cert := range s.certs {
		if cert.CertificateID == certificateID {
			return cert, nil
		}
	}
	return domain.Certificate{}, domain.ErrNotFound
}

func (s *certRepoStub) GetByChainHash(_ context.Context, _, chainHash string) (domain.Certificate, error) {
	for _, cert := range s.certs {
		if cert.Chain.ChainHash == chainHash {
			return cert, nil
		}
	}
	return domain.Certificate{}, domain.ErrNotFound
}

func (s *certRepoStub) ListByTenant(_ context.Context, tenantID string) ([]domain.Certificate, error) {
	var out []domain.Certificate
	for _, cert := range s.certs {
		if cert.TenantID == tenantID {
			out = append(out, cert)
		}
	}
	return out, nil
}

func (s *certRepoStub) GetTip(_ context.Context, _ string) (domain.ChainTip, error) {
	if !s.hasTip {
		return domain.ChainTip{}, domain.ErrNotFound
	}
	return domain.ChainTip{ChainHash: s.tip}, nil
}

type auditRepoStub struct {
	events []domain.AuditEvent
}

func (s *auditRepoStub) Append(_ context.Context, event domain.AuditEvent) (domain.AuditEvent, error) {
	seq := int64(len(s.events)) + 1
	prevHash := domain.AuditGenesisHash
	if len(s.events) > 0 {
		prevHash = s.events[len(s.events)-1].EventHash
	}
	sealed, err := crypto.SealAuditEvent(event, seq, prevHash)
	if err != nil {
		return domain.AuditEvent{}, err
	}
	s.events = append(s.events, sealed)
	return sealed, nil
}

func (s *auditRepoStub) ListByTenant(_ context.Context, tenantID string) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, event := range s.events {
		if event.TenantID == tenantID {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *auditRepoStub) ListRange(_ context.Context, tenantID string, fromSeq, toSeq int64) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, event := range s.events {
		if event.TenantID == tenantID && event.Seq >= fromSeq && event.Seq <= toSeq {
			out = append(out, event)
		}
	}
	return out, nil
}

func (s *auditRepoStub) ListWindow(_ context.Context, tenantID string, start, end time.Time) ([]domain.AuditEvent, error) {
	var out []domain.AuditEvent
	for _, event := range s.events {
		if event.TenantID == tenantID && !event.OccurredAt.Before(start) && event.OccurredAt.Before(end) {
			out = append(out, event)
		}
	}
	return out, nil
}

type anchorRepoStub struct {
	anchors []domain.LedgerAnchor
}

func (s *anchorRepoStub) Append(_ context.Context, anchor domain.LedgerAnchor) error {
	s.anchors = append(s.anchors, anchor)
	return nil
}

func (s *anchorRepoStub) ListByTenant(_ context.Context, tenantID string) ([]domain.LedgerAnchor, error) {
	var out []domain.LedgerAnchor
	for _, anchor := range s.anchors {
		if anchor.TenantID == tenantID {
			out = append(out, anchor)
		}
	}
	return out, nil
}

type nonceStoreStub struct {
	seen   map[string]bool
	reject bool
}

func (s *nonceStoreStub) Record(_ context.Context, tenantID, nonce string) error {
	if s.reject {
		return domain.ErrReplayDetected
	}
	if s.seen == nil {
		s.seen = make(map[string]bool)
	}
	key := tenantID + "/" + nonce
	if s.seen[key] {
		return domain.ErrReplayDetected
	}
	s.seen[key] = true
	return nil
}

type policyStub struct {
	hash string
	err  error
}

func (s *policyStub) ResolvePolicyHash(_ context.Context, _ string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return s.hash, nil
}

type keyStoreStub struct {
	keys []keyStoreEntry
}

type keyStoreEntry struct {
	key  domain.SigningKey
	priv []byte
}

func (s *keyStoreStub) GetActive(_ context.Context, tenantID string) (domain.SigningKey, error) {
	for _, entry := range s.keys {
		if entry.key.TenantID == tenantID && entry.key.Status == domain.KeyStatusActive {
			return entry.key, nil
		}
	}
	return domain.SigningKey{}, domain.ErrKeyNotFound
}

func (s *keyStoreStub) GetByKID(_ context.Context, tenantID, kid string) (domain.SigningKey, error) {
	for _, entry := range s.keys {
		if entry.key.TenantID == tenantID && entry.key.KID == kid {
			return entry.key, nil
		}
	}
	return domain.SigningKey{}, domain.ErrKeyNotFound
}

func (s *keyStoreStub) CreateActive(_ context.Context, key domain.SigningKey, privateKeyDER []byte) (domain.SigningKey, error) {
	for _, entry := range s.keys {
		if entry.key.TenantID == key.TenantID && entry.key.Status == domain.KeyStatusActive {
			return entry.key, nil
		}
	}
	s.keys = append(s.keys, keyStoreEntry{key: key, priv: privateKeyDER})
	return key, nil
}

func (s *keyStoreStub) RotateActive(_ context.Context, key domain.SigningKey, privateKeyDER []byte) (domain.SigningKey, error) {
	for i := range s.keys {
		if s.keys[i].key.TenantID == key.TenantID && s.keys[i].key.Status == domain.KeyStatusActive {
			s.keys[i].key.Status = domain.KeyStatusRotated
		}
	}
	s.keys = append(s.keys, keyStoreEntry{key: key, priv: privateKeyDER})
	return key, nil
}

func (s *keyStoreStub) PrivateKeyDER(_ context.Context, ref domain.KeyRef) ([]byte, error) {
	for _, entry := range s.keys {
		if entry.key.TenantID == ref.TenantID && entry.key.KID == ref.KID {
			return entry.priv, nil
		}
	}
	return nil, domain.ErrKeyNotFound
}

func fixedClock(t time.Time) Clock {
	return func() time.Time { return t }
}
