package usecase

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

const defaultIssueRetries = 3

type IssueRequest struct {
	// TenantID is resolved by the caller's authentication layer, never taken
	// from untrusted input.
	TenantID string

	// Content is hashed and discarded; it is never persisted. Callers that
	// hold only a digest set ContentHash (hex SHA-256) instead.
	Content     []byte
	ContentHash string

	PolicyID              string
	ExternalReferenceTime *time.Time
}

// CertificateIssuer orchestrates issuance: hash inputs, extend the tenant's
// chain, sign the canonical message, and commit atomically. Any failure
// before the commit leaves no partial certificate and no advanced tip.
type CertificateIssuer struct {
	Certificates CertificateRepository
	Keys         domain.KeyRegistry
	KeyManager   domain.KeyManager
	Policy       PolicyResolver
	Audit        *AuditEmitter

	// Nonces is an optional advisory replay guard (Redis) consulted before
	// the transactional uniqueness constraint; issuance works without it.
	Nonces NonceStore

	Clock   Clock
	Retries int
}

func (s *CertificateIssuer) Issue(ctx context.Context, req IssueRequest) (domain.Certificate, error) {
	if s.Certificates == nil || s.Keys == nil || s.KeyManager == nil {
		return domain.Certificate{}, errors.New("certificate issuer is not fully wired")
	}
	if req.TenantID == "" {
		return domain.Certificate{}, domain.ErrTenantRequired
	}

	contentHash, err := resolveContentHash(req)
	if err != nil {
		return domain.Certificate{}, err
	}
	policyHash, err := s.resolvePolicyHash(ctx, req.PolicyID)
	if err != nil {
		return domain.Certificate{}, err
	}

	key, err := s.Keys.EnsureActive(ctx, req.TenantID)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("ensure active key: %w", err)
	}

	retries := s.Retries
	if retries <= 0 {
		retries = defaultIssueRetries
	}
	var cert domain.Certificate
	for attempt := 0; ; attempt++ {
		cert, err = s.issueOnce(ctx, req, contentHash, policyHash, key)
		if err == nil {
			break
		}
		// A concurrent issuance for the same tenant moved the tip; refresh
		// and retry with a fresh nonce. Replay of our own nonce is never
		// retried silently.
		if errors.Is(err, domain.ErrChainConflict) && attempt+1 < retries {
			continue
		}
		return domain.Certificate{}, err
	}

	s.emitIssued(ctx, cert)
	return cert, nil
}

func (s *CertificateIssuer) issueOnce(ctx context.Context, req IssueRequest, contentHash, policyHash string, key domain.SigningKey) (domain.Certificate, error) {
	linkedHash := domain.GenesisHash
	expectedTip := ""
	tip, err := s.Certificates.GetTip(ctx, req.TenantID)
	switch {
	case err == nil:
		linkedHash = tip.ChainHash
		expectedTip = tip.ChainHash
	case errors.Is(err, domain.ErrNotFound):
		// first certificate for this tenant
	default:
		return domain.Certificate{}, fmt.Errorf("read chain tip: %w", err)
	}

	nonce, err := mintNonce()
	if err != nil {
		return domain.Certificate{}, err
	}

	issuedAt := s.now().UTC().Truncate(time.Second)
	cert := domain.Certificate{
		Schema:        domain.CertificateSchemaV1,
		CertificateID: uuid.NewString(),
		TenantID:      req.TenantID,
		IssuedAt:      issuedAt,
		ContentHash:   contentHash,
		PolicyHash:    policyHash,
		Chain:         domain.ChainLink{LinkedHash: linkedHash},
		Nonce:         nonce,
	}
	if req.ExternalReferenceTime != nil {
		ref := req.ExternalReferenceTime.UTC().Truncate(time.Second)
		cert.ExternalReferenceTime = &ref
	}

	chainHash, err := DeriveChainLink(cert)
	if err != nil {
		return domain.Certificate{}, err
	}
	cert.Chain.ChainHash = chainHash

	cert.Signature = domain.SignatureBundle{
		KeyID:     key.KID,
		Algorithm: domain.SignatureAlgECDSAP256SHA256,
	}
	canonical, err := crypto.CertificateSignedMessage(cert)
	if err != nil {
		return domain.Certificate{}, err
	}
	sig, err := s.KeyManager.Sign(ctx, domain.KeyRef{TenantID: req.TenantID, KID: key.KID}, canonical)
	if err != nil {
		return domain.Certificate{}, fmt.Errorf("sign canonical message: %w", err)
	}
	cert.Signature.Value = base64.StdEncoding.EncodeToString(sig)
	cert.Signature.CanonicalMessage = canonical

	if s.Nonces != nil {
		if err := s.Nonces.Record(ctx, req.TenantID, cert.Nonce); err != nil {
			return domain.Certificate{}, err
		}
	}
	if err := s.Certificates.CommitIssuance(ctx, cert, expectedTip); err != nil {
		return domain.Certificate{}, err
	}
	return cert, nil
}

func (s *CertificateIssuer) resolvePolicyHash(ctx context.Context, policyID string) (string, error) {
	if s.Policy != nil {
		return s.Policy.ResolvePolicyHash(ctx, policyID)
	}
	// No policy engine configured: pin the identifier itself.
	return crypto.SHA256Hex([]byte(policyID)), nil
}

func (s *CertificateIssuer) emitIssued(ctx context.Context, cert domain.Certificate) {
	if s.Audit == nil {
		return
	}
	// Ledger append failure must not fail an already-committed issuance.
	_, _ = s.Audit.Append(ctx, AuditAppend{
		TenantID:   cert.TenantID,
		ObjectType: domain.AuditObjectCertificate,
		ObjectID:   cert.CertificateID,
		Action:     domain.AuditActionCertificateIssued,
		Payload: map[string]any{
			"certificate_id": cert.CertificateID,
			"content_hash":   cert.ContentHash,
			"chain_hash":     cert.Chain.ChainHash,
			"key_id":         cert.Signature.KeyID,
		},
	})
}

func (s *CertificateIssuer) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func resolveContentHash(req IssueRequest) (string, error) {
	if req.ContentHash != "" {
		if _, err := hex.DecodeString(req.ContentHash); err != nil || len(req.ContentHash) != 64 {
			return "", fmt.Errorf("%w: content_hash must be hex sha-256", domain.ErrInvalidCertificate)
		}
		return req.ContentHash, nil
	}
	if len(req.Content) == 0 {
		return "", fmt.Errorf("%w: content or content_hash is required", domain.ErrInvalidCertificate)
	}
	return crypto.SHA256Hex(req.Content), nil
}

func mintNonce() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
