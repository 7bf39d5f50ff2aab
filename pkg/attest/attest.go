// Package attest verifies integrity certificates offline. Given certificate
// JSON and the tenant's public key material, every check runs locally with no
// network and no storage.
package attest

import (
	"encoding/json"
	"errors"
	"fmt"

	"veritas/internal/domain"
	cryptoinfra "veritas/internal/infra/crypto"
	"veritas/internal/usecase"
)

type VerifyOptions struct {
	// Exactly one of PublicKeyPEM or PublicKeyDER must be set.
	PublicKeyPEM []byte
	PublicKeyDER []byte

	// Predecessor enables the linkage check against the previous certificate
	// in the tenant's chain. Without it only the self-contained checks run.
	Predecessor *domain.Certificate
}

func VerifyCertificate(cert domain.Certificate, opts VerifyOptions) (domain.VerificationResult, error) {
	pubDER, err := resolvePublicKey(opts)
	if err != nil {
		return domain.VerificationResult{}, err
	}
	return usecase.VerifyCertificate(cert, opts.Predecessor, pubDER), nil
}

// VerifyChain checks an ordered tenant chain. keysByKID maps key_id to PKIX
// DER public keys; certificates signed by an absent KID fail with an
// UnknownKey finding.
func VerifyChain(certs []domain.Certificate, keysByKID map[string][]byte) domain.ChainVerificationResult {
	return usecase.VerifyTenantChain(certs, func(kid string) []byte {
		return keysByKID[kid]
	})
}

func ParseCertificate(payload []byte) (domain.Certificate, error) {
	var cert domain.Certificate
	if err := json.Unmarshal(payload, &cert); err != nil {
		return domain.Certificate{}, fmt.Errorf("decode certificate: %w", err)
	}
	if cert.Schema == "" || cert.CertificateID == "" || cert.TenantID == "" {
		return domain.Certificate{}, fmt.Errorf("%w: schema, certificate_id, and tenant_id are required", domain.ErrInvalidCertificate)
	}
	return cert, nil
}

func ParseCertificateChain(payload []byte) ([]domain.Certificate, error) {
	var certs []domain.Certificate
	if err := json.Unmarshal(payload, &certs); err != nil {
		return nil, fmt.Errorf("decode certificate chain: %w", err)
	}
	return certs, nil
}

func ParsePublicKeyPEM(pemBytes []byte) ([]byte, error) {
	return cryptoinfra.DecodePublicKeyPEM(pemBytes)
}

func resolvePublicKey(opts VerifyOptions) ([]byte, error) {
	switch {
	case len(opts.PublicKeyPEM) > 0 && len(opts.PublicKeyDER) > 0:
		return nil, errors.New("set only one of PublicKeyPEM or PublicKeyDER")
	case len(opts.PublicKeyPEM) > 0:
		return cryptoinfra.DecodePublicKeyPEM(opts.PublicKeyPEM)
	case len(opts.PublicKeyDER) > 0:
		return opts.PublicKeyDER, nil
	default:
		return nil, errors.New("public key is required")
	}
}
