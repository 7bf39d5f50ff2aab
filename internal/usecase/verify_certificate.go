package usecase

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

// CertificateVerifier checks certificates against keys resolved from the
// registry. Verification is read-only, never mutates state, and treats an
// invalid certificate as an expected outcome, not an error; errors are
// reserved for storage faults.
type CertificateVerifier struct {
	Keys domain.KeyRegistry
}

// Verify resolves the certificate's key by KID (never the active key, so
// rotation cannot break old certificates) and runs the offline checks.
// An unknown or cross-tenant KID surfaces as an UnknownKey finding.
func (v *CertificateVerifier) Verify(ctx context.Context, cert domain.Certificate, prev *domain.Certificate) (domain.VerificationResult, error) {
	var pubKey []byte
	if v.Keys != nil {
		key, err := v.Keys.GetByKID(ctx, cert.TenantID, cert.Signature.KeyID)
		switch {
		case err == nil:
			pubKey = key.PublicKey
		case errors.Is(err, domain.ErrKeyNotFound) || errors.Is(err, domain.ErrNotFound):
			// handled as a finding below
		default:
			return domain.VerificationResult{}, err
		}
	}
	return VerifyCertificate(cert, prev, pubKey), nil
}

// VerifyCertificate is the pure offline verification core: it needs only the
// certificate, optionally its chain predecessor, and the tenant's public key
// material. Zero network, zero storage.
func VerifyCertificate(cert domain.Certificate, prev *domain.Certificate, publicKeyDER []byte) domain.VerificationResult {
	var result domain.VerificationResult
	VerifyChainLink(cert, prev, &result)
	verifySignatureAndTiming(cert, publicKeyDER, &result)
	result.Valid = len(result.Failures) == 0
	return result
}

func verifySignatureAndTiming(cert domain.Certificate, publicKeyDER []byte, result *domain.VerificationResult) {
	recomputed, err := crypto.CertificateSignedMessage(cert)
	if err != nil {
		result.Add(domain.FailureSignatureInvalid, "canonical message not recomputable")
	} else {
		if len(cert.Signature.CanonicalMessage) > 0 && !bytes.Equal(cert.Signature.CanonicalMessage, recomputed) {
			result.Add(domain.FailureSignatureInvalid, "stored canonical_message does not match certificate fields")
		}
		switch {
		case publicKeyDER == nil:
			result.Add(domain.FailureUnknownKey, "no key registered for key_id "+cert.Signature.KeyID)
		case cert.Signature.Algorithm != domain.SignatureAlgECDSAP256SHA256:
			result.Add(domain.FailureSignatureInvalid, "unsupported algorithm "+cert.Signature.Algorithm)
		default:
			sig, err := base64.StdEncoding.DecodeString(cert.Signature.Value)
			if err != nil {
				result.Add(domain.FailureSignatureInvalid, "signature is not valid base64")
			} else if err := crypto.Verify(publicKeyDER, recomputed, sig); err != nil {
				result.Add(domain.FailureSignatureInvalid, "signature does not verify under key "+cert.Signature.KeyID)
			}
		}
	}

	if cert.ExternalReferenceTime != nil && cert.ExternalReferenceTime.Before(cert.IssuedAt) {
		result.Add(domain.FailureBackdatingSuspected, "external_reference_time precedes issued_at")
	}
}
