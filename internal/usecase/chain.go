package usecase

import (
	"fmt"

	"veritas/internal/domain"
	"veritas/internal/infra/crypto"
)

// DeriveChainLink computes the chain hash for a certificate whose
// Chain.LinkedHash is already set: the digest of the previous link's hash
// concatenated with the canonical bytes of every certificate field except
// the chain hash and the signature.
func DeriveChainLink(cert domain.Certificate) (string, error) {
	if cert.Chain.LinkedHash == "" {
		return "", fmt.Errorf("%w: linked_hash is required", domain.ErrInvalidCertificate)
	}
	payload, err := crypto.CertificateChainPayload(cert)
	if err != nil {
		return "", err
	}
	return crypto.ChainHash(cert.Chain.LinkedHash, payload), nil
}

// VerifyChainLink recomputes a certificate's chain hash from its own fields
// and, when the predecessor is supplied, confirms the linkage. Findings are
// appended to result rather than returned as errors.
func VerifyChainLink(cert domain.Certificate, prev *domain.Certificate, result *domain.VerificationResult) {
	recomputed, err := DeriveChainLink(cert)
	if err != nil {
		result.Add(domain.FailureChainHashMismatch, fmt.Sprintf("chain hash not recomputable: %v", err))
		return
	}
	if recomputed != cert.Chain.ChainHash {
		result.Add(domain.FailureChainHashMismatch, "stored chain_hash does not match recomputed value")
	}
	if prev == nil {
		if cert.Chain.LinkedHash != domain.GenesisHash && cert.Chain.LinkedHash == "" {
			result.Add(domain.FailureChainHashMismatch, "linked_hash is empty")
		}
		return
	}
	prevRecomputed, err := DeriveChainLink(*prev)
	if err != nil {
		result.Add(domain.FailureChainHashMismatch, fmt.Sprintf("predecessor chain hash not recomputable: %v", err))
		return
	}
	if cert.Chain.LinkedHash != prevRecomputed {
		result.Add(domain.FailureChainHashMismatch, "linked_hash does not extend the predecessor's chain_hash")
	}
}

// VerifyTenantChain walks a tenant's full certificate chain in issuance
// order. Linkage is checked against each predecessor's recomputed hash, so a
// single mutated field in certificate k fails certificates k through N while
// 1 through k-1 stay valid.
func VerifyTenantChain(certs []domain.Certificate, publicKeyByKID func(kid string) []byte) domain.ChainVerificationResult {
	out := domain.ChainVerificationResult{Valid: true}
	runningTip := domain.GenesisHash
	for i := range certs {
		cert := certs[i]
		var result domain.VerificationResult

		recomputed, err := DeriveChainLink(cert)
		switch {
		case err != nil:
			result.Add(domain.FailureChainHashMismatch, fmt.Sprintf("chain hash not recomputable: %v", err))
		case recomputed != cert.Chain.ChainHash:
			result.Add(domain.FailureChainHashMismatch, "stored chain_hash does not match recomputed value")
		}
		if cert.Chain.LinkedHash != runningTip {
			result.Add(domain.FailureChainHashMismatch, "linked_hash does not extend the predecessor's chain_hash")
		}

		var pubKey []byte
		if publicKeyByKID != nil {
			pubKey = publicKeyByKID(cert.Signature.KeyID)
		}
		verifySignatureAndTiming(cert, pubKey, &result)

		result.Valid = len(result.Failures) == 0
		if !result.Valid {
			out.Valid = false
		}
		out.Certificates = append(out.Certificates, result)

		// Later links must extend this certificate's recomputed hash, so any
		// mutation here propagates as a linkage failure through the rest of
		// the chain. An unrecomputable link poisons everything after it.
		if err == nil {
			runningTip = recomputed
		} else {
			runningTip = "unrecomputable:" + cert.Chain.ChainHash
		}
	}
	return out
}
