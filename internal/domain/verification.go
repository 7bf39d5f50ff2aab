package domain

type FailureCode string

const (
	FailureChainHashMismatch   FailureCode = "ChainHashMismatch"
	FailureSignatureInvalid    FailureCode = "SignatureInvalid"
	FailureBackdatingSuspected FailureCode = "BackdatingSuspected"
	FailureUnknownKey          FailureCode = "UnknownKey"
)

type Finding struct {
	Code    FailureCode `json:"code"`
	Message string      `json:"message"`
}

// VerificationResult carries the outcome of verifying one certificate.
// "Invalid" is an expected, well-typed outcome, never an error; the message
// names the failed check without re-exposing hashed source content.
type VerificationResult struct {
	Valid    bool      `json:"valid"`
	Failures []Finding `json:"failures"`
}

func (r *VerificationResult) Add(code FailureCode, message string) {
	r.Failures = append(r.Failures, Finding{Code: code, Message: message})
}

// ChainVerificationResult reports per-certificate outcomes for a full-chain
// walk, ordered by chain position.
type ChainVerificationResult struct {
	Valid        bool                 `json:"valid"`
	Certificates []VerificationResult `json:"certificates"`
}
