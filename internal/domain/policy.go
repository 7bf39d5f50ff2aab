package domain

// IssuancePolicyInput is the document handed to the policy engine when a
// certificate issuance is evaluated.
type IssuancePolicyInput struct {
	TenantID string `json:"tenant_id,omitempty"`
	PolicyID string `json:"policy_id"`
}

type PolicyDeny struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type IssuancePolicyResult struct {
	Allow bool         `json:"allow"`
	Deny  []PolicyDeny `json:"deny"`
}

// IssuancePolicyDecision pairs a policy result with the identity of the
// bundle that produced it. BundleHash is the value pinned into certificates
// as policy_hash.
type IssuancePolicyDecision struct {
	BundleID   string
	BundleHash string
	Result     IssuancePolicyResult
}
