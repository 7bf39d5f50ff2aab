package domain

import "errors"

var (
	ErrCanonicalization   = errors.New("canonicalization failed")
	ErrKeyNotFound        = errors.New("key not found")
	ErrReplayDetected     = errors.New("replay detected")
	ErrChainConflict      = errors.New("chain conflict")
	ErrNotFound           = errors.New("not found")
	ErrTenantRequired     = errors.New("tenant_id is required")
	ErrInvalidCertificate = errors.New("invalid certificate")
	ErrPolicyDenied       = errors.New("policy denied")
)
