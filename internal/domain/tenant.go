package domain

import "time"

// Tenant is the isolation boundary: it owns one chain tip, one active signing
// key (plus retired keys), and its own nonce namespace. Identity is opaque
// and server-resolved, never taken from untrusted input.
type Tenant struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
