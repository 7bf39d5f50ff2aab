package crypto

import (
	"crypto/sha256"
	"encoding/hex"
)

// SHA256Hex returns the lowercase hex SHA-256 digest of input.
func SHA256Hex(input []byte) string {
	sum := sha256.Sum256(input)
	return hex.EncodeToString(sum[:])
}

// ChainHash derives the next link of a hash chain: the digest of the
// previous link's hex hash concatenated with the canonical bytes of the new
// entry. Used identically by the certificate chain and the audit ledger.
func ChainHash(prevHex string, canonical []byte) string {
	h := sha256.New()
	h.Write([]byte(prevHex))
	h.Write(canonical)
	return hex.EncodeToString(h.Sum(nil))
}

// CanonicalizeAndHash canonicalizes v and returns its hex SHA-256 digest.
func CanonicalizeAndHash(v any) (string, error) {
	canonical, err := Canonicalize(v)
	if err != nil {
		return "", err
	}
	return SHA256Hex(canonical), nil
}
