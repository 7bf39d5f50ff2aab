package anchor

import (
	"crypto/sha256"
	"encoding/hex"
)

// RFC 6962 style Merkle tree over audit event hashes: leaves are prefixed
// with 0x00 and interior nodes with 0x01, so a leaf value can never collide
// with a node value.

const (
	leafPrefix = 0x00
	nodePrefix = 0x01
)

// MerkleRootHex computes the hex Merkle root over leaves in order. The empty
// tree hashes to SHA-256 of the empty string, matching RFC 6962.
func MerkleRootHex(leaves [][]byte) string {
	return hex.EncodeToString(merkleRoot(leaves))
}

func merkleRoot(leaves [][]byte) []byte {
	if len(leaves) == 0 {
		sum := sha256.Sum256(nil)
		return sum[:]
	}
	level := make([][]byte, len(leaves))
	for i, leaf := range leaves {
		level[i] = hashLeaf(leaf)
	}
	for len(level) > 1 {
		next := make([][]byte, 0, (len(level)+1)/2)
		for i := 0; i < len(level); i += 2 {
			if i+1 < len(level) {
				next = append(next, hashNode(level[i], level[i+1]))
			} else {
				// odd node promotes unchanged
				next = append(next, level[i])
			}
		}
		level = next
	}
	return level[0]
}

func hashLeaf(leaf []byte) []byte {
	h := sha256.New()
	h.Write([]byte{leafPrefix})
	h.Write(leaf)
	return h.Sum(nil)
}

func hashNode(left, right []byte) []byte {
	h := sha256.New()
	h.Write([]byte{nodePrefix})
	h.Write(left)
	h.Write(right)
	return h.Sum(nil)
}
