package anchor

import (
	"crypto/sha256"
	"encoding/hex"
	"testing"
)

func TestMerkleRootHex_EmptyTree(t *testing.T) {
	sum := sha256.Sum256(nil)
	if got := MerkleRootHex(nil); got != hex.EncodeToString(sum[:]) {
		t.Fatalf("empty root = %s", got)
	}
}

func TestMerkleRootHex_SingleLeaf(t *testing.T) {
	leaf := []byte("event-hash-1")
	h := sha256.New()
	h.Write([]byte{0x00})
	h.Write(leaf)
	want := hex.EncodeToString(h.Sum(nil))
	if got := MerkleRootHex([][]byte{leaf}); got != want {
		t.Fatalf("single leaf root = %s, want %s", got, want)
	}
}

func TestMerkleRootHex_OrderSensitive(t *testing.T) {
	a := [][]byte{[]byte("e1"), []byte("e2"), []byte("e3")}
	b := [][]byte{[]byte("e1"), []byte("e3"), []byte("e2")}
	if MerkleRootHex(a) == MerkleRootHex(b) {
		t.Fatal("reordered leaves must change the root")
	}
}

func TestMerkleRootHex_Deterministic(t *testing.T) {
	leaves := [][]byte{[]byte("e1"), []byte("e2"), []byte("e3"), []byte("e4"), []byte("e5")}
	first := MerkleRootHex(leaves)
	for i := 0; i < 5; i++ {
		if MerkleRootHex(leaves) != first {
			t.Fatal("root drift across calls")
		}
	}
}

func TestMerkleRootHex_TamperDetection(t *testing.T) {
	leaves := [][]byte{[]byte("e1"), []byte("e2"), []byte("e3"), []byte("e4")}
	before := MerkleRootHex(leaves)
	leaves[2] = []byte("e3-tampered")
	if MerkleRootHex(leaves) == before {
		t.Fatal("mutated leaf must change the root")
	}
}
