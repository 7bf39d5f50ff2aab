package crypto

import (
	"bytes"
	"testing"
)

func TestSignVerify_RoundTrip(t *testing.T) {
	pair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	if pair.KID == "" {
		t.Fatal("expected non-empty kid")
	}

	payload := []byte(`{"schema":"integrity_cert_v1","tenant_id":"t-1"}`)
	sig, err := Sign(pair.PrivateKey, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(pair.PublicKey, payload, sig); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestVerify_RejectsTamperedPayload(t *testing.T) {
	pair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	payload := []byte("payload")
	sig, err := Sign(pair.PrivateKey, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(pair.PublicKey, []byte("payloaf"), sig); err == nil {
		t.Fatal("expected verification failure for tampered payload")
	}
}

func TestVerify_RejectsWrongKey(t *testing.T) {
	signer, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate signer pair: %v", err)
	}
	other, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate other pair: %v", err)
	}
	payload := []byte("payload")
	sig, err := Sign(signer.PrivateKey, payload)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if err := Verify(other.PublicKey, payload, sig); err == nil {
		t.Fatal("expected verification failure under the wrong key")
	}
}

func TestPublicKeyPEM_RoundTrip(t *testing.T) {
	pair, err := GenerateKeyPair()
	if err != nil {
		t.Fatalf("generate key pair: %v", err)
	}
	pemBytes, err := EncodePublicKeyPEM(pair.PublicKey)
	if err != nil {
		t.Fatalf("encode pem: %v", err)
	}
	der, err := DecodePublicKeyPEM(pemBytes)
	if err != nil {
		t.Fatalf("decode pem: %v", err)
	}
	if !bytes.Equal(der, pair.PublicKey) {
		t.Fatal("pem round trip changed public key bytes")
	}
}

func TestDecodePublicKeyPEM_RejectsGarbage(t *testing.T) {
	if _, err := DecodePublicKeyPEM([]byte("not pem")); err == nil {
		t.Fatal("expected error for non-PEM input")
	}
}
