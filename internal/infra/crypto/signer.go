package crypto

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
)

// Keys are ECDSA P-256. Private material is PKCS#8 DER, public material is
// PKIX DER; PEM is the interchange format on the key export boundary.

type KeyPair struct {
	KID        string
	PublicKey  []byte // PKIX DER
	PrivateKey []byte // PKCS#8 DER
}

func GenerateKeyPair() (KeyPair, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return KeyPair{}, err
	}
	privDER, err := x509.MarshalPKCS8PrivateKey(priv)
	if err != nil {
		return KeyPair{}, err
	}
	pubDER, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{
		KID:        SHA256Hex(pubDER),
		PublicKey:  pubDER,
		PrivateKey: privDER,
	}, nil
}

// Sign produces an ASN.1 DER ECDSA signature over SHA-256(payload).
func Sign(privateKeyDER []byte, payload []byte) ([]byte, error) {
	priv, err := parsePrivateKey(privateKeyDER)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256(payload)
	return ecdsa.SignASN1(rand.Reader, priv, digest[:])
}

// Verify checks an ASN.1 DER ECDSA signature over SHA-256(payload).
func Verify(publicKeyDER []byte, payload []byte, sig []byte) error {
	pub, err := ParsePublicKey(publicKeyDER)
	if err != nil {
		return err
	}
	digest := sha256.Sum256(payload)
	if !ecdsa.VerifyASN1(pub, digest[:], sig) {
		return errors.New("signature verification failed")
	}
	return nil
}

func ParsePublicKey(publicKeyDER []byte) (*ecdsa.PublicKey, error) {
	key, err := x509.ParsePKIXPublicKey(publicKeyDER)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	pub, ok := key.(*ecdsa.PublicKey)
	if !ok {
		return nil, fmt.Errorf("unexpected public key type %T", key)
	}
	if pub.Curve != elliptic.P256() {
		return nil, errors.New("unsupported curve")
	}
	return pub, nil
}

func parsePrivateKey(privateKeyDER []byte) (*ecdsa.PrivateKey, error) {
	key, err := x509.ParsePKCS8PrivateKey(privateKeyDER)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}
	priv, ok := key.(*ecdsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("unexpected private key type %T", key)
	}
	if priv.Curve != elliptic.P256() {
		return nil, errors.New("unsupported curve")
	}
	return priv, nil
}

func EncodePublicKeyPEM(publicKeyDER []byte) ([]byte, error) {
	if _, err := ParsePublicKey(publicKeyDER); err != nil {
		return nil, err
	}
	return pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: publicKeyDER}), nil
}

func DecodePublicKeyPEM(pemBytes []byte) ([]byte, error) {
	block, _ := pem.Decode(pemBytes)
	if block == nil || block.Type != "PUBLIC KEY" {
		return nil, errors.New("no PUBLIC KEY block found")
	}
	if _, err := ParsePublicKey(block.Bytes); err != nil {
		return nil, err
	}
	return block.Bytes, nil
}
