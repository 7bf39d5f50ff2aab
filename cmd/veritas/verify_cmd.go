package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"veritas/internal/domain"
	cryptoinfra "veritas/internal/infra/crypto"
	"veritas/pkg/attest"
)

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var prevPath string
	var pubkeyPath string
	fs.StringVar(&inPath, "in", "", "certificate JSON path")
	fs.StringVar(&prevPath, "prev", "", "predecessor certificate JSON path")
	fs.StringVar(&pubkeyPath, "pubkey", "", "public key PEM path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || pubkeyPath == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in and --pubkey")
		return 1
	}

	cert, ok := readCertificate(inPath)
	if !ok {
		return 1
	}
	pemBytes, err := os.ReadFile(pubkeyPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read public key: %v\n", err)
		return 1
	}

	opts := attest.VerifyOptions{PublicKeyPEM: pemBytes}
	if prevPath != "" {
		prev, ok := readCertificate(prevPath)
		if !ok {
			return 1
		}
		opts.Predecessor = &prev
	}

	result, err := attest.VerifyCertificate(cert, opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "verify certificate: %v\n", err)
		return 1
	}
	if !writeResult(result) {
		return 1
	}
	if !result.Valid {
		return 2
	}
	return 0
}

func runChainVerify(args []string) int {
	fs := flag.NewFlagSet("chain-verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var pubkeyPath string
	var keysDir string
	fs.StringVar(&inPath, "in", "", "certificate chain JSON path (ordered array)")
	fs.StringVar(&pubkeyPath, "pubkey", "", "public key PEM path")
	fs.StringVar(&keysDir, "keys-dir", "", "directory of .pem public keys, for chains spanning rotations")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || (pubkeyPath == "" && keysDir == "") {
		fmt.Fprintln(os.Stderr, "chain-verify requires --in and one of --pubkey or --keys-dir")
		return 1
	}

	payload, err := os.ReadFile(inPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read chain: %v\n", err)
		return 1
	}
	chain, err := attest.ParseCertificateChain(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode chain: %v\n", err)
		return 1
	}

	keys, err := loadPublicKeys(pubkeyPath, keysDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load public keys: %v\n", err)
		return 1
	}

	result := attest.VerifyChain(chain, keys)
	out, err := cryptoinfra.Canonicalize(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		return 1
	}
	if err := writeOutput("", out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	if !result.Valid {
		return 2
	}
	return 0
}

func readCertificate(path string) (domain.Certificate, bool) {
	payload, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read certificate: %v\n", err)
		return domain.Certificate{}, false
	}
	cert, err := attest.ParseCertificate(payload)
	if err != nil {
		fmt.Fprintf(os.Stderr, "decode certificate: %v\n", err)
		return domain.Certificate{}, false
	}
	return cert, true
}

// loadPublicKeys maps each key's KID (hex SHA-256 of its PKIX DER) to the DER
// bytes, mirroring how KIDs are assigned at key generation.
func loadPublicKeys(pubkeyPath, keysDir string) (map[string][]byte, error) {
	keys := make(map[string][]byte)
	addPEM := func(path string) error {
		pemBytes, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		der, err := attest.ParsePublicKeyPEM(pemBytes)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		keys[cryptoinfra.SHA256Hex(der)] = der
		return nil
	}
	if pubkeyPath != "" {
		if err := addPEM(pubkeyPath); err != nil {
			return nil, err
		}
	}
	if keysDir != "" {
		entries, err := os.ReadDir(keysDir)
		if err != nil {
			return nil, err
		}
		for _, entry := range entries {
			if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".pem") {
				continue
			}
			if err := addPEM(filepath.Join(keysDir, entry.Name())); err != nil {
				return nil, err
			}
		}
	}
	return keys, nil
}

func writeResult(result domain.VerificationResult) bool {
	out, err := cryptoinfra.Canonicalize(result)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode output: %v\n", err)
		return false
	}
	if err := writeOutput("", out); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return false
	}
	return true
}
