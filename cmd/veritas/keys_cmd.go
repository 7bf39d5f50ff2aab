package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	cryptoinfra "veritas/internal/infra/crypto"
	"veritas/internal/infra/keys/soft"
	"veritas/internal/usecase"
)

func runRotateKey(args []string) int {
	fs := flag.NewFlagSet("rotate-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var dsn string
	var tenantID string
	var actorID string
	fs.StringVar(&dsn, "dsn", "", "postgres dsn (default $POSTGRES_DSN)")
	fs.StringVar(&tenantID, "tenant", "", "tenant id")
	fs.StringVar(&actorID, "actor", "", "actor id recorded (hashed) in the audit ledger")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if tenantID == "" {
		fmt.Fprintln(os.Stderr, "rotate-key requires --tenant")
		return 1
	}

	st, err := openStores(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open stores: %v\n", err)
		return 1
	}
	rotator := &usecase.KeyRotator{
		Keys:  soft.NewRegistry(st.keyStore),
		Audit: usecase.NewAuditEmitter(st.events, nil),
	}
	key, err := rotator.Rotate(context.Background(), tenantID, actorID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "rotate key: %v\n", err)
		return 1
	}
	fmt.Fprintf(os.Stdout, "rotated tenant %s to key %s\n", tenantID, key.KID)
	return 0
}

func runExportKey(args []string) int {
	fs := flag.NewFlagSet("export-key", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var dsn string
	var tenantID string
	var kid string
	var outPath string
	fs.StringVar(&dsn, "dsn", "", "postgres dsn (default $POSTGRES_DSN)")
	fs.StringVar(&tenantID, "tenant", "", "tenant id")
	fs.StringVar(&kid, "kid", "", "key id (default: the active key)")
	fs.StringVar(&outPath, "out", "", "output PEM path (default stdout)")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if tenantID == "" {
		fmt.Fprintln(os.Stderr, "export-key requires --tenant")
		return 1
	}

	st, err := openStores(dsn)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open stores: %v\n", err)
		return 1
	}
	registry := soft.NewRegistry(st.keyStore)

	ctx := context.Background()
	key, err := registry.GetActive(ctx, tenantID)
	if kid != "" {
		key, err = registry.GetByKID(ctx, tenantID, kid)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "load key: %v\n", err)
		return 1
	}

	pem, err := cryptoinfra.EncodePublicKeyPEM(key.PublicKey)
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode key: %v\n", err)
		return 1
	}
	if outPath == "" {
		if _, err := os.Stdout.Write(pem); err != nil {
			fmt.Fprintf(os.Stderr, "write output: %v\n", err)
			return 1
		}
		return 0
	}
	if err := os.WriteFile(outPath, pem, 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "write output: %v\n", err)
		return 1
	}
	return 0
}
