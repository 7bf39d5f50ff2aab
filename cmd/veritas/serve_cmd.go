package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"veritas/internal/config"
	"veritas/internal/infra/anchor"
	httpinfra "veritas/internal/infra/http"
	"veritas/internal/infra/keys/soft"
	"veritas/internal/infra/noncestore"
	"veritas/internal/infra/policyopa"
	"veritas/internal/usecase"
)

func runServe(args []string) int {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := config.FromEnv()
	st, err := openStores(cfg.PostgresDSN)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open stores: %v\n", err)
		return 1
	}
	if cfg.PostgresDSN == "" {
		log.Printf("serve: no POSTGRES_DSN, running with in-memory storage")
	}

	var policy usecase.PolicyResolver
	if cfg.PolicyBundlePath != "" {
		engine, err := policyopa.NewEngineFromBundlePath(context.Background(), cfg.PolicyBundlePath, cfg.PolicyBundleID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "load policy bundle: %v\n", err)
			return 1
		}
		policy = engine
		log.Printf("serve: policy bundle %s hash %s", cfg.PolicyBundleID, engine.BundleHash())
	}

	var nonces usecase.NonceStore
	if cfg.RedisAddr != "" {
		store, err := noncestore.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.NonceRetention)
		if err != nil {
			fmt.Fprintf(os.Stderr, "connect nonce store: %v\n", err)
			return 1
		}
		defer store.Close()
		nonces = store
	}

	registry := soft.NewRegistry(st.keyStore)
	audit := usecase.NewAuditEmitter(st.events, nil)
	issuer := buildIssuer(st, policy, nonces)
	anchorer := &usecase.LedgerAnchorer{
		Events:  st.events,
		Anchors: st.anchors,
		Audit:   audit,
		Method:  cfg.AnchorMethod,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	scheduler := &anchor.Scheduler{
		Anchorer: anchorer,
		Tenants:  st.tenants,
		Period:   cfg.AnchorPeriod,
	}
	go scheduler.Run(ctx)

	server := httpinfra.NewServer(cfg, httpinfra.ServerDeps{
		Issuer:       issuer,
		Verifier:     &usecase.CertificateVerifier{Keys: registry},
		Rotator:      &usecase.KeyRotator{Keys: registry, Audit: audit},
		Purge:        &usecase.TenantPurge{Store: st.tenants, Audit: audit},
		Anchorer:     anchorer,
		Certificates: st.certs,
		AuditEvents:  st.events,
		Anchors:      st.anchors,
		Keys:         registry,
		AdminAPIKey:  cfg.AdminAPIKey,
	})

	log.Printf("serve: listening on %s", cfg.HTTPAddr)
	if err := server.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "serve: %v\n", err)
		return 1
	}
	return 0
}
