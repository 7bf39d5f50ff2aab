package main

import (
	"context"
	"os"
	"time"

	"veritas/internal/infra/db"
	"veritas/internal/infra/keys/soft"
	"veritas/internal/infra/memstore"
	"veritas/internal/usecase"
)

type tenantStore interface {
	ListTenantIDs(ctx context.Context) ([]string, error)
	PurgeTenant(ctx context.Context, tenantID string) error
}

type nonceGC interface {
	DeleteNoncesBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// stores bundles the storage backends a command needs. With a DSN they are
// Postgres repositories; without one everything runs in memory, which is
// enough for one-shot offline invocations.
type stores struct {
	certs    usecase.CertificateRepository
	events   usecase.AuditEventRepository
	anchors  usecase.AnchorRepository
	keyStore soft.KeyStore
	tenants  tenantStore
	nonceGC  nonceGC
}

func openStores(dsn string) (*stores, error) {
	if dsn == "" {
		dsn = os.Getenv("POSTGRES_DSN")
	}
	if dsn == "" {
		mem := memstore.New()
		return &stores{
			certs:    mem.Certificates(),
			events:   mem.AuditEvents(),
			anchors:  mem.Anchors(),
			keyStore: mem,
			tenants:  mem,
			nonceGC:  mem,
		}, nil
	}

	gdb, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(gdb); err != nil {
		return nil, err
	}
	certRepo := db.NewCertificateRepository(gdb)
	return &stores{
		certs:    certRepo,
		events:   db.NewAuditEventRepository(gdb),
		anchors:  db.NewAnchorRepository(gdb),
		keyStore: db.NewKeyRepository(gdb),
		tenants:  db.NewTenantRepository(gdb),
		nonceGC:  certRepo,
	}, nil
}

func buildIssuer(st *stores, policy usecase.PolicyResolver, nonces usecase.NonceStore) *usecase.CertificateIssuer {
	return &usecase.CertificateIssuer{
		Certificates: st.certs,
		Keys:         soft.NewRegistry(st.keyStore),
		KeyManager:   soft.NewManager(st.keyStore),
		Policy:       policy,
		Audit:        usecase.NewAuditEmitter(st.events, nil),
		Nonces:       nonces,
	}
}
