package db

import (
	"errors"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var errDBUnavailable = errors.New("database unavailable")

func Open(dsn string) (*gorm.DB, error) {
	if dsn == "" {
		return nil, errors.New("database dsn is required")
	}
	return gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
	})
}

func AutoMigrate(gdb *gorm.DB) error {
	return gdb.AutoMigrate(
		&TenantModel{},
		&SigningKeyModel{},
		&CertificateModel{},
		&ChainTipModel{},
		&NonceModel{},
		&AuditEventModel{},
		&AuditTailModel{},
		&LedgerAnchorModel{},
	)
}

func stringPtrIfNotEmpty(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func stringFromPtr(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
