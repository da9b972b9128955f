package server

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"buddydesk/internal/database"
	"buddydesk/internal/domain/buddy"
	"buddydesk/internal/domain/buddyrequest"
	"buddydesk/internal/domain/payment"
)

// PrepareSchema brings the schema up to date: goose migrations on Postgres,
// gorm AutoMigrate (plus the partial slot index) on SQLite.
func PrepareSchema(ctx context.Context, db *gorm.DB, dsn string) error {
	if database.IsPostgres(dsn) {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return database.Migrate(ctx, sqlDB, "up")
	}

	for name, migrate := range map[string]func(*gorm.DB) error{
		"buddies":        buddy.AutoMigrate,
		"buddy_requests": buddyrequest.AutoMigrate,
		"buddy_payments": payment.AutoMigrate,
	} {
		if err := migrate(db.WithContext(ctx)); err != nil {
			return fmt.Errorf("auto-migrate %s: %w", name, err)
		}
	}
	return nil
}
