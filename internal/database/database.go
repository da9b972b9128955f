package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	gormsqlite "gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	_ "modernc.org/sqlite"

	"buddydesk/internal/config"
)

// IsPostgres reports whether the DSN targets PostgreSQL; anything else is treated as SQLite.
func IsPostgres(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Connect opens the primary store and applies pool settings.
func Connect(cfg config.DBConfig) (*gorm.DB, error) {
	return open(cfg.URL, cfg)
}

// ConnectReplica opens the read replica, or returns nil when none is configured.
func ConnectReplica(cfg config.DBConfig) (*gorm.DB, error) {
	if strings.TrimSpace(cfg.ReplicaURL) == "" {
		return nil, nil
	}
	return open(cfg.ReplicaURL, cfg)
}

func open(dsn string, cfg config.DBConfig) (*gorm.DB, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("database url is required")
	}
	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Warn)}

	var (
		db  *gorm.DB
		err error
	)
	if IsPostgres(dsn) {
		db, err = gorm.Open(postgres.Open(dsn), gormCfg)
	} else {
		db, err = OpenSQLite(dsn)
	}
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if IsPostgres(dsn) {
		sqlDB, err := db.DB()
		if err != nil {
			return nil, err
		}
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}
	return db, nil
}

// OpenSQLite opens a pure-Go SQLite database. SQLite has a single writer, so the
// pool is pinned to one connection; callers must not touch the base handle while
// holding a transaction.
func OpenSQLite(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(
		gormsqlite.New(gormsqlite.Config{
			DriverName: "sqlite",
			DSN:        dsn,
		}),
		&gorm.Config{Logger: logger.Default.LogMode(logger.Silent)},
	)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

// Ping checks the store within the given deadline.
func Ping(ctx context.Context, db *gorm.DB, timeout time.Duration) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return sqlDB.PingContext(ctx)
}
