package database

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestIsPostgres(t *testing.T) {
	assert.True(t, IsPostgres("postgres://u:p@localhost/db"))
	assert.True(t, IsPostgres("postgresql://localhost/db"))
	assert.False(t, IsPostgres("file:buddydesk.db"))
}

func TestIsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_no_double_booking"}

	assert.True(t, IsUniqueViolation(pgErr, ""))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", pgErr), "idx_no_double_booking"))
	assert.False(t, IsUniqueViolation(pgErr, "idx_buddies_email"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey, "anything"))
	assert.False(t, IsUniqueViolation(errors.New("connection reset"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestOpenSQLite_PartialUniqueIndexIsReported(t *testing.T) {
	db, err := OpenSQLite(fmt.Sprintf("file:database_%s?mode=memory&cache=shared", t.Name()))
	require.NoError(t, err)

	require.NoError(t, db.Exec(`CREATE TABLE slots (id INTEGER PRIMARY KEY, buddy INTEGER, day TEXT, status TEXT)`).Error)
	require.NoError(t, db.Exec(`CREATE UNIQUE INDEX idx_slot ON slots (buddy, day) WHERE status IN ('PENDING','ASSIGNED')`).Error)

	require.NoError(t, db.Exec(`INSERT INTO slots (buddy, day, status) VALUES (1, '2030-01-01', 'ASSIGNED')`).Error)
	require.NoError(t, db.Exec(`INSERT INTO slots (buddy, day, status) VALUES (1, '2030-01-01', 'CANCELLED')`).Error)

	err = db.Exec(`INSERT INTO slots (buddy, day, status) VALUES (1, '2030-01-01', 'PENDING')`).Error
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, "idx_slot"))

	assert.NoError(t, Ping(context.Background(), db, time.Second))
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := fs.ReadDir(migrationsFS, migrationsDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	body, err := fs.ReadFile(migrationsFS, migrationsDir+"/00002_create_buddy_requests.sql")
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "idx_no_double_booking"))
	assert.True(t, strings.Contains(string(body), "-- +goose Down"))
}
