package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.False(t, IsDuplicateKeyErr(nil))
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: credit_allocations.project_id")))
	assert.False(t, IsDuplicateKeyErr(errors.New("connection refused")))
}

func TestIsConcurrencyConflict(t *testing.T) {
	assert.False(t, IsConcurrencyConflict(nil))
	assert.True(t, IsConcurrencyConflict(&pgconn.PgError{Code: "40001"}))
	assert.True(t, IsConcurrencyConflict(fmt.Errorf("reserve: %w", &pgconn.PgError{Code: "55P03"})))
	assert.True(t, IsConcurrencyConflict(&pgconn.PgError{Code: "40P01"}))
	assert.True(t, IsConcurrencyConflict(errors.New("database is locked (5) (SQLITE_BUSY)")))
	assert.False(t, IsConcurrencyConflict(&pgconn.PgError{Code: "23505"}))
}

func TestSqliteDSN(t *testing.T) {
	assert.Equal(t, "creditledger.db", sqliteDSN(""))
	assert.Equal(t, "file::memory:?cache=shared", sqliteDSN(":memory:"))
	assert.Equal(t, "ledger.db", sqliteDSN("ledger"))
	assert.Equal(t, "file:x?mode=memory", sqliteDSN("file:x?mode=memory"))
}

func TestDialectRejectsUnknownType(t *testing.T) {
	_, err := Dialect(Config{Type: "oracle"})
	assert.Error(t, err)

	d, err := Dialect(Config{Type: "sqlite", Name: ":memory:"})
	assert.NoError(t, err)
	assert.Equal(t, "sqlite", d.Name())
}
