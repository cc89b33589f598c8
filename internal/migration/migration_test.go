package migration

import (
	"io/fs"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsCoverEveryTable(t *testing.T) {
	up, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_credit_ledger.up.sql")
	require.NoError(t, err)
	down, err := fs.ReadFile(embeddedMigrations, migrationsDir+"/000001_credit_ledger.down.sql")
	require.NoError(t, err)

	conn, err := gorm.Open(sqlite.Open("file:migration_tables?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)

	for _, model := range Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		table := stmt.Schema.Table
		assert.Contains(t, string(up), "CREATE TABLE IF NOT EXISTS "+table+" (", table)
		assert.Contains(t, string(down), "DROP TABLE IF EXISTS "+table+";", table)
	}
}

func TestRunAutoMigratesSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migration_run?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Run(conn, config.Config{DBAutoMigrate: true}, zap.NewNop()))

	for _, table := range []string{"credit_pools", "credit_transactions", "api_usage_daily"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
}

func TestRunSkipsWhenAutoMigrateDisabled(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file:migration_skip?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Run(conn, config.Config{}, zap.NewNop()))
	assert.False(t, conn.Migrator().HasTable("credit_pools"))
}
