package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerConfigHolderDefaultsWithoutFile(t *testing.T) {
	holder, err := NewLedgerConfigHolder(Config{
		Ledger: LedgerConfig{ConfigPath: t.TempDir(), MaxRetries: 3, RetryBackoffMS: 20, QuotaCacheTTLSec: 15},
	})
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, 3, got.MaxRetries)
	assert.Equal(t, 20*time.Millisecond, got.RetryBackoff)
	assert.Equal(t, 15*time.Second, got.QuotaCacheTTL)
	assert.Equal(t, 50, got.DefaultPageSize)
	assert.Equal(t, 250, got.MaxPageSize)
}

func TestLedgerConfigHolderReadsFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("ledger:\n  maxRetries: 9\n  retryBackoff: 25ms\n  defaultPageSize: 20\n  maxPageSize: 100\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.yml"), body, 0o600))

	holder, err := NewLedgerConfigHolder(Config{Ledger: LedgerConfig{ConfigPath: dir, MaxRetries: 3}})
	require.NoError(t, err)

	got := holder.Get()
	assert.Equal(t, 9, got.MaxRetries)
	assert.Equal(t, 25*time.Millisecond, got.RetryBackoff)
	assert.Equal(t, 20, got.DefaultPageSize)
	assert.Equal(t, 100, got.MaxPageSize)
}

func TestLedgerConfigHolderRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	body := []byte("ledger:\n  maxRetries: 0\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ledger.yml"), body, 0o600))

	_, err := NewLedgerConfigHolder(Config{Ledger: LedgerConfig{ConfigPath: dir}})
	assert.Error(t, err)
}
