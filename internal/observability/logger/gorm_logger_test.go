package logger

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
	gormlogger "gorm.io/gorm/logger"
)

func TestOperationAndTableFromSQL(t *testing.T) {
	cases := []struct {
		sql   string
		op    string
		table string
	}{
		{sql: `SELECT * FROM "credit_pools" WHERE id = $1`, op: "SELECT", table: "credit_pools"},
		{sql: "INSERT INTO `credit_transactions` (id) VALUES (?)", op: "INSERT", table: "credit_transactions"},
		{sql: "UPDATE credit_allocations SET current_usage = current_usage + 1", op: "UPDATE", table: "credit_allocations"},
		{sql: "WITH x AS (SELECT 1) DELETE FROM api_usage_daily", op: "SELECT", table: ""},
		{sql: "", op: "UNKNOWN", table: ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.op, operationFromSQL(tc.sql), tc.sql)
		if tc.table != "" {
			assert.Equal(t, tc.table, tableFromSQL(tc.sql), tc.sql)
		}
	}
}

func TestGormLoggerFlagsVersionCASMiss(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(GormLoggerConfig{Base: zap.New(core), Level: gormlogger.Info})

	l.Trace(context.Background(), time.Now(), func() (string, int64) {
		return `UPDATE "credit_pools" SET "reserved_credits"=10,"version"=4 WHERE id = 1 AND version = 3`, 0
	}, nil)

	entries := logs.FilterMessage("gorm.query").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "credit_pools", fields["table"])
	assert.Equal(t, true, fields["cas_miss"])
}

func TestGormLoggerRespectsLevels(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(GormLoggerConfig{Base: zap.New(core), Level: gormlogger.Silent})

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	assert.Equal(t, 0, logs.Len())

	warn := l.LogMode(gormlogger.Warn)
	warn.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 1 }, errors.New("boom"))
	warn.Info(context.Background(), "ignored")
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, zapcore.ErrorLevel, logs.All()[0].Level)
}

func TestGormLoggerIgnoresRecordNotFound(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := NewGormLogger(GormLoggerConfig{Base: zap.New(core), Level: gormlogger.Error, IgnoreRecordNotFound: true})

	l.Trace(context.Background(), time.Now(), func() (string, int64) { return "SELECT 1", 0 }, gormlogger.ErrRecordNotFound)
	assert.Equal(t, 0, logs.Len())
}
