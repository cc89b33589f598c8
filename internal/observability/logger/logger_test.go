package logger

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	obscontext "github.com/smallbiznis/creditledger/internal/observability/context"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithContextAddsOnlyKnownCorrelation(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	WithContext(context.Background(), base).Info("bare")
	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithOwner(ctx, "organization", "org-9")
	WithContext(ctx, base).Info("scoped")

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].ContextMap())

	fields := entries[1].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "organization", fields["owner_type"])
	assert.Equal(t, "org-9", fields["owner_id"])
	assert.NotContains(t, fields, "trace_id")
}

func TestPoolAndOwnerFields(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	base := zap.New(core)

	base.Info("pool", Pool(snowflake.ID(42)))
	base.Info("no pool", Pool(0))
	base.Info("owner", Owner("user", "u-1")...)
	assert.Nil(t, Owner("", ""))

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "42", entries[0].ContextMap()["pool_id"])
	assert.Empty(t, entries[1].ContextMap())
	assert.Equal(t, map[string]any{"owner_type": "user", "owner_id": "u-1"}, entries[2].ContextMap())
}
