package service

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/creditledger/internal/cache"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/quota/domain"
	"github.com/smallbiznis/creditledger/internal/quota/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupService(t *testing.T) (domain.Service, *clock.FakeClock) {
	t.Helper()

	name := strings.ReplaceAll(t.Name(), "/", "_")
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, conn.AutoMigrate(
		&domain.ApiQuotaAllocation{},
		&domain.ApiUsageTracking{},
		&domain.ApiUsageDaily{},
	))

	clk := clock.NewFakeClock(time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC))
	svc := New(Params{
		DB:     conn,
		Log:    zap.NewNop(),
		Repo:   repository.Provide(),
		Clock:  clk,
		Grants: cache.NewQuotaGrantCache(time.Hour),
	})
	return svc, clk
}

func TestQuotaBoundaryScenario(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	usage, err := svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(5), usage.DailyUsage)

	_, err = svc.UpsertAllocation(ctx, domain.UpsertAllocationRequest{ServiceID: "s1", UserID: "u1", DailyQuota: 10, QueriesPerSecond: 1})
	require.NoError(t, err)

	snap, err := svc.CheckQuota(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.True(t, snap.CanProceed)
	assert.Equal(t, int64(5), snap.CurrentUsage)
	assert.Equal(t, int64(10), snap.DailyQuota)

	_, err = svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 4})
	require.NoError(t, err)
	_, err = svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 3})
	require.NoError(t, err)

	snap, err = svc.CheckQuota(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.False(t, snap.CanProceed)
	assert.Equal(t, int64(12), snap.CurrentUsage)
}

func TestCheckQuotaAtExactQuotaBlocks(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.UpsertAllocation(ctx, domain.UpsertAllocationRequest{ServiceID: "s1", UserID: "u1", DailyQuota: 3, QueriesPerSecond: 1})
	require.NoError(t, err)
	_, err = svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 3})
	require.NoError(t, err)

	snap, err := svc.CheckQuota(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.False(t, snap.CanProceed)
}

func TestCheckQuotaMissingAllocation(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.CheckQuota(context.Background(), "s1", "nobody")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestUpsertAllocationReplacesGrant(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	first, err := svc.UpsertAllocation(ctx, domain.UpsertAllocationRequest{ServiceID: "Search API", UserID: "u1", DailyQuota: 1, QueriesPerSecond: 2})
	require.NoError(t, err)
	assert.Equal(t, "search-api", first.ServiceID)

	snap, err := svc.CheckQuota(ctx, "search-api", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), snap.DailyQuota)

	second, err := svc.UpsertAllocation(ctx, domain.UpsertAllocationRequest{ServiceID: "search api", UserID: "u1", DailyQuota: 500, QueriesPerSecond: 5})
	require.NoError(t, err)
	assert.Equal(t, int64(500), second.DailyQuota)
	assert.Equal(t, first.CreatedAt.Unix(), second.CreatedAt.Unix())

	snap, err = svc.CheckQuota(ctx, "Search API", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(500), snap.DailyQuota)
	assert.Equal(t, 5.0, snap.QueriesPerSecond)
}

func TestUpsertAllocationValidation(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	cases := []domain.UpsertAllocationRequest{
		{ServiceID: "", UserID: "u1", DailyQuota: 1, QueriesPerSecond: 1},
		{ServiceID: "s1", UserID: " ", DailyQuota: 1, QueriesPerSecond: 1},
		{ServiceID: "s1", UserID: "u1", DailyQuota: -1, QueriesPerSecond: 1},
		{ServiceID: "s1", UserID: "u1", DailyQuota: 1, QueriesPerSecond: 0},
	}
	want := []error{domain.ErrInvalidService, domain.ErrInvalidUser, domain.ErrInvalidQuota, domain.ErrInvalidQuota}
	for i, req := range cases {
		_, err := svc.UpsertAllocation(ctx, req)
		assert.ErrorIs(t, err, want[i], "case %d", i)
	}
}

func TestTrackUsageRejectsZeroCount(t *testing.T) {
	svc, _ := setupService(t)

	_, err := svc.TrackUsage(context.Background(), domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 0})
	assert.ErrorIs(t, err, domain.ErrInvalidRequestCount)
}

func TestTrackUsageDecaysRate(t *testing.T) {
	svc, clk := setupService(t)
	ctx := context.Background()

	usage, err := svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 10, Metadata: map[string]any{"path": "/search"}})
	require.NoError(t, err)
	assert.InDelta(t, 10, usage.RequestsPerMinute, 0.0001)
	require.NotNil(t, usage.LastRequestAt)
	assert.Equal(t, "/search", usage.Metadata["path"])

	clk.Advance(60 * time.Second)
	usage, err = svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 1})
	require.NoError(t, err)
	assert.InDelta(t, 10*0.36787944+1, usage.RequestsPerMinute, 0.001)
	assert.Equal(t, int64(11), usage.DailyUsage)
}

func TestTrackUsageWithoutMetadataKeepsStoredMetadata(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 1, Metadata: map[string]any{"path": "/search"}})
	require.NoError(t, err)

	usage, err := svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.DailyUsage)
	assert.Equal(t, "/search", usage.Metadata["path"])

	usage, err = svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 1, Metadata: map[string]any{"path": "/suggest"}})
	require.NoError(t, err)
	assert.Equal(t, "/suggest", usage.Metadata["path"])
}

func TestDecayedRate(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, 3.0, decayedRate(0, nil, now, 3))

	last := now
	assert.Equal(t, 7.0, decayedRate(5, &last, now, 2))

	future := now.Add(time.Minute)
	assert.Equal(t, 7.0, decayedRate(5, &future, now, 2))
}

func TestConsumeQuota(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	_, err := svc.ConsumeQuota(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = svc.UpsertAllocation(ctx, domain.UpsertAllocationRequest{ServiceID: "s1", UserID: "u1", DailyQuota: 2, QueriesPerSecond: 1})
	require.NoError(t, err)

	usage, err := svc.ConsumeQuota(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), usage.DailyUsage)
	usage, err = svc.ConsumeQuota(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(2), usage.DailyUsage)

	_, err = svc.ConsumeQuota(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 1})
	assert.ErrorIs(t, err, domain.ErrInsufficientQuota)

	snap, err := svc.CheckQuota(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), snap.CurrentUsage)
}

func TestResetUsage(t *testing.T) {
	svc, _ := setupService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.ResetUsage(ctx, "s1", "u1"), domain.ErrNotFound)

	_, err := svc.UpsertAllocation(ctx, domain.UpsertAllocationRequest{ServiceID: "s1", UserID: "u1", DailyQuota: 2, QueriesPerSecond: 1})
	require.NoError(t, err)
	require.NoError(t, svc.ResetUsage(ctx, "s1", "u1"))

	_, err = svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: 2})
	require.NoError(t, err)
	require.NoError(t, svc.ResetUsage(ctx, "s1", "u1"))

	snap, err := svc.CheckQuota(ctx, "s1", "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(0), snap.CurrentUsage)
	assert.True(t, snap.CanProceed)
}

func TestGetUsageStats(t *testing.T) {
	svc, clk := setupService(t)
	ctx := context.Background()

	track := func(count int64) {
		_, err := svc.TrackUsage(ctx, domain.TrackUsageRequest{ServiceID: "s1", UserID: "u1", RequestCount: count})
		require.NoError(t, err)
	}
	track(4)
	track(2)
	clk.Advance(24 * time.Hour)
	track(9)
	clk.Advance(48 * time.Hour)
	track(1)

	start := time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 5, 6, 23, 0, 0, 0, time.UTC)
	stats, err := svc.GetUsageStats(ctx, domain.UsageStatsRequest{ServiceID: "s1", UserID: "u1", StartDate: start, EndDate: end})
	require.NoError(t, err)
	assert.Equal(t, int64(15), stats.TotalRequests)
	assert.Equal(t, int64(9), stats.PeakUsage)
	assert.InDelta(t, 5.0, stats.DailyAverage, 0.0001)
	assert.Equal(t, []domain.DailyUsage{
		{Date: "2026-05-04", Requests: 6},
		{Date: "2026-05-05", Requests: 9},
	}, stats.ByDay)
}

func TestGetUsageStatsEmptyRange(t *testing.T) {
	svc, _ := setupService(t)

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	stats, err := svc.GetUsageStats(context.Background(), domain.UsageStatsRequest{
		ServiceID: "s1",
		UserID:    "u1",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, 6),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(0), stats.TotalRequests)
	assert.Equal(t, 0.0, stats.DailyAverage)
	assert.Equal(t, int64(0), stats.PeakUsage)
	assert.NotNil(t, stats.ByDay)
	assert.Empty(t, stats.ByDay)
}

func TestGetUsageStatsInvalidRange(t *testing.T) {
	svc, _ := setupService(t)

	start := time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)
	_, err := svc.GetUsageStats(context.Background(), domain.UsageStatsRequest{
		ServiceID: "s1",
		UserID:    "u1",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, -1),
	})
	assert.ErrorIs(t, err, domain.ErrInvalidDateRange)
}
