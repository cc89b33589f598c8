package domain

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Repository interface {
	UpsertAllocation(ctx context.Context, db *gorm.DB, allocation *ApiQuotaAllocation) error
	FindAllocation(ctx context.Context, db *gorm.DB, serviceID, userID string) (*ApiQuotaAllocation, error)
	FindUsage(ctx context.Context, db *gorm.DB, serviceID, userID string) (*ApiUsageTracking, error)
	// IncrementUsage inserts the usage row or adds count to daily_usage in one
	// statement. The remaining columns are overwritten from usage.
	IncrementUsage(ctx context.Context, db *gorm.DB, usage *ApiUsageTracking, count int64) error
	IncrementDaily(ctx context.Context, db *gorm.DB, serviceID, userID, usageDate string, count int64, now time.Time) error
	ResetUsage(ctx context.Context, db *gorm.DB, serviceID, userID string, now time.Time) (bool, error)
	// ListDaily returns the daily rows with from <= usage_date <= to, oldest first.
	ListDaily(ctx context.Context, db *gorm.DB, serviceID, userID, from, to string) ([]*ApiUsageDaily, error)
}
