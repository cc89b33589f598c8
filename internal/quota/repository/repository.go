package repository

import (
	"context"
	"time"

	"github.com/smallbiznis/creditledger/internal/quota/domain"
	"github.com/smallbiznis/creditledger/pkg/repository"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

var pairColumns = []clause.Column{{Name: "service_id"}, {Name: "user_id"}}

func (r *repo) UpsertAllocation(ctx context.Context, db *gorm.DB, allocation *domain.ApiQuotaAllocation) error {
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   pairColumns,
		DoUpdates: clause.AssignmentColumns([]string{"daily_quota", "queries_per_second", "updated_at"}),
	}).Create(allocation).Error
}

func (r *repo) FindAllocation(ctx context.Context, db *gorm.DB, serviceID, userID string) (*domain.ApiQuotaAllocation, error) {
	return repository.ProvideStore[domain.ApiQuotaAllocation](db).FindOne(ctx, &domain.ApiQuotaAllocation{
		ServiceID: serviceID,
		UserID:    userID,
	})
}

func (r *repo) FindUsage(ctx context.Context, db *gorm.DB, serviceID, userID string) (*domain.ApiUsageTracking, error) {
	return repository.ProvideStore[domain.ApiUsageTracking](db).FindOne(ctx, &domain.ApiUsageTracking{
		ServiceID: serviceID,
		UserID:    userID,
	})
}

func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, usage *domain.ApiUsageTracking, count int64) error {
	usage.DailyUsage = count
	updates := map[string]any{
		"daily_usage":         gorm.Expr("api_usage_tracking.daily_usage + ?", count),
		"last_request_at":     usage.LastRequestAt,
		"requests_per_minute": usage.RequestsPerMinute,
		"updated_at":          usage.UpdatedAt,
	}
	// Calls without metadata keep whatever was stored last.
	if usage.Metadata != nil {
		updates["metadata"] = usage.Metadata
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   pairColumns,
		DoUpdates: clause.Assignments(updates),
	}).Create(usage).Error
}

func (r *repo) IncrementDaily(ctx context.Context, db *gorm.DB, serviceID, userID, usageDate string, count int64, now time.Time) error {
	row := &domain.ApiUsageDaily{
		ServiceID:    serviceID,
		UserID:       userID,
		UsageDate:    usageDate,
		RequestCount: count,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: append(append([]clause.Column{}, pairColumns...), clause.Column{Name: "usage_date"}),
		DoUpdates: clause.Assignments(map[string]any{
			"request_count": gorm.Expr("api_usage_daily.request_count + ?", count),
			"updated_at":    now,
		}),
	}).Create(row).Error
}

func (r *repo) ResetUsage(ctx context.Context, db *gorm.DB, serviceID, userID string, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE api_usage_tracking SET daily_usage = 0, updated_at = ? WHERE service_id = ? AND user_id = ?`,
		now,
		serviceID,
		userID,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListDaily(ctx context.Context, db *gorm.DB, serviceID, userID, from, to string) ([]*domain.ApiUsageDaily, error) {
	var rows []*domain.ApiUsageDaily
	err := db.WithContext(ctx).Raw(
		`SELECT service_id, user_id, usage_date, request_count, created_at, updated_at
		 FROM api_usage_daily
		 WHERE service_id = ? AND user_id = ? AND usage_date >= ? AND usage_date <= ?
		 ORDER BY usage_date ASC`,
		serviceID,
		userID,
		from,
		to,
	).Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}
