package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/allocation/domain"
	"github.com/smallbiznis/creditledger/pkg/db/option"
	"github.com/smallbiznis/creditledger/pkg/repository"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, allocation *domain.CreditAllocation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_allocations (id, pool_id, project_id, monthly_limit, current_usage, reset_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		allocation.ID,
		allocation.PoolID,
		allocation.ProjectID,
		allocation.MonthlyLimit,
		allocation.CurrentUsage,
		allocation.ResetAt,
		allocation.CreatedAt,
		allocation.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CreditAllocation, error) {
	return repository.ProvideStore[domain.CreditAllocation](db).FindOne(ctx, &domain.CreditAllocation{ID: id})
}

func (r *repo) FindByProject(ctx context.Context, db *gorm.DB, projectID string) (*domain.CreditAllocation, error) {
	return repository.ProvideStore[domain.CreditAllocation](db).FindOne(ctx, &domain.CreditAllocation{ProjectID: projectID})
}

func (r *repo) ListByPool(ctx context.Context, db *gorm.DB, poolID snowflake.ID) ([]*domain.CreditAllocation, error) {
	return repository.ProvideStore[domain.CreditAllocation](db).Find(ctx,
		&domain.CreditAllocation{PoolID: poolID},
		option.WithSortBy("project_id", option.Asc),
	)
}

func (r *repo) IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_allocations
		 SET current_usage = current_usage + ?, updated_at = ?
		 WHERE id = ? AND current_usage + ? <= monthly_limit`,
		amount,
		now,
		id,
		amount,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) Reset(ctx context.Context, db *gorm.DB, id snowflake.ID, resetAt, now time.Time) error {
	return db.WithContext(ctx).Exec(
		`UPDATE credit_allocations SET current_usage = 0, reset_at = ?, updated_at = ? WHERE id = ?`,
		resetAt,
		now,
		id,
	).Error
}
