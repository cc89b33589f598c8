package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, allocation *CreditAllocation) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CreditAllocation, error)
	FindByProject(ctx context.Context, db *gorm.DB, projectID string) (*CreditAllocation, error)
	ListByPool(ctx context.Context, db *gorm.DB, poolID snowflake.ID) ([]*CreditAllocation, error)
	// IncrementUsage adds amount only while the monthly limit still holds. It reports
	// false when the limit would be crossed.
	IncrementUsage(ctx context.Context, db *gorm.DB, id snowflake.ID, amount int64, now time.Time) (bool, error)
	Reset(ctx context.Context, db *gorm.DB, id snowflake.ID, resetAt, now time.Time) error
}
