package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListFilter struct {
	PoolID    snowflake.ID
	ProjectID *string
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, txn *CreditTransaction) error
	FindByIdempotencyKey(ctx context.Context, db *gorm.DB, poolID snowflake.ID, key string) (*CreditTransaction, error)
	ListByPool(ctx context.Context, db *gorm.DB, filter ListFilter, page pagination.Offset) ([]*CreditTransaction, error)
	CountByPool(ctx context.Context, db *gorm.DB, poolID snowflake.ID) (int64, error)
	SumAmountByPool(ctx context.Context, db *gorm.DB, poolID snowflake.ID) (int64, error)
}
