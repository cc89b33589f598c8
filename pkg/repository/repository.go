package repository

import (
	"context"

	"github.com/smallbiznis/creditledger/pkg/db/option"
	"gorm.io/gorm"
)

// Repository is a generic store for append-mostly ledger tables. Rows are never
// hard-deleted, so there is no Delete.
type Repository[T any] interface {
	WithTrx(tx *gorm.DB) Repository[T]
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T) (int64, error)
}
