package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type ListTransactionsRequest struct {
	PoolID    snowflake.ID
	ProjectID *string
	Limit     int
	Offset    int
}

type ListTransactionsResponse struct {
	pagination.OffsetPageInfo
	Transactions []CreditTransaction `json:"transactions"`
}

// PoolSummary is an audit view over a pool's history.
type PoolSummary struct {
	PoolID           snowflake.ID `json:"pool_id"`
	TransactionCount int64        `json:"transaction_count"`
	NetAmount        int64        `json:"net_amount"`
}

type Service interface {
	// Append writes txn on tx. It must run inside the transaction of the pool
	// mutation it records.
	Append(ctx context.Context, tx *gorm.DB, txn *CreditTransaction) error
	FindByIdempotencyKey(ctx context.Context, tx *gorm.DB, poolID snowflake.ID, key string) (*CreditTransaction, error)
	ListByPool(ctx context.Context, req ListTransactionsRequest) (ListTransactionsResponse, error)
	SumByPool(ctx context.Context, poolID snowflake.ID) (PoolSummary, error)
}

var (
	ErrInvalidPool            = errors.New("invalid_pool")
	ErrInvalidTransactionType = errors.New("invalid_transaction_type")
	ErrInvalidTransaction     = errors.New("invalid_transaction")
	ErrTransactionExists      = errors.New("transaction_exists")
)
