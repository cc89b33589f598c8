package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
)

type AllocateRequest struct {
	PoolID       snowflake.ID
	ProjectID    string
	MonthlyLimit int64
}

type RecordUsageRequest struct {
	ProjectID   string
	Amount      int64
	Description string
	Metadata    map[string]any
}

type RecordUsageResult struct {
	Allocation CreditAllocation                `json:"allocation"`
	Pool       creditpooldomain.MutationResult `json:"pool"`
}

type Service interface {
	Allocate(ctx context.Context, req AllocateRequest) (CreditAllocation, error)
	// RecordProjectUsage reserves amount from the parent pool and adds it to the
	// project's usage in one database transaction.
	RecordProjectUsage(ctx context.Context, req RecordUsageRequest) (RecordUsageResult, error)
	ResetAllocation(ctx context.Context, id snowflake.ID) (CreditAllocation, error)
	GetAllocation(ctx context.Context, id snowflake.ID) (CreditAllocation, error)
	ListByPool(ctx context.Context, poolID snowflake.ID) ([]CreditAllocation, error)
}

var (
	ErrInvalidAllocation       = errors.New("invalid_allocation")
	ErrInvalidProject          = errors.New("invalid_project")
	ErrInvalidMonthlyLimit     = errors.New("invalid_monthly_limit")
	ErrInvalidAmount           = errors.New("invalid_amount")
	ErrAllocationNotFound      = errors.New("allocation_not_found")
	ErrAllocationExists        = errors.New("allocation_exists")
	ErrAllocationLimitExceeded = errors.New("allocation_limit_exceeded")
)
