package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"gorm.io/gorm"
)

type CreatePoolRequest struct {
	Owner     Owner
	Source    Source
	ExpiresAt *time.Time
}

type AddCreditsRequest struct {
	PoolID         snowflake.ID
	Amount         int64
	Source         Source
	Description    string
	IdempotencyKey string
	// ExpiresAt, when set, replaces the pool expiry (renewals extend it).
	ExpiresAt *time.Time
	Metadata  map[string]any
}

type ReserveCreditsRequest struct {
	PoolID      snowflake.ID
	Amount      int64
	Description string
	ProjectID   *string
	Metadata    map[string]any
}

// SettleReservationRequest commits or releases held credits. With a ReservationID,
// Amount may be zero and defaults to the reserved amount.
type SettleReservationRequest struct {
	PoolID        snowflake.ID
	Amount        int64
	ReservationID snowflake.ID
	Description   string
	Metadata      map[string]any
}

type MutationResult struct {
	Pool        CreditPool                     `json:"pool"`
	Transaction ledgerdomain.CreditTransaction `json:"transaction"`
	Reservation *CreditReservation             `json:"reservation,omitempty"`
	// Replayed is true when an idempotency key matched an earlier grant.
	Replayed bool `json:"replayed,omitempty"`
}

//go:generate mockgen -source=service.go -destination=../mocks/mock_service.go -package=mocks
type Service interface {
	CreatePool(ctx context.Context, req CreatePoolRequest) (CreditPool, error)
	GetPool(ctx context.Context, owner Owner) (CreditPool, error)
	GetPoolByID(ctx context.Context, id snowflake.ID) (CreditPool, error)
	AddCredits(ctx context.Context, req AddCreditsRequest) (MutationResult, error)
	ReserveCredits(ctx context.Context, req ReserveCreditsRequest) (MutationResult, error)
	CommitReservation(ctx context.Context, req SettleReservationRequest) (MutationResult, error)
	ReleaseReservation(ctx context.Context, req SettleReservationRequest) (MutationResult, error)
	// WithTx returns a Service whose mutations join tx instead of opening their own.
	WithTx(tx *gorm.DB) Service
}

var (
	ErrInvalidPool          = errors.New("invalid_pool")
	ErrInvalidOwner         = errors.New("invalid_owner")
	ErrInvalidOwnerType     = errors.New("invalid_owner_type")
	ErrInvalidSource        = errors.New("invalid_source")
	ErrInvalidAmount        = errors.New("invalid_amount")
	ErrPoolNotFound         = errors.New("pool_not_found")
	ErrInsufficientCredits  = errors.New("insufficient_credits")
	ErrConcurrencyConflict  = errors.New("concurrency_conflict")
	ErrReservationNotFound  = errors.New("reservation_not_found")
	ErrReservationFinalized = errors.New("reservation_finalized")
)
