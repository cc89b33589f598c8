package domain

import (
	"context"
	"errors"
	"time"

	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
)

type AllocateSubscriptionCreditsRequest struct {
	SubscriberType string
	SubscriberID   string
	Credits        int64
	// BillingPeriodID makes redelivery of the same renewal a no-op.
	BillingPeriodID string
	ExpiresAt       *time.Time
	Description     string
}

type AllocateSubscriptionCreditsResult struct {
	Pool        creditpooldomain.CreditPool    `json:"pool"`
	Transaction ledgerdomain.CreditTransaction `json:"transaction"`
	Replayed    bool                           `json:"replayed"`
}

// SubscriberLocker serialises grants for one subscriber. Implementations may be
// best-effort.
type SubscriberLocker interface {
	Acquire(ctx context.Context, subscriberType, subscriberID string) (release func(), acquired bool, err error)
}

type Service interface {
	AllocateSubscriptionCredits(ctx context.Context, req AllocateSubscriptionCreditsRequest) (AllocateSubscriptionCreditsResult, error)
}

var (
	ErrInvalidCredits = errors.New("invalid_credits")
	ErrSubscriberBusy = errors.New("subscriber_busy")
)

// IdempotencyKey derives the ledger idempotency key for a billing period.
func IdempotencyKey(billingPeriodID string) string {
	if billingPeriodID == "" {
		return ""
	}
	return "subscription:" + billingPeriodID
}
