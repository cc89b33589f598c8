package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
	"github.com/smallbiznis/creditledger/internal/feeder/domain"
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

type Params struct {
	fx.In

	Log    *zap.Logger
	Pools  creditpooldomain.Service
	Locker domain.SubscriberLocker `optional:"true"`
}

type Service struct {
	log    *zap.Logger
	pools  creditpooldomain.Service
	locker domain.SubscriberLocker
}

func New(p Params) domain.Service {
	return &Service{
		log:    p.Log.Named("feeder.service"),
		pools:  p.Pools,
		locker: p.Locker,
	}
}

func (s *Service) AllocateSubscriptionCredits(ctx context.Context, req domain.AllocateSubscriptionCreditsRequest) (domain.AllocateSubscriptionCreditsResult, error) {
	if req.Credits <= 0 {
		return domain.AllocateSubscriptionCreditsResult{}, domain.ErrInvalidCredits
	}
	owner, err := creditpooldomain.NewOwner(req.SubscriberType, req.SubscriberID)
	if err != nil {
		return domain.AllocateSubscriptionCreditsResult{}, err
	}
	periodID := strings.TrimSpace(req.BillingPeriodID)

	log := s.log.With(logger.Owner(string(owner.Type), owner.ID)...).
		With(zap.String("billing_period_id", periodID))

	if s.locker != nil {
		release, acquired, err := s.locker.Acquire(ctx, string(owner.Type), owner.ID)
		if err != nil {
			// The lock only narrows races; the ledger constraints still hold without it.
			log.Warn("subscriber lock unavailable, continuing without it", zap.Error(err))
		} else if !acquired {
			return domain.AllocateSubscriptionCreditsResult{}, domain.ErrSubscriberBusy
		} else {
			defer release()
		}
	}

	pool, err := s.pools.GetPool(ctx, owner)
	if errors.Is(err, creditpooldomain.ErrPoolNotFound) {
		pool, err = s.pools.CreatePool(ctx, creditpooldomain.CreatePoolRequest{
			Owner:     owner,
			Source:    creditpooldomain.SourceSubscription,
			ExpiresAt: req.ExpiresAt,
		})
	}
	if err != nil {
		return domain.AllocateSubscriptionCreditsResult{}, fmt.Errorf("resolve subscriber pool: %w", err)
	}

	description := strings.TrimSpace(req.Description)
	if description == "" {
		description = "subscription credits"
		if periodID != "" {
			description += " for " + periodID
		}
	}

	res, err := s.pools.AddCredits(ctx, creditpooldomain.AddCreditsRequest{
		PoolID:         pool.ID,
		Amount:         req.Credits,
		Source:         creditpooldomain.SourceSubscription,
		Description:    description,
		IdempotencyKey: domain.IdempotencyKey(periodID),
		ExpiresAt:      req.ExpiresAt,
		Metadata:       subscriptionMetadata(periodID),
	})
	if err != nil {
		return domain.AllocateSubscriptionCreditsResult{}, err
	}

	if res.Replayed {
		log.Info("subscription credits already granted for period")
	} else {
		log.Info("subscription credits granted",
			logger.Pool(res.Pool.ID),
			zap.Int64("credits", req.Credits),
		)
	}

	return domain.AllocateSubscriptionCreditsResult{
		Pool:        res.Pool,
		Transaction: res.Transaction,
		Replayed:    res.Replayed,
	}, nil
}

func subscriptionMetadata(periodID string) map[string]any {
	if periodID == "" {
		return nil
	}
	return map[string]any{"billing_period_id": periodID}
}
