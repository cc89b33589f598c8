package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/creditpool/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	"github.com/smallbiznis/creditledger/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const maxRetryBackoff = 500 * time.Millisecond

var errVersionConflict = errors.New("credit pool version conflict")

// mutation is the outcome of planning against a freshly read pool.
type mutation struct {
	pool        domain.CreditPool
	txn         *ledgerdomain.CreditTransaction
	insert      *domain.CreditReservation
	finalize    []domain.CreditReservation
	shrink      *reservationShrink
	reservation *domain.CreditReservation
	// replay short-circuits the write and returns an earlier transaction.
	replay *ledgerdomain.CreditTransaction
}

// reservationShrink partially settles an open hold.
type reservationShrink struct {
	id       snowflake.ID
	from, to int64
}

type planFunc func(ctx context.Context, tx *gorm.DB, current domain.CreditPool, now time.Time) (*mutation, error)

// mutate re-reads the pool, plans the change and swaps it in under the row version,
// retrying lost races with jittered backoff until the retry budget is spent.
func (s *Service) mutate(ctx context.Context, op string, poolID snowflake.ID, plan planFunc) (domain.MutationResult, error) {
	if poolID == 0 {
		return domain.MutationResult{}, domain.ErrInvalidPool
	}

	tunables := s.currentTunables()
	start := time.Now()
	defer func() {
		s.ledgerMetrics.ObserveMutation(op, time.Since(start))
	}()

	for attempt := 0; attempt < tunables.MaxRetries; attempt++ {
		if attempt > 0 {
			s.ledgerMetrics.IncCASRetry(op)
			if err := sleepBackoff(ctx, tunables.RetryBackoff, attempt); err != nil {
				return domain.MutationResult{}, err
			}
		}

		result, err := s.attempt(ctx, poolID, plan)
		if err == nil {
			return result, nil
		}
		if errors.Is(err, errVersionConflict) || db.IsConcurrencyConflict(err) {
			s.log.Debug("credit pool write conflict, retrying",
				zap.String("operation", op),
				logger.Pool(poolID),
				zap.Int("attempt", attempt+1),
			)
			continue
		}
		if !isDomainError(err) {
			s.ledgerMetrics.IncMutationError(op, err)
			s.log.Error("credit pool mutation failed",
				zap.String("operation", op),
				logger.Pool(poolID),
				zap.Error(err),
			)
		}
		return domain.MutationResult{}, err
	}

	s.log.Warn("credit pool retry budget exhausted",
		zap.String("operation", op),
		logger.Pool(poolID),
		zap.Int("max_retries", tunables.MaxRetries),
	)
	return domain.MutationResult{}, domain.ErrConcurrencyConflict
}

func (s *Service) attempt(ctx context.Context, poolID snowflake.ID, plan planFunc) (domain.MutationResult, error) {
	var result domain.MutationResult
	err := s.conn().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		current, err := s.repo.FindByID(ctx, tx, poolID)
		if err != nil {
			return fmt.Errorf("load credit pool: %w", err)
		}
		if current == nil {
			return domain.ErrPoolNotFound
		}

		now := s.clock.Now()
		m, err := plan(ctx, tx, *current, now)
		if err != nil {
			return err
		}
		if m.replay != nil {
			result = domain.MutationResult{Pool: *current, Transaction: *m.replay, Replayed: true}
			return nil
		}

		next := m.pool
		if next.TotalCredits < 0 || next.ReservedCredits < 0 || next.ReservedCredits > next.TotalCredits {
			return domain.ErrInvalidAmount
		}
		next.UpdatedAt = now

		swapped, err := s.repo.CompareAndSwap(ctx, tx, &next, current.Version)
		if err != nil {
			return fmt.Errorf("update credit pool: %w", err)
		}
		if !swapped {
			return errVersionConflict
		}

		if m.insert != nil {
			if err := s.repo.InsertReservation(ctx, tx, m.insert); err != nil {
				return fmt.Errorf("insert reservation: %w", err)
			}
		}
		// Holds only change under a pool swap, so a missed row means a racing writer.
		for _, settled := range m.finalize {
			ok, err := s.repo.FinalizeReservation(ctx, tx, settled.ID, settled.Status, now)
			if err != nil {
				return fmt.Errorf("finalize reservation: %w", err)
			}
			if !ok {
				return errVersionConflict
			}
		}
		if m.shrink != nil {
			ok, err := s.repo.ShrinkReservation(ctx, tx, m.shrink.id, m.shrink.from, m.shrink.to, now)
			if err != nil {
				return fmt.Errorf("shrink reservation: %w", err)
			}
			if !ok {
				return errVersionConflict
			}
		}

		m.txn.PoolID = next.ID
		m.txn.BalanceAfter = next.TotalCredits
		m.txn.ReservedAfter = next.ReservedCredits
		m.txn.CreatedAt = now
		if err := s.ledger.Append(ctx, tx, m.txn); err != nil {
			if errors.Is(err, ledgerdomain.ErrTransactionExists) {
				return errVersionConflict
			}
			return err
		}

		result = domain.MutationResult{Pool: next, Transaction: *m.txn, Reservation: m.reservation}
		return nil
	})
	return result, err
}

func (s *Service) currentTunables() config.LedgerTunables {
	if s.tunables != nil {
		return s.tunables.Get()
	}
	return config.DefaultLedgerTunables(config.LedgerConfig{})
}

func sleepBackoff(ctx context.Context, base time.Duration, attempt int) error {
	if base <= 0 {
		return ctx.Err()
	}
	delay := base << (attempt - 1)
	if delay <= 0 || delay > maxRetryBackoff {
		delay = maxRetryBackoff
	}
	delay = delay/2 + time.Duration(rand.Int64N(int64(delay/2)+1))

	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isDomainError(err error) bool {
	for _, target := range []error{
		domain.ErrPoolNotFound,
		domain.ErrInvalidAmount,
		domain.ErrInsufficientCredits,
		domain.ErrReservationNotFound,
		domain.ErrReservationFinalized,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
