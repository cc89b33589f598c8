package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/creditpool/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	GenID         *snowflake.Node
	Repo          domain.Repository
	Ledger        ledgerdomain.Service
	Clock         clock.Clock                `optional:"true"`
	Tunables      *config.LedgerConfigHolder `optional:"true"`
	LedgerMetrics *obsmetrics.LedgerMetrics  `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	tx            *gorm.DB
	log           *zap.Logger
	genID         *snowflake.Node
	repo          domain.Repository
	ledger        ledgerdomain.Service
	clock         clock.Clock
	tunables      *config.LedgerConfigHolder
	ledgerMetrics *obsmetrics.LedgerMetrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("creditpool.service"),
		genID:         p.GenID,
		repo:          p.Repo,
		ledger:        p.Ledger,
		clock:         clk,
		tunables:      p.Tunables,
		ledgerMetrics: p.LedgerMetrics,
	}
}

func (s *Service) WithTx(tx *gorm.DB) domain.Service {
	clone := *s
	clone.tx = tx
	return &clone
}

func (s *Service) conn() *gorm.DB {
	if s.tx != nil {
		return s.tx
	}
	return s.db
}

func (s *Service) CreatePool(ctx context.Context, req domain.CreatePoolRequest) (domain.CreditPool, error) {
	owner, err := domain.NewOwner(string(req.Owner.Type), req.Owner.ID)
	if err != nil {
		return domain.CreditPool{}, err
	}
	source, err := domain.ParseSource(string(req.Source))
	if err != nil {
		return domain.CreditPool{}, err
	}

	existing, err := s.repo.FindByOwner(ctx, s.conn(), owner)
	if err != nil {
		return domain.CreditPool{}, fmt.Errorf("find credit pool: %w", err)
	}
	if existing != nil {
		return *existing, nil
	}

	now := s.clock.Now()
	pool := domain.CreditPool{
		ID:        s.genID.Generate(),
		OwnerType: owner.Type,
		OwnerID:   owner.ID,
		Source:    source,
		ExpiresAt: utcPtr(req.ExpiresAt),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Insert(ctx, s.conn(), &pool); err != nil {
		if db.IsDuplicateKeyErr(err) {
			existing, findErr := s.repo.FindByOwner(ctx, s.conn(), owner)
			if findErr == nil && existing != nil {
				return *existing, nil
			}
		}
		return domain.CreditPool{}, fmt.Errorf("create credit pool: %w", err)
	}

	fields := append(logger.Owner(string(owner.Type), owner.ID),
		logger.Pool(pool.ID),
		zap.String("source", string(source)),
	)
	s.log.Info("credit pool created", fields...)
	return pool, nil
}

func (s *Service) GetPool(ctx context.Context, owner domain.Owner) (domain.CreditPool, error) {
	owner, err := domain.NewOwner(string(owner.Type), owner.ID)
	if err != nil {
		return domain.CreditPool{}, err
	}
	pool, err := s.repo.FindByOwner(ctx, s.conn(), owner)
	if err != nil {
		return domain.CreditPool{}, fmt.Errorf("find credit pool: %w", err)
	}
	if pool == nil {
		return domain.CreditPool{}, domain.ErrPoolNotFound
	}
	return *pool, nil
}

func (s *Service) GetPoolByID(ctx context.Context, id snowflake.ID) (domain.CreditPool, error) {
	if id == 0 {
		return domain.CreditPool{}, domain.ErrInvalidPool
	}
	pool, err := s.repo.FindByID(ctx, s.conn(), id)
	if err != nil {
		return domain.CreditPool{}, fmt.Errorf("find credit pool: %w", err)
	}
	if pool == nil {
		return domain.CreditPool{}, domain.ErrPoolNotFound
	}
	return *pool, nil
}

func (s *Service) AddCredits(ctx context.Context, req domain.AddCreditsRequest) (domain.MutationResult, error) {
	if req.Amount <= 0 {
		return domain.MutationResult{}, domain.ErrInvalidAmount
	}
	source, err := domain.ParseSource(string(req.Source))
	if err != nil {
		return domain.MutationResult{}, err
	}
	key := strings.TrimSpace(req.IdempotencyKey)

	result, err := s.mutate(ctx, "add", req.PoolID, func(ctx context.Context, tx *gorm.DB, current domain.CreditPool, now time.Time) (*mutation, error) {
		if key != "" {
			prior, err := s.ledger.FindByIdempotencyKey(ctx, tx, current.ID, key)
			if err != nil {
				return nil, fmt.Errorf("find idempotent credit: %w", err)
			}
			if prior != nil {
				return &mutation{replay: prior}, nil
			}
		}

		next := current
		next.TotalCredits = current.TotalCredits + req.Amount
		if next.TotalCredits < current.TotalCredits {
			return nil, domain.ErrInvalidAmount
		}
		if req.ExpiresAt != nil {
			next.ExpiresAt = utcPtr(req.ExpiresAt)
		}

		txn := &ledgerdomain.CreditTransaction{
			Type:        ledgerdomain.TransactionTypeCredit,
			Source:      string(source),
			Amount:      req.Amount,
			Description: strings.TrimSpace(req.Description),
			Metadata:    toJSONMap(req.Metadata),
		}
		if key != "" {
			txn.IdempotencyKey = &key
		}
		return &mutation{pool: next, txn: txn}, nil
	})
	if err != nil {
		return domain.MutationResult{}, err
	}

	if result.Replayed {
		s.log.Info("idempotent credit replayed",
			logger.Pool(result.Pool.ID),
			zap.String("idempotency_key", key),
		)
	} else {
		s.log.Info("credits added",
			logger.Pool(result.Pool.ID),
			zap.Int64("amount", req.Amount),
			zap.String("source", string(source)),
			zap.Int64("balance_after", result.Transaction.BalanceAfter),
		)
	}
	return result, nil
}

func (s *Service) ReserveCredits(ctx context.Context, req domain.ReserveCreditsRequest) (domain.MutationResult, error) {
	if req.Amount <= 0 {
		return domain.MutationResult{}, domain.ErrInvalidAmount
	}
	projectID := trimmedPtr(req.ProjectID)

	result, err := s.mutate(ctx, "reserve", req.PoolID, func(ctx context.Context, tx *gorm.DB, current domain.CreditPool, now time.Time) (*mutation, error) {
		if current.Available(now) < req.Amount {
			return nil, domain.ErrInsufficientCredits
		}

		next := current
		next.ReservedCredits = current.ReservedCredits + req.Amount

		reservation := &domain.CreditReservation{
			ID:          s.genID.Generate(),
			PoolID:      current.ID,
			ProjectID:   projectID,
			Amount:      req.Amount,
			Status:      domain.ReservationStatusReserved,
			Description: strings.TrimSpace(req.Description),
			CreatedAt:   now,
			UpdatedAt:   now,
		}
		reservationID := reservation.ID
		txn := &ledgerdomain.CreditTransaction{
			ProjectID:     projectID,
			Type:          ledgerdomain.TransactionTypeReserve,
			Amount:        0,
			ReservedDelta: req.Amount,
			ReservationID: &reservationID,
			Description:   reservation.Description,
			Metadata:      toJSONMap(req.Metadata),
		}
		return &mutation{pool: next, txn: txn, insert: reservation, reservation: reservation}, nil
	})

	switch {
	case err == nil:
		s.ledgerMetrics.IncReservation(obsmetrics.ReservationOutcomeReserved)
	case errors.Is(err, domain.ErrInsufficientCredits):
		s.ledgerMetrics.IncReservation(obsmetrics.ReservationOutcomeInsufficient)
	case errors.Is(err, domain.ErrConcurrencyConflict):
		s.ledgerMetrics.IncReservation(obsmetrics.ReservationOutcomeConflict)
	default:
		s.ledgerMetrics.IncReservation(obsmetrics.ReservationOutcomeError)
	}
	return result, err
}

func (s *Service) CommitReservation(ctx context.Context, req domain.SettleReservationRequest) (domain.MutationResult, error) {
	return s.settle(ctx, "commit", req, domain.ReservationStatusCommitted)
}

func (s *Service) ReleaseReservation(ctx context.Context, req domain.SettleReservationRequest) (domain.MutationResult, error) {
	return s.settle(ctx, "release", req, domain.ReservationStatusReleased)
}

func (s *Service) settle(ctx context.Context, op string, req domain.SettleReservationRequest, status domain.ReservationStatus) (domain.MutationResult, error) {
	if req.Amount < 0 || (req.ReservationID == 0 && req.Amount == 0) {
		return domain.MutationResult{}, domain.ErrInvalidAmount
	}

	return s.mutate(ctx, op, req.PoolID, func(ctx context.Context, tx *gorm.DB, current domain.CreditPool, now time.Time) (*mutation, error) {
		amount := req.Amount
		m := &mutation{}
		var projectID *string
		var reservationID *snowflake.ID

		if req.ReservationID != 0 {
			held, err := s.repo.FindReservation(ctx, tx, req.ReservationID)
			if err != nil {
				return nil, fmt.Errorf("find reservation: %w", err)
			}
			if held == nil || held.PoolID != current.ID {
				return nil, domain.ErrReservationNotFound
			}
			if held.Status.Terminal() {
				return nil, domain.ErrReservationFinalized
			}
			if amount == 0 {
				amount = held.Amount
			}
			if amount != held.Amount {
				return nil, domain.ErrInvalidAmount
			}

			settled := *held
			settled.Status = status
			settled.UpdatedAt = now
			m.finalize = []domain.CreditReservation{settled}
			m.reservation = &settled
			projectID = held.ProjectID
			id := held.ID
			reservationID = &id
		} else {
			if err := s.drainOpenHolds(ctx, tx, m, current, amount, status, now); err != nil {
				return nil, err
			}
			if len(m.finalize) == 1 && m.shrink == nil {
				m.reservation = &m.finalize[0]
				projectID = m.reservation.ProjectID
				id := m.reservation.ID
				reservationID = &id
			}
		}

		if amount > current.ReservedCredits {
			return nil, domain.ErrInvalidAmount
		}

		next := current
		next.ReservedCredits = current.ReservedCredits - amount
		txn := &ledgerdomain.CreditTransaction{
			ProjectID:     projectID,
			ReservedDelta: -amount,
			ReservationID: reservationID,
			Description:   strings.TrimSpace(req.Description),
			Metadata:      toJSONMap(req.Metadata),
		}
		if status == domain.ReservationStatusCommitted {
			next.TotalCredits = current.TotalCredits - amount
			txn.Type = ledgerdomain.TransactionTypeCommit
			txn.Amount = -amount
		} else {
			txn.Type = ledgerdomain.TransactionTypeRelease
		}

		m.pool = next
		m.txn = txn
		return m, nil
	})
}

// drainOpenHolds settles an amount given without a reservation ID against the pool's
// open holds, oldest first. Credits held without a reservation row are drained before
// any tracked hold; the last hold touched may be settled partially.
func (s *Service) drainOpenHolds(ctx context.Context, tx *gorm.DB, m *mutation, current domain.CreditPool, amount int64, status domain.ReservationStatus, now time.Time) error {
	open, err := s.repo.ListOpenReservations(ctx, tx, current.ID)
	if err != nil {
		return fmt.Errorf("list open reservations: %w", err)
	}

	var tracked int64
	for _, held := range open {
		tracked += held.Amount
	}
	remaining := amount
	if untracked := current.ReservedCredits - tracked; untracked > 0 {
		remaining -= untracked
	}
	for _, held := range open {
		if remaining <= 0 {
			break
		}
		if held.Amount > remaining {
			m.shrink = &reservationShrink{id: held.ID, from: held.Amount, to: held.Amount - remaining}
			return nil
		}
		settled := held
		settled.Status = status
		settled.UpdatedAt = now
		m.finalize = append(m.finalize, settled)
		remaining -= held.Amount
	}
	return nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	v := t.UTC()
	return &v
}

func trimmedPtr(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func toJSONMap(values map[string]any) datatypes.JSONMap {
	if len(values) == 0 {
		return nil
	}
	out := make(datatypes.JSONMap, len(values))
	for k, v := range values {
		out[k] = v
	}
	return out
}
