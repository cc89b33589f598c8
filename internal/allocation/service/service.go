package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/allocation/domain"
	"github.com/smallbiznis/creditledger/internal/clock"
	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	"github.com/smallbiznis/creditledger/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB    *gorm.DB
	Log   *zap.Logger
	GenID *snowflake.Node
	Repo  domain.Repository
	Pools creditpooldomain.Service
	Clock clock.Clock `optional:"true"`
}

type Service struct {
	db    *gorm.DB
	log   *zap.Logger
	genID *snowflake.Node
	repo  domain.Repository
	pools creditpooldomain.Service
	clock clock.Clock
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:    p.DB,
		log:   p.Log.Named("allocation.service"),
		genID: p.GenID,
		repo:  p.Repo,
		pools: p.Pools,
		clock: clk,
	}
}

func (s *Service) Allocate(ctx context.Context, req domain.AllocateRequest) (domain.CreditAllocation, error) {
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		return domain.CreditAllocation{}, domain.ErrInvalidProject
	}
	if req.MonthlyLimit < 0 {
		return domain.CreditAllocation{}, domain.ErrInvalidMonthlyLimit
	}
	if _, err := s.pools.GetPoolByID(ctx, req.PoolID); err != nil {
		return domain.CreditAllocation{}, err
	}

	existing, err := s.repo.FindByProject(ctx, s.db, projectID)
	if err != nil {
		return domain.CreditAllocation{}, fmt.Errorf("find allocation: %w", err)
	}
	if existing != nil {
		return domain.CreditAllocation{}, domain.ErrAllocationExists
	}

	now := s.clock.Now()
	allocation := domain.CreditAllocation{
		ID:           s.genID.Generate(),
		PoolID:       req.PoolID,
		ProjectID:    projectID,
		MonthlyLimit: req.MonthlyLimit,
		CurrentUsage: 0,
		ResetAt:      domain.FirstOfNextMonth(now),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := s.repo.Insert(ctx, s.db, &allocation); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.CreditAllocation{}, domain.ErrAllocationExists
		}
		return domain.CreditAllocation{}, fmt.Errorf("insert allocation: %w", err)
	}

	s.log.Info("allocation created",
		zap.String("allocation_id", allocation.ID.String()),
		logger.Pool(allocation.PoolID),
		zap.String("project_id", projectID),
		zap.Int64("monthly_limit", allocation.MonthlyLimit),
	)
	return allocation, nil
}

func (s *Service) RecordProjectUsage(ctx context.Context, req domain.RecordUsageRequest) (domain.RecordUsageResult, error) {
	projectID := strings.TrimSpace(req.ProjectID)
	if projectID == "" {
		return domain.RecordUsageResult{}, domain.ErrInvalidProject
	}
	if req.Amount <= 0 {
		return domain.RecordUsageResult{}, domain.ErrInvalidAmount
	}

	var result domain.RecordUsageResult
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allocation, err := s.repo.FindByProject(ctx, tx, projectID)
		if err != nil {
			return fmt.Errorf("find allocation: %w", err)
		}
		if allocation == nil {
			return domain.ErrAllocationNotFound
		}
		if allocation.CurrentUsage+req.Amount > allocation.MonthlyLimit {
			return domain.ErrAllocationLimitExceeded
		}

		description := strings.TrimSpace(req.Description)
		if description == "" {
			description = "project usage"
		}
		reserved, err := s.pools.WithTx(tx).ReserveCredits(ctx, creditpooldomain.ReserveCreditsRequest{
			PoolID:      allocation.PoolID,
			Amount:      req.Amount,
			Description: description,
			ProjectID:   &projectID,
			Metadata:    req.Metadata,
		})
		if err != nil {
			return err
		}

		ok, err := s.repo.IncrementUsage(ctx, tx, allocation.ID, req.Amount, s.clock.Now())
		if err != nil {
			return fmt.Errorf("increment allocation usage: %w", err)
		}
		if !ok {
			return domain.ErrAllocationLimitExceeded
		}

		updated, err := s.repo.FindByID(ctx, tx, allocation.ID)
		if err != nil {
			return fmt.Errorf("reload allocation: %w", err)
		}
		if updated == nil {
			return domain.ErrAllocationNotFound
		}

		result = domain.RecordUsageResult{Allocation: *updated, Pool: reserved}
		return nil
	})
	if err != nil {
		if !isExpected(err) {
			s.log.Error("record project usage failed", zap.String("project_id", projectID), zap.Error(err))
		}
		return domain.RecordUsageResult{}, err
	}
	return result, nil
}

func (s *Service) ResetAllocation(ctx context.Context, id snowflake.ID) (domain.CreditAllocation, error) {
	if id == 0 {
		return domain.CreditAllocation{}, domain.ErrInvalidAllocation
	}

	var result domain.CreditAllocation
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allocation, err := s.repo.FindByID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("find allocation: %w", err)
		}
		if allocation == nil {
			return domain.ErrAllocationNotFound
		}

		now := s.clock.Now()
		nextReset := allocation.ResetAt.UTC().AddDate(0, 1, 0)
		if err := s.repo.Reset(ctx, tx, id, nextReset, now); err != nil {
			return fmt.Errorf("reset allocation: %w", err)
		}

		result = *allocation
		result.CurrentUsage = 0
		result.ResetAt = nextReset
		result.UpdatedAt = now
		return nil
	})
	if err != nil {
		return domain.CreditAllocation{}, err
	}

	s.log.Info("allocation reset",
		zap.String("allocation_id", id.String()),
		zap.Time("reset_at", result.ResetAt),
	)
	return result, nil
}

func (s *Service) GetAllocation(ctx context.Context, id snowflake.ID) (domain.CreditAllocation, error) {
	if id == 0 {
		return domain.CreditAllocation{}, domain.ErrInvalidAllocation
	}
	allocation, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return domain.CreditAllocation{}, fmt.Errorf("find allocation: %w", err)
	}
	if allocation == nil {
		return domain.CreditAllocation{}, domain.ErrAllocationNotFound
	}
	return *allocation, nil
}

func (s *Service) ListByPool(ctx context.Context, poolID snowflake.ID) ([]domain.CreditAllocation, error) {
	if poolID == 0 {
		return nil, creditpooldomain.ErrInvalidPool
	}
	rows, err := s.repo.ListByPool(ctx, s.db, poolID)
	if err != nil {
		return nil, fmt.Errorf("list allocations: %w", err)
	}
	out := make([]domain.CreditAllocation, 0, len(rows))
	for _, row := range rows {
		if row != nil {
			out = append(out, *row)
		}
	}
	return out, nil
}

func isExpected(err error) bool {
	for _, target := range []error{
		domain.ErrAllocationNotFound,
		domain.ErrAllocationLimitExceeded,
		creditpooldomain.ErrInsufficientCredits,
		creditpooldomain.ErrPoolNotFound,
		creditpooldomain.ErrConcurrencyConflict,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
