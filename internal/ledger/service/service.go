package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	"github.com/smallbiznis/creditledger/internal/ledger/domain"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/pkg/db"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	GenID      *snowflake.Node
	Repo       domain.Repository
	Clock      clock.Clock                `optional:"true"`
	Tunables   *config.LedgerConfigHolder `optional:"true"`
	ObsMetrics *obsmetrics.Metrics        `optional:"true"`
}

type Service struct {
	db         *gorm.DB
	log        *zap.Logger
	genID      *snowflake.Node
	repo       domain.Repository
	clock      clock.Clock
	tunables   *config.LedgerConfigHolder
	obsMetrics *obsmetrics.Metrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("ledger.service"),
		genID:      p.GenID,
		repo:       p.Repo,
		clock:      clk,
		tunables:   p.Tunables,
		obsMetrics: p.ObsMetrics,
	}
}

func (s *Service) Append(ctx context.Context, tx *gorm.DB, txn *domain.CreditTransaction) error {
	if tx == nil || txn == nil {
		return domain.ErrInvalidTransaction
	}
	if txn.PoolID == 0 {
		return domain.ErrInvalidPool
	}
	if !txn.Type.Valid() {
		return domain.ErrInvalidTransactionType
	}
	if txn.BalanceAfter < 0 || txn.ReservedAfter < 0 || txn.ReservedAfter > txn.BalanceAfter {
		return domain.ErrInvalidTransaction
	}
	if txn.IdempotencyKey != nil {
		key := strings.TrimSpace(*txn.IdempotencyKey)
		if key == "" {
			txn.IdempotencyKey = nil
		} else {
			txn.IdempotencyKey = &key
		}
	}

	if txn.ID == 0 {
		txn.ID = s.genID.Generate()
	}
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = s.clock.Now()
	}

	if err := s.repo.Insert(ctx, tx, txn); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return domain.ErrTransactionExists
		}
		return fmt.Errorf("append credit transaction: %w", err)
	}

	if s.obsMetrics != nil {
		s.obsMetrics.RecordCreditMutation(ctx, string(txn.Type), txn.Source, txn.Amount)
	}
	return nil
}

func (s *Service) FindByIdempotencyKey(ctx context.Context, tx *gorm.DB, poolID snowflake.ID, key string) (*domain.CreditTransaction, error) {
	key = strings.TrimSpace(key)
	if poolID == 0 {
		return nil, domain.ErrInvalidPool
	}
	if key == "" {
		return nil, nil
	}
	if tx == nil {
		tx = s.db
	}
	return s.repo.FindByIdempotencyKey(ctx, tx, poolID, key)
}

func (s *Service) ListByPool(ctx context.Context, req domain.ListTransactionsRequest) (domain.ListTransactionsResponse, error) {
	if req.PoolID == 0 {
		return domain.ListTransactionsResponse{}, domain.ErrInvalidPool
	}

	def, max := pagination.DefaultLimit, pagination.MaxLimit
	if s.tunables != nil {
		t := s.tunables.Get()
		def, max = t.DefaultPageSize, t.MaxPageSize
	}
	page := pagination.Offset{Limit: req.Limit, Offset: req.Offset}.Normalize(def, max)

	var projectID *string
	if req.ProjectID != nil {
		if trimmed := strings.TrimSpace(*req.ProjectID); trimmed != "" {
			projectID = &trimmed
		}
	}

	rows, err := s.repo.ListByPool(ctx, s.db, domain.ListFilter{PoolID: req.PoolID, ProjectID: projectID}, page)
	if err != nil {
		return domain.ListTransactionsResponse{}, fmt.Errorf("list credit transactions: %w", err)
	}

	rows, info := pagination.TrimOffsetPage(rows, page)
	txns := make([]domain.CreditTransaction, 0, len(rows))
	for _, row := range rows {
		if row == nil {
			continue
		}
		txns = append(txns, *row)
	}

	return domain.ListTransactionsResponse{
		OffsetPageInfo: info,
		Transactions:   txns,
	}, nil
}

func (s *Service) SumByPool(ctx context.Context, poolID snowflake.ID) (domain.PoolSummary, error) {
	if poolID == 0 {
		return domain.PoolSummary{}, domain.ErrInvalidPool
	}

	count, err := s.repo.CountByPool(ctx, s.db, poolID)
	if err != nil {
		return domain.PoolSummary{}, fmt.Errorf("count credit transactions: %w", err)
	}
	net, err := s.repo.SumAmountByPool(ctx, s.db, poolID)
	if err != nil {
		return domain.PoolSummary{}, fmt.Errorf("sum credit transactions: %w", err)
	}

	return domain.PoolSummary{
		PoolID:           poolID,
		TransactionCount: count,
		NetAmount:        net,
	}, nil
}
