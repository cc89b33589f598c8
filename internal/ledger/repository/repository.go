package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/ledger/domain"
	"github.com/smallbiznis/creditledger/pkg/db/option"
	"github.com/smallbiznis/creditledger/pkg/db/pagination"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, txn *domain.CreditTransaction) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_transactions (
			id, pool_id, project_id, type, source, amount, reserved_delta, balance_after,
			reserved_after, reservation_id, idempotency_key, description, metadata, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID,
		txn.PoolID,
		txn.ProjectID,
		string(txn.Type),
		txn.Source,
		txn.Amount,
		txn.ReservedDelta,
		txn.BalanceAfter,
		txn.ReservedAfter,
		txn.ReservationID,
		txn.IdempotencyKey,
		txn.Description,
		txn.Metadata,
		txn.CreatedAt,
	).Error
}

func (r *repo) FindByIdempotencyKey(ctx context.Context, db *gorm.DB, poolID snowflake.ID, key string) (*domain.CreditTransaction, error) {
	var txn domain.CreditTransaction
	err := db.WithContext(ctx).Raw(
		`SELECT id, pool_id, project_id, type, source, amount, reserved_delta, balance_after,
			reserved_after, reservation_id, idempotency_key, description, metadata, created_at
		 FROM credit_transactions WHERE pool_id = ? AND idempotency_key = ?`,
		poolID,
		key,
	).Scan(&txn).Error
	if err != nil {
		return nil, err
	}
	if txn.ID == 0 {
		return nil, nil
	}
	return &txn, nil
}

func (r *repo) ListByPool(ctx context.Context, db *gorm.DB, filter domain.ListFilter, page pagination.Offset) ([]*domain.CreditTransaction, error) {
	var txns []*domain.CreditTransaction
	stmt := db.WithContext(ctx).
		Model(&domain.CreditTransaction{}).
		Where("pool_id = ?", filter.PoolID)
	if filter.ProjectID != nil {
		stmt = stmt.Where("project_id = ?", *filter.ProjectID)
	}
	stmt = option.ApplyPagination(page).Apply(stmt)
	err := stmt.
		Order("created_at desc, id desc").
		Find(&txns).Error
	if err != nil {
		return nil, err
	}
	return txns, nil
}

func (r *repo) CountByPool(ctx context.Context, db *gorm.DB, poolID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).
		Model(&domain.CreditTransaction{}).
		Where("pool_id = ?", poolID).
		Count(&count).Error
	return count, err
}

func (r *repo) SumAmountByPool(ctx context.Context, db *gorm.DB, poolID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM credit_transactions WHERE pool_id = ?`,
		poolID,
	).Scan(&total).Error
	return total, err
}
