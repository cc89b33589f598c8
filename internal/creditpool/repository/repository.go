package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/creditledger/internal/creditpool/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() domain.Repository {
	return &repo{}
}

const poolColumns = `id, owner_type, owner_id, total_credits, reserved_credits, source,
	expires_at, version, created_at, updated_at`

func (r *repo) Insert(ctx context.Context, db *gorm.DB, pool *domain.CreditPool) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_pools (`+poolColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		pool.ID,
		string(pool.OwnerType),
		pool.OwnerID,
		pool.TotalCredits,
		pool.ReservedCredits,
		string(pool.Source),
		pool.ExpiresAt,
		pool.Version,
		pool.CreatedAt,
		pool.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CreditPool, error) {
	var pool domain.CreditPool
	err := db.WithContext(ctx).Raw(
		`SELECT `+poolColumns+` FROM credit_pools WHERE id = ?`,
		id,
	).Scan(&pool).Error
	if err != nil {
		return nil, err
	}
	if pool.ID == 0 {
		return nil, nil
	}
	return &pool, nil
}

func (r *repo) FindByOwner(ctx context.Context, db *gorm.DB, owner domain.Owner) (*domain.CreditPool, error) {
	var pool domain.CreditPool
	err := db.WithContext(ctx).Raw(
		`SELECT `+poolColumns+` FROM credit_pools WHERE owner_type = ? AND owner_id = ?`,
		string(owner.Type),
		owner.ID,
	).Scan(&pool).Error
	if err != nil {
		return nil, err
	}
	if pool.ID == 0 {
		return nil, nil
	}
	return &pool, nil
}

func (r *repo) CompareAndSwap(ctx context.Context, db *gorm.DB, pool *domain.CreditPool, expectedVersion int64) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_pools
		 SET total_credits = ?, reserved_credits = ?, expires_at = ?, version = ?, updated_at = ?
		 WHERE id = ? AND version = ?`,
		pool.TotalCredits,
		pool.ReservedCredits,
		pool.ExpiresAt,
		expectedVersion+1,
		pool.UpdatedAt,
		pool.ID,
		expectedVersion,
	)
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}
	pool.Version = expectedVersion + 1
	return true, nil
}

const reservationColumns = `id, pool_id, project_id, amount, status, description, created_at, updated_at`

func (r *repo) InsertReservation(ctx context.Context, db *gorm.DB, reservation *domain.CreditReservation) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO credit_reservations (`+reservationColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		reservation.ID,
		reservation.PoolID,
		reservation.ProjectID,
		reservation.Amount,
		string(reservation.Status),
		reservation.Description,
		reservation.CreatedAt,
		reservation.UpdatedAt,
	).Error
}

func (r *repo) FindReservation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*domain.CreditReservation, error) {
	var reservation domain.CreditReservation
	err := db.WithContext(ctx).Raw(
		`SELECT `+reservationColumns+` FROM credit_reservations WHERE id = ?`,
		id,
	).Scan(&reservation).Error
	if err != nil {
		return nil, err
	}
	if reservation.ID == 0 {
		return nil, nil
	}
	return &reservation, nil
}

func (r *repo) FinalizeReservation(ctx context.Context, db *gorm.DB, id snowflake.ID, status domain.ReservationStatus, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_reservations SET status = ?, updated_at = ? WHERE id = ? AND status = ?`,
		string(status),
		now,
		id,
		string(domain.ReservationStatusReserved),
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (r *repo) ListOpenReservations(ctx context.Context, db *gorm.DB, poolID snowflake.ID) ([]domain.CreditReservation, error) {
	var reservations []domain.CreditReservation
	err := db.WithContext(ctx).Raw(
		`SELECT `+reservationColumns+` FROM credit_reservations
		 WHERE pool_id = ? AND status = ?
		 ORDER BY created_at ASC, id ASC`,
		poolID,
		string(domain.ReservationStatusReserved),
	).Scan(&reservations).Error
	if err != nil {
		return nil, err
	}
	return reservations, nil
}

func (r *repo) ShrinkReservation(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to int64, now time.Time) (bool, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE credit_reservations SET amount = ?, updated_at = ? WHERE id = ? AND status = ? AND amount = ?`,
		to,
		now,
		id,
		string(domain.ReservationStatusReserved),
		from,
	)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}
