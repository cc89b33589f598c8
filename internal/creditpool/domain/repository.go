package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, pool *CreditPool) error
	FindByID(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CreditPool, error)
	FindByOwner(ctx context.Context, db *gorm.DB, owner Owner) (*CreditPool, error)
	// CompareAndSwap persists balances and expiry when the stored version still equals
	// expectedVersion. It reports false when another writer got there first.
	CompareAndSwap(ctx context.Context, db *gorm.DB, pool *CreditPool, expectedVersion int64) (bool, error)

	InsertReservation(ctx context.Context, db *gorm.DB, reservation *CreditReservation) error
	FindReservation(ctx context.Context, db *gorm.DB, id snowflake.ID) (*CreditReservation, error)
	// FinalizeReservation moves a reserved hold to a terminal status. It reports false
	// when the reservation was no longer reserved.
	FinalizeReservation(ctx context.Context, db *gorm.DB, id snowflake.ID, status ReservationStatus, now time.Time) (bool, error)
	// ListOpenReservations returns the pool's reserved holds, oldest first.
	ListOpenReservations(ctx context.Context, db *gorm.DB, poolID snowflake.ID) ([]CreditReservation, error)
	// ShrinkReservation lowers an open hold from one amount to another. It reports false
	// when the hold was settled or resized in the meantime.
	ShrinkReservation(ctx context.Context, db *gorm.DB, id snowflake.ID, from, to int64, now time.Time) (bool, error)
}
