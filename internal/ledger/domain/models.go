package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

// TransactionType identifies which pool mutation produced a transaction.
type TransactionType string

const (
	TransactionTypeCredit  TransactionType = "credit"
	TransactionTypeReserve TransactionType = "reserve"
	TransactionTypeCommit  TransactionType = "commit"
	TransactionTypeRelease TransactionType = "release"
)

func (t TransactionType) Valid() bool {
	switch t {
	case TransactionTypeCredit, TransactionTypeReserve, TransactionTypeCommit, TransactionTypeRelease:
		return true
	default:
		return false
	}
}

// CreditTransaction is an immutable record of one pool mutation.
//
// Amount is the signed change of the pool's total credits, so reserve and release
// rows carry 0 and keep the reservation movement in ReservedDelta.
type CreditTransaction struct {
	ID             snowflake.ID      `gorm:"primaryKey" json:"id"`
	PoolID         snowflake.ID      `gorm:"not null;index:ix_credit_transactions_pool_created,priority:1;uniqueIndex:ux_credit_transactions_idempotency,priority:1" json:"pool_id"`
	ProjectID      *string           `gorm:"type:varchar(191);index" json:"project_id,omitempty"`
	Type           TransactionType   `gorm:"type:text;not null" json:"type"`
	Source         string            `gorm:"type:text;not null;default:''" json:"source,omitempty"`
	Amount         int64             `gorm:"not null" json:"amount"`
	ReservedDelta  int64             `gorm:"not null;default:0" json:"reserved_delta"`
	BalanceAfter   int64             `gorm:"not null" json:"balance_after"`
	ReservedAfter  int64             `gorm:"not null;default:0" json:"reserved_after"`
	ReservationID  *snowflake.ID     `gorm:"index" json:"reservation_id,omitempty"`
	IdempotencyKey *string           `gorm:"type:varchar(191);uniqueIndex:ux_credit_transactions_idempotency,priority:2" json:"idempotency_key,omitempty"`
	Description    string            `gorm:"type:text;not null;default:''" json:"description"`
	Metadata       datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt      time.Time         `gorm:"not null;index:ix_credit_transactions_pool_created,priority:2" json:"created_at"`
}

// TableName sets the database table name.
func (CreditTransaction) TableName() string { return "credit_transactions" }
