package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// CreditAllocation is a monthly project budget carved out of a parent pool. The pool
// reference is a back-reference only.
type CreditAllocation struct {
	ID           snowflake.ID `gorm:"primaryKey" json:"id"`
	PoolID       snowflake.ID `gorm:"not null;index" json:"pool_id"`
	ProjectID    string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_credit_allocations_project" json:"project_id"`
	MonthlyLimit int64        `gorm:"not null" json:"monthly_limit"`
	CurrentUsage int64        `gorm:"not null;default:0" json:"current_usage"`
	ResetAt      time.Time    `gorm:"not null" json:"reset_at"`
	CreatedAt    time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (CreditAllocation) TableName() string { return "credit_allocations" }

func (a CreditAllocation) Remaining() int64 {
	if a.CurrentUsage >= a.MonthlyLimit {
		return 0
	}
	return a.MonthlyLimit - a.CurrentUsage
}

// FirstOfNextMonth returns 00:00 UTC on the first day of the month after t.
func FirstOfNextMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, time.UTC)
}
