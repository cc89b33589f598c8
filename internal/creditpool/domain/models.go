package domain

import (
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
)

type OwnerType string

const (
	OwnerTypeUser         OwnerType = "user"
	OwnerTypeOrganization OwnerType = "organization"
)

func ParseOwnerType(value string) (OwnerType, error) {
	switch OwnerType(strings.ToLower(strings.TrimSpace(value))) {
	case OwnerTypeUser:
		return OwnerTypeUser, nil
	case OwnerTypeOrganization, "org":
		return OwnerTypeOrganization, nil
	default:
		return "", ErrInvalidOwnerType
	}
}

// Owner identifies who a pool belongs to. Exactly one pool exists per owner.
type Owner struct {
	Type OwnerType `json:"owner_type"`
	ID   string    `json:"owner_id"`
}

func NewOwner(ownerType, ownerID string) (Owner, error) {
	t, err := ParseOwnerType(ownerType)
	if err != nil {
		return Owner{}, err
	}
	id := strings.TrimSpace(ownerID)
	if id == "" {
		return Owner{}, ErrInvalidOwner
	}
	return Owner{Type: t, ID: id}, nil
}

// Source is where credits came from.
type Source string

const (
	SourceSubscription Source = "subscription"
	SourcePurchase     Source = "purchase"
	SourceBonus        Source = "bonus"
)

func ParseSource(value string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(value))) {
	case SourceSubscription:
		return SourceSubscription, nil
	case SourcePurchase:
		return SourcePurchase, nil
	case SourceBonus:
		return SourceBonus, nil
	default:
		return "", ErrInvalidSource
	}
}

// CreditPool is an owner-scoped balance. Version is bumped on every mutation and
// guards the compare-and-swap update.
type CreditPool struct {
	ID              snowflake.ID `gorm:"primaryKey" json:"id"`
	OwnerType       OwnerType    `gorm:"type:varchar(32);not null;uniqueIndex:ux_credit_pools_owner,priority:1" json:"owner_type"`
	OwnerID         string       `gorm:"type:varchar(191);not null;uniqueIndex:ux_credit_pools_owner,priority:2" json:"owner_id"`
	TotalCredits    int64        `gorm:"not null;default:0" json:"total_credits"`
	ReservedCredits int64        `gorm:"not null;default:0" json:"reserved_credits"`
	Source          Source       `gorm:"type:text;not null" json:"source"`
	ExpiresAt       *time.Time   `json:"expires_at,omitempty"`
	Version         int64        `gorm:"not null;default:0" json:"version"`
	CreatedAt       time.Time    `gorm:"not null" json:"created_at"`
	UpdatedAt       time.Time    `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (CreditPool) TableName() string { return "credit_pools" }

func (p CreditPool) Owner() Owner {
	return Owner{Type: p.OwnerType, ID: p.OwnerID}
}

func (p CreditPool) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// Available is the unreserved balance. Expired pools have nothing available.
func (p CreditPool) Available(now time.Time) int64 {
	if p.Expired(now) {
		return 0
	}
	available := p.TotalCredits - p.ReservedCredits
	if available < 0 {
		return 0
	}
	return available
}

type ReservationStatus string

const (
	ReservationStatusReserved  ReservationStatus = "reserved"
	ReservationStatusCommitted ReservationStatus = "committed"
	ReservationStatusReleased  ReservationStatus = "released"
)

func (s ReservationStatus) Terminal() bool {
	return s == ReservationStatusCommitted || s == ReservationStatusReleased
}

// CreditReservation tracks one hold against a pool until it is committed or released.
type CreditReservation struct {
	ID          snowflake.ID      `gorm:"primaryKey" json:"id"`
	PoolID      snowflake.ID      `gorm:"not null;index" json:"pool_id"`
	ProjectID   *string           `gorm:"type:varchar(191);index" json:"project_id,omitempty"`
	Amount      int64             `gorm:"not null" json:"amount"`
	Status      ReservationStatus `gorm:"type:varchar(16);not null;index" json:"status"`
	Description string            `gorm:"type:text;not null;default:''" json:"description"`
	CreatedAt   time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time         `gorm:"not null" json:"updated_at"`
}

// TableName sets the database table name.
func (CreditReservation) TableName() string { return "credit_reservations" }
