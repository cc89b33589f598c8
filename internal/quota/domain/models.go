package domain

import (
	"time"

	"gorm.io/datatypes"
)

// UsageDateLayout is the layout of ApiUsageDaily.UsageDate.
const UsageDateLayout = "2006-01-02"

// ApiQuotaAllocation is the daily request ceiling and per-second rate ceiling granted
// to a user for one service.
type ApiQuotaAllocation struct {
	ServiceID        string    `gorm:"type:varchar(128);primaryKey" json:"service_id"`
	UserID           string    `gorm:"type:varchar(128);primaryKey" json:"user_id"`
	DailyQuota       int64     `gorm:"not null" json:"daily_quota"`
	QueriesPerSecond float64   `gorm:"not null" json:"queries_per_second"`
	CreatedAt        time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

func (ApiQuotaAllocation) TableName() string { return "api_quota_allocations" }

// ApiUsageTracking holds the running counters for a service/user pair.
// RequestsPerMinute is a decayed estimate, not an exact count.
type ApiUsageTracking struct {
	ServiceID         string            `gorm:"type:varchar(128);primaryKey" json:"service_id"`
	UserID            string            `gorm:"type:varchar(128);primaryKey" json:"user_id"`
	DailyUsage        int64             `gorm:"not null;default:0" json:"daily_usage"`
	LastRequestAt     *time.Time        `json:"last_request_at,omitempty"`
	RequestsPerMinute float64           `gorm:"not null;default:0" json:"requests_per_minute"`
	Metadata          datatypes.JSONMap `json:"metadata,omitempty"`
	CreatedAt         time.Time         `gorm:"not null" json:"created_at"`
	UpdatedAt         time.Time         `gorm:"not null" json:"updated_at"`
}

func (ApiUsageTracking) TableName() string { return "api_usage_tracking" }

// ApiUsageDaily is one calendar day (UTC) of tracked requests.
type ApiUsageDaily struct {
	ServiceID    string    `gorm:"type:varchar(128);primaryKey" json:"service_id"`
	UserID       string    `gorm:"type:varchar(128);primaryKey" json:"user_id"`
	UsageDate    string    `gorm:"type:varchar(10);primaryKey" json:"usage_date"`
	RequestCount int64     `gorm:"not null;default:0" json:"request_count"`
	CreatedAt    time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt    time.Time `gorm:"not null" json:"updated_at"`
}

func (ApiUsageDaily) TableName() string { return "api_usage_daily" }

// UsageDate formats t as the UTC calendar day it falls in.
func UsageDate(t time.Time) string {
	return t.UTC().Format(UsageDateLayout)
}
