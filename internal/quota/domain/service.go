package domain

import (
	"context"
	"errors"
	"time"
)

type UpsertAllocationRequest struct {
	ServiceID        string  `json:"service_id"`
	UserID           string  `json:"user_id"`
	DailyQuota       int64   `json:"daily_quota"`
	QueriesPerSecond float64 `json:"queries_per_second"`
}

// QuotaSnapshot is the result of a quota check. CanProceed is false once
// CurrentUsage reaches DailyQuota.
type QuotaSnapshot struct {
	ServiceID        string  `json:"service_id"`
	UserID           string  `json:"user_id"`
	CanProceed       bool    `json:"can_proceed"`
	CurrentUsage     int64   `json:"current_usage"`
	DailyQuota       int64   `json:"daily_quota"`
	QueriesPerSecond float64 `json:"queries_per_second"`
}

type TrackUsageRequest struct {
	ServiceID    string         `json:"service_id"`
	UserID       string         `json:"user_id"`
	RequestCount int64          `json:"request_count"`
	Metadata     map[string]any `json:"metadata,omitempty"`
}

type UsageStatsRequest struct {
	ServiceID string
	UserID    string
	StartDate time.Time
	EndDate   time.Time
}

type DailyUsage struct {
	Date     string `json:"date"`
	Requests int64  `json:"requests"`
}

type UsageStats struct {
	TotalRequests int64        `json:"total_requests"`
	DailyAverage  float64      `json:"daily_average"`
	PeakUsage     int64        `json:"peak_usage"`
	ByDay         []DailyUsage `json:"by_day"`
}

type Service interface {
	UpsertAllocation(ctx context.Context, req UpsertAllocationRequest) (ApiQuotaAllocation, error)
	CheckQuota(ctx context.Context, serviceID, userID string) (QuotaSnapshot, error)
	TrackUsage(ctx context.Context, req TrackUsageRequest) (ApiUsageTracking, error)
	// ConsumeQuota checks and tracks in one transaction.
	ConsumeQuota(ctx context.Context, req TrackUsageRequest) (ApiUsageTracking, error)
	ResetUsage(ctx context.Context, serviceID, userID string) error
	GetUsageStats(ctx context.Context, req UsageStatsRequest) (UsageStats, error)
}

var (
	ErrInvalidService      = errors.New("invalid_service")
	ErrInvalidUser         = errors.New("invalid_user")
	ErrInvalidQuota        = errors.New("invalid_quota")
	ErrInvalidRequestCount = errors.New("invalid_request_count")
	ErrInvalidDateRange    = errors.New("invalid_date_range")
	ErrNotFound            = errors.New("quota_not_found")
	ErrInsufficientQuota   = errors.New("insufficient_quota")
)
