package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/gosimple/slug"
	"github.com/smallbiznis/creditledger/internal/cache"
	"github.com/smallbiznis/creditledger/internal/clock"
	"github.com/smallbiznis/creditledger/internal/config"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	"github.com/smallbiznis/creditledger/internal/quota/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// rateWindow is the decay constant of the requests-per-minute estimate.
const rateWindow = 60 * time.Second

type Params struct {
	fx.In

	DB            *gorm.DB
	Log           *zap.Logger
	Repo          domain.Repository
	Clock         clock.Clock                `optional:"true"`
	Tunables      *config.LedgerConfigHolder `optional:"true"`
	Grants        cache.QuotaGrantCache      `optional:"true"`
	ObsMetrics    *obsmetrics.Metrics        `optional:"true"`
	LedgerMetrics *obsmetrics.LedgerMetrics  `optional:"true"`
}

type Service struct {
	db            *gorm.DB
	log           *zap.Logger
	repo          domain.Repository
	clock         clock.Clock
	grants        cache.QuotaGrantCache
	obsMetrics    *obsmetrics.Metrics
	ledgerMetrics *obsmetrics.LedgerMetrics
}

func New(p Params) domain.Service {
	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}
	grants := p.Grants
	if grants == nil {
		tunables := p.Tunables
		grants = cache.NewReloadingQuotaGrantCache(func() time.Duration {
			if tunables == nil {
				return 0
			}
			return tunables.Get().QuotaCacheTTL
		})
	}
	return &Service{
		db:            p.DB,
		log:           p.Log.Named("quota.service"),
		repo:          p.Repo,
		clock:         clk,
		grants:        grants,
		obsMetrics:    p.ObsMetrics,
		ledgerMetrics: p.LedgerMetrics,
	}
}

func (s *Service) UpsertAllocation(ctx context.Context, req domain.UpsertAllocationRequest) (domain.ApiQuotaAllocation, error) {
	serviceID, userID, err := normalizePair(req.ServiceID, req.UserID)
	if err != nil {
		return domain.ApiQuotaAllocation{}, err
	}
	if req.DailyQuota < 0 {
		return domain.ApiQuotaAllocation{}, domain.ErrInvalidQuota
	}
	if req.QueriesPerSecond <= 0 || math.IsNaN(req.QueriesPerSecond) || math.IsInf(req.QueriesPerSecond, 0) {
		return domain.ApiQuotaAllocation{}, domain.ErrInvalidQuota
	}

	now := s.clock.Now()
	allocation := &domain.ApiQuotaAllocation{
		ServiceID:        serviceID,
		UserID:           userID,
		DailyQuota:       req.DailyQuota,
		QueriesPerSecond: req.QueriesPerSecond,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.UpsertAllocation(ctx, s.db, allocation); err != nil {
		return domain.ApiQuotaAllocation{}, fmt.Errorf("upsert api quota: %w", err)
	}
	s.grants.Invalidate(serviceID, userID)

	stored, err := s.repo.FindAllocation(ctx, s.db, serviceID, userID)
	if err != nil {
		return domain.ApiQuotaAllocation{}, fmt.Errorf("load api quota: %w", err)
	}
	if stored == nil {
		return domain.ApiQuotaAllocation{}, domain.ErrNotFound
	}

	s.log.Info("api quota granted",
		zap.String("service_id", serviceID),
		zap.String("user_id", userID),
		zap.Int64("daily_quota", stored.DailyQuota),
		zap.Float64("queries_per_second", stored.QueriesPerSecond),
	)
	return *stored, nil
}

func (s *Service) CheckQuota(ctx context.Context, serviceID, userID string) (domain.QuotaSnapshot, error) {
	serviceID, userID, err := normalizePair(serviceID, userID)
	if err != nil {
		return domain.QuotaSnapshot{}, err
	}

	grant, err := s.grant(ctx, serviceID, userID)
	if err != nil {
		return domain.QuotaSnapshot{}, err
	}
	usage, err := s.repo.FindUsage(ctx, s.db, serviceID, userID)
	if err != nil {
		return domain.QuotaSnapshot{}, fmt.Errorf("load api usage: %w", err)
	}

	var current int64
	if usage != nil {
		current = usage.DailyUsage
	}
	snapshot := domain.QuotaSnapshot{
		ServiceID:        serviceID,
		UserID:           userID,
		CanProceed:       current < grant.DailyQuota,
		CurrentUsage:     current,
		DailyQuota:       grant.DailyQuota,
		QueriesPerSecond: grant.QueriesPerSecond,
	}

	s.obsMetrics.RecordQuotaCheck(ctx, serviceID, snapshot.CanProceed)
	if !snapshot.CanProceed {
		s.ledgerMetrics.IncQuotaBlocked(serviceID)
	}
	return snapshot, nil
}

func (s *Service) TrackUsage(ctx context.Context, req domain.TrackUsageRequest) (domain.ApiUsageTracking, error) {
	serviceID, userID, err := normalizePair(req.ServiceID, req.UserID)
	if err != nil {
		return domain.ApiUsageTracking{}, err
	}
	if req.RequestCount < 1 {
		return domain.ApiUsageTracking{}, domain.ErrInvalidRequestCount
	}

	var usage domain.ApiUsageTracking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tracked, err := s.track(ctx, tx, serviceID, userID, req)
		if err != nil {
			return err
		}
		usage = tracked
		return nil
	})
	if err != nil {
		return domain.ApiUsageTracking{}, err
	}

	s.obsMetrics.RecordUsageTracked(ctx, serviceID, req.RequestCount)
	return usage, nil
}

func (s *Service) ConsumeQuota(ctx context.Context, req domain.TrackUsageRequest) (domain.ApiUsageTracking, error) {
	serviceID, userID, err := normalizePair(req.ServiceID, req.UserID)
	if err != nil {
		return domain.ApiUsageTracking{}, err
	}
	if req.RequestCount < 1 {
		return domain.ApiUsageTracking{}, domain.ErrInvalidRequestCount
	}

	var usage domain.ApiUsageTracking
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		allocation, err := s.repo.FindAllocation(ctx, tx, serviceID, userID)
		if err != nil {
			return fmt.Errorf("load api quota: %w", err)
		}
		if allocation == nil {
			return domain.ErrNotFound
		}
		current, err := s.repo.FindUsage(ctx, tx, serviceID, userID)
		if err != nil {
			return fmt.Errorf("load api usage: %w", err)
		}
		var used int64
		if current != nil {
			used = current.DailyUsage
		}
		if used >= allocation.DailyQuota {
			return domain.ErrInsufficientQuota
		}

		tracked, err := s.track(ctx, tx, serviceID, userID, req)
		if err != nil {
			return err
		}
		usage = tracked
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientQuota) {
			s.ledgerMetrics.IncQuotaBlocked(serviceID)
			s.obsMetrics.RecordQuotaCheck(ctx, serviceID, false)
		}
		return domain.ApiUsageTracking{}, err
	}

	s.obsMetrics.RecordQuotaCheck(ctx, serviceID, true)
	s.obsMetrics.RecordUsageTracked(ctx, serviceID, req.RequestCount)
	return usage, nil
}

func (s *Service) ResetUsage(ctx context.Context, serviceID, userID string) error {
	serviceID, userID, err := normalizePair(serviceID, userID)
	if err != nil {
		return err
	}

	updated, err := s.repo.ResetUsage(ctx, s.db, serviceID, userID, s.clock.Now())
	if err != nil {
		return fmt.Errorf("reset api usage: %w", err)
	}
	if !updated {
		allocation, err := s.repo.FindAllocation(ctx, s.db, serviceID, userID)
		if err != nil {
			return fmt.Errorf("load api quota: %w", err)
		}
		if allocation == nil {
			return domain.ErrNotFound
		}
	}

	s.log.Info("api usage reset", zap.String("service_id", serviceID), zap.String("user_id", userID))
	return nil
}

func (s *Service) GetUsageStats(ctx context.Context, req domain.UsageStatsRequest) (domain.UsageStats, error) {
	serviceID, userID, err := normalizePair(req.ServiceID, req.UserID)
	if err != nil {
		return domain.UsageStats{}, err
	}
	if req.StartDate.IsZero() || req.EndDate.IsZero() {
		return domain.UsageStats{}, domain.ErrInvalidDateRange
	}
	start := truncateDay(req.StartDate)
	end := truncateDay(req.EndDate)
	if end.Before(start) {
		return domain.UsageStats{}, domain.ErrInvalidDateRange
	}

	rows, err := s.repo.ListDaily(ctx, s.db, serviceID, userID, domain.UsageDate(start), domain.UsageDate(end))
	if err != nil {
		return domain.UsageStats{}, fmt.Errorf("list api usage: %w", err)
	}

	stats := domain.UsageStats{ByDay: make([]domain.DailyUsage, 0, len(rows))}
	for _, row := range rows {
		stats.TotalRequests += row.RequestCount
		if row.RequestCount > stats.PeakUsage {
			stats.PeakUsage = row.RequestCount
		}
		stats.ByDay = append(stats.ByDay, domain.DailyUsage{Date: row.UsageDate, Requests: row.RequestCount})
	}
	if stats.TotalRequests > 0 {
		days := int64(end.Sub(start)/(24*time.Hour)) + 1
		stats.DailyAverage = float64(stats.TotalRequests) / float64(days)
	}
	return stats, nil
}

func (s *Service) grant(ctx context.Context, serviceID, userID string) (cache.QuotaGrant, error) {
	if grant, ok := s.grants.Get(serviceID, userID); ok {
		return grant, nil
	}
	allocation, err := s.repo.FindAllocation(ctx, s.db, serviceID, userID)
	if err != nil {
		return cache.QuotaGrant{}, fmt.Errorf("load api quota: %w", err)
	}
	if allocation == nil {
		return cache.QuotaGrant{}, domain.ErrNotFound
	}
	grant := cache.QuotaGrant{DailyQuota: allocation.DailyQuota, QueriesPerSecond: allocation.QueriesPerSecond}
	s.grants.Set(serviceID, userID, grant)
	return grant, nil
}

func (s *Service) track(ctx context.Context, tx *gorm.DB, serviceID, userID string, req domain.TrackUsageRequest) (domain.ApiUsageTracking, error) {
	now := s.clock.Now()
	previous, err := s.repo.FindUsage(ctx, tx, serviceID, userID)
	if err != nil {
		return domain.ApiUsageTracking{}, fmt.Errorf("load api usage: %w", err)
	}

	usage := &domain.ApiUsageTracking{
		ServiceID:     serviceID,
		UserID:        userID,
		LastRequestAt: &now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if req.Metadata != nil {
		usage.Metadata = datatypes.JSONMap(req.Metadata)
	}
	if previous != nil {
		usage.RequestsPerMinute = decayedRate(previous.RequestsPerMinute, previous.LastRequestAt, now, req.RequestCount)
	} else {
		usage.RequestsPerMinute = float64(req.RequestCount)
	}

	if err := s.repo.IncrementUsage(ctx, tx, usage, req.RequestCount); err != nil {
		return domain.ApiUsageTracking{}, fmt.Errorf("track api usage: %w", err)
	}
	if err := s.repo.IncrementDaily(ctx, tx, serviceID, userID, domain.UsageDate(now), req.RequestCount, now); err != nil {
		return domain.ApiUsageTracking{}, fmt.Errorf("track daily api usage: %w", err)
	}

	stored, err := s.repo.FindUsage(ctx, tx, serviceID, userID)
	if err != nil {
		return domain.ApiUsageTracking{}, fmt.Errorf("load api usage: %w", err)
	}
	if stored == nil {
		return domain.ApiUsageTracking{}, domain.ErrNotFound
	}
	return *stored, nil
}

// decayedRate folds count into a requests-per-minute estimate that decays
// exponentially with the time since the previous request.
func decayedRate(previous float64, last *time.Time, now time.Time, count int64) float64 {
	if last == nil || previous <= 0 {
		return float64(count)
	}
	elapsed := now.Sub(*last)
	if elapsed < 0 {
		elapsed = 0
	}
	return previous*math.Exp(-elapsed.Seconds()/rateWindow.Seconds()) + float64(count)
}

func normalizePair(serviceID, userID string) (string, string, error) {
	service := slug.Make(strings.TrimSpace(serviceID))
	if service == "" {
		return "", "", domain.ErrInvalidService
	}
	user := strings.TrimSpace(userID)
	if user == "" {
		return "", "", domain.ErrInvalidUser
	}
	return service, user, nil
}

func truncateDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
