package metrics

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ReservationOutcomeReserved     = "reserved"
	ReservationOutcomeInsufficient = "insufficient_credits"
	ReservationOutcomeConflict     = "concurrency_conflict"
	ReservationOutcomeError        = "error"
)

const (
	LedgerErrorReasonDeadlineExceeded     = "deadline_exceeded"
	LedgerErrorReasonDBLockTimeout        = "db_lock_timeout"
	LedgerErrorReasonSerializationFailure = "serialization_failure"
	LedgerErrorReasonUniqueViolation      = "unique_violation"
	LedgerErrorReasonUnknown              = "unknown"
)

// LedgerMetrics captures pool contention and reservation health.
type LedgerMetrics struct {
	reservations  *prometheus.CounterVec
	casRetries    *prometheus.CounterVec
	mutationTime  *prometheus.HistogramVec
	mutationError *prometheus.CounterVec
	quotaBlocked  *prometheus.CounterVec
}

var (
	ledgerMetricsOnce sync.Once
	ledgerMetrics     *LedgerMetrics
)

// Ledger returns the process-wide ledger metrics registered on the default registerer.
func Ledger() *LedgerMetrics {
	return LedgerWithConfig(Config{})
}

// LedgerWithConfig returns the singleton using config labels.
func LedgerWithConfig(cfg Config) *LedgerMetrics {
	ledgerMetricsOnce.Do(func() {
		ledgerMetrics = NewLedgerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return ledgerMetrics
}

// ResetLedgerMetricsForTest resets the ledger metrics singleton for tests.
func ResetLedgerMetricsForTest() {
	ledgerMetricsOnce = sync.Once{}
	ledgerMetrics = nil
}

func NewLedgerMetrics(registerer prometheus.Registerer, cfg Config) *LedgerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "creditledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	reservations := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_reservations_total",
		Help:        "Credit reservation attempts by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	casRetries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_pool_cas_retries_total",
		Help:        "Optimistic pool version conflicts that forced a retry.",
		ConstLabels: constLabels,
	}, []string{"operation"})
	mutationTime := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditledger_pool_mutation_duration_seconds",
		Help:        "Latency of pool mutations including retries.",
		Buckets:     []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		ConstLabels: constLabels,
	}, []string{"operation"})
	mutationError := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_pool_mutation_errors_total",
		Help:        "Pool mutation persistence errors by reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	quotaBlocked := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_quota_blocked_total",
		Help:        "Quota checks that returned can_proceed=false.",
		ConstLabels: constLabels,
	}, []string{"service_id"})

	m := &LedgerMetrics{
		reservations:  reservations,
		casRetries:    casRetries,
		mutationTime:  mutationTime,
		mutationError: mutationError,
		quotaBlocked:  quotaBlocked,
	}
	m.reservations = registerCounterVec(registerer, reservations)
	m.casRetries = registerCounterVec(registerer, casRetries)
	m.mutationError = registerCounterVec(registerer, mutationError)
	m.quotaBlocked = registerCounterVec(registerer, quotaBlocked)
	if err := registerer.Register(mutationTime); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				m.mutationTime = existing
			}
		}
	}
	return m
}

func registerCounterVec(registerer prometheus.Registerer, vec *prometheus.CounterVec) *prometheus.CounterVec {
	if err := registerer.Register(vec); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing
			}
		}
	}
	return vec
}

func (m *LedgerMetrics) IncReservation(outcome string) {
	if m == nil || m.reservations == nil {
		return
	}
	m.reservations.WithLabelValues(outcome).Inc()
}

func (m *LedgerMetrics) IncCASRetry(operation string) {
	if m == nil || m.casRetries == nil {
		return
	}
	m.casRetries.WithLabelValues(operation).Inc()
}

func (m *LedgerMetrics) ObserveMutation(operation string, duration time.Duration) {
	if m == nil || m.mutationTime == nil {
		return
	}
	m.mutationTime.WithLabelValues(operation).Observe(duration.Seconds())
}

// IncMutationError records a persistence failure with a low-cardinality reason.
func (m *LedgerMetrics) IncMutationError(operation string, err error) {
	if m == nil || m.mutationError == nil || err == nil {
		return
	}
	m.mutationError.WithLabelValues(operation, ClassifyLedgerErrorReason(err)).Inc()
}

func (m *LedgerMetrics) IncQuotaBlocked(serviceID string) {
	if m == nil || m.quotaBlocked == nil {
		return
	}
	m.quotaBlocked.WithLabelValues(serviceID).Inc()
}

// ClassifyLedgerErrorReason maps persistence errors to low-cardinality reasons.
func ClassifyLedgerErrorReason(err error) string {
	if err == nil {
		return LedgerErrorReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return LedgerErrorReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return LedgerErrorReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return LedgerErrorReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return LedgerErrorReasonUniqueViolation
	}
	return LedgerErrorReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
