package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

func TestClassifyLedgerErrorReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: LedgerErrorReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: LedgerErrorReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: LedgerErrorReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: LedgerErrorReasonUniqueViolation},
		{name: "unknown", err: errors.New("boom"), want: LedgerErrorReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyLedgerErrorReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestLedgerMetricsCounters(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLedgerMetrics(registry, Config{ServiceName: "creditledger", Environment: "test"})

	m.IncReservation(ReservationOutcomeReserved)
	m.IncReservation(ReservationOutcomeReserved)
	m.IncReservation(ReservationOutcomeInsufficient)
	m.IncCASRetry("reserve")
	m.IncMutationError("reserve", &pgconn.PgError{Code: "40001"})
	m.ObserveMutation("reserve", 3*time.Millisecond)

	if got := testutil.ToFloat64(m.reservations.WithLabelValues(ReservationOutcomeReserved)); got != 2 {
		t.Fatalf("expected 2 reserved, got %v", got)
	}
	if got := testutil.ToFloat64(m.reservations.WithLabelValues(ReservationOutcomeInsufficient)); got != 1 {
		t.Fatalf("expected 1 insufficient, got %v", got)
	}
	if got := testutil.ToFloat64(m.casRetries.WithLabelValues("reserve")); got != 1 {
		t.Fatalf("expected 1 cas retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.mutationError.WithLabelValues("reserve", LedgerErrorReasonSerializationFailure)); got != 1 {
		t.Fatalf("expected 1 serialization failure, got %v", got)
	}
}

func TestLedgerMetricsReuseRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := NewLedgerMetrics(registry, Config{})
	second := NewLedgerMetrics(registry, Config{})

	first.IncQuotaBlocked("search")
	second.IncQuotaBlocked("search")

	if got := testutil.ToFloat64(first.quotaBlocked.WithLabelValues("search")); got != 2 {
		t.Fatalf("expected shared collector count 2, got %v", got)
	}
}

func TestNilLedgerMetricsAreSafe(t *testing.T) {
	var m *LedgerMetrics
	m.IncReservation(ReservationOutcomeReserved)
	m.IncCASRetry("reserve")
	m.ObserveMutation("reserve", time.Millisecond)
	m.IncMutationError("reserve", errors.New("x"))
}
