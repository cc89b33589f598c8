package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("service_id", "search"),
		attribute.String("owner_id", "456"),
		attribute.String("tx_type", "reserve"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "owner_id" {
			t.Fatalf("expected owner_id to be dropped")
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordCreditMutation(context.Background(), "credit", "purchase", 10)
	m.RecordQuotaCheck(context.Background(), "search", false)
	m.RecordUsageTracked(context.Background(), "search", 3)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "creditledger-test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordCreditMutation(context.Background(), "commit", "", -25)
	m.RecordRateLimitDenied(context.Background(), "/v1/pools/:id/reservations", "api-rate")
}
