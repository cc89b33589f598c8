package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	creditMutations  metric.Int64Counter
	creditAmount     metric.Int64Counter
	quotaChecks      metric.Int64Counter
	usageTracked     metric.Int64Counter
	rateLimitAllowed metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	if log != nil {
		log.Info("metrics initialized",
			zap.String("endpoint", cfg.ExporterEndpoint),
			zap.String("protocol", cfg.ExporterProtocol),
		)
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "creditledger"
	}
	meter := provider.Meter(name)

	creditMutations, err := meter.Int64Counter("creditledger_credit_mutations_total")
	if err != nil {
		return nil, err
	}
	creditAmount, err := meter.Int64Counter("creditledger_credit_amount_total")
	if err != nil {
		return nil, err
	}
	quotaChecks, err := meter.Int64Counter("creditledger_quota_checks_total")
	if err != nil {
		return nil, err
	}
	usageTracked, err := meter.Int64Counter("creditledger_api_usage_tracked_total")
	if err != nil {
		return nil, err
	}
	rateLimitAllowed, err := meter.Int64Counter("creditledger_rate_limit_allowed_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("creditledger_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		creditMutations:  creditMutations,
		creditAmount:     creditAmount,
		quotaChecks:      quotaChecks,
		usageTracked:     usageTracked,
		rateLimitAllowed: rateLimitAllowed,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordCreditMutation counts a committed pool mutation and the credits it moved.
func (m *Metrics) RecordCreditMutation(ctx context.Context, txType, source string, amount int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("tx_type", strings.TrimSpace(txType)),
		attribute.String("source", strings.TrimSpace(source)),
	)
	m.creditMutations.Add(ctx, 1, metric.WithAttributes(attrs...))
	if amount < 0 {
		amount = -amount
	}
	m.creditAmount.Add(ctx, amount, metric.WithAttributes(attrs...))
}

// RecordQuotaCheck counts quota checks by outcome.
func (m *Metrics) RecordQuotaCheck(ctx context.Context, serviceID string, allowed bool) {
	if m == nil {
		return
	}
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
	}
	attrs := FilterAttributes(
		attribute.String("service_id", strings.TrimSpace(serviceID)),
		attribute.String("outcome", outcome),
	)
	m.quotaChecks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordUsageTracked adds tracked API requests.
func (m *Metrics) RecordUsageTracked(ctx context.Context, serviceID string, count int64) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("service_id", strings.TrimSpace(serviceID)))
	m.usageTracked.Add(ctx, count, metric.WithAttributes(attrs...))
}

// RecordRateLimitAllowed increments rate limit allow counts.
func (m *Metrics) RecordRateLimitAllowed(ctx context.Context, endpoint string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("endpoint", strings.TrimSpace(endpoint)))
	m.rateLimitAllowed.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, endpoint, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("endpoint", strings.TrimSpace(endpoint)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

var allowedLabelKeys = map[attribute.Key]struct{}{
	"endpoint":    {},
	"status_code": {},
	"service_id":  {},
	"tx_type":     {},
	"source":      {},
	"outcome":     {},
	"reason":      {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
