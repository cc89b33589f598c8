package tracing

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/creditledger/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/baggage"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware opens a server span per request. Handlers publish the pool or
// quota service they touched through the gin keys "pool_id" and "service_id".
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("creditledger/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+strings.ToUpper(c.Request.Method), trace.WithSpanKind(trace.SpanKindServer))
		ctx = withRequestBaggage(ctx, obscontext.RequestIDFromContext(ctx))

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		if requestID := obscontext.RequestIDFromContext(ctx); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if poolID := strings.TrimSpace(c.GetString("pool_id")); poolID != "" {
			attrs = append(attrs, attribute.String("pool_id", poolID))
		}
		if serviceID := strings.TrimSpace(c.GetString("service_id")); serviceID != "" {
			attrs = append(attrs, attribute.String("service_id", serviceID))
		}
		span.SetName("HTTP " + strings.ToUpper(c.Request.Method) + " " + route)
		span.SetAttributes(SafeAttributes(attrs...)...)

		switch {
		case status == http.StatusPaymentRequired:
			span.AddEvent("ledger.credits_denied")
		case status == http.StatusTooManyRequests:
			span.AddEvent("ledger.quota_denied")
		case status >= http.StatusInternalServerError:
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, "request error")
		}
		span.End()
	}
}

func withRequestBaggage(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	member, err := baggage.NewMember("request_id", requestID)
	if err != nil {
		return ctx
	}
	bag, err := baggage.New(member)
	if err != nil {
		return ctx
	}
	return baggage.ContextWithBaggage(ctx, bag)
}
