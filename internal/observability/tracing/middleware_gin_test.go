package tracing

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestGinMiddlewareRecordsLedgerAttributes(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() { otel.SetTracerProvider(previous) })

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/v1/pools/:id/reservations", func(c *gin.Context) {
		c.Set("pool_id", c.Param("id"))
		c.Set("owner_id", "org-secret")
		c.Status(http.StatusPaymentRequired)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/pools/42/reservations", nil))
	require.Equal(t, http.StatusPaymentRequired, rec.Code)

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	span := spans[0]
	assert.Equal(t, "HTTP POST /v1/pools/:id/reservations", span.Name())

	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range span.Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "42", attrs["pool_id"].AsString())
	assert.Equal(t, int64(http.StatusPaymentRequired), attrs["http.status_code"].AsInt64())
	_, leaked := attrs["owner_id"]
	assert.False(t, leaked)

	require.Len(t, span.Events(), 1)
	assert.Equal(t, "ledger.credits_denied", span.Events()[0].Name)
}
