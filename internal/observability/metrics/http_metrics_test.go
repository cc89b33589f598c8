package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestGinMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewHTTPMetricsWithRegisterer(prometheus.NewRegistry(), Config{})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/v1/pools/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/v1/pools/1", "/v1/pools/2", "/nope"} {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	assert.Equal(t, float64(2), testutil.ToFloat64(m.requests.WithLabelValues("/v1/pools/:id", "GET", "204")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.requests.WithLabelValues("unmatched", "GET", "404")))
}

func TestGinMiddlewareNilMetricsPassesThrough(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(GinMiddleware(nil))
	r.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
