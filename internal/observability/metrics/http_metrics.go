package metrics

import (
	"errors"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// HTTPMetrics records request counts and latency per route template.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	return NewHTTPMetricsWithRegisterer(prometheus.DefaultRegisterer, cfg)
}

func NewHTTPMetricsWithRegisterer(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := prometheus.Labels{"service": defaultLabel(cfg.ServiceName, "creditledger")}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "creditledger_http_requests_total",
		Help:        "HTTP requests by route, method and status code.",
		ConstLabels: constLabels,
	}, []string{"route", "method", "status_code"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "creditledger_http_request_duration_seconds",
		Help:        "HTTP request latency by route.",
		Buckets:     prometheus.DefBuckets,
		ConstLabels: constLabels,
	}, []string{"route", "method"})

	m := &HTTPMetrics{requests: registerCounterVec(registerer, requests), latency: latency}
	if err := registerer.Register(latency); err != nil {
		var already prometheus.AlreadyRegisteredError
		if errors.As(err, &already) {
			if existing, ok := already.ExistingCollector.(*prometheus.HistogramVec); ok {
				m.latency = existing
			}
		}
	}
	return m
}

// GinMiddleware observes every request. Unmatched routes are grouped under "unmatched".
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		method := c.Request.Method
		m.requests.WithLabelValues(route, method, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(route, method).Observe(time.Since(start).Seconds())
	}
}

func defaultLabel(value, def string) string {
	if value == "" {
		return def
	}
	return value
}
