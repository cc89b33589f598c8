package server

import (
	"context"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/creditledger/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/creditledger/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	HeaderClientID = "X-Client-ID"

	rateLimitReasonClientRate = "client-rate"
)

// APIRateLimit throttles callers per client key. Requests pass untouched when the
// limiter is disabled.
func (s *Server) APIRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.apiLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		endpoint := normalizeRateLimitEndpoint(c)
		clientKey := strings.TrimSpace(c.GetHeader(HeaderClientID))
		if clientKey == "" {
			clientKey = c.ClientIP()
		}

		result, err := s.apiLimiter.AllowClient(ctx, clientKey)
		if err != nil {
			// Fail open: the ledger's own checks still hold without the limiter.
			logger.FromContext(ctx).Warn("api rate limit check failed", zap.Error(err))
			c.Next()
			return
		}
		if !result.Allowed {
			logger.FromContext(ctx).Warn("api rate limit exceeded",
				zap.String("reason", rateLimitReasonClientRate),
				zap.String("endpoint", endpoint),
			)
			recordRateLimitDenied(ctx, endpoint, rateLimitReasonClientRate, s.obsMetrics)

			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			c.Header("X-Rate-Limited-Reason", rateLimitReasonClientRate)
			AbortWithError(c, ErrRateLimited)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(result.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
		recordRateLimitAllowed(ctx, endpoint, s.obsMetrics)
		c.Next()
	}
}

func recordRateLimitAllowed(ctx context.Context, endpoint string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitAllowed(ctx, endpoint)
}

func recordRateLimitDenied(ctx context.Context, endpoint, reason string, metrics *obsmetrics.Metrics) {
	if metrics == nil {
		return
	}
	metrics.RecordRateLimitDenied(ctx, endpoint, reason)
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
