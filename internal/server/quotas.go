package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	quotadomain "github.com/smallbiznis/creditledger/internal/quota/domain"
)

type upsertQuotaRequest struct {
	DailyQuota       int64   `json:"daily_quota"`
	QueriesPerSecond float64 `json:"queries_per_second"`
}

type trackUsageRequest struct {
	RequestCount *int64         `json:"request_count"`
	Metadata     map[string]any `json:"metadata"`
}

func (s *Server) UpsertQuota(c *gin.Context) {
	var req upsertQuotaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.quotaSvc.UpsertAllocation(c.Request.Context(), quotadomain.UpsertAllocationRequest{
		ServiceID:        c.Param("service_id"),
		UserID:           c.Param("user_id"),
		DailyQuota:       req.DailyQuota,
		QueriesPerSecond: req.QueriesPerSecond,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("service_id", resp.ServiceID)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CheckQuota(c *gin.Context) {
	resp, err := s.quotaSvc.CheckQuota(c.Request.Context(), c.Param("service_id"), c.Param("user_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("service_id", resp.ServiceID)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) TrackUsage(c *gin.Context) {
	req, ok := bindTrackUsage(c)
	if !ok {
		return
	}

	resp, err := s.quotaSvc.TrackUsage(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("service_id", resp.ServiceID)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ConsumeQuota(c *gin.Context) {
	req, ok := bindTrackUsage(c)
	if !ok {
		return
	}

	resp, err := s.quotaSvc.ConsumeQuota(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("service_id", resp.ServiceID)
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResetUsage(c *gin.Context) {
	if err := s.quotaSvc.ResetUsage(c.Request.Context(), c.Param("service_id"), c.Param("user_id")); err != nil {
		AbortWithError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (s *Server) GetUsageStats(c *gin.Context) {
	start, err := parseOptionalTime(c.Query("start"), false)
	if err != nil || start == nil {
		AbortWithError(c, newValidationError("start", "invalid_start", "invalid start"))
		return
	}
	end, err := parseOptionalTime(c.Query("end"), true)
	if err != nil || end == nil {
		AbortWithError(c, newValidationError("end", "invalid_end", "invalid end"))
		return
	}

	resp, err := s.quotaSvc.GetUsageStats(c.Request.Context(), quotadomain.UsageStatsRequest{
		ServiceID: c.Param("service_id"),
		UserID:    c.Param("user_id"),
		StartDate: *start,
		EndDate:   *end,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// bindTrackUsage reads an optional body; request_count defaults to 1.
func bindTrackUsage(c *gin.Context) (quotadomain.TrackUsageRequest, bool) {
	var body trackUsageRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&body); err != nil {
			AbortWithError(c, invalidRequestError())
			return quotadomain.TrackUsageRequest{}, false
		}
	}

	count := int64(1)
	if body.RequestCount != nil {
		count = *body.RequestCount
	}
	return quotadomain.TrackUsageRequest{
		ServiceID:    c.Param("service_id"),
		UserID:       c.Param("user_id"),
		RequestCount: count,
		Metadata:     body.Metadata,
	}, true
}
