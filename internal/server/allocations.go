package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	allocationdomain "github.com/smallbiznis/creditledger/internal/allocation/domain"
	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
)

type allocateRequest struct {
	PoolID       string `json:"pool_id"`
	ProjectID    string `json:"project_id"`
	MonthlyLimit int64  `json:"monthly_limit"`
}

type recordProjectUsageRequest struct {
	Amount      int64          `json:"amount"`
	Description string         `json:"description"`
	Metadata    map[string]any `json:"metadata"`
}

func (s *Server) Allocate(c *gin.Context) {
	var req allocateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	poolID, err := parseSnowflakeID(req.PoolID)
	if err != nil {
		AbortWithError(c, creditpooldomain.ErrInvalidPool)
		return
	}

	resp, err := s.allocationSvc.Allocate(c.Request.Context(), allocationdomain.AllocateRequest{
		PoolID:       poolID,
		ProjectID:    strings.TrimSpace(req.ProjectID),
		MonthlyLimit: req.MonthlyLimit,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetAllocation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, allocationdomain.ErrInvalidAllocation)
		return
	}

	resp, err := s.allocationSvc.GetAllocation(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListAllocations(c *gin.Context) {
	poolID, ok := s.poolIDParam(c)
	if !ok {
		return
	}

	resp, err := s.allocationSvc.ListByPool(c.Request.Context(), poolID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ResetAllocation(c *gin.Context) {
	id, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, allocationdomain.ErrInvalidAllocation)
		return
	}

	resp, err := s.allocationSvc.ResetAllocation(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RecordProjectUsage(c *gin.Context) {
	var req recordProjectUsageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.allocationSvc.RecordProjectUsage(c.Request.Context(), allocationdomain.RecordUsageRequest{
		ProjectID:   strings.TrimSpace(c.Param("project_id")),
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
