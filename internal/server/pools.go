package server

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	creditpooldomain "github.com/smallbiznis/creditledger/internal/creditpool/domain"
	ledgerdomain "github.com/smallbiznis/creditledger/internal/ledger/domain"
	obscontext "github.com/smallbiznis/creditledger/internal/observability/context"
)

type createPoolRequest struct {
	OwnerType string     `json:"owner_type"`
	OwnerID   string     `json:"owner_id"`
	Source    string     `json:"source"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type addCreditsRequest struct {
	Amount         int64          `json:"amount"`
	Source         string         `json:"source"`
	Description    string         `json:"description"`
	IdempotencyKey string         `json:"idempotency_key"`
	ExpiresAt      *time.Time     `json:"expires_at"`
	Metadata       map[string]any `json:"metadata"`
}

type reserveCreditsRequest struct {
	Amount      int64          `json:"amount"`
	Description string         `json:"description"`
	ProjectID   string         `json:"project_id"`
	Metadata    map[string]any `json:"metadata"`
}

type settleReservationRequest struct {
	Amount        int64          `json:"amount"`
	ReservationID string         `json:"reservation_id"`
	Description   string         `json:"description"`
	Metadata      map[string]any `json:"metadata"`
}

func (s *Server) CreatePool(c *gin.Context) {
	var req createPoolRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	owner, err := creditpooldomain.NewOwner(req.OwnerType, req.OwnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	c.Request = c.Request.WithContext(obscontext.WithOwner(c.Request.Context(), string(owner.Type), owner.ID))

	source, err := creditpooldomain.ParseSource(req.Source)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pool, err := s.poolSvc.CreatePool(c.Request.Context(), creditpooldomain.CreatePoolRequest{
		Owner:     owner,
		Source:    source,
		ExpiresAt: req.ExpiresAt,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("pool_id", pool.ID.String())
	c.JSON(http.StatusOK, gin.H{"data": pool})
}

func (s *Server) GetPool(c *gin.Context) {
	owner, err := creditpooldomain.NewOwner(c.Query("owner_type"), c.Query("owner_id"))
	if err != nil {
		AbortWithError(c, err)
		return
	}

	pool, err := s.poolSvc.GetPool(c.Request.Context(), owner)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pool})
}

func (s *Server) GetPoolByID(c *gin.Context) {
	poolID, ok := s.poolIDParam(c)
	if !ok {
		return
	}

	pool, err := s.poolSvc.GetPoolByID(c.Request.Context(), poolID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pool})
}

func (s *Server) AddCredits(c *gin.Context) {
	poolID, ok := s.poolIDParam(c)
	if !ok {
		return
	}

	var req addCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	source, err := creditpooldomain.ParseSource(req.Source)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	idempotencyKey := strings.TrimSpace(req.IdempotencyKey)
	if idempotencyKey == "" {
		idempotencyKey = strings.TrimSpace(c.GetHeader("Idempotency-Key"))
	}

	resp, err := s.poolSvc.AddCredits(c.Request.Context(), creditpooldomain.AddCreditsRequest{
		PoolID:         poolID,
		Amount:         req.Amount,
		Source:         source,
		Description:    strings.TrimSpace(req.Description),
		IdempotencyKey: idempotencyKey,
		ExpiresAt:      req.ExpiresAt,
		Metadata:       req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ReserveCredits(c *gin.Context) {
	poolID, ok := s.poolIDParam(c)
	if !ok {
		return
	}

	var req reserveCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.poolSvc.ReserveCredits(c.Request.Context(), creditpooldomain.ReserveCreditsRequest{
		PoolID:      poolID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		ProjectID:   parseOptionalString(req.ProjectID),
		Metadata:    req.Metadata,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) CommitReservation(c *gin.Context) {
	s.settleReservation(c, s.poolSvc.CommitReservation)
}

func (s *Server) ReleaseReservation(c *gin.Context) {
	s.settleReservation(c, s.poolSvc.ReleaseReservation)
}

func (s *Server) settleReservation(c *gin.Context, settle func(ctx context.Context, req creditpooldomain.SettleReservationRequest) (creditpooldomain.MutationResult, error)) {
	poolID, ok := s.poolIDParam(c)
	if !ok {
		return
	}

	var req settleReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	reservationID, err := parseOptionalSnowflakeID(req.ReservationID)
	if err != nil {
		AbortWithError(c, newValidationError("reservation_id", "invalid_reservation_id", "invalid reservation_id"))
		return
	}

	settleReq := creditpooldomain.SettleReservationRequest{
		PoolID:      poolID,
		Amount:      req.Amount,
		Description: strings.TrimSpace(req.Description),
		Metadata:    req.Metadata,
	}
	if reservationID != nil {
		settleReq.ReservationID = *reservationID
	}

	resp, err := settle(c.Request.Context(), settleReq)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) ListTransactions(c *gin.Context) {
	poolID, ok := s.poolIDParam(c)
	if !ok {
		return
	}

	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "invalid limit"))
		return
	}
	offset, err := parseOptionalInt(c.Query("offset"))
	if err != nil {
		AbortWithError(c, newValidationError("offset", "invalid_offset", "invalid offset"))
		return
	}

	req := ledgerdomain.ListTransactionsRequest{
		PoolID:    poolID,
		ProjectID: parseOptionalString(c.Query("project_id")),
	}
	if limit != nil {
		req.Limit = *limit
	}
	if offset != nil {
		req.Offset = *offset
	}

	resp, err := s.ledgerSvc.ListByPool(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) GetPoolSummary(c *gin.Context) {
	poolID, ok := s.poolIDParam(c)
	if !ok {
		return
	}

	ctx := c.Request.Context()
	pool, err := s.poolSvc.GetPoolByID(ctx, poolID)
	if err != nil {
		AbortWithError(c, err)
		return
	}
	summary, err := s.ledgerSvc.SumByPool(ctx, poolID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{
		"pool":    pool,
		"summary": summary,
	}})
}

func (s *Server) poolIDParam(c *gin.Context) (snowflake.ID, bool) {
	poolID, err := parseSnowflakeID(c.Param("id"))
	if err != nil {
		AbortWithError(c, creditpooldomain.ErrInvalidPool)
		return 0, false
	}
	c.Set("pool_id", poolID.String())
	return poolID, true
}
