package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	feederdomain "github.com/smallbiznis/creditledger/internal/feeder/domain"
	obscontext "github.com/smallbiznis/creditledger/internal/observability/context"
)

type allocateSubscriptionCreditsRequest struct {
	SubscriberType  string     `json:"subscriber_type"`
	SubscriberID    string     `json:"subscriber_id"`
	Credits         int64      `json:"credits"`
	BillingPeriodID string     `json:"billing_period_id"`
	ExpiresAt       *time.Time `json:"expires_at"`
	Description     string     `json:"description"`
}

func (s *Server) AllocateSubscriptionCredits(c *gin.Context) {
	var req allocateSubscriptionCreditsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	c.Request = c.Request.WithContext(obscontext.WithOwner(c.Request.Context(), req.SubscriberType, req.SubscriberID))

	resp, err := s.feederSvc.AllocateSubscriptionCredits(c.Request.Context(), feederdomain.AllocateSubscriptionCreditsRequest{
		SubscriberType:  strings.TrimSpace(req.SubscriberType),
		SubscriberID:    strings.TrimSpace(req.SubscriberID),
		Credits:         req.Credits,
		BillingPeriodID: strings.TrimSpace(req.BillingPeriodID),
		ExpiresAt:       req.ExpiresAt,
		Description:     strings.TrimSpace(req.Description),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("pool_id", resp.Pool.ID.String())
	c.JSON(http.StatusOK, gin.H{"data": resp})
}
