// internal/handlers/subscription/subscription_handler.go
package subscription

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nftsub-service/internal/domain/subscription"
	"nftsub-service/internal/handlers"
	"nftsub-service/internal/middleware"
	"nftsub-service/internal/pkg/response"
	service "nftsub-service/internal/service/subscription"
)

type SubscriptionHandler struct {
	engine *service.Engine
}

func NewSubscriptionHandler(engine *service.Engine) *SubscriptionHandler {
	return &SubscriptionHandler{engine: engine}
}

// Subscribe mints a new subscription for the caller.
func (h *SubscriptionHandler) Subscribe(c *gin.Context) {
	var req subscription.SubscribeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	res, err := h.engine.Subscribe(c.Request.Context(), middleware.MustGetAccount(c), req.PlanID, req.Duration)
	if err != nil {
		response.FromError(c, "failed to subscribe", err)
		return
	}

	response.Success(c, http.StatusCreated, "subscription created", res)
}

// GetSubscription returns the details, owner and status of a token.
func (h *SubscriptionHandler) GetSubscription(c *gin.Context) {
	tokenID, err := handlers.ParseUintParam(c, "tokenId")
	if err != nil {
		response.FromError(c, "invalid token ID", err)
		return
	}

	view, err := h.engine.View(c.Request.Context(), tokenID)
	if err != nil {
		response.FromError(c, "subscription not found", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription retrieved", view)
}

// GetUserSubscriptions lists every token minted to an account, cancelled ones included.
func (h *SubscriptionHandler) GetUserSubscriptions(c *gin.Context) {
	owner, err := handlers.ParseAccountParam(c, "address")
	if err != nil {
		response.FromError(c, "invalid address", err)
		return
	}

	views, err := h.engine.UserViews(c.Request.Context(), owner)
	if err != nil {
		response.FromError(c, "failed to list subscriptions", err)
		return
	}

	ids := make([]uint64, len(views))
	for i, v := range views {
		ids[i] = v.TokenID
	}
	response.Success(c, http.StatusOK, "subscriptions retrieved", gin.H{
		"owner":         owner,
		"token_ids":     ids,
		"subscriptions": views,
	})
}

func (h *SubscriptionHandler) Renew(c *gin.Context) {
	tokenID, err := handlers.ParseUintParam(c, "tokenId")
	if err != nil {
		response.FromError(c, "invalid token ID", err)
		return
	}

	res, err := h.engine.RenewSubscription(c.Request.Context(), middleware.MustGetAccount(c), tokenID)
	if err != nil {
		response.FromError(c, "failed to renew subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription renewed", res)
}

func (h *SubscriptionHandler) Cancel(c *gin.Context) {
	tokenID, err := handlers.ParseUintParam(c, "tokenId")
	if err != nil {
		response.FromError(c, "invalid token ID", err)
		return
	}

	res, err := h.engine.CancelSubscription(c.Request.Context(), middleware.MustGetAccount(c), tokenID)
	if err != nil {
		response.FromError(c, "failed to cancel subscription", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription cancelled", res)
}

func (h *SubscriptionHandler) ToggleAutoRenewal(c *gin.Context) {
	tokenID, err := handlers.ParseUintParam(c, "tokenId")
	if err != nil {
		response.FromError(c, "invalid token ID", err)
		return
	}

	res, err := h.engine.ToggleAutoRenewal(c.Request.Context(), middleware.MustGetAccount(c), tokenID)
	if err != nil {
		response.FromError(c, "failed to toggle auto-renewal", err)
		return
	}

	response.Success(c, http.StatusOK, "auto-renewal updated", res)
}

// ProcessRenewal lets any authenticated keeper trigger a due auto-renewal.
func (h *SubscriptionHandler) ProcessRenewal(c *gin.Context) {
	tokenID, err := handlers.ParseUintParam(c, "tokenId")
	if err != nil {
		response.FromError(c, "invalid token ID", err)
		return
	}

	res, err := h.engine.ProcessAutoRenewal(c.Request.Context(), middleware.MustGetAccount(c), tokenID)
	if err != nil {
		response.FromError(c, "failed to process auto-renewal", err)
		return
	}

	response.Success(c, http.StatusOK, "subscription auto-renewed", res)
}
