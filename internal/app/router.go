// internal/app/router.go
package app

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	authHandler "nftsub-service/internal/handlers/auth"
	paymentHandler "nftsub-service/internal/handlers/payment"
	planHandler "nftsub-service/internal/handlers/plan"
	subscriptionHandler "nftsub-service/internal/handlers/subscription"
	systemHandler "nftsub-service/internal/handlers/system"
	wsHandler "nftsub-service/internal/handlers/websocket"
	"nftsub-service/internal/middleware"
)

type Handlers struct {
	AuthHandler         *authHandler.AuthHandler
	PlanHandler         *planHandler.PlanHandler
	SubscriptionHandler *subscriptionHandler.SubscriptionHandler
	PaymentHandler      *paymentHandler.PaymentHandler
	SystemHandler       *systemHandler.SystemHandler
	WSHandler           *wsHandler.WebSocketHandler
	AuthMiddleware      *middleware.AuthMiddleware
}

func SetupRouter(r *gin.Engine, logger *zap.Logger, h *Handlers) {
	api := r.Group("/api/v1")

	// ==================== Health & Metadata ====================
	api.GET("/health", h.SystemHandler.Health)
	api.GET("/contracts", h.SystemHandler.Contracts)

	// ==================== Session ====================
	auth := api.Group("/auth")
	auth.Use(h.AuthMiddleware.Auth())
	{
		auth.GET("/me", h.AuthHandler.GetMe)
		auth.POST("/logout", h.AuthHandler.Logout)
	}

	// ==================== WebSocket ====================
	r.GET("/ws", h.WSHandler.HandleConnection)

	// ==================== Plans (public) ====================
	plans := api.Group("/plans")
	{
		plans.GET("", h.PlanHandler.ListPlans)
		plans.GET("/:id", h.PlanHandler.GetPlan)
	}

	// ==================== Subscriptions ====================
	subsPublic := api.Group("/subscriptions")
	{
		subsPublic.GET("/user/:address", h.SubscriptionHandler.GetUserSubscriptions)
		subsPublic.GET("/:tokenId", h.SubscriptionHandler.GetSubscription)
	}

	subs := api.Group("/subscriptions")
	subs.Use(h.AuthMiddleware.Auth())
	{
		subs.POST("", h.SubscriptionHandler.Subscribe)
		subs.POST("/:tokenId/renew", h.SubscriptionHandler.Renew)
		subs.POST("/:tokenId/cancel", h.SubscriptionHandler.Cancel)
		subs.POST("/:tokenId/auto-renewal", h.SubscriptionHandler.ToggleAutoRenewal)
		subs.POST("/:tokenId/process-renewal", h.SubscriptionHandler.ProcessRenewal)
	}

	// ==================== Payments ====================
	paymentsPublic := api.Group("/payments")
	{
		paymentsPublic.GET("/balance/:address", h.PaymentHandler.GetBalance)
		paymentsPublic.GET("/allowance/:address", h.PaymentHandler.GetAllowance)
	}

	payments := api.Group("/payments")
	payments.Use(h.AuthMiddleware.Auth())
	{
		payments.POST("/approve", h.PaymentHandler.Approve)
		payments.POST("/faucet", h.PaymentHandler.Faucet)
	}

	// ==================== Admin ====================
	admin := api.Group("/admin")
	admin.Use(h.AuthMiddleware.AdminOnly()...)
	{
		admin.POST("/plans", h.PlanHandler.CreatePlan)
		admin.PUT("/plans/:id/activate", h.PlanHandler.ActivatePlan)
		admin.PUT("/plans/:id/deactivate", h.PlanHandler.DeactivatePlan)
		admin.GET("/events", h.SystemHandler.Events)
		admin.GET("/ws/stats", h.WSHandler.GetStats)
	}

	logger.Info("routes registered", zap.Int("count", len(r.Routes())))
}
