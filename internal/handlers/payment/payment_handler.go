// internal/handlers/payment/payment_handler.go
package payment

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nftsub-service/internal/domain/payment"
	"nftsub-service/internal/handlers"
	"nftsub-service/internal/middleware"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/pkg/response"
	service "nftsub-service/internal/service/payment"
)

type PaymentHandler struct {
	paymentService *service.PaymentService
}

func NewPaymentHandler(paymentService *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{paymentService: paymentService}
}

func (h *PaymentHandler) GetBalance(c *gin.Context) {
	acct, err := handlers.ParseAccountParam(c, "address")
	if err != nil {
		response.FromError(c, "invalid address", err)
		return
	}

	res, err := h.paymentService.BalanceOf(c.Request.Context(), acct)
	if err != nil {
		response.FromError(c, "failed to read balance", err)
		return
	}

	response.Success(c, http.StatusOK, "balance retrieved", res)
}

// GetAllowance returns what the contract account may draw from an address.
func (h *PaymentHandler) GetAllowance(c *gin.Context) {
	acct, err := handlers.ParseAccountParam(c, "address")
	if err != nil {
		response.FromError(c, "invalid address", err)
		return
	}

	res, err := h.paymentService.Allowance(c.Request.Context(), acct)
	if err != nil {
		response.FromError(c, "failed to read allowance", err)
		return
	}

	response.Success(c, http.StatusOK, "allowance retrieved", res)
}

// Approve sets the caller's allowance towards the contract account.
func (h *PaymentHandler) Approve(c *gin.Context) {
	var req payment.ApproveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	res, err := h.paymentService.Approve(c.Request.Context(), middleware.MustGetAccount(c), money.Amount(req.Amount))
	if err != nil {
		response.FromError(c, "failed to approve", err)
		return
	}

	response.Success(c, http.StatusOK, "allowance approved", res)
}

// Faucet mints test tokens to the caller.
func (h *PaymentHandler) Faucet(c *gin.Context) {
	res, err := h.paymentService.Faucet(c.Request.Context(), middleware.MustGetAccount(c))
	if err != nil {
		response.FromError(c, "faucet request failed", err)
		return
	}

	response.Success(c, http.StatusOK, "tokens minted", res)
}
