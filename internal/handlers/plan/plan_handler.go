// internal/handlers/plan/plan_handler.go
package plan

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"nftsub-service/internal/domain/plan"
	"nftsub-service/internal/handlers"
	"nftsub-service/internal/middleware"
	"nftsub-service/internal/pkg/response"
	service "nftsub-service/internal/service/plan"
)

type PlanHandler struct {
	planService *service.PlanService
}

func NewPlanHandler(planService *service.PlanService) *PlanHandler {
	return &PlanHandler{
		planService: planService,
	}
}

// ListPlans returns the whole catalog, inactive plans included.
func (h *PlanHandler) ListPlans(c *gin.Context) {
	plans, err := h.planService.GetAvailablePlans(c.Request.Context())
	if err != nil {
		response.FromError(c, "failed to list plans", err)
		return
	}

	response.Success(c, http.StatusOK, "plans retrieved", plan.NewPlanResponses(plans))
}

// GetPlan retrieves a single plan by ID
func (h *PlanHandler) GetPlan(c *gin.Context) {
	id, err := handlers.ParseUintParam(c, "id")
	if err != nil {
		response.FromError(c, "invalid plan ID", err)
		return
	}

	p, err := h.planService.GetPlan(c.Request.Context(), id)
	if err != nil {
		response.FromError(c, "plan not found", err)
		return
	}

	response.Success(c, http.StatusOK, "plan retrieved", plan.NewPlanResponse(p))
}

// ========== Admin Endpoints ==========

// CreatePlan adds a plan to the catalog
func (h *PlanHandler) CreatePlan(c *gin.Context) {
	var req plan.CreatePlanRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.ValidationError(c, "invalid request body", err)
		return
	}

	p, err := h.planService.CreatePlan(c.Request.Context(), middleware.MustGetAccount(c), &req)
	if err != nil {
		response.FromError(c, "failed to create plan", err)
		return
	}

	response.Success(c, http.StatusCreated, "plan created", plan.NewPlanResponse(p))
}

func (h *PlanHandler) ActivatePlan(c *gin.Context) {
	h.setActive(c, true)
}

func (h *PlanHandler) DeactivatePlan(c *gin.Context) {
	h.setActive(c, false)
}

func (h *PlanHandler) setActive(c *gin.Context, active bool) {
	id, err := handlers.ParseUintParam(c, "id")
	if err != nil {
		response.FromError(c, "invalid plan ID", err)
		return
	}

	p, err := h.planService.SetPlanActive(c.Request.Context(), middleware.MustGetAccount(c), id, active)
	if err != nil {
		response.FromError(c, "failed to update plan status", err)
		return
	}

	msg := "plan deactivated"
	if active {
		msg = "plan activated"
	}
	response.Success(c, http.StatusOK, msg, plan.NewPlanResponse(p))
}
