// internal/domain/plan/dto.go
package plan

type CreatePlanRequest struct {
	Name        string `json:"name" binding:"required,max=255"`
	Price       uint64 `json:"price" binding:"required,min=1"`
	Description string `json:"description" binding:"max=2000"`
}

// PlanResponse carries the display price alongside the raw scaled amount.
type PlanResponse struct {
	*Plan
	PriceFormatted string `json:"price_formatted"`
	PeriodSeconds  uint64 `json:"period_seconds"`
}

func NewPlanResponse(p *Plan) PlanResponse {
	return PlanResponse{Plan: p, PriceFormatted: p.Price.String(), PeriodSeconds: p.PeriodSeconds()}
}

func NewPlanResponses(plans []Plan) []PlanResponse {
	out := make([]PlanResponse, 0, len(plans))
	for i := range plans {
		out = append(out, NewPlanResponse(&plans[i]))
	}
	return out
}

// Catalog is returned by the contracts endpoint.
type Catalog struct {
	ContractAccount string   `json:"contract_account"`
	AdminAccounts   []string `json:"admin_accounts"`
	RenewalPeriod   uint64   `json:"renewal_period_seconds"`
	PlanCount       int      `json:"plan_count"`
}
