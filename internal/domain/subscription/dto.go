// internal/domain/subscription/dto.go
package subscription

import (
	"time"

	"nftsub-service/internal/pkg/money"
)

type SubscribeRequest struct {
	PlanID uint64 `json:"plan_id" binding:"required,min=1"`
	// Duration of the first access window, in seconds.
	Duration uint64 `json:"duration" binding:"required,min=1"`
}

type SubscribeResult struct {
	TokenID    uint64       `json:"token_id"`
	PlanID     uint64       `json:"plan_id"`
	Price      money.Amount `json:"price"`
	ExpiryDate int64        `json:"expiry_date"`
}

type RenewResult struct {
	TokenID    uint64       `json:"token_id"`
	Price      money.Amount `json:"price"`
	ExpiryDate int64        `json:"expiry_date"`
}

type CancelResult struct {
	TokenID uint64       `json:"token_id"`
	Refund  money.Amount `json:"refund"`
}

type ToggleResult struct {
	TokenID            uint64 `json:"token_id"`
	AutoRenewalEnabled bool   `json:"auto_renewal_enabled"`
}

// View combines a record with its computed status for API responses.
type View struct {
	TokenID uint64 `json:"token_id"`
	Owner   string `json:"owner,omitempty"`
	Details
	AutoRenewalEnabled bool   `json:"auto_renewal_enabled"`
	RenewalCount       int    `json:"renewal_count"`
	Status             Status `json:"status"`
	DaysRemaining      int    `json:"days_remaining"`
	CancelledAt        *int64 `json:"cancelled_at,omitempty"`
}

func NewView(s *Subscription, now time.Time) View {
	status, days := s.StatusAt(now)
	v := View{
		TokenID:            s.TokenID,
		Owner:              s.Owner.String(),
		Details:            s.Details(),
		AutoRenewalEnabled: s.AutoRenewalEnabled,
		RenewalCount:       s.RenewalCount,
		Status:             status,
		DaysRemaining:      days,
	}
	if s.CancelledAt != nil {
		ts := s.CancelledAt.Unix()
		v.CancelledAt = &ts
	}
	return v
}
