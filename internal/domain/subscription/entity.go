// internal/domain/subscription/entity.go
package subscription

import (
	"time"

	"nftsub-service/internal/pkg/account"
)

type State string

const (
	StateActive    State = "active"
	StateExpired   State = "expired"
	StateCancelled State = "cancelled"
)

// Status is the display classification used by clients.
type Status string

const (
	StatusActive    Status = "active"
	StatusExpiring  Status = "expiring"
	StatusExpired   Status = "expired"
	StatusCancelled Status = "cancelled"
)

// ExpiringWindow is how close to expiry an active subscription is flagged as expiring.
const ExpiringWindow = 7 * 24 * time.Hour

// Subscription is one NFT-backed access window. Owner is empty once the
// subscription is cancelled; the record itself is retained.
type Subscription struct {
	TokenID            uint64          `json:"token_id" db:"token_id"`
	Owner              account.Address `json:"owner,omitempty" db:"owner"`
	PlanID             uint64          `json:"plan_id" db:"plan_id"`
	ExpiryDate         time.Time       `json:"expiry_date" db:"expiry_date"`
	IsActive           bool            `json:"is_active" db:"is_active"`
	AutoRenewalEnabled bool            `json:"auto_renewal_enabled" db:"auto_renewal_enabled"`
	RenewalCount       int             `json:"renewal_count" db:"renewal_count"`
	// PaidPeriod is the length of the window the last payment bought: the
	// subscribe duration at first, one plan period after each renewal.
	PaidPeriod         time.Duration   `json:"-" db:"paid_period_seconds"`

	CancelledAt *time.Time `json:"cancelled_at,omitempty" db:"cancelled_at"`
	CreatedAt   time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at" db:"updated_at"`
}

// StateAt classifies the subscription at the given instant.
func (s *Subscription) StateAt(now time.Time) State {
	switch {
	case !s.IsActive:
		return StateCancelled
	case now.Before(s.ExpiryDate):
		return StateActive
	default:
		return StateExpired
	}
}

// StatusAt returns the display status and whole days remaining (rounded up).
func (s *Subscription) StatusAt(now time.Time) (Status, int) {
	remaining := s.ExpiryDate.Sub(now)
	days := 0
	if remaining > 0 {
		days = int((remaining + 24*time.Hour - 1) / (24 * time.Hour))
	}

	switch s.StateAt(now) {
	case StateCancelled:
		return StatusCancelled, 0
	case StateExpired:
		return StatusExpired, 0
	}
	if remaining <= ExpiringWindow {
		return StatusExpiring, days
	}
	return StatusActive, days
}

// Details is the public projection of a subscription record.
type Details struct {
	PlanID     uint64 `json:"plan_id"`
	ExpiryDate int64  `json:"expiry_date"`
	IsActive   bool   `json:"is_active"`
}

func (s *Subscription) Details() Details {
	return Details{
		PlanID:     s.PlanID,
		ExpiryDate: s.ExpiryDate.Unix(),
		IsActive:   s.IsActive,
	}
}
