// internal/domain/event/entity.go
package event

import (
	"time"

	"github.com/oklog/ulid/v2"

	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
)

type Type string

const (
	TypePlanCreated          Type = "plan.created"
	TypePlanStatusChanged    Type = "plan.status_changed"
	TypeSubscriptionCreated  Type = "subscription.created"
	TypeSubscriptionRenewed  Type = "subscription.renewed"
	TypeSubscriptionCanceled Type = "subscription.cancelled"
	TypeAutoRenewalToggled   Type = "subscription.auto_renewal_toggled"
	TypeAutoRenewed          Type = "subscription.auto_renewed"
	TypePaymentApproved      Type = "payment.approved"
	TypePaymentMinted        Type = "payment.minted"
)

// Event records one committed command for indexers and live clients.
type Event struct {
	ID        string          `json:"id"`
	Type      Type            `json:"type"`
	TokenID   *uint64         `json:"token_id,omitempty"`
	PlanID    *uint64         `json:"plan_id,omitempty"`
	Actor     account.Address `json:"actor"`
	Amount    money.Amount    `json:"amount"`
	Timestamp time.Time       `json:"timestamp"`
	Data      map[string]any  `json:"data,omitempty"`
}

func New(t Type, actor account.Address, amount money.Amount, at time.Time) Event {
	return Event{
		ID:        ulid.Make().String(),
		Type:      t,
		Actor:     actor,
		Amount:    amount,
		Timestamp: at.UTC(),
	}
}

func (e Event) WithToken(tokenID uint64) Event {
	e.TokenID = &tokenID
	return e
}

func (e Event) WithPlan(planID uint64) Event {
	e.PlanID = &planID
	return e
}

func (e Event) With(key string, value any) Event {
	data := make(map[string]any, len(e.Data)+1)
	for k, v := range e.Data {
		data[k] = v
	}
	data[key] = value
	e.Data = data
	return e
}
