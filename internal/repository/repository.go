// internal/repository/repository.go
package repository

import (
	"context"
	"time"

	"nftsub-service/internal/domain/plan"
	"nftsub-service/internal/domain/subscription"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
)

// PlanRepository owns the plan catalog.
type PlanRepository interface {
	// Create assigns the next sequential ID to p.
	Create(ctx context.Context, p *plan.Plan) error
	FindByID(ctx context.Context, id uint64) (*plan.Plan, error)
	// List returns every plan in creation order.
	List(ctx context.Context) ([]plan.Plan, error)
	SetActive(ctx context.Context, id uint64, active bool) error
	Count(ctx context.Context) (int, error)
}

// SubscriptionRepository owns subscription records and the per-owner index.
type SubscriptionRepository interface {
	// Create assigns the next token ID to sub and indexes it under sub.Owner.
	Create(ctx context.Context, sub *subscription.Subscription) error
	// FindByID returns a copy of the record. Inside a transaction the row is locked.
	FindByID(ctx context.Context, tokenID uint64) (*subscription.Subscription, error)
	Update(ctx context.Context, sub *subscription.Subscription) error
	// IndexOwner appends tokenID to the owner's history.
	IndexOwner(ctx context.Context, owner account.Address, tokenID uint64) error
	ListByOwner(ctx context.Context, owner account.Address) ([]uint64, error)
	// ListDueAutoRenewals returns active tokens with auto-renewal on and
	// expiry <= now, in token order starting at from.
	ListDueAutoRenewals(ctx context.Context, now time.Time, from uint64, limit int) ([]uint64, error)
}

// Ledger is the fungible payment token the subscriptions are paid with.
type Ledger interface {
	BalanceOf(ctx context.Context, acct account.Address) (money.Amount, error)
	Allowance(ctx context.Context, owner, spender account.Address) (money.Amount, error)
	Approve(ctx context.Context, owner, spender account.Address, amount money.Amount) error
	Mint(ctx context.Context, to account.Address, amount money.Amount) error
	Transfer(ctx context.Context, from, to account.Address, amount money.Amount) error
	// TransferFrom moves amount from owner to `to`, consuming spender's allowance.
	TransferFrom(ctx context.Context, spender, owner, to account.Address, amount money.Amount) error
}

// Tx groups the repositories that must change together.
type Tx interface {
	Plans() PlanRepository
	Subscriptions() SubscriptionRepository
	Ledger() Ledger
}

// Store is the injectable persistence root. Reads outside WithTx never see
// uncommitted changes.
type Store interface {
	Tx
	// WithTx runs fn atomically: any error undoes every change fn made.
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
	Close()
}
