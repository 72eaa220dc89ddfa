// internal/service/subscription/registry.go
package subscription

import (
	"context"
	"fmt"
	"time"

	"nftsub-service/internal/domain/plan"
	"nftsub-service/internal/domain/subscription"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/repository"
)

// Registry is the single writer of subscription records and the owner index.
// It is bound to one store transaction; the mutators change a loaded record
// and Save persists it.
type Registry struct {
	subs  repository.SubscriptionRepository
	plans repository.PlanRepository
}

func NewRegistry(tx repository.Tx) *Registry {
	return &Registry{subs: tx.Subscriptions(), plans: tx.Plans()}
}

// ActivePlan resolves planID to a plan that accepts new subscriptions.
func (r *Registry) ActivePlan(ctx context.Context, planID uint64) (*plan.Plan, error) {
	p, err := r.plans.FindByID(ctx, planID)
	if xerrors.Is(err, xerrors.ErrNotFound) {
		return nil, fmt.Errorf("%w: plan %d does not exist", xerrors.ErrInvalidPlan, planID)
	}
	if err != nil {
		return nil, err
	}
	if !p.IsActive {
		return nil, fmt.Errorf("%w: plan %d is inactive", xerrors.ErrInvalidPlan, planID)
	}
	return p, nil
}

// Mint allocates the next token ID for owner. The record starts active with
// auto-renewal off and is appended to the owner's index. paid is the window
// the first payment bought.
func (r *Registry) Mint(ctx context.Context, owner account.Address, planID uint64, expiry time.Time, paid time.Duration, now time.Time) (*subscription.Subscription, error) {
	if _, err := r.ActivePlan(ctx, planID); err != nil {
		return nil, err
	}

	sub := &subscription.Subscription{
		Owner:      owner,
		PlanID:     planID,
		ExpiryDate: expiry,
		IsActive:   true,
		PaidPeriod: paid,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.subs.Create(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to mint subscription: %w", err)
	}
	return sub, nil
}

// Get returns the record for tokenID, cancelled ones included.
func (r *Registry) Get(ctx context.Context, tokenID uint64) (*subscription.Subscription, error) {
	return r.subs.FindByID(ctx, tokenID)
}

// OwnerOf fails with ErrNotFound for unknown and retired tokens.
func (r *Registry) OwnerOf(ctx context.Context, tokenID uint64) (account.Address, error) {
	sub, err := r.subs.FindByID(ctx, tokenID)
	if err != nil {
		return "", err
	}
	if sub.Owner.IsZero() {
		return "", fmt.Errorf("%w: token %d is retired", xerrors.ErrNotFound, tokenID)
	}
	return sub.Owner, nil
}

// SubscriptionsOf lists every token ever minted to owner in mint order.
func (r *Registry) SubscriptionsOf(ctx context.Context, owner account.Address) ([]uint64, error) {
	return r.subs.ListByOwner(ctx, owner)
}

func (r *Registry) SetExpiry(sub *subscription.Subscription, expiry time.Time) {
	sub.ExpiryDate = expiry
}

func (r *Registry) SetActive(sub *subscription.Subscription, active bool) {
	sub.IsActive = active
}

func (r *Registry) SetAutoRenewal(sub *subscription.Subscription, enabled bool) {
	sub.AutoRenewalEnabled = enabled
}

// TransferOwnership rebinds the token. An empty owner retires the binding; a
// new owner is appended to the index.
func (r *Registry) TransferOwnership(ctx context.Context, sub *subscription.Subscription, newOwner account.Address) error {
	sub.Owner = newOwner
	if newOwner.IsZero() {
		return nil
	}
	return r.subs.IndexOwner(ctx, newOwner, sub.TokenID)
}

func (r *Registry) Save(ctx context.Context, sub *subscription.Subscription, now time.Time) error {
	sub.UpdatedAt = now
	if err := r.subs.Update(ctx, sub); err != nil {
		return fmt.Errorf("failed to save subscription %d: %w", sub.TokenID, err)
	}
	return nil
}
