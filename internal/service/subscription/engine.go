// internal/service/subscription/engine.go
package subscription

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nftsub-service/internal/domain/event"
	"nftsub-service/internal/domain/subscription"
	"nftsub-service/internal/events"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/keylock"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/repository"
)

// MaxDuration caps the first access window a subscriber may buy (100 years).
const MaxDuration uint64 = 100 * 365 * 24 * 60 * 60

// Engine runs the subscription lifecycle. Every command on an existing token
// holds that token's lock and runs in one store transaction, so payment and
// registry changes commit or roll back together.
type Engine struct {
	store     repository.Store
	contract  account.Address
	locks     *keylock.Locker
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewEngine builds the engine. contract is the account that receives payments
// and pays refunds.
func NewEngine(store repository.Store, contract account.Address, publisher events.Publisher, logger *zap.Logger) *Engine {
	return &Engine{
		store:     store,
		contract:  contract,
		locks:     keylock.New(),
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// clock returns the current instant truncated to whole seconds, the
// granularity of expiry dates.
func (e *Engine) clock() time.Time {
	return e.now().UTC().Truncate(time.Second)
}

// Subscribe charges the plan price and mints a new subscription token to caller.
func (e *Engine) Subscribe(ctx context.Context, caller account.Address, planID uint64, duration uint64) (*subscription.SubscribeResult, error) {
	if duration == 0 || duration > MaxDuration {
		return nil, fmt.Errorf("%w: duration must be between 1 and %d seconds", xerrors.ErrInvalidInput, MaxDuration)
	}

	now := e.clock()
	var (
		sub   *subscription.Subscription
		price money.Amount
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		reg := NewRegistry(tx)

		p, err := reg.ActivePlan(ctx, planID)
		if err != nil {
			return err
		}
		price = p.Price

		if err := e.charge(ctx, tx, caller, price); err != nil {
			return err
		}

		// Mint last: the token becomes visible once created.
		paid := time.Duration(duration) * time.Second
		sub, err = reg.Mint(ctx, caller, planID, now.Add(paid), paid, now)
		return err
	})
	if err != nil {
		e.logFailure("subscribe", caller, nil, err)
		return nil, err
	}

	e.logger.Info("subscription created",
		zap.Uint64("token_id", sub.TokenID),
		zap.Uint64("plan_id", planID),
		zap.String("actor", caller.String()),
		zap.Uint64("price", uint64(price)),
		zap.Time("expiry_date", sub.ExpiryDate),
	)
	e.publish(ctx, event.New(event.TypeSubscriptionCreated, caller, price, now).
		WithToken(sub.TokenID).
		WithPlan(planID).
		With("expiry_date", sub.ExpiryDate.Unix()))

	return &subscription.SubscribeResult{
		TokenID:    sub.TokenID,
		PlanID:     planID,
		Price:      price,
		ExpiryDate: sub.ExpiryDate.Unix(),
	}, nil
}

// RenewSubscription charges the owner one plan price and extends expiry by one
// plan period from the later of now and the current expiry.
func (e *Engine) RenewSubscription(ctx context.Context, caller account.Address, tokenID uint64) (*subscription.RenewResult, error) {
	unlock := e.locks.Lock(tokenID)
	defer unlock()

	now := e.clock()
	var res *subscription.RenewResult
	var planID uint64
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		reg := NewRegistry(tx)

		owner, err := reg.OwnerOf(ctx, tokenID)
		if err != nil {
			return err
		}
		if !owner.Equal(caller) {
			return fmt.Errorf("renew token %d: %w", tokenID, xerrors.ErrUnauthorized)
		}

		res, planID, err = e.renew(ctx, tx, reg, tokenID, owner, now)
		return err
	})
	if err != nil {
		e.logFailure("renew", caller, &tokenID, err)
		return nil, err
	}

	e.logger.Info("subscription renewed",
		zap.Uint64("token_id", tokenID),
		zap.String("actor", caller.String()),
		zap.Uint64("price", uint64(res.Price)),
		zap.Int64("expiry_date", res.ExpiryDate),
	)
	e.publish(ctx, event.New(event.TypeSubscriptionRenewed, caller, res.Price, now).
		WithToken(tokenID).
		WithPlan(planID).
		With("expiry_date", res.ExpiryDate))

	return res, nil
}

// CancelSubscription refunds the unused part of the current period and
// retires the token. The record is kept with isActive=false.
func (e *Engine) CancelSubscription(ctx context.Context, caller account.Address, tokenID uint64) (*subscription.CancelResult, error) {
	unlock := e.locks.Lock(tokenID)
	defer unlock()

	now := e.clock()
	var (
		refund money.Amount
		planID uint64
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		reg := NewRegistry(tx)

		sub, err := reg.Get(ctx, tokenID)
		if err != nil {
			return err
		}
		if !sub.IsActive {
			return fmt.Errorf("cancel token %d: %w", tokenID, xerrors.ErrAlreadyCancelled)
		}
		if !sub.Owner.Equal(caller) {
			return fmt.Errorf("cancel token %d: %w", tokenID, xerrors.ErrUnauthorized)
		}

		p, err := tx.Plans().FindByID(ctx, sub.PlanID)
		if err != nil {
			return fmt.Errorf("failed to load plan %d: %w", sub.PlanID, err)
		}
		planID = p.ID
		paid := sub.PaidPeriod
		if paid <= 0 {
			paid = p.Period
		}
		refund = Refund(p.Price, paid, sub.ExpiryDate, now)

		if refund > 0 {
			if err := tx.Ledger().Transfer(ctx, e.contract, sub.Owner, refund); err != nil {
				return xerrors.PaymentFailed(err)
			}
		}

		if err := reg.TransferOwnership(ctx, sub, ""); err != nil {
			return err
		}
		reg.SetActive(sub, false)
		reg.SetAutoRenewal(sub, false)
		sub.CancelledAt = &now
		return reg.Save(ctx, sub, now)
	})
	if err != nil {
		e.logFailure("cancel", caller, &tokenID, err)
		return nil, err
	}

	e.logger.Info("subscription cancelled",
		zap.Uint64("token_id", tokenID),
		zap.String("actor", caller.String()),
		zap.Uint64("refund", uint64(refund)),
	)
	e.publish(ctx, event.New(event.TypeSubscriptionCanceled, caller, refund, now).
		WithToken(tokenID).
		WithPlan(planID))

	return &subscription.CancelResult{TokenID: tokenID, Refund: refund}, nil
}

// ToggleAutoRenewal flips the auto-renewal flag and returns its new value.
func (e *Engine) ToggleAutoRenewal(ctx context.Context, caller account.Address, tokenID uint64) (*subscription.ToggleResult, error) {
	unlock := e.locks.Lock(tokenID)
	defer unlock()

	now := e.clock()
	var enabled bool
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		reg := NewRegistry(tx)

		owner, err := reg.OwnerOf(ctx, tokenID)
		if err != nil {
			return err
		}
		if !owner.Equal(caller) {
			return fmt.Errorf("toggle auto-renewal of token %d: %w", tokenID, xerrors.ErrUnauthorized)
		}

		sub, err := reg.Get(ctx, tokenID)
		if err != nil {
			return err
		}
		enabled = !sub.AutoRenewalEnabled
		reg.SetAutoRenewal(sub, enabled)
		return reg.Save(ctx, sub, now)
	})
	if err != nil {
		e.logFailure("toggle_auto_renewal", caller, &tokenID, err)
		return nil, err
	}

	e.logger.Info("auto-renewal toggled",
		zap.Uint64("token_id", tokenID),
		zap.String("actor", caller.String()),
		zap.Bool("enabled", enabled),
	)
	e.publish(ctx, event.New(event.TypeAutoRenewalToggled, caller, 0, now).
		WithToken(tokenID).
		With("auto_renewal_enabled", enabled))

	return &subscription.ToggleResult{TokenID: tokenID, AutoRenewalEnabled: enabled}, nil
}

// ProcessAutoRenewal renews a due subscription on behalf of its owner. Any
// caller may trigger it; the owner pays. A failed payment leaves the
// subscription expired.
func (e *Engine) ProcessAutoRenewal(ctx context.Context, caller account.Address, tokenID uint64) (*subscription.RenewResult, error) {
	unlock := e.locks.Lock(tokenID)
	defer unlock()

	now := e.clock()
	var (
		res    *subscription.RenewResult
		owner  account.Address
		planID uint64
	)
	err := e.store.WithTx(ctx, func(tx repository.Tx) error {
		reg := NewRegistry(tx)

		sub, err := reg.Get(ctx, tokenID)
		if err != nil {
			return err
		}
		if !sub.IsActive || !sub.AutoRenewalEnabled || now.Before(sub.ExpiryDate) {
			return fmt.Errorf("auto-renew token %d: %w", tokenID, xerrors.ErrNotDue)
		}
		owner = sub.Owner

		res, planID, err = e.renew(ctx, tx, reg, tokenID, owner, now)
		return err
	})
	if err != nil {
		e.logFailure("process_auto_renewal", caller, &tokenID, err)
		return nil, err
	}

	e.logger.Info("subscription auto-renewed",
		zap.Uint64("token_id", tokenID),
		zap.String("actor", caller.String()),
		zap.String("payer", owner.String()),
		zap.Uint64("price", uint64(res.Price)),
		zap.Int64("expiry_date", res.ExpiryDate),
	)
	e.publish(ctx, event.New(event.TypeAutoRenewed, caller, res.Price, now).
		WithToken(tokenID).
		WithPlan(planID).
		With("payer", owner.String()).
		With("expiry_date", res.ExpiryDate))

	return res, nil
}

// DueAutoRenewals lists up to limit tokens, starting at token from, that
// ProcessAutoRenewal would accept now.
func (e *Engine) DueAutoRenewals(ctx context.Context, from uint64, limit int) ([]uint64, error) {
	return e.store.Subscriptions().ListDueAutoRenewals(ctx, e.clock(), from, limit)
}

// GetSubscriptionDetails returns the public projection of a token. Cancelled
// tokens are reported with IsActive=false.
func (e *Engine) GetSubscriptionDetails(ctx context.Context, tokenID uint64) (*subscription.Details, error) {
	sub, err := e.store.Subscriptions().FindByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	d := sub.Details()
	return &d, nil
}

// GetUserSubscriptions lists every token ever minted to owner, cancelled ones included.
func (e *Engine) GetUserSubscriptions(ctx context.Context, owner account.Address) ([]uint64, error) {
	return e.store.Subscriptions().ListByOwner(ctx, owner)
}

func (e *Engine) OwnerOf(ctx context.Context, tokenID uint64) (account.Address, error) {
	return NewRegistry(e.store).OwnerOf(ctx, tokenID)
}

// View returns the record with its display status.
func (e *Engine) View(ctx context.Context, tokenID uint64) (*subscription.View, error) {
	sub, err := e.store.Subscriptions().FindByID(ctx, tokenID)
	if err != nil {
		return nil, err
	}
	v := subscription.NewView(sub, e.clock())
	return &v, nil
}

// UserViews returns the views of every token minted to owner, in mint order.
func (e *Engine) UserViews(ctx context.Context, owner account.Address) ([]subscription.View, error) {
	ids, err := e.GetUserSubscriptions(ctx, owner)
	if err != nil {
		return nil, err
	}

	now := e.clock()
	views := make([]subscription.View, 0, len(ids))
	for _, id := range ids {
		sub, err := e.store.Subscriptions().FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		views = append(views, subscription.NewView(sub, now))
	}
	return views, nil
}

// Refund prorates the price of the last payment over the unused part of the
// window it bought. Remaining time is clamped to that window, so the refund
// never exceeds the price.
func Refund(price money.Amount, paid time.Duration, expiry, now time.Time) money.Amount {
	remaining := expiry.Unix() - now.Unix()
	total := int64(paid / time.Second)
	if remaining <= 0 || total <= 0 {
		return 0
	}
	return money.Prorate(price, uint64(remaining), uint64(total))
}

// renew charges payer and extends tokenID by one period. Callers hold the
// token lock and have checked authorization.
func (e *Engine) renew(ctx context.Context, tx repository.Tx, reg *Registry, tokenID uint64, payer account.Address, now time.Time) (*subscription.RenewResult, uint64, error) {
	sub, err := reg.Get(ctx, tokenID)
	if err != nil {
		return nil, 0, err
	}
	p, err := tx.Plans().FindByID(ctx, sub.PlanID)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load plan %d: %w", sub.PlanID, err)
	}

	if err := e.charge(ctx, tx, payer, p.Price); err != nil {
		return nil, 0, err
	}

	start := sub.ExpiryDate
	if now.After(start) {
		start = now
	}
	reg.SetExpiry(sub, start.Add(p.Period))
	sub.PaidPeriod = p.Period
	reg.SetActive(sub, true)
	sub.RenewalCount++
	if err := reg.Save(ctx, sub, now); err != nil {
		return nil, 0, err
	}

	return &subscription.RenewResult{
		TokenID:    tokenID,
		Price:      p.Price,
		ExpiryDate: sub.ExpiryDate.Unix(),
	}, p.ID, nil
}

// charge draws amount from payer into the contract account using the
// contract's allowance.
func (e *Engine) charge(ctx context.Context, tx repository.Tx, payer account.Address, amount money.Amount) error {
	if err := tx.Ledger().TransferFrom(ctx, e.contract, payer, e.contract, amount); err != nil {
		return xerrors.PaymentFailed(err)
	}
	return nil
}

func (e *Engine) logFailure(op string, caller account.Address, tokenID *uint64, err error) {
	fields := []zap.Field{
		zap.String("op", op),
		zap.String("actor", caller.String()),
		zap.Error(err),
	}
	if tokenID != nil {
		fields = append(fields, zap.Uint64("token_id", *tokenID))
	}

	if xerrors.HTTPStatus(err) >= 500 {
		e.logger.Error("subscription command failed", fields...)
		return
	}
	e.logger.Info("subscription command rejected", fields...)
}

func (e *Engine) publish(ctx context.Context, ev event.Event) {
	if e.publisher == nil {
		return
	}
	if err := e.publisher.Publish(ctx, ev); err != nil {
		e.logger.Warn("failed to publish event", zap.String("type", string(ev.Type)), zap.Error(err))
	}
}
