package subscription

import (
	"context"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nftsub-service/internal/domain/event"
	"nftsub-service/internal/domain/plan"
	"nftsub-service/internal/domain/subscription"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/repository/memory"
)

const period = 2_592_000 // 30 days in seconds

var (
	alice    = account.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	bob      = account.MustParse("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	contract = account.MustParse("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
	admin    = account.MustParse("0xD1220A0cf47c7B9Be7A2E6BA89F429762e7b9aDb")

	price = money.Amount(29_990_000)
	start = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
)

type recorder struct {
	mu     sync.Mutex
	events []event.Event
}

func (r *recorder) Publish(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]event.Type, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	store  *memory.Store
	engine *Engine
	clock  *clock
	events *recorder
}

// newFixture creates plan 1 (29.99, 30 days) and funds alice with 100 tokens
// fully approved to the contract.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := memory.New()

	p := &plan.Plan{Name: "DeFi Analytics Pro", Price: price, Creator: admin, IsActive: true, Period: period * time.Second}
	require.NoError(t, store.Plans().Create(ctx, p))
	require.Equal(t, uint64(1), p.ID)

	fund(t, store, alice, money.MustParse("100"))

	c := &clock{now: start}
	rec := &recorder{}
	e := NewEngine(store, contract, rec, zap.NewNop()).WithClock(c.Now)
	return &fixture{store: store, engine: e, clock: c, events: rec}
}

func fund(t *testing.T, store *memory.Store, acct account.Address, amount money.Amount) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, store.Ledger().Mint(ctx, acct, amount))
	require.NoError(t, store.Ledger().Approve(ctx, acct, contract, amount))
}

func (f *fixture) balance(t *testing.T, acct account.Address) money.Amount {
	t.Helper()
	bal, err := f.store.Ledger().BalanceOf(context.Background(), acct)
	require.NoError(t, err)
	return bal
}

func (f *fixture) subscribe(t *testing.T, caller account.Address) uint64 {
	t.Helper()
	res, err := f.engine.Subscribe(context.Background(), caller, 1, period)
	require.NoError(t, err)
	return res.TokenID
}

func TestSubscribe(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	res, err := f.engine.Subscribe(ctx, alice, 1, period)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), res.TokenID)
	assert.Equal(t, price, res.Price)
	assert.Equal(t, start.Unix()+period, res.ExpiryDate)

	assert.Equal(t, money.MustParse("100")-price, f.balance(t, alice))
	assert.Equal(t, price, f.balance(t, contract))

	details, err := f.engine.GetSubscriptionDetails(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, subscription.Details{PlanID: 1, ExpiryDate: start.Unix() + period, IsActive: true}, *details)

	owner, err := f.engine.OwnerOf(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, alice, owner)

	sub, err := f.store.Subscriptions().FindByID(ctx, 0)
	require.NoError(t, err)
	assert.False(t, sub.AutoRenewalEnabled)
	assert.Equal(t, subscription.StateActive, sub.StateAt(start))

	assert.Equal(t, []event.Type{event.TypeSubscriptionCreated}, f.events.types())
}

func TestTokenIDsIncrease(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first := f.subscribe(t, alice)
	_, err := f.engine.CancelSubscription(ctx, alice, first)
	require.NoError(t, err)
	second := f.subscribe(t, alice)
	third := f.subscribe(t, alice)

	assert.Equal(t, []uint64{0, 1, 2}, []uint64{first, second, third})

	ids, err := f.engine.GetUserSubscriptions(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, ids)
}

func TestSubscribeRejects(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	inactive := &plan.Plan{Name: "Old", Price: price, Creator: admin, IsActive: false, Period: period * time.Second}
	require.NoError(t, f.store.Plans().Create(ctx, inactive))

	tests := []struct {
		name     string
		planID   uint64
		duration uint64
		want     error
	}{
		{"zero duration", 1, 0, xerrors.ErrInvalidInput},
		{"huge duration", 1, MaxDuration + 1, xerrors.ErrInvalidInput},
		{"unknown plan", 42, period, xerrors.ErrInvalidPlan},
		{"inactive plan", inactive.ID, period, xerrors.ErrInvalidPlan},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.Subscribe(ctx, alice, tt.planID, tt.duration)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Equal(t, money.MustParse("100"), f.balance(t, alice))
	assert.Empty(t, f.events.types())
}

func TestPaymentFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// bob has tokens but no allowance
	require.NoError(t, f.store.Ledger().Mint(ctx, bob, money.MustParse("50")))
	_, err := f.engine.Subscribe(ctx, bob, 1, period)
	assert.ErrorIs(t, err, xerrors.ErrPaymentFailed)
	assert.ErrorIs(t, err, xerrors.ErrInsufficientAllowance)

	// allowance but not enough balance
	require.NoError(t, f.store.Ledger().Approve(ctx, bob, contract, money.MustParse("1000")))
	require.NoError(t, f.store.Ledger().Transfer(ctx, bob, alice, money.MustParse("40")))
	_, err = f.engine.Subscribe(ctx, bob, 1, period)
	assert.ErrorIs(t, err, xerrors.ErrPaymentFailed)
	assert.ErrorIs(t, err, xerrors.ErrInsufficientBalance)

	assert.Equal(t, money.MustParse("10"), f.balance(t, bob))
	allowed, err := f.store.Ledger().Allowance(ctx, bob, contract)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("1000"), allowed)

	ids, err := f.engine.GetUserSubscriptions(ctx, bob)
	require.NoError(t, err)
	assert.Empty(t, ids)

	// No token ID was consumed by the failures.
	assert.Equal(t, uint64(0), f.subscribe(t, alice))
}

func TestCancelImmediatelyRefundsFullPrice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokenID := f.subscribe(t, alice)

	res, err := f.engine.CancelSubscription(ctx, alice, tokenID)
	require.NoError(t, err)
	assert.Equal(t, price, res.Refund)
	assert.Equal(t, money.MustParse("100"), f.balance(t, alice))
	assert.Zero(t, f.balance(t, contract))

	details, err := f.engine.GetSubscriptionDetails(ctx, tokenID)
	require.NoError(t, err)
	assert.False(t, details.IsActive)

	view, err := f.engine.View(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StatusCancelled, view.Status)
	assert.Empty(t, view.Owner)
	require.NotNil(t, view.CancelledAt)
	assert.Equal(t, start.Unix(), *view.CancelledAt)

	// The identity is retired.
	_, err = f.engine.OwnerOf(ctx, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	_, err = f.engine.RenewSubscription(ctx, alice, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	_, err = f.engine.ToggleAutoRenewal(ctx, alice, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
	_, err = f.engine.CancelSubscription(ctx, alice, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrAlreadyCancelled)

	// The index keeps history.
	ids, err := f.engine.GetUserSubscriptions(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{tokenID}, ids)
}

func TestCancelProration(t *testing.T) {
	tests := []struct {
		name    string
		elapsed time.Duration
		want    money.Amount
	}{
		{"halfway", period / 2 * time.Second, 14_995_000},
		{"one second in", time.Second, money.Prorate(price, period-1, period)},
		{"at expiry", period * time.Second, 0},
		{"after expiry", 2 * period * time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tokenID := f.subscribe(t, alice)
			f.clock.Advance(tt.elapsed)

			res, err := f.engine.CancelSubscription(context.Background(), alice, tokenID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Refund)
			assert.Equal(t, money.MustParse("100")-price+tt.want, f.balance(t, alice))
		})
	}
}

func TestCancelProratesOverPaidWindow(t *testing.T) {
	const day = 86_400
	tests := []struct {
		name    string
		elapsed time.Duration
		want    money.Amount
	}{
		{"immediately", 0, price},
		{"half a day in", day / 2 * time.Second, price / 2},
		{"at expiry", day * time.Second, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			sub, err := f.engine.Subscribe(context.Background(), alice, 1, day)
			require.NoError(t, err)
			f.clock.Advance(tt.elapsed)

			res, err := f.engine.CancelSubscription(context.Background(), alice, sub.TokenID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Refund)
			assert.Equal(t, money.MustParse("100")-price+tt.want, f.balance(t, alice))
		})
	}
}

func TestCancelAfterRenewalProratesOverPlanPeriod(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	minted, err := f.engine.Subscribe(ctx, alice, 1, 86_400)
	require.NoError(t, err)
	tokenID := minted.TokenID
	_, err = f.engine.RenewSubscription(ctx, alice, tokenID)
	require.NoError(t, err)

	sub, err := f.store.Subscriptions().FindByID(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, period*time.Second, sub.PaidPeriod)

	// Renewal extends from the day-one expiry; cancel halfway through the new period.
	f.clock.Advance(86_400*time.Second + period/2*time.Second)
	res, err := f.engine.CancelSubscription(ctx, alice, tokenID)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(14_995_000), res.Refund)
}

func TestRefundNeverExceedsPrice(t *testing.T) {
	paid := period * time.Second
	// Remaining time beyond the paid window is clamped.
	assert.Equal(t, price, Refund(price, paid, start.Add(3*paid), start))
	assert.Zero(t, Refund(price, paid, start, start.Add(time.Hour)))
	assert.Zero(t, Refund(price, 0, start.Add(paid), start))
}

func TestCancelUnauthorized(t *testing.T) {
	f := newFixture(t)
	tokenID := f.subscribe(t, alice)

	_, err := f.engine.CancelSubscription(context.Background(), bob, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	_, err = f.engine.CancelSubscription(context.Background(), bob, 99)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}

func TestRenewNeverShortens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokenID := f.subscribe(t, alice)
	firstExpiry := start.Unix() + period

	// Early renewal extends from the current expiry.
	f.clock.Advance(10 * 24 * time.Hour)
	res, err := f.engine.RenewSubscription(ctx, alice, tokenID)
	require.NoError(t, err)
	assert.Equal(t, firstExpiry+period, res.ExpiryDate)

	// A lapsed subscription renews from now.
	f.clock.Advance(100 * 24 * time.Hour)
	now := f.clock.Now().Unix()
	res, err = f.engine.RenewSubscription(ctx, alice, tokenID)
	require.NoError(t, err)
	assert.Equal(t, now+period, res.ExpiryDate)

	view, err := f.engine.View(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, 2, view.RenewalCount)
	assert.Equal(t, subscription.StatusActive, view.Status)
	assert.Equal(t, money.MustParse("100")-3*price, f.balance(t, alice))

	_, err = f.engine.RenewSubscription(ctx, bob, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)
}

func TestRenewPaymentFailureKeepsExpiry(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokenID := f.subscribe(t, alice)

	require.NoError(t, f.store.Ledger().Approve(ctx, alice, contract, 0))
	_, err := f.engine.RenewSubscription(ctx, alice, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrInsufficientAllowance)

	details, err := f.engine.GetSubscriptionDetails(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, start.Unix()+period, details.ExpiryDate)
}

func TestToggleTwiceRestores(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokenID := f.subscribe(t, alice)

	res, err := f.engine.ToggleAutoRenewal(ctx, alice, tokenID)
	require.NoError(t, err)
	assert.True(t, res.AutoRenewalEnabled)

	res, err = f.engine.ToggleAutoRenewal(ctx, alice, tokenID)
	require.NoError(t, err)
	assert.False(t, res.AutoRenewalEnabled)

	_, err = f.engine.ToggleAutoRenewal(ctx, bob, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrUnauthorized)

	assert.Equal(t, money.MustParse("100")-price, f.balance(t, alice))
}

func TestProcessAutoRenewal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokenID := f.subscribe(t, alice)

	// Not enabled, even once expired.
	f.clock.Advance(period * time.Second)
	_, err := f.engine.ProcessAutoRenewal(ctx, bob, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrNotDue)

	_, err = f.engine.ToggleAutoRenewal(ctx, alice, tokenID)
	require.NoError(t, err)

	// Enabled but early, for any caller.
	f.clock.Advance(-time.Second)
	for _, caller := range []account.Address{alice, bob} {
		_, err = f.engine.ProcessAutoRenewal(ctx, caller, tokenID)
		assert.ErrorIs(t, err, xerrors.ErrNotDue)
	}

	due, err := f.engine.DueAutoRenewals(ctx, 0, 10)
	require.NoError(t, err)
	assert.Empty(t, due)

	// Exactly at expiry a keeper may trigger it; the owner pays.
	f.clock.Advance(time.Second)
	due, err = f.engine.DueAutoRenewals(ctx, 0, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint64{tokenID}, due)

	res, err := f.engine.ProcessAutoRenewal(ctx, bob, tokenID)
	require.NoError(t, err)
	assert.Equal(t, start.Unix()+2*period, res.ExpiryDate)
	assert.Equal(t, money.MustParse("100")-2*price, f.balance(t, alice))
	assert.Zero(t, f.balance(t, bob))

	assert.Contains(t, f.events.types(), event.TypeAutoRenewed)
}

func TestProcessAutoRenewalPaymentFailureLeavesExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokenID := f.subscribe(t, alice)
	_, err := f.engine.ToggleAutoRenewal(ctx, alice, tokenID)
	require.NoError(t, err)

	require.NoError(t, f.store.Ledger().Approve(ctx, alice, contract, price-1))
	f.clock.Advance(period * time.Second)

	_, err = f.engine.ProcessAutoRenewal(ctx, bob, tokenID)
	assert.ErrorIs(t, err, xerrors.ErrPaymentFailed)

	sub, err := f.store.Subscriptions().FindByID(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, subscription.StateExpired, sub.StateAt(f.clock.Now()))
	assert.True(t, sub.AutoRenewalEnabled)
	assert.Equal(t, alice, sub.Owner)
}

func TestConcurrentRenewalsSerialize(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tokenID := f.subscribe(t, alice)
	fund(t, f.store, alice, money.MustParse("100"))

	const n = 3
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.RenewSubscription(ctx, alice, tokenID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	view, err := f.engine.View(ctx, tokenID)
	require.NoError(t, err)
	assert.Equal(t, n, view.RenewalCount)
	assert.Equal(t, start.Unix()+(n+1)*period, view.ExpiryDate)
	assert.Equal(t, money.MustParse("200")-(n+1)*price, f.balance(t, alice))
}

func TestConcurrentSubscribesGetDistinctTokens(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	fund(t, f.store, bob, money.MustParse("1000"))

	const n = 20
	var (
		wg  sync.WaitGroup
		mu  sync.Mutex
		ids []uint64
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := f.engine.Subscribe(ctx, bob, 1, period)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			ids = append(ids, res.TokenID)
			mu.Unlock()
		}()
	}
	wg.Wait()

	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	require.Len(t, ids, n)
	for i, id := range ids {
		assert.Equal(t, uint64(i), id)
	}
	assert.Equal(t, money.MustParse("1000")-n*price, f.balance(t, bob))
}

func TestUserViews(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.subscribe(t, alice)
	f.subscribe(t, alice)
	_, err := f.engine.CancelSubscription(ctx, alice, first)
	require.NoError(t, err)

	f.clock.Advance(25 * 24 * time.Hour)
	views, err := f.engine.UserViews(ctx, alice)
	require.NoError(t, err)
	require.Len(t, views, 2)
	assert.Equal(t, subscription.StatusCancelled, views[0].Status)
	assert.Equal(t, subscription.StatusExpiring, views[1].Status)
	assert.Equal(t, 5, views[1].DaysRemaining)
}
