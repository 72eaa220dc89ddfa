package renewal

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"nftsub-service/internal/domain/plan"
	domainsub "nftsub-service/internal/domain/subscription"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/repository/memory"
	"nftsub-service/internal/service/subscription"
)

var (
	alice    = account.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	bob      = account.MustParse("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
	contract = account.MustParse("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
)

func TestSweepRenewsDueAndSkipsFailures(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	price := money.MustParse("10")

	p := &plan.Plan{Name: "Basic", Price: price, Creator: contract, IsActive: true, Period: plan.DefaultPeriod}
	require.NoError(t, store.Plans().Create(ctx, p))

	// alice can pay twice, bob only once.
	require.NoError(t, store.Ledger().Mint(ctx, alice, money.MustParse("100")))
	require.NoError(t, store.Ledger().Approve(ctx, alice, contract, money.MustParse("100")))
	require.NoError(t, store.Ledger().Mint(ctx, bob, money.MustParse("100")))
	require.NoError(t, store.Ledger().Approve(ctx, bob, contract, price))

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := subscription.NewEngine(store, contract, nil, zap.NewNop()).
		WithClock(func() time.Time { return now })

	for _, caller := range []account.Address{alice, bob} {
		res, err := engine.Subscribe(ctx, caller, p.ID, 3600)
		require.NoError(t, err)
		_, err = engine.ToggleAutoRenewal(ctx, caller, res.TokenID)
		require.NoError(t, err)
	}
	// A third subscription without auto-renewal is never touched.
	_, err := engine.Subscribe(ctx, alice, p.ID, 3600)
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	sweeper := NewSweeper(engine, contract, time.Minute, 10, zap.New(core))

	res, err := sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{}, res, "nothing is due before expiry")

	now = now.Add(time.Hour)
	res, err = sweeper.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Due: 2, Renewed: 1, Failed: 1}, res)

	details, err := engine.GetSubscriptionDetails(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, now.Add(plan.DefaultPeriod).Unix(), details.ExpiryDate)

	details, err = engine.GetSubscriptionDetails(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), details.ExpiryDate)

	require.Equal(t, 1, logs.FilterMessage("auto-renewal skipped").Len())
	assert.Equal(t, uint64(1), logs.All()[0].ContextMap()["token_id"])

	// The failed token stays due; the renewed one does not.
	due, err := engine.DueAutoRenewals(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, due)
}

func TestSweepPagesPastFailingTokens(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	price := money.MustParse("10")

	p := &plan.Plan{Name: "Basic", Price: price, Creator: contract, IsActive: true, Period: plan.DefaultPeriod}
	require.NoError(t, store.Plans().Create(ctx, p))

	// bob owns token 0 and can only pay once; alice owns token 1 and is funded.
	require.NoError(t, store.Ledger().Mint(ctx, bob, money.MustParse("100")))
	require.NoError(t, store.Ledger().Approve(ctx, bob, contract, price))
	require.NoError(t, store.Ledger().Mint(ctx, alice, money.MustParse("100")))
	require.NoError(t, store.Ledger().Approve(ctx, alice, contract, money.MustParse("100")))

	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	engine := subscription.NewEngine(store, contract, nil, zap.NewNop()).
		WithClock(func() time.Time { return now })

	for _, caller := range []account.Address{bob, alice} {
		res, err := engine.Subscribe(ctx, caller, p.ID, 3600)
		require.NoError(t, err)
		_, err = engine.ToggleAutoRenewal(ctx, caller, res.TokenID)
		require.NoError(t, err)
	}

	now = now.Add(time.Hour)
	sweeper := NewSweeper(engine, contract, time.Minute, 1, zap.NewNop())

	for pass := 0; pass < 2; pass++ {
		res, err := sweeper.Sweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Failed)
	}

	view, err := engine.View(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, now.Add(plan.DefaultPeriod).Unix(), view.ExpiryDate)
	assert.Equal(t, 1, view.RenewalCount)

	details, err := engine.GetSubscriptionDetails(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, now.Unix(), details.ExpiryDate)
}

type stubRenewer struct {
	due   []uint64
	calls int
}

func (s *stubRenewer) DueAutoRenewals(_ context.Context, from uint64, limit int) ([]uint64, error) {
	out := []uint64{}
	for _, id := range s.due {
		if id >= from && (limit <= 0 || len(out) < limit) {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *stubRenewer) ProcessAutoRenewal(context.Context, account.Address, uint64) (*domainsub.RenewResult, error) {
	s.calls++
	return &domainsub.RenewResult{}, nil
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stub := &stubRenewer{due: []uint64{1, 2, 3}}
	res, err := NewSweeper(stub, contract, time.Minute, 10, zap.NewNop()).Sweep(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, res.Due)
	assert.Zero(t, stub.calls)
}

func TestSweepWalksAllPages(t *testing.T) {
	stub := &stubRenewer{due: []uint64{2, 5, 9, 11, 12}}
	res, err := NewSweeper(stub, contract, time.Minute, 2, zap.NewNop()).Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, SweepResult{Due: 5, Renewed: 5}, res)
	assert.Equal(t, 5, stub.calls)
}

func TestRunDisabled(t *testing.T) {
	stub := &stubRenewer{due: []uint64{1}}
	done := make(chan struct{})
	go func() {
		NewSweeper(stub, contract, 0, 10, zap.NewNop()).Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("disabled sweeper did not return")
	}
	assert.Zero(t, stub.calls)
}

func TestRunSweepsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubRenewer{due: []uint64{7}}
	done := make(chan struct{})
	go func() {
		NewSweeper(stub, contract, 10*time.Millisecond, 10, zap.NewNop()).Run(ctx)
		close(done)
	}()

	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	assert.Positive(t, stub.calls)
}
