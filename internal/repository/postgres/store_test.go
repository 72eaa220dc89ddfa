package postgres

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"nftsub-service/internal/db"
	"nftsub-service/internal/domain/plan"
	"nftsub-service/internal/domain/subscription"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/repository"
)

// newTestStore connects to TEST_DATABASE_URL and truncates every table.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	logger := zap.NewNop()
	pool, err := db.ConnectDB(ctx, db.PostgresConfig{URL: url, RetryAttempts: 1, RetryInterval: time.Second}, logger)
	require.NoError(t, err)
	require.NoError(t, db.Migrate(ctx, pool, logger))

	for _, stmt := range []string{
		`TRUNCATE subscription_owners, subscriptions, plans, ledger_balances, ledger_allowances RESTART IDENTITY CASCADE`,
		`ALTER SEQUENCE subscription_token_seq RESTART WITH 0`,
	} {
		_, err = pool.Exec(ctx, stmt)
		require.NoError(t, err)
	}

	s := NewStore(pool)
	t.Cleanup(s.Close)
	return s
}

var (
	alice    = account.MustParse("0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed")
	contract = account.MustParse("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
)

func TestStoreRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	p := &plan.Plan{Name: "Pro", Price: money.MustParse("29.99"), Creator: contract, IsActive: true, Period: plan.DefaultPeriod}
	require.NoError(t, s.Plans().Create(ctx, p))
	assert.Equal(t, uint64(1), p.ID)

	got, err := s.Plans().FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, p.Price, got.Price)
	assert.Equal(t, plan.DefaultPeriod, got.Period)

	expiry := time.Now().Add(time.Hour).Truncate(time.Microsecond)
	sub := &subscription.Subscription{Owner: alice, PlanID: p.ID, ExpiryDate: expiry, IsActive: true, PaidPeriod: time.Hour}
	require.NoError(t, s.Subscriptions().Create(ctx, sub))
	assert.Equal(t, uint64(0), sub.TokenID)

	ids, err := s.Subscriptions().ListByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0}, ids)

	loaded, err := s.Subscriptions().FindByID(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Hour, loaded.PaidPeriod)

	sub.IsActive = false
	sub.Owner = ""
	sub.PaidPeriod = plan.DefaultPeriod
	require.NoError(t, s.Subscriptions().Update(ctx, sub))

	loaded, err = s.Subscriptions().FindByID(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, plan.DefaultPeriod, loaded.PaidPeriod)
	assert.False(t, loaded.IsActive)
	assert.True(t, loaded.Owner.IsZero())
	assert.True(t, expiry.Equal(loaded.ExpiryDate))
}

func TestListDueAutoRenewalsFrom(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Microsecond)

	p := &plan.Plan{Name: "Pro", Price: money.MustParse("1"), Creator: contract, IsActive: true, Period: plan.DefaultPeriod}
	require.NoError(t, s.Plans().Create(ctx, p))

	for i := 0; i < 3; i++ {
		sub := &subscription.Subscription{Owner: alice, PlanID: p.ID, ExpiryDate: now.Add(-time.Minute), IsActive: true, AutoRenewalEnabled: true}
		require.NoError(t, s.Subscriptions().Create(ctx, sub))
	}

	due, err := s.Subscriptions().ListDueAutoRenewals(ctx, now, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, due)

	due, err = s.Subscriptions().ListDueAutoRenewals(ctx, now, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, []uint64{1}, due)

	due, err = s.Subscriptions().ListDueAutoRenewals(ctx, now, 3, 0)
	require.NoError(t, err)
	assert.Empty(t, due)

	ids, err := s.Subscriptions().ListByOwner(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []uint64{0, 1, 2}, ids)
}

func TestLedgerRollback(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Ledger().Mint(ctx, alice, money.MustParse("10")))
	require.NoError(t, s.Ledger().Approve(ctx, alice, contract, money.MustParse("10")))

	boom := errors.New("boom")
	err := s.WithTx(ctx, func(tx repository.Tx) error {
		if err := tx.Ledger().TransferFrom(ctx, contract, alice, contract, money.MustParse("4")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, err := s.Ledger().BalanceOf(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("10"), bal)

	err = s.Ledger().TransferFrom(ctx, contract, alice, contract, money.MustParse("11"))
	assert.ErrorIs(t, err, xerrors.ErrInsufficientAllowance)
}
