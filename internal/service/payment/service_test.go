package payment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/repository/memory"
)

var (
	contract = account.MustParse("0xdbF03B407c01E7cD3CBea99509d93f8DDDC8C6FB")
	user     = account.MustParse("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")
)

// countingLimiter allows the first max hits per key.
type countingLimiter struct {
	hits map[string]int64
}

func (l *countingLimiter) Allow(_ context.Context, key string, max int64, _ time.Duration) (bool, int64, error) {
	l.hits[key]++
	left := max - l.hits[key]
	if left < 0 {
		left = 0
	}
	return l.hits[key] <= max, left, nil
}

func TestApproveAndAllowance(t *testing.T) {
	svc := NewPaymentService(memory.New(), contract, nil, FaucetConfig{}, nil, zap.NewNop())
	ctx := context.Background()

	res, err := svc.Approve(ctx, user, money.MustParse("29.99"))
	require.NoError(t, err)
	assert.Equal(t, contract.String(), res.Spender)

	got, err := svc.Allowance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, money.Amount(29_990_000), got.Allowance)
	assert.Equal(t, "29.99", got.Formatted)

	// ERC20 semantics: approve overwrites.
	_, err = svc.Approve(ctx, user, 0)
	require.NoError(t, err)
	got, err = svc.Allowance(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, got.Allowance)
}

func TestFaucetRateLimited(t *testing.T) {
	limiter := &countingLimiter{hits: map[string]int64{}}
	svc := NewPaymentService(memory.New(), contract, limiter,
		FaucetConfig{Amount: money.MustParse("100"), LimitPerHour: 2}, nil, zap.NewNop())
	ctx := context.Background()

	res, err := svc.Faucet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("100"), res.Balance)
	assert.Equal(t, int64(1), res.Remaining)

	res, err = svc.Faucet(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, money.MustParse("200"), res.Balance)

	_, err = svc.Faucet(ctx, user)
	assert.ErrorIs(t, err, xerrors.ErrRateLimited)

	bal, err := svc.BalanceOf(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, "200", bal.Formatted)
}

func TestFaucetDisabled(t *testing.T) {
	svc := NewPaymentService(memory.New(), contract, nil, FaucetConfig{}, nil, zap.NewNop())
	_, err := svc.Faucet(context.Background(), user)
	assert.ErrorIs(t, err, xerrors.ErrNotFound)
}
