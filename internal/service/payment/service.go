// internal/service/payment/service.go
package payment

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"nftsub-service/internal/domain/event"
	"nftsub-service/internal/domain/payment"
	"nftsub-service/internal/events"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/pkg/ratelimit"
	"nftsub-service/internal/repository"
)

const faucetWindow = time.Hour

// FaucetConfig controls the test-token faucet. A zero Amount disables it.
type FaucetConfig struct {
	Amount       money.Amount
	LimitPerHour int64
}

// PaymentService exposes the stand-in stable-coin ledger to API callers. The
// spender of every allowance it manages is the contract account.
type PaymentService struct {
	store     repository.Store
	contract  account.Address
	limiter   ratelimit.Limiter
	faucet    FaucetConfig
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPaymentService wires the ledger. limiter may be nil, in which case the
// faucet is not rate limited.
func NewPaymentService(
	store repository.Store,
	contract account.Address,
	limiter ratelimit.Limiter,
	faucet FaucetConfig,
	publisher events.Publisher,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		store:     store,
		contract:  contract,
		limiter:   limiter,
		faucet:    faucet,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

func (s *PaymentService) Contract() account.Address {
	return s.contract
}

func (s *PaymentService) BalanceOf(ctx context.Context, acct account.Address) (*payment.BalanceResponse, error) {
	bal, err := s.store.Ledger().BalanceOf(ctx, acct)
	if err != nil {
		return nil, err
	}
	return &payment.BalanceResponse{Account: acct.String(), Balance: bal, Formatted: bal.String()}, nil
}

// Allowance returns how much the contract account may draw from owner.
func (s *PaymentService) Allowance(ctx context.Context, owner account.Address) (*payment.AllowanceResponse, error) {
	amt, err := s.store.Ledger().Allowance(ctx, owner, s.contract)
	if err != nil {
		return nil, err
	}
	return &payment.AllowanceResponse{
		Owner:     owner.String(),
		Spender:   s.contract.String(),
		Allowance: amt,
		Formatted: amt.String(),
	}, nil
}

// Approve overwrites the contract's allowance over owner's balance.
func (s *PaymentService) Approve(ctx context.Context, owner account.Address, amount money.Amount) (*payment.AllowanceResponse, error) {
	if err := s.store.Ledger().Approve(ctx, owner, s.contract, amount); err != nil {
		return nil, fmt.Errorf("failed to approve: %w", err)
	}

	s.logger.Info("allowance approved",
		zap.String("owner", owner.String()),
		zap.String("spender", s.contract.String()),
		zap.Uint64("amount", uint64(amount)),
	)
	s.publish(ctx, event.New(event.TypePaymentApproved, owner, amount, s.now()).
		With("spender", s.contract.String()))

	return &payment.AllowanceResponse{
		Owner:     owner.String(),
		Spender:   s.contract.String(),
		Allowance: amount,
		Formatted: amount.String(),
	}, nil
}

// Faucet mints test tokens to acct, at most LimitPerHour times per hour.
func (s *PaymentService) Faucet(ctx context.Context, acct account.Address) (*payment.FaucetResponse, error) {
	if s.faucet.Amount == 0 {
		return nil, fmt.Errorf("%w: faucet is disabled", xerrors.ErrNotFound)
	}

	remaining := int64(-1)
	if s.limiter != nil && s.faucet.LimitPerHour > 0 {
		ok, left, err := s.limiter.Allow(ctx, "faucet:"+acct.String(), s.faucet.LimitPerHour, faucetWindow)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, xerrors.ErrRateLimited
		}
		remaining = left
	}

	if err := s.store.Ledger().Mint(ctx, acct, s.faucet.Amount); err != nil {
		return nil, fmt.Errorf("failed to mint: %w", err)
	}
	bal, err := s.store.Ledger().BalanceOf(ctx, acct)
	if err != nil {
		return nil, err
	}

	s.logger.Info("faucet mint",
		zap.String("account", acct.String()),
		zap.Uint64("amount", uint64(s.faucet.Amount)),
	)
	s.publish(ctx, event.New(event.TypePaymentMinted, acct, s.faucet.Amount, s.now()))

	return &payment.FaucetResponse{
		Account:   acct.String(),
		Minted:    s.faucet.Amount,
		Balance:   bal,
		Remaining: remaining,
	}, nil
}

func (s *PaymentService) publish(ctx context.Context, e event.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
