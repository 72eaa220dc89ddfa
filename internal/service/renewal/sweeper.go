// internal/service/renewal/sweeper.go
package renewal

import (
	"context"
	"time"

	"go.uber.org/zap"

	"nftsub-service/internal/domain/subscription"
	"nftsub-service/internal/pkg/account"
)

// Renewer is the part of the subscription engine the sweeper drives.
type Renewer interface {
	DueAutoRenewals(ctx context.Context, from uint64, limit int) ([]uint64, error)
	ProcessAutoRenewal(ctx context.Context, caller account.Address, tokenID uint64) (*subscription.RenewResult, error)
}

// Sweeper periodically renews subscriptions whose auto-renewal is due.
type Sweeper struct {
	renewer  Renewer
	keeper   account.Address
	interval time.Duration
	batch    int
	logger   *zap.Logger
}

// SweepResult summarises one pass.
type SweepResult struct {
	Due     int
	Renewed int
	Failed  int
}

func NewSweeper(renewer Renewer, keeper account.Address, interval time.Duration, batch int, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		renewer:  renewer,
		keeper:   keeper,
		interval: interval,
		batch:    batch,
		logger:   logger,
	}
}

// Run sweeps every interval until ctx is done. A non-positive interval
// disables the sweeper.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("renewal sweeper disabled")
		return
	}

	s.logger.Info("renewal sweeper started",
		zap.Duration("interval", s.interval),
		zap.Int("batch", s.batch),
	)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("renewal sweeper stopped")
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.logger.Error("renewal sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep walks every due token in pages of batch, in token order. Failing
// renewals are logged and skipped; they stay expired until the owner acts.
// Each pass resumes after the last token tried, so failures never hide later
// tokens.
func (s *Sweeper) Sweep(ctx context.Context) (SweepResult, error) {
	var (
		res  SweepResult
		from uint64
	)

	for {
		due, err := s.renewer.DueAutoRenewals(ctx, from, s.batch)
		if err != nil {
			return res, err
		}
		res.Due += len(due)

		for _, tokenID := range due {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			if _, err := s.renewer.ProcessAutoRenewal(ctx, s.keeper, tokenID); err != nil {
				res.Failed++
				s.logger.Warn("auto-renewal skipped",
					zap.Uint64("token_id", tokenID),
					zap.Error(err),
				)
				continue
			}
			res.Renewed++
		}

		if len(due) == 0 || s.batch <= 0 || len(due) < s.batch {
			break
		}
		from = due[len(due)-1] + 1
	}

	if res.Due > 0 {
		s.logger.Info("renewal sweep complete",
			zap.Int("due", res.Due),
			zap.Int("renewed", res.Renewed),
			zap.Int("failed", res.Failed),
		)
	}
	return res, nil
}
