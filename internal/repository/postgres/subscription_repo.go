// internal/repository/postgres/subscription_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lib/pq"

	"nftsub-service/internal/domain/subscription"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
)

type subscriptionRepo struct {
	q querier
	// forUpdate makes FindByID lock the row for the rest of the transaction.
	forUpdate bool
}

const subscriptionColumns = `
	token_id, owner, plan_id, expiry_date, is_active, auto_renewal_enabled,
	renewal_count, paid_period_seconds, cancelled_at, created_at, updated_at
`

// Create mints the next token ID and records the first owner.
func (r *subscriptionRepo) Create(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		INSERT INTO subscriptions (
			token_id, owner, plan_id, expiry_date, is_active, auto_renewal_enabled, renewal_count,
			paid_period_seconds
		) VALUES (nextval('subscription_token_seq'), $1, $2, $3, $4, $5, $6, $7)
		RETURNING token_id, created_at, updated_at
	`

	var tokenID int64
	err := r.q.QueryRow(ctx, query,
		nullableOwner(sub.Owner), int64(sub.PlanID), sub.ExpiryDate, sub.IsActive,
		sub.AutoRenewalEnabled, sub.RenewalCount, int64(sub.PaidPeriod/time.Second),
	).Scan(&tokenID, &sub.CreatedAt, &sub.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create subscription: %w", err)
	}
	sub.TokenID = uint64(tokenID)

	if sub.Owner.IsZero() {
		return nil
	}
	return r.IndexOwner(ctx, sub.Owner, sub.TokenID)
}

// FindByID retrieves a subscription by token ID
func (r *subscriptionRepo) FindByID(ctx context.Context, tokenID uint64) (*subscription.Subscription, error) {
	query := `SELECT ` + subscriptionColumns + ` FROM subscriptions WHERE token_id = $1`
	if r.forUpdate {
		query += ` FOR UPDATE`
	}

	sub, err := scanSubscription(r.q.QueryRow(ctx, query, int64(tokenID)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find subscription: %w", err)
	}
	return sub, nil
}

// Update writes every mutable column of the record.
func (r *subscriptionRepo) Update(ctx context.Context, sub *subscription.Subscription) error {
	query := `
		UPDATE subscriptions SET
			owner = $1, expiry_date = $2, is_active = $3, auto_renewal_enabled = $4,
			renewal_count = $5, paid_period_seconds = $6, cancelled_at = $7, updated_at = NOW()
		WHERE token_id = $8
		RETURNING updated_at
	`

	err := r.q.QueryRow(ctx, query,
		nullableOwner(sub.Owner), sub.ExpiryDate, sub.IsActive, sub.AutoRenewalEnabled,
		sub.RenewalCount, int64(sub.PaidPeriod/time.Second), sub.CancelledAt, int64(sub.TokenID),
	).Scan(&sub.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return xerrors.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update subscription: %w", err)
	}
	return nil
}

func (r *subscriptionRepo) IndexOwner(ctx context.Context, owner account.Address, tokenID uint64) error {
	_, err := r.q.Exec(ctx,
		`INSERT INTO subscription_owners (owner, token_id) VALUES ($1, $2)`,
		owner.String(), int64(tokenID),
	)
	if err != nil {
		return fmt.Errorf("failed to index subscription owner: %w", err)
	}
	return nil
}

// ListByOwner returns every token ever indexed for owner, oldest first.
func (r *subscriptionRepo) ListByOwner(ctx context.Context, owner account.Address) ([]uint64, error) {
	query := `
		SELECT COALESCE(array_agg(token_id ORDER BY seq), '{}')
		FROM subscription_owners
		WHERE owner = $1
	`
	return r.scanIDs(ctx, query, owner.String())
}

func (r *subscriptionRepo) ListDueAutoRenewals(ctx context.Context, now time.Time, from uint64, limit int) ([]uint64, error) {
	query := `
		SELECT COALESCE(array_agg(token_id ORDER BY token_id), '{}')
		FROM (
			SELECT token_id FROM subscriptions
			WHERE is_active AND auto_renewal_enabled AND expiry_date <= $1 AND token_id >= $2
			ORDER BY token_id
			LIMIT NULLIF($3, 0)
		) due
	`
	return r.scanIDs(ctx, query, now, int64(from), limit)
}

// scanIDs reads a single bigint[] column.
func (r *subscriptionRepo) scanIDs(ctx context.Context, query string, args ...any) ([]uint64, error) {
	var ids pq.Int64Array
	if err := r.q.QueryRow(ctx, query, args...).Scan(&ids); err != nil {
		return nil, fmt.Errorf("failed to list token ids: %w", err)
	}

	out := make([]uint64, len(ids))
	for i, id := range ids {
		out[i] = uint64(id)
	}
	return out, nil
}

func scanSubscription(row pgx.Row) (*subscription.Subscription, error) {
	var (
		s       subscription.Subscription
		tokenID int64
		owner   *string
		planID  int64
		paid    int64
	)
	err := row.Scan(
		&tokenID, &owner, &planID, &s.ExpiryDate, &s.IsActive, &s.AutoRenewalEnabled,
		&s.RenewalCount, &paid, &s.CancelledAt, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	s.PaidPeriod = time.Duration(paid) * time.Second
	s.TokenID = uint64(tokenID)
	s.PlanID = uint64(planID)
	if owner != nil {
		s.Owner = account.Address(*owner)
	}
	return &s, nil
}

func nullableOwner(a account.Address) *string {
	if a.IsZero() {
		return nil
	}
	s := a.String()
	return &s
}
