// internal/repository/postgres/plan_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"nftsub-service/internal/domain/plan"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
)

type planRepo struct {
	q querier
}

const planColumns = `id, name, price, description, creator, is_active, period_seconds, created_at`

// Create inserts a plan and assigns its ID from the BIGSERIAL sequence.
func (r *planRepo) Create(ctx context.Context, p *plan.Plan) error {
	query := `
		INSERT INTO plans (name, price, description, creator, is_active, period_seconds)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`

	var id int64
	err := r.q.QueryRow(ctx, query,
		p.Name, int64(p.Price), p.Description, p.Creator.String(), p.IsActive, int64(p.PeriodSeconds()),
	).Scan(&id, &p.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create plan: %w", err)
	}
	p.ID = uint64(id)
	return nil
}

// FindByID retrieves a plan by ID
func (r *planRepo) FindByID(ctx context.Context, id uint64) (*plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans WHERE id = $1`

	p, err := scanPlan(r.q.QueryRow(ctx, query, int64(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, xerrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find plan: %w", err)
	}
	return p, nil
}

// List returns every plan ordered by ID
func (r *planRepo) List(ctx context.Context) ([]plan.Plan, error) {
	query := `SELECT ` + planColumns + ` FROM plans ORDER BY id`

	rows, err := r.q.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	defer rows.Close()

	plans := []plan.Plan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan plan: %w", err)
		}
		plans = append(plans, *p)
	}
	return plans, rows.Err()
}

func (r *planRepo) SetActive(ctx context.Context, id uint64, active bool) error {
	tag, err := r.q.Exec(ctx, `UPDATE plans SET is_active = $1 WHERE id = $2`, active, int64(id))
	if err != nil {
		return fmt.Errorf("failed to update plan status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *planRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.q.QueryRow(ctx, `SELECT COUNT(*) FROM plans`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	return n, nil
}

func scanPlan(row pgx.Row) (*plan.Plan, error) {
	var (
		p       plan.Plan
		id      int64
		price   int64
		creator string
		period  int64
	)
	if err := row.Scan(&id, &p.Name, &price, &p.Description, &creator, &p.IsActive, &period, &p.CreatedAt); err != nil {
		return nil, err
	}
	p.ID = uint64(id)
	p.Price = money.Amount(price)
	p.Creator = account.Address(creator)
	p.Period = time.Duration(period) * time.Second
	return &p, nil
}
