// internal/repository/postgres/ledger_repo.go
package postgres

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/jackc/pgx/v5"

	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
)

// ledger stores balances and allowances as BIGINT, so amounts above
// math.MaxInt64 are rejected.
type ledger struct {
	q querier
}

func (l *ledger) BalanceOf(ctx context.Context, acct account.Address) (money.Amount, error) {
	var bal int64
	err := l.q.QueryRow(ctx, `SELECT balance FROM ledger_balances WHERE account = $1`, acct.String()).Scan(&bal)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read balance: %w", err)
	}
	return money.Amount(bal), nil
}

func (l *ledger) Allowance(ctx context.Context, owner, spender account.Address) (money.Amount, error) {
	var amt int64
	err := l.q.QueryRow(ctx,
		`SELECT amount FROM ledger_allowances WHERE owner = $1 AND spender = $2`,
		owner.String(), spender.String(),
	).Scan(&amt)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read allowance: %w", err)
	}
	return money.Amount(amt), nil
}

func (l *ledger) Approve(ctx context.Context, owner, spender account.Address, amount money.Amount) error {
	amt, err := toBigint(amount)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO ledger_allowances (owner, spender, amount) VALUES ($1, $2, $3)
		ON CONFLICT (owner, spender) DO UPDATE SET amount = EXCLUDED.amount
	`
	if _, err := l.q.Exec(ctx, query, owner.String(), spender.String(), amt); err != nil {
		return fmt.Errorf("failed to approve: %w", err)
	}
	return nil
}

func (l *ledger) Mint(ctx context.Context, to account.Address, amount money.Amount) error {
	amt, err := toBigint(amount)
	if err != nil {
		return err
	}
	return l.credit(ctx, to, amt)
}

func (l *ledger) Transfer(ctx context.Context, from, to account.Address, amount money.Amount) error {
	amt, err := toBigint(amount)
	if err != nil {
		return err
	}
	if amt == 0 {
		return nil
	}
	if err := l.debit(ctx, from, amt); err != nil {
		return err
	}
	return l.credit(ctx, to, amt)
}

func (l *ledger) TransferFrom(ctx context.Context, spender, owner, to account.Address, amount money.Amount) error {
	amt, err := toBigint(amount)
	if err != nil {
		return err
	}
	if amt == 0 {
		return nil
	}

	tag, err := l.q.Exec(ctx, `
		UPDATE ledger_allowances SET amount = amount - $3
		WHERE owner = $1 AND spender = $2 AND amount >= $3
	`, owner.String(), spender.String(), amt)
	if err != nil {
		return fmt.Errorf("failed to consume allowance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrInsufficientAllowance
	}

	if err := l.debit(ctx, owner, amt); err != nil {
		return err
	}
	return l.credit(ctx, to, amt)
}

func (l *ledger) debit(ctx context.Context, from account.Address, amt int64) error {
	tag, err := l.q.Exec(ctx,
		`UPDATE ledger_balances SET balance = balance - $2 WHERE account = $1 AND balance >= $2`,
		from.String(), amt,
	)
	if err != nil {
		return fmt.Errorf("failed to debit balance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrInsufficientBalance
	}
	return nil
}

func (l *ledger) credit(ctx context.Context, to account.Address, amt int64) error {
	query := `
		INSERT INTO ledger_balances (account, balance) VALUES ($1, $2)
		ON CONFLICT (account) DO UPDATE SET balance = ledger_balances.balance + EXCLUDED.balance
	`
	if _, err := l.q.Exec(ctx, query, to.String(), amt); err != nil {
		return fmt.Errorf("failed to credit balance: %w", err)
	}
	return nil
}

func toBigint(a money.Amount) (int64, error) {
	if uint64(a) > math.MaxInt64 {
		return 0, fmt.Errorf("%w: amount %d exceeds storage range", xerrors.ErrInvalidInput, a)
	}
	return int64(a), nil
}
