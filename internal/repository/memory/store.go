// internal/repository/memory/store.go
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"nftsub-service/internal/domain/plan"
	"nftsub-service/internal/domain/subscription"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/repository"
)

type allowanceKey struct {
	owner   account.Address
	spender account.Address
}

// Store keeps every record in process memory. Each change made in a
// transaction records its inverse and a failed transaction replays the
// inverses in reverse order. Transactions run one at a time and reads outside
// them wait, so no reader sees a change that is later undone.
type Store struct {
	// commit is held exclusively by WithTx and shared by calls outside it.
	commit sync.RWMutex
	mu     sync.RWMutex

	plans      map[uint64]*plan.Plan
	nextPlanID uint64

	subscriptions map[uint64]*subscription.Subscription
	nextTokenID   uint64
	owners        map[account.Address][]uint64

	balances   map[account.Address]money.Amount
	allowances map[allowanceKey]money.Amount
}

func New() *Store {
	return &Store{
		plans:         make(map[uint64]*plan.Plan),
		nextPlanID:    1,
		subscriptions: make(map[uint64]*subscription.Subscription),
		owners:        make(map[account.Address][]uint64),
		balances:      make(map[account.Address]money.Amount),
		allowances:    make(map[allowanceKey]money.Amount),
	}
}

var _ repository.Store = (*Store)(nil)

func (s *Store) Plans() repository.PlanRepository                 { return &planRepo{s: s} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return &subscriptionRepo{s: s} }
func (s *Store) Ledger() repository.Ledger                        { return &ledger{s: s} }

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close()                     {}

// WithTx runs fn and rolls back its changes when it returns an error.
// fn must reach the store only through tx.
func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	s.commit.Lock()
	defer s.commit.Unlock()

	t := &tx{s: s}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

type tx struct {
	s    *Store
	mu   sync.Mutex
	undo []func()
}

func (t *tx) Plans() repository.PlanRepository { return &planRepo{s: t.s, tx: t} }
func (t *tx) Subscriptions() repository.SubscriptionRepository {
	return &subscriptionRepo{s: t.s, tx: t}
}
func (t *tx) Ledger() repository.Ledger { return &ledger{s: t.s, tx: t} }

// enter blocks while a transaction is open, unless the caller is that
// transaction.
func (s *Store) enter(t *tx) func() {
	if t != nil {
		return func() {}
	}
	s.commit.RLock()
	return s.commit.RUnlock
}

// record must be called with s.mu held.
func (t *tx) record(fn func()) {
	if t == nil {
		return
	}
	t.mu.Lock()
	t.undo = append(t.undo, fn)
	t.mu.Unlock()
}

func (t *tx) rollback() {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()

	t.mu.Lock()
	defer t.mu.Unlock()
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// ========== Plans ==========

type planRepo struct {
	s  *Store
	tx *tx
}

func (r *planRepo) Create(_ context.Context, p *plan.Plan) error {
	defer r.s.enter(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p.ID = r.s.nextPlanID
	r.s.nextPlanID++
	cp := *p
	r.s.plans[p.ID] = &cp

	id := p.ID
	r.tx.record(func() { delete(r.s.plans, id) })
	return nil
}

func (r *planRepo) FindByID(_ context.Context, id uint64) (*plan.Plan, error) {
	defer r.s.enter(r.tx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	p, ok := r.s.plans[id]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *planRepo) List(_ context.Context) ([]plan.Plan, error) {
	defer r.s.enter(r.tx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := make([]plan.Plan, 0, len(r.s.plans))
	for _, p := range r.s.plans {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *planRepo) SetActive(_ context.Context, id uint64, active bool) error {
	defer r.s.enter(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.plans[id]
	if !ok {
		return xerrors.ErrNotFound
	}
	prev := p.IsActive
	p.IsActive = active
	r.tx.record(func() { p.IsActive = prev })
	return nil
}

func (r *planRepo) Count(_ context.Context) (int, error) {
	defer r.s.enter(r.tx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return len(r.s.plans), nil
}

// ========== Subscriptions ==========

type subscriptionRepo struct {
	s  *Store
	tx *tx
}

func (r *subscriptionRepo) Create(_ context.Context, sub *subscription.Subscription) error {
	defer r.s.enter(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	sub.TokenID = r.s.nextTokenID
	r.s.nextTokenID++
	cp := *sub
	r.s.subscriptions[sub.TokenID] = &cp
	r.indexLocked(sub.Owner, sub.TokenID)

	id := sub.TokenID
	r.tx.record(func() { delete(r.s.subscriptions, id) })
	return nil
}

func (r *subscriptionRepo) FindByID(_ context.Context, tokenID uint64) (*subscription.Subscription, error) {
	defer r.s.enter(r.tx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	sub, ok := r.s.subscriptions[tokenID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	return cloneSubscription(sub), nil
}

func (r *subscriptionRepo) Update(_ context.Context, sub *subscription.Subscription) error {
	defer r.s.enter(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	prev, ok := r.s.subscriptions[sub.TokenID]
	if !ok {
		return xerrors.ErrNotFound
	}
	r.s.subscriptions[sub.TokenID] = cloneSubscription(sub)
	r.tx.record(func() { r.s.subscriptions[prev.TokenID] = prev })
	return nil
}

func (r *subscriptionRepo) IndexOwner(_ context.Context, owner account.Address, tokenID uint64) error {
	defer r.s.enter(r.tx)()
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.indexLocked(owner, tokenID)
	return nil
}

func (r *subscriptionRepo) indexLocked(owner account.Address, tokenID uint64) {
	if owner.IsZero() {
		return
	}
	r.s.owners[owner] = append(r.s.owners[owner], tokenID)
	r.tx.record(func() {
		ids := r.s.owners[owner]
		for i := len(ids) - 1; i >= 0; i-- {
			if ids[i] == tokenID {
				r.s.owners[owner] = append(ids[:i:i], ids[i+1:]...)
				break
			}
		}
	})
}

func (r *subscriptionRepo) ListByOwner(_ context.Context, owner account.Address) ([]uint64, error) {
	defer r.s.enter(r.tx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	ids := r.s.owners[owner]
	out := make([]uint64, len(ids))
	copy(out, ids)
	return out, nil
}

func (r *subscriptionRepo) ListDueAutoRenewals(_ context.Context, now time.Time, from uint64, limit int) ([]uint64, error) {
	defer r.s.enter(r.tx)()
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	out := []uint64{}
	for id, sub := range r.s.subscriptions {
		if id >= from && sub.IsActive && sub.AutoRenewalEnabled && !now.Before(sub.ExpiryDate) {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func cloneSubscription(sub *subscription.Subscription) *subscription.Subscription {
	cp := *sub
	if sub.CancelledAt != nil {
		at := *sub.CancelledAt
		cp.CancelledAt = &at
	}
	return &cp
}

// ========== Ledger ==========

type ledger struct {
	s  *Store
	tx *tx
}

func (l *ledger) BalanceOf(_ context.Context, acct account.Address) (money.Amount, error) {
	defer l.s.enter(l.tx)()
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return l.s.balances[acct], nil
}

func (l *ledger) Allowance(_ context.Context, owner, spender account.Address) (money.Amount, error) {
	defer l.s.enter(l.tx)()
	l.s.mu.RLock()
	defer l.s.mu.RUnlock()
	return l.s.allowances[allowanceKey{owner, spender}], nil
}

func (l *ledger) Approve(_ context.Context, owner, spender account.Address, amount money.Amount) error {
	defer l.s.enter(l.tx)()
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	key := allowanceKey{owner, spender}
	prev := l.s.allowances[key]
	l.s.allowances[key] = amount
	l.tx.record(func() { l.s.allowances[key] = prev })
	return nil
}

func (l *ledger) Mint(_ context.Context, to account.Address, amount money.Amount) error {
	defer l.s.enter(l.tx)()
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.creditLocked(to, amount)
}

func (l *ledger) Transfer(_ context.Context, from, to account.Address, amount money.Amount) error {
	defer l.s.enter(l.tx)()
	l.s.mu.Lock()
	defer l.s.mu.Unlock()
	return l.transferLocked(from, to, amount)
}

func (l *ledger) TransferFrom(_ context.Context, spender, owner, to account.Address, amount money.Amount) error {
	defer l.s.enter(l.tx)()
	l.s.mu.Lock()
	defer l.s.mu.Unlock()

	key := allowanceKey{owner, spender}
	allowed := l.s.allowances[key]
	if allowed < amount {
		return xerrors.ErrInsufficientAllowance
	}
	if l.s.balances[owner] < amount {
		return xerrors.ErrInsufficientBalance
	}

	l.s.allowances[key] = allowed - amount
	l.tx.record(func() { l.s.allowances[key] += amount })
	return l.transferLocked(owner, to, amount)
}

func (l *ledger) transferLocked(from, to account.Address, amount money.Amount) error {
	if l.s.balances[from] < amount {
		return xerrors.ErrInsufficientBalance
	}
	if _, overflow := l.s.balances[to].Add(amount); overflow && from != to {
		return xerrors.ErrInvalidInput
	}
	l.s.balances[from] -= amount
	l.s.balances[to] += amount
	l.tx.record(func() {
		l.s.balances[to] -= amount
		l.s.balances[from] += amount
	})
	return nil
}

func (l *ledger) creditLocked(to account.Address, amount money.Amount) error {
	sum, overflow := l.s.balances[to].Add(amount)
	if overflow {
		return xerrors.ErrInvalidInput
	}
	l.s.balances[to] = sum
	l.tx.record(func() { l.s.balances[to] -= amount })
	return nil
}
