// internal/service/plan/service.go
package plan

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"nftsub-service/internal/domain/event"
	"nftsub-service/internal/domain/plan"
	"nftsub-service/internal/events"
	xerrors "nftsub-service/internal/pkg/errors"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/money"
	"nftsub-service/internal/repository"
)

type PlanService struct {
	store     repository.Store
	isAdmin   account.Predicate
	period    time.Duration
	publisher events.Publisher
	logger    *zap.Logger
	now       func() time.Time
}

// NewPlanService builds the catalog service. period is stamped on every new
// plan; zero means plan.DefaultPeriod.
func NewPlanService(store repository.Store, isAdmin account.Predicate, period time.Duration, publisher events.Publisher, logger *zap.Logger) *PlanService {
	if period <= 0 {
		period = plan.DefaultPeriod
	}
	return &PlanService{
		store:     store,
		isAdmin:   isAdmin,
		period:    period,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
	}
}

// WithClock replaces the time source; used by tests.
func (s *PlanService) WithClock(now func() time.Time) *PlanService {
	s.now = now
	return s
}

// CreatePlan adds an active plan to the catalog. Only administrators may call it.
func (s *PlanService) CreatePlan(ctx context.Context, caller account.Address, req *plan.CreatePlanRequest) (*plan.Plan, error) {
	if !s.isAdmin(caller) {
		return nil, fmt.Errorf("create plan: %w", xerrors.ErrUnauthorized)
	}
	return s.create(ctx, caller, req)
}

func (s *PlanService) create(ctx context.Context, caller account.Address, req *plan.CreatePlanRequest) (*plan.Plan, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: plan name is required", xerrors.ErrInvalidInput)
	}
	if req.Price == 0 {
		return nil, fmt.Errorf("%w: plan price must be positive", xerrors.ErrInvalidInput)
	}

	p := &plan.Plan{
		Name:        name,
		Price:       money.Amount(req.Price),
		Description: strings.TrimSpace(req.Description),
		Creator:     caller,
		IsActive:    true,
		Period:      s.period,
		CreatedAt:   s.now().UTC(),
	}

	if err := s.store.Plans().Create(ctx, p); err != nil {
		s.logger.Error("failed to create plan", zap.Error(err))
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}

	s.logger.Info("plan created",
		zap.Uint64("plan_id", p.ID),
		zap.String("name", p.Name),
		zap.String("price", p.Price.String()),
		zap.String("creator", caller.String()),
	)
	s.publish(ctx, event.New(event.TypePlanCreated, caller, p.Price, s.now()).
		WithPlan(p.ID).
		With("name", p.Name))

	return p, nil
}

// GetAvailablePlans returns every plan in creation order, inactive ones included.
func (s *PlanService) GetAvailablePlans(ctx context.Context) ([]plan.Plan, error) {
	plans, err := s.store.Plans().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

// GetPlan retrieves a plan by ID
func (s *PlanService) GetPlan(ctx context.Context, id uint64) (*plan.Plan, error) {
	return s.store.Plans().FindByID(ctx, id)
}

// SetPlanActive switches whether new subscriptions to the plan are accepted.
// Existing subscriptions are unaffected.
func (s *PlanService) SetPlanActive(ctx context.Context, caller account.Address, id uint64, active bool) (*plan.Plan, error) {
	if !s.isAdmin(caller) {
		return nil, fmt.Errorf("set plan status: %w", xerrors.ErrUnauthorized)
	}

	if err := s.store.Plans().SetActive(ctx, id, active); err != nil {
		return nil, err
	}
	p, err := s.store.Plans().FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.logger.Info("plan status changed",
		zap.Uint64("plan_id", id),
		zap.Bool("is_active", active),
		zap.String("actor", caller.String()),
	)
	s.publish(ctx, event.New(event.TypePlanStatusChanged, caller, 0, s.now()).
		WithPlan(id).
		With("is_active", active))

	return p, nil
}

// Count returns the number of plans ever created.
func (s *PlanService) Count(ctx context.Context) (int, error) {
	return s.store.Plans().Count(ctx)
}

// Period returns the renewal period stamped on new plans.
func (s *PlanService) Period() time.Duration {
	return s.period
}

// SeedDefaults creates the launch catalog when no plan exists yet and returns
// how many plans it created. creator need not be an administrator.
func (s *PlanService) SeedDefaults(ctx context.Context, creator account.Address) (int, error) {
	n, err := s.store.Plans().Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to count plans: %w", err)
	}
	if n > 0 {
		return 0, nil
	}

	created := 0
	for _, d := range plan.Defaults {
		req := &plan.CreatePlanRequest{Name: d.Name, Price: uint64(d.Price), Description: d.Description}
		if _, err := s.create(ctx, creator, req); err != nil {
			return created, fmt.Errorf("failed to seed plan %q: %w", d.Name, err)
		}
		created++
	}
	return created, nil
}

func (s *PlanService) publish(ctx context.Context, e event.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, e); err != nil {
		s.logger.Warn("failed to publish event", zap.String("type", string(e.Type)), zap.Error(err))
	}
}
