// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"nftsub-service/internal/config"
	"nftsub-service/internal/db"
	"nftsub-service/internal/events"
	authHandler "nftsub-service/internal/handlers/auth"
	paymentHandler "nftsub-service/internal/handlers/payment"
	planHandler "nftsub-service/internal/handlers/plan"
	subscriptionHandler "nftsub-service/internal/handlers/subscription"
	systemHandler "nftsub-service/internal/handlers/system"
	wsHandler "nftsub-service/internal/handlers/websocket"
	"nftsub-service/internal/middleware"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/jwt"
	"nftsub-service/internal/pkg/ratelimit"
	"nftsub-service/internal/pkg/session"
	"nftsub-service/internal/repository"
	"nftsub-service/internal/repository/memory"
	"nftsub-service/internal/repository/postgres"
	paymentservice "nftsub-service/internal/service/payment"
	planservice "nftsub-service/internal/service/plan"
	"nftsub-service/internal/service/renewal"
	subscriptionservice "nftsub-service/internal/service/subscription"
	"nftsub-service/internal/websocket"
	wsHandlers "nftsub-service/internal/websocket/handler"
)

const shutdownTimeout = 10 * time.Second

// Dependencies are the external resources the server runs on. Redis is optional.
type Dependencies struct {
	Store    repository.Store
	Redis    redis.UniversalClient
	Verifier *jwt.Verifier
}

type Server struct {
	cfg    config.AppConfig
	logger *zap.Logger
	engine *gin.Engine
	srv    *http.Server
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	return &Server{cfg: cfg, logger: logger}
}

// Start connects to the configured store and Redis, serves HTTP and blocks
// until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	deps, cleanup, err := s.connect(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	engine, err := s.Build(ctx, deps)
	if err != nil {
		return err
	}

	s.srv = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.cfg.HTTPAddr))
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down http server: %w", err)
	}
	s.logger.Info("server stopped")
	return nil
}

// connect opens the store, Redis and the JWT verifier named by the config.
func (s *Server) connect(ctx context.Context) (Dependencies, func(), error) {
	var (
		deps    Dependencies
		closers []func()
		cleanup = func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		}
	)

	// ----- Store -----
	switch s.cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := db.ConnectDB(ctx, db.PostgresConfig{
			URL:           s.cfg.DatabaseURL,
			MaxConns:      s.cfg.DBMaxConns,
			RetryAttempts: s.cfg.DBRetryAttempts,
			RetryInterval: s.cfg.DBRetryInterval,
		}, s.logger)
		if err != nil {
			return deps, cleanup, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		if err := db.Migrate(ctx, pool, s.logger); err != nil {
			pool.Close()
			return deps, cleanup, err
		}
		store := postgres.NewStore(pool)
		closers = append(closers, store.Close)
		deps.Store = store
		s.logger.Info("using postgres store")
	default:
		deps.Store = memory.New()
		s.logger.Warn("using in-memory store; state is lost on restart")
	}

	// ----- Redis -----
	if s.cfg.RedisAddr != "" {
		client, err := db.NewRedisClient(ctx, db.RedisConfig{
			Addr:     s.cfg.RedisAddr,
			Password: s.cfg.RedisPass,
			DB:       s.cfg.RedisDB,
			PoolSize: 10,
		}, s.logger)
		if err != nil {
			cleanup()
			return deps, func() {}, err
		}
		closers = append(closers, func() { _ = client.Close() })
		deps.Redis = client
	} else {
		s.logger.Warn("REDIS_ADDR not set; event stream and faucet rate limit disabled")
	}

	// ----- JWT -----
	verifier, err := jwt.LoadVerifier(s.cfg.JWT)
	if err != nil {
		cleanup()
		return deps, func() {}, fmt.Errorf("failed to load JWT verifier: %w", err)
	}
	deps.Verifier = verifier

	return deps, cleanup, nil
}

// Build wires services and handlers over deps. Background workers (the
// websocket hub and the renewal sweeper) run until ctx is cancelled.
func (s *Server) Build(ctx context.Context, deps Dependencies) (*gin.Engine, error) {
	logger := s.logger
	isAdmin := account.AnyOf(s.cfg.Admins...)

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(deps.Verifier, isAdmin, logger)

	// ----- Event sinks -----
	sinks := []events.Publisher{events.NewLogPublisher(logger), hub}
	var (
		stream      *events.StreamPublisher
		limiter     ratelimit.Limiter
		revocations session.Revocations = session.NewMemoryStore()
	)
	if deps.Redis != nil {
		revocations = session.NewRedisStore(deps.Redis)
		stream = events.NewStreamPublisher(deps.Redis, s.cfg.EventStream, s.cfg.EventStreamMaxLen)
		sinks = append(sinks, stream)
		limiter = ratelimit.NewRateLimiter(deps.Redis)
	}
	publisher := events.NewMulti(logger, sinks...)

	// ----- Services -----
	planService := planservice.NewPlanService(deps.Store, isAdmin, s.cfg.RenewalPeriod, publisher, logger)
	paymentService := paymentservice.NewPaymentService(deps.Store, s.cfg.Contract, limiter, paymentservice.FaucetConfig{
		Amount:       s.cfg.Faucet,
		LimitPerHour: s.cfg.FaucetLimitPerHour,
	}, publisher, logger)
	engine := subscriptionservice.NewEngine(deps.Store, s.cfg.Contract, publisher, logger)

	if s.cfg.SeedDefaultPlans {
		if err := s.seedPlans(ctx, planService); err != nil {
			return nil, err
		}
	}

	hub.RegisterHandler(wsHandlers.NewSubscriptionHandler(engine))
	go hub.Run(ctx)

	sweeper := renewal.NewSweeper(engine, s.cfg.Contract, s.cfg.SweepInterval, s.cfg.SweepBatch, logger)
	go sweeper.Run(ctx)

	// ----- Handlers -----
	checks := map[string]systemHandler.Pinger{"store": deps.Store}
	if deps.Redis != nil {
		checks["redis"] = systemHandler.PingFunc(func(ctx context.Context) error {
			return deps.Redis.Ping(ctx).Err()
		})
	}
	var replay systemHandler.EventReader
	if stream != nil {
		replay = stream
	}

	handlers := &Handlers{
		AuthHandler:         authHandler.NewAuthHandler(revocations, logger),
		PlanHandler:         planHandler.NewPlanHandler(planService),
		SubscriptionHandler: subscriptionHandler.NewSubscriptionHandler(engine),
		PaymentHandler:      paymentHandler.NewPaymentHandler(paymentService),
		SystemHandler:       systemHandler.NewSystemHandler(planService, s.cfg.Contract, s.cfg.Admins, checks, replay, logger),
		WSHandler:           wsHandler.NewWebSocketHandler(hub, s.cfg.CORSOrigin, logger),
		AuthMiddleware:      middleware.NewAuthMiddleware(deps.Verifier, isAdmin, revocations),
	}

	// ----- Router -----
	r := gin.New()
	r.Use(
		middleware.RecoveryMiddleware(logger),
		middleware.LoggingMiddleware(logger),
		middleware.CORSMiddleware(s.cfg.CORSOrigin),
	)
	SetupRouter(r, logger, handlers)

	s.engine = r
	return r, nil
}

// seedPlans creates the launch catalog in an empty registry. The first
// administrator is recorded as creator, or the contract account if none is set.
func (s *Server) seedPlans(ctx context.Context, plans *planservice.PlanService) error {
	creator := s.cfg.Contract
	if len(s.cfg.Admins) > 0 {
		creator = s.cfg.Admins[0]
	}

	n, err := plans.SeedDefaults(ctx, creator)
	if err != nil {
		return fmt.Errorf("failed to seed default plans: %w", err)
	}
	if n > 0 {
		s.logger.Info("seeded default plans", zap.Int("count", n))
	}
	return nil
}
