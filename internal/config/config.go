// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"nftsub-service/internal/events"
	"nftsub-service/internal/pkg/account"
	"nftsub-service/internal/pkg/jwt"
	"nftsub-service/internal/pkg/money"
)

const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
)

type AppConfig struct {
	// Server
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8000"`
	CORSOrigin string `env:"CORS_ORIGIN" envDefault:"*"`

	// Store
	StoreDriver     string        `env:"STORE_DRIVER" envDefault:"memory"`
	DatabaseURL     string        `env:"DATABASE_URL"`
	DBMaxConns      int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	DBRetryAttempts int           `env:"DB_RETRY_ATTEMPTS" envDefault:"5"`
	DBRetryInterval time.Duration `env:"DB_RETRY_INTERVAL" envDefault:"2s"`

	// Redis is optional; without it events are not streamed and the faucet is not rate limited.
	RedisAddr         string `env:"REDIS_ADDR"`
	RedisPass         string `env:"REDIS_PASS"`
	RedisDB           int    `env:"REDIS_DB" envDefault:"0"`
	EventStream       string `env:"EVENT_STREAM" envDefault:"subscription:events"`
	EventStreamMaxLen int64  `env:"EVENT_STREAM_MAXLEN" envDefault:"10000"`

	// JWT
	JWT jwt.Config

	// Ledger
	AdminAccounts    []string      `env:"ADMIN_ACCOUNTS" envSeparator:","`
	ContractAccount  string        `env:"CONTRACT_ACCOUNT" envDefault:"0x00000000000000000000000000000000c0ffee01"`
	RenewalPeriod    time.Duration `env:"RENEWAL_PERIOD" envDefault:"720h"`
	SeedDefaultPlans bool          `env:"SEED_DEFAULT_PLANS" envDefault:"true"`

	// Auto-renewal keeper
	SweepInterval time.Duration `env:"SWEEP_INTERVAL" envDefault:"0s"`
	SweepBatch    int           `env:"SWEEP_BATCH" envDefault:"100"`

	// Faucet
	FaucetAmount       string `env:"FAUCET_AMOUNT" envDefault:"1000"`
	FaucetLimitPerHour int64  `env:"FAUCET_LIMIT_PER_HOUR" envDefault:"5"`

	// Parsed forms, filled by Load.
	Admins   []account.Address
	Contract account.Address
	Faucet   money.Amount
}

// Load reads the process environment. .env files are loaded by the caller.
func Load() (AppConfig, error) {
	return parse(env.Options{})
}

// LoadFrom reads cfg from the given variables only.
func LoadFrom(vars map[string]string) (AppConfig, error) {
	return parse(env.Options{Environment: vars})
}

func parse(opts env.Options) (AppConfig, error) {
	var cfg AppConfig
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return cfg, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.resolve(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *AppConfig) resolve() error {
	switch c.StoreDriver {
	case DriverMemory:
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER=%s", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	admins, err := account.ParseList(c.AdminAccounts)
	if err != nil {
		return fmt.Errorf("ADMIN_ACCOUNTS: %w", err)
	}
	c.Admins = admins

	contract, err := account.Parse(c.ContractAccount)
	if err != nil {
		return fmt.Errorf("CONTRACT_ACCOUNT: %w", err)
	}
	c.Contract = contract

	faucet, err := money.Parse(c.FaucetAmount)
	if err != nil {
		return fmt.Errorf("FAUCET_AMOUNT: %w", err)
	}
	c.Faucet = faucet

	if c.RenewalPeriod < time.Second {
		return fmt.Errorf("RENEWAL_PERIOD must be at least one second, got %s", c.RenewalPeriod)
	}
	if c.SweepBatch < 1 {
		return fmt.Errorf("SWEEP_BATCH must be positive, got %d", c.SweepBatch)
	}
	if c.EventStream == "" {
		c.EventStream = events.DefaultStream
	}
	return nil
}
