// internal/db/redis.go
package db

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisConfig struct {
	// Addr is one host:port, or a comma-separated list for a cluster.
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Addresses splits Addr into its host:port entries.
func (c RedisConfig) Addresses() []string {
	var out []string
	for _, a := range strings.Split(c.Addr, ",") {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

// NewRedisClient connects to a single node, or to a cluster when several
// addresses are given, and pings it.
func NewRedisClient(ctx context.Context, cfg RedisConfig, logger *zap.Logger) (redis.UniversalClient, error) {
	addrs := cfg.Addresses()
	if len(addrs) == 0 {
		return nil, fmt.Errorf("no Redis address provided")
	}

	client := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    addrs,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("connected to redis", zap.Strings("addrs", addrs), zap.Bool("cluster", len(addrs) > 1))
	return client, nil
}
