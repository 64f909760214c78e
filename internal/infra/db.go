package infra

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

const dbConnectTimeout = 10 * time.Second

// NewDBPool opens the pool backing the credentials store and verifies it with
// a ping. It returns nil without error when DATABASE_URL is unset, which
// leaves the service on the RODIN_API_KEY environment key.
func NewDBPool(ctx context.Context, cfg *Config) (*pgxpool.Pool, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	dsn := strings.TrimSpace(cfg.DatabaseURL)
	if dsn == "" {
		return nil, nil
	}

	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	// The store is read once per key-cache expiry, so a small pool suffices.
	poolCfg.MaxConns = int32(cfg.DBMaxConns)
	if poolCfg.MaxConns <= 0 {
		poolCfg.MaxConns = 2
	}
	poolCfg.MinConns = 0
	poolCfg.MaxConnIdleTime = 5 * time.Minute
	poolCfg.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(ctx, dbConnectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return pool, nil
}
