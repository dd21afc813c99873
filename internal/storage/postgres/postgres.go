// Package postgres stores the room event journal in PostgreSQL using pgx v5.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomlink/internal/config"
)

// applicationName identifies journal sessions in pg_stat_activity.
const applicationName = "roomlink"

// Pool is the journal's connection pool.
type Pool struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPool connects to the database described by cfg and verifies it answers.
//
// Precondition: cfg must have passed config validation; logger must be non-nil.
// Postcondition: Returns a connected Pool or a non-nil error; nothing is left
// open on error.
func NewPool(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*Pool, error) {
	start := time.Now()
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parsing database config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	poolCfg.ConnConfig.RuntimeParams["application_name"] = applicationName

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
	}

	logger.Info("journal database connected",
		zap.String("host", cfg.Host),
		zap.String("database", cfg.Name),
		zap.Int32("max_conns", cfg.MaxConns),
		zap.Duration("elapsed", time.Since(start)),
	)
	return &Pool{pool: pool, logger: logger}, nil
}

// Health checks that the database is reachable within timeout.
//
// Precondition: The pool must not be closed.
func (p *Pool) Health(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.pool.Ping(ctx)
}

// Close logs the pool's lifetime counters and releases its connections.
func (p *Pool) Close() {
	stat := p.pool.Stat()
	p.logger.Info("journal database closing",
		zap.Int64("acquires", stat.AcquireCount()),
		zap.Int64("canceled_acquires", stat.CanceledAcquireCount()),
		zap.Duration("acquire_wait", stat.AcquireDuration()),
	)
	p.pool.Close()
}

// DB returns the underlying pgxpool.Pool for repositories.
func (p *Pool) DB() *pgxpool.Pool {
	return p.pool
}
