package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/fieldops/accessctl/config"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

const (
	connectTimeout  = 5 * time.Second
	connMaxIdleTime = time.Minute
)

// DB is the shared connection pool used by every store.
type DB struct {
	*sql.DB
	logger *zap.Logger
}

// NewDB opens the pool and fails fast when the server is unreachable.
func NewDB(cfg config.DatabaseConfig, logger *zap.Logger) (*DB, error) {
	pool, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	pool.SetMaxOpenConns(cfg.MaxOpenConns)
	pool.SetMaxIdleConns(cfg.MaxIdleConns)
	pool.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	pool.SetConnMaxIdleTime(connMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database %s: %w", cfg.LogString(), err)
	}

	logger.Info("connected to database",
		zap.String("target", cfg.LogString()),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
	)

	return &DB{DB: pool, logger: logger}, nil
}

func (db *DB) Close() error {
	db.logger.Info("closing database pool")
	return db.DB.Close()
}
