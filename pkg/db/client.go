package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/kevmine/kevminex/pkg/retry"
	"github.com/kevmine/kevminex/pkg/utils"
)

// Executor is implemented by both *pgxpool.Pool and pgx.Tx, so store
// methods can run against the pool or inside a transaction.
type Executor interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// Client wraps a PostgreSQL connection pool.
type Client struct {
	Logger *zap.Logger
	Pool   *pgxpool.Pool
}

// NewClient connects to POSTGRES_URL with retrying backoff, so the server
// survives the database coming up after it.
func NewClient(ctx context.Context, logger *zap.Logger) (*Client, error) {
	connCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	dbURL := utils.Env("POSTGRES_URL", "postgres://localhost:5432/kevmine")

	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse POSTGRES_URL: %w", err)
	}
	config.MinConns = int32(utils.EnvInt("POSTGRES_MIN_CONNS", 2))
	config.MaxConns = int32(utils.EnvInt("POSTGRES_MAX_CONNS", 20))
	config.MaxConnLifetime = utils.EnvDuration("POSTGRES_CONN_MAX_LIFETIME", time.Hour)
	config.MaxConnIdleTime = utils.EnvDuration("POSTGRES_CONN_MAX_IDLE_TIME", 30*time.Minute)

	client := &Client{Logger: logger}

	retryErr := retry.WithBackoff(connCtx, retry.DefaultConfig(), logger, "postgres_connection", func() error {
		pool, openErr := pgxpool.NewWithConfig(connCtx, config)
		if openErr != nil {
			return fmt.Errorf("failed to create postgres connection pool: %w", openErr)
		}

		if pingErr := pool.Ping(connCtx); pingErr != nil {
			pool.Close()
			return fmt.Errorf("failed to ping postgres: %w", pingErr)
		}

		client.Pool = pool
		return nil
	})
	if retryErr != nil {
		return nil, retryErr
	}

	logger.Info("PostgreSQL connection pool configured",
		zap.Int32("min_conns", config.MinConns),
		zap.Int32("max_conns", config.MaxConns))

	return client, nil
}

// BeginFunc executes fn inside a transaction; the transaction is rolled
// back when fn errors and committed otherwise.
func (c *Client) BeginFunc(ctx context.Context, fn func(pgx.Tx) error) error {
	return pgx.BeginFunc(ctx, c.Pool, fn)
}

// Ping verifies the connection.
func (c *Client) Ping(ctx context.Context) error {
	return c.Pool.Ping(ctx)
}

// Close releases the pool.
func (c *Client) Close() {
	c.Pool.Close()
}
