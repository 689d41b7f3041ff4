package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS accounts (
		id UUID PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		balance DOUBLE PRECISION NOT NULL DEFAULT 500 CHECK (balance >= 0),
		unclaimed DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (unclaimed >= 0),
		last_accrual_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		rank INT NOT NULL DEFAULT 0,
		previous_rank INT NOT NULL DEFAULT 0,
		is_house BOOLEAN NOT NULL DEFAULT FALSE,
		is_admin BOOLEAN NOT NULL DEFAULT FALSE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// At most one house account, enforced by the database.
	`CREATE UNIQUE INDEX IF NOT EXISTS accounts_one_house ON accounts (is_house) WHERE is_house`,
	`CREATE INDEX IF NOT EXISTS accounts_rank_scan ON accounts (balance DESC, created_at ASC) WHERE NOT is_house`,

	`CREATE TABLE IF NOT EXISTS robots (
		id UUID PRIMARY KEY,
		template_id UUID,
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		rarity TEXT NOT NULL DEFAULT 'common',
		price DOUBLE PRECISION NOT NULL DEFAULT 0,
		mining_power DOUBLE PRECISION NOT NULL DEFAULT 1,
		level INT NOT NULL DEFAULT 1,
		upgrade_cost DOUBLE PRECISION NOT NULL DEFAULT 100,
		level_up_factor DOUBLE PRECISION NOT NULL DEFAULT 1.5,
		stock INT NOT NULL DEFAULT 0 CHECK (stock >= 0),
		player_listed BOOLEAN NOT NULL DEFAULT FALSE,
		invested DOUBLE PRECISION NOT NULL DEFAULT 0,
		owner_id UUID REFERENCES accounts(id),
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS robots_owner ON robots (owner_id) WHERE owner_id IS NOT NULL`,
	`CREATE INDEX IF NOT EXISTS robots_market ON robots (player_listed) WHERE owner_id IS NULL`,

	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value DOUBLE PRECISION NOT NULL
	)`,
	`INSERT INTO settings (key, value) VALUES ('sales_commission_rate', 0.1)
		ON CONFLICT (key) DO NOTHING`,

	`CREATE TABLE IF NOT EXISTS purchases (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id),
		robot_name TEXT NOT NULL,
		price DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS sales (
		id UUID PRIMARY KEY,
		account_id UUID NOT NULL REFERENCES accounts(id),
		robot_name TEXT NOT NULL,
		sale_price DOUBLE PRECISION NOT NULL,
		seller_return DOUBLE PRECISION NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
}

// InitializeDB creates the tables and seeds defaults. Idempotent.
func (s *Store) InitializeDB(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.Pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to initialize schema: %w", err)
		}
	}
	return s.EnsureHouseAccount(ctx)
}

// EnsureHouseAccount creates the commission-collecting house account when
// none exists. Every deployment needs exactly one; resale is blocked
// without it.
func (s *Store) EnsureHouseAccount(ctx context.Context) error {
	var exists bool
	if err := s.Pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM accounts WHERE is_house)`).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check house account: %w", err)
	}
	if exists {
		return nil
	}
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO accounts (id, name, balance, is_house) VALUES ($1, 'house', 0, TRUE)`,
		uuid.NewString())
	if err != nil {
		return fmt.Errorf("failed to create house account: %w", err)
	}
	s.Logger.Info("house account created")
	return nil
}
