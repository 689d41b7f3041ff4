package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

const commissionRateKey = "sales_commission_rate"

// DefaultCommissionRate applies when the settings row is missing.
const DefaultCommissionRate = 0.10

// CommissionRate returns the marketplace commission rate in [0,1].
func (s *Store) CommissionRate(ctx context.Context) (float64, error) {
	var rate float64
	err := s.Pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = $1`, commissionRateKey).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return DefaultCommissionRate, nil
		}
		return 0, fmt.Errorf("failed to read commission rate: %w", err)
	}
	return rate, nil
}

// SetCommissionRate upserts the commission rate. Range validation happens
// in the admin controller.
func (s *Store) SetCommissionRate(ctx context.Context, rate float64) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO settings (key, value) VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value`,
		commissionRateKey, rate)
	if err != nil {
		return fmt.Errorf("failed to set commission rate: %w", err)
	}
	return nil
}
