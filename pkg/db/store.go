package db

import (
	"context"

	"go.uber.org/zap"
)

// Store implements the persistence interfaces of the economy engine and
// the ranking job on top of one PostgreSQL pool.
type Store struct {
	*Client
}

// NewStore connects to Postgres and returns the store.
func NewStore(ctx context.Context, logger *zap.Logger) (*Store, error) {
	client, err := NewClient(ctx, logger)
	if err != nil {
		return nil, err
	}
	return &Store{Client: client}, nil
}

// DashboardStats summarizes the whole economy for the admin dashboard.
type DashboardStats struct {
	TotalPlayers        int     `json:"totalPlayers"`
	RobotsInCirculation int     `json:"robotsInCirculation"`
	TotalCurrency       float64 `json:"totalCurrency"`
	PlayerListings      int     `json:"playerListings"`
}

// Stats computes the dashboard aggregates in one round trip.
func (s *Store) Stats(ctx context.Context) (*DashboardStats, error) {
	stats := &DashboardStats{}
	err := s.Pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(*) FROM accounts WHERE NOT is_house AND NOT is_admin),
			(SELECT COUNT(*) FROM robots WHERE owner_id IS NOT NULL),
			(SELECT COALESCE(SUM(balance + unclaimed), 0) FROM accounts),
			(SELECT COUNT(*) FROM robots WHERE player_listed AND owner_id IS NULL)`,
	).Scan(&stats.TotalPlayers, &stats.RobotsInCirculation, &stats.TotalCurrency, &stats.PlayerListings)
	if err != nil {
		return nil, err
	}
	return stats, nil
}
