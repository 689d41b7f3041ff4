package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevmine/kevminex/pkg/economy"
)

const robotColumns = `id, template_id, name, icon, rarity, price, mining_power,
	level, upgrade_cost, level_up_factor, stock, player_listed, invested,
	owner_id, created_at`

func scanRobot(row pgx.Row) (*economy.Robot, error) {
	r := &economy.Robot{}
	var templateID, owner *string
	err := row.Scan(&r.ID, &templateID, &r.Name, &r.Icon, &r.Rarity, &r.Price,
		&r.MiningPower, &r.Level, &r.UpgradeCost, &r.LevelUpFactor, &r.Stock,
		&r.PlayerListed, &r.Invested, &owner, &r.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, economy.ErrAssetNotFound
		}
		return nil, fmt.Errorf("failed to scan robot: %w", err)
	}
	if templateID != nil {
		r.TemplateID = *templateID
	}
	if owner != nil {
		r.Owner = *owner
	}
	return r, nil
}

func collectRobots(rows pgx.Rows) ([]economy.Robot, error) {
	defer rows.Close()
	var robots []economy.Robot
	for rows.Next() {
		r, err := scanRobot(rows)
		if err != nil {
			return nil, err
		}
		robots = append(robots, *r)
	}
	return robots, rows.Err()
}

// Robot loads one robot by id.
func (s *Store) Robot(ctx context.Context, id string) (*economy.Robot, error) {
	return scanRobot(s.Pool.QueryRow(ctx,
		`SELECT `+robotColumns+` FROM robots WHERE id = $1`, id))
}

// Market lists everything purchasable: catalog templates with stock plus
// player listings.
func (s *Store) Market(ctx context.Context) ([]economy.Robot, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+robotColumns+` FROM robots
		 WHERE owner_id IS NULL AND stock > 0
		 ORDER BY player_listed, price`)
	if err != nil {
		return nil, fmt.Errorf("failed to query market: %w", err)
	}
	return collectRobots(rows)
}

// Inventory lists the robots an account owns.
func (s *Store) Inventory(ctx context.Context, accountID string) ([]economy.Robot, error) {
	rows, err := s.Pool.Query(ctx,
		`SELECT `+robotColumns+` FROM robots WHERE owner_id = $1 ORDER BY created_at`,
		accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to query inventory: %w", err)
	}
	return collectRobots(rows)
}

// CreateRobot inserts a catalog template. Catalog management is external;
// this exists for bootstrap tooling and tests.
func (s *Store) CreateRobot(ctx context.Context, r *economy.Robot) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO robots (id, name, icon, rarity, price, mining_power, level,
			upgrade_cost, level_up_factor, stock, player_listed, invested)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		r.ID, r.Name, r.Icon, r.Rarity, r.Price, r.MiningPower, r.Level,
		r.UpgradeCost, r.LevelUpFactor, r.Stock, r.PlayerListed, r.Invested)
	if err != nil {
		return fmt.Errorf("failed to create robot: %w", err)
	}
	return nil
}
