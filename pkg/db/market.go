package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/kevmine/kevminex/pkg/economy"
)

// The Commit* methods apply a marketplace state transition as one
// transaction. Guarded updates re-check their precondition in SQL, so a
// race between two buyers resolves inside the database: the loser's
// transaction rolls back with no partial state.

// CommitPurchase debits the buyer, decrements the catalog template's
// stock and creates the new owned instance.
func (s *Store) CommitPurchase(ctx context.Context, buyer *economy.Account, template, instance *economy.Robot) error {
	return s.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := saveFunds(ctx, tx, buyer); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx,
			`UPDATE robots SET stock = stock - 1 WHERE id = $1 AND stock > 0 AND owner_id IS NULL`,
			template.ID)
		if err != nil {
			return fmt.Errorf("failed to decrement stock: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return economy.ErrOutOfStock
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO robots (id, template_id, name, icon, rarity, price, mining_power,
				level, upgrade_cost, level_up_factor, stock, player_listed, invested, owner_id)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, 0, FALSE, $11, $12)`,
			instance.ID, instance.TemplateID, instance.Name, instance.Icon,
			instance.Rarity, instance.Price, instance.MiningPower, instance.Level,
			instance.UpgradeCost, instance.LevelUpFactor, instance.Invested,
			instance.Owner)
		if err != nil {
			return fmt.Errorf("failed to create owned instance: %w", err)
		}

		return recordPurchase(ctx, tx, buyer.ID, instance.Name, instance.Price)
	})
}

// CommitTransfer debits the buyer and moves a player listing to them.
func (s *Store) CommitTransfer(ctx context.Context, buyer *economy.Account, listing *economy.Robot) error {
	return s.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := saveFunds(ctx, tx, buyer); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE robots SET owner_id = $2, player_listed = FALSE, stock = 0, invested = $3
			WHERE id = $1 AND owner_id IS NULL AND player_listed AND stock = 1`,
			listing.ID, buyer.ID, listing.Invested)
		if err != nil {
			return fmt.Errorf("failed to transfer listing: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return economy.ErrOutOfStock
		}

		return recordPurchase(ctx, tx, buyer.ID, listing.Name, listing.Price)
	})
}

// CommitUpgrade debits the owner and writes the upgraded robot fields.
func (s *Store) CommitUpgrade(ctx context.Context, owner *economy.Account, robot *economy.Robot) error {
	return s.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := saveFunds(ctx, tx, owner); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE robots SET level = $2, mining_power = $3, upgrade_cost = $4, invested = $5
			WHERE id = $1 AND owner_id = $6`,
			robot.ID, robot.Level, robot.MiningPower, robot.UpgradeCost,
			robot.Invested, owner.ID)
		if err != nil {
			return fmt.Errorf("failed to save upgrade: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return economy.ErrConcurrencyConflict
		}
		return nil
	})
}

// CommitSale credits the seller, relists the robot and credits the house
// with a relative update (no in-process lock ordering with the house
// account is needed). Returns the house balance after the credit.
func (s *Store) CommitSale(ctx context.Context, seller *economy.Account, houseID string, commission float64, robot *economy.Robot) (float64, error) {
	var houseBalance float64
	err := s.BeginFunc(ctx, func(tx pgx.Tx) error {
		if err := saveFunds(ctx, tx, seller); err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE robots SET owner_id = NULL, player_listed = TRUE, stock = 1,
				price = $2, invested = 0
			WHERE id = $1 AND owner_id = $3`,
			robot.ID, robot.Price, seller.ID)
		if err != nil {
			return fmt.Errorf("failed to relist robot: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return economy.ErrConcurrencyConflict
		}

		err = tx.QueryRow(ctx,
			`UPDATE accounts SET balance = balance + $2 WHERE id = $1 RETURNING balance`,
			houseID, commission).Scan(&houseBalance)
		if err != nil {
			return fmt.Errorf("failed to credit house account: %w", err)
		}

		sellerReturn := robot.Price - commission
		_, err = tx.Exec(ctx, `
			INSERT INTO sales (id, account_id, robot_name, sale_price, seller_return)
			VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), seller.ID, robot.Name, robot.Price, sellerReturn)
		if err != nil {
			return fmt.Errorf("failed to record sale: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return houseBalance, nil
}

func recordPurchase(ctx context.Context, tx pgx.Tx, accountID, robotName string, price float64) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO purchases (id, account_id, robot_name, price)
		VALUES ($1, $2, $3, $4)`,
		uuid.NewString(), accountID, robotName, price)
	if err != nil {
		return fmt.Errorf("failed to record purchase: %w", err)
	}
	return nil
}
