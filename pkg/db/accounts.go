package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevmine/kevminex/pkg/economy"
)

const accountColumns = `id, name, balance, unclaimed, last_accrual_at,
	rank, previous_rank, is_house, is_admin, created_at`

func scanAccount(row pgx.Row) (*economy.Account, error) {
	acc := &economy.Account{}
	err := row.Scan(&acc.ID, &acc.Name, &acc.Balance, &acc.Unclaimed,
		&acc.LastAccrual, &acc.Rank, &acc.PreviousRank, &acc.IsHouse,
		&acc.IsAdmin, &acc.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, economy.ErrAccountNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return acc, nil
}

// Account loads one account by id.
func (s *Store) Account(ctx context.Context, id string) (*economy.Account, error) {
	return scanAccount(s.Pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id))
}

// HouseAccountID returns the id of the commission-collecting account.
// Its absence is an operator configuration error, not a user error.
func (s *Store) HouseAccountID(ctx context.Context) (string, error) {
	var id string
	err := s.Pool.QueryRow(ctx, `SELECT id FROM accounts WHERE is_house`).Scan(&id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", economy.ErrConfigurationMissing
		}
		return "", fmt.Errorf("failed to look up house account: %w", err)
	}
	return id, nil
}

// SaveAccountFunds persists the mutable wallet fields. Rank fields are
// written only by the ranking job's bulk update.
func (s *Store) SaveAccountFunds(ctx context.Context, acc *economy.Account) error {
	return saveFunds(ctx, s.Pool, acc)
}

// saveFunds writes the wallet fields through the pool or an open
// transaction, depending on the Executor passed in.
func saveFunds(ctx context.Context, exec Executor, acc *economy.Account) error {
	tag, err := exec.Exec(ctx,
		`UPDATE accounts SET balance = $2, unclaimed = $3, last_accrual_at = $4 WHERE id = $1`,
		acc.ID, acc.Balance, acc.Unclaimed, acc.LastAccrual)
	if err != nil {
		return fmt.Errorf("failed to save account funds: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return economy.ErrAccountNotFound
	}
	return nil
}

// OwnedMiningPower sums the mining power of everything the account owns,
// the live accrual rate in KVM per hour.
func (s *Store) OwnedMiningPower(ctx context.Context, accountID string) (float64, error) {
	var power float64
	err := s.Pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(mining_power), 0) FROM robots WHERE owner_id = $1`,
		accountID).Scan(&power)
	if err != nil {
		return 0, fmt.Errorf("failed to sum mining power: %w", err)
	}
	return power, nil
}

// CreateAccount inserts a player account. Registration itself lives in the
// auth service; this exists for bootstrap tooling and tests.
func (s *Store) CreateAccount(ctx context.Context, acc *economy.Account) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO accounts (id, name, balance, unclaimed, last_accrual_at, is_house, is_admin)
		VALUES ($1, $2, $3, $4, now(), $5, $6)`,
		acc.ID, acc.Name, acc.Balance, acc.Unclaimed, acc.IsHouse, acc.IsAdmin)
	if err != nil {
		return fmt.Errorf("failed to create account: %w", err)
	}
	return nil
}
