package db

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/kevmine/kevminex/pkg/ranking"
)

// RankedAccounts returns all non-house accounts in leaderboard order:
// balance descending, creation order as the deterministic tie-break.
func (s *Store) RankedAccounts(ctx context.Context) ([]ranking.Standing, error) {
	rows, err := s.Pool.Query(ctx, `
		SELECT id, rank FROM accounts
		WHERE NOT is_house
		ORDER BY balance DESC, created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query rank scan: %w", err)
	}
	defer rows.Close()

	var standings []ranking.Standing
	for rows.Next() {
		var st ranking.Standing
		if err := rows.Scan(&st.ID, &st.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan standing: %w", err)
		}
		standings = append(standings, st)
	}
	return standings, rows.Err()
}

// UpdateRanks applies a full recompute as one batched transaction.
func (s *Store) UpdateRanks(ctx context.Context, updates []ranking.Update) error {
	batch := &pgx.Batch{}
	for _, u := range updates {
		batch.Queue(
			`UPDATE accounts SET rank = $2, previous_rank = $3 WHERE id = $1`,
			u.ID, u.Rank, u.PreviousRank)
	}
	return s.BeginFunc(ctx, func(tx pgx.Tx) error {
		results := tx.SendBatch(ctx, batch)
		defer results.Close()
		for range updates {
			if _, err := results.Exec(); err != nil {
				return fmt.Errorf("failed to write rank update: %w", err)
			}
		}
		return nil
	})
}

// LeaderboardEntry is one row of the public leaderboard.
type LeaderboardEntry struct {
	Name         string  `json:"name"`
	Balance      float64 `json:"balance"`
	Rank         int     `json:"rank"`
	PreviousRank int     `json:"previousRank"`
}

// Leaderboard returns ranked accounts, optionally limited to the top N
// ranks and/or filtered by a case-insensitive name fragment.
func (s *Store) Leaderboard(ctx context.Context, topN int, nameFilter string) ([]LeaderboardEntry, error) {
	query := `
		SELECT name, balance, rank, previous_rank FROM accounts
		WHERE NOT is_house AND rank > 0`
	args := []any{}
	if topN > 0 {
		args = append(args, topN)
		query += fmt.Sprintf(" AND rank <= $%d", len(args))
	}
	if nameFilter != "" {
		args = append(args, "%"+nameFilter+"%")
		query += fmt.Sprintf(" AND name ILIKE $%d", len(args))
	}
	query += " ORDER BY rank ASC"

	rows, err := s.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []LeaderboardEntry
	for rows.Next() {
		var e LeaderboardEntry
		if err := rows.Scan(&e.Name, &e.Balance, &e.Rank, &e.PreviousRank); err != nil {
			return nil, fmt.Errorf("failed to scan leaderboard entry: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
