package reputation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested user has no reputation row.
var ErrNotFound = errors.New("reputation: not found")

// Repository provides read access to user reputation snapshots.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByUserID fetches the reputation snapshot for one user.
func (r *Repository) GetByUserID(ctx context.Context, userID string) (Snapshot, error) {
	const query = `
		SELECT user_id, trust_score, rating, completed_tasks, reputation_score, badge_count, updated_at
		FROM user_reputation
		WHERE user_id = $1
	`

	var snap Snapshot
	err := r.pool.QueryRow(ctx, query, userID).Scan(
		&snap.UserID,
		&snap.TrustScore,
		&snap.Rating,
		&snap.CompletedTasks,
		&snap.ReputationScore,
		&snap.BadgeCount,
		&snap.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("reputation: query by user id: %w", err)
	}

	return snap, nil
}

// Top fetches up to limit snapshots ordered by reputation score.
func (r *Repository) Top(ctx context.Context, limit int) ([]Snapshot, error) {
	if limit <= 0 || limit > 100 {
		limit = 100
	}

	const query = `
		SELECT user_id, trust_score, rating, completed_tasks, reputation_score, badge_count, updated_at
		FROM user_reputation
		ORDER BY reputation_score DESC NULLS LAST, user_id ASC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("reputation: top: %w", err)
	}
	defer rows.Close()

	snaps := make([]Snapshot, 0, limit)
	for rows.Next() {
		var snap Snapshot
		if err := rows.Scan(&snap.UserID, &snap.TrustScore, &snap.Rating, &snap.CompletedTasks, &snap.ReputationScore, &snap.BadgeCount, &snap.UpdatedAt); err != nil {
			return nil, fmt.Errorf("reputation: scan snapshot: %w", err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reputation: iterate snapshots: %w", err)
	}

	return snaps, nil
}
