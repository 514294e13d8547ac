package matching

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUserNotFound signals the candidate user does not exist.
var ErrUserNotFound = errors.New("matching: user not found")

// Repository assembles scoring inputs from Postgres.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// LoadUserSnapshot builds the scorer's view of one user: base profile,
// reputation snapshot, and completion aggregates.
func (r *Repository) LoadUserSnapshot(ctx context.Context, userID string) (UserSnapshot, error) {
	const userSQL = `
		SELECT u.id, u.skills, u.lat, u.lng,
		       COALESCE(rep.trust_score, 0), COALESCE(rep.reputation_score, 0), COALESCE(rep.badge_count, 0)
		FROM users u
		LEFT JOIN user_reputation rep ON rep.user_id = u.id
		WHERE u.id = $1
	`

	var snap UserSnapshot
	err := r.pool.QueryRow(ctx, userSQL, userID).Scan(
		&snap.UserID,
		&snap.Skills,
		&snap.Lat,
		&snap.Lng,
		&snap.TrustScore,
		&snap.ReputationScore,
		&snap.BadgeCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return UserSnapshot{}, ErrUserNotFound
		}
		return UserSnapshot{}, fmt.Errorf("matching: load user: %w", err)
	}

	const historySQL = `
		SELECT t.category, COUNT(*) AS done, AVG(b.pay_amount) AS avg_pay, AVG(b.duration_minutes) AS avg_duration
		FROM bookings b
		JOIN tasks t ON t.id = b.task_id
		WHERE b.doer_id = $1 AND b.status = 'completed'
		GROUP BY t.category
		ORDER BY done DESC, t.category ASC
	`

	rows, err := r.pool.Query(ctx, historySQL, userID)
	if err != nil {
		return UserSnapshot{}, fmt.Errorf("matching: load history: %w", err)
	}
	defer rows.Close()

	var (
		totalDone        int
		weightedPay      float64
		weightedDuration float64
	)
	for rows.Next() {
		var (
			category    string
			done        int
			avgPay      *float64
			avgDuration *float64
		)
		if err := rows.Scan(&category, &done, &avgPay, &avgDuration); err != nil {
			return UserSnapshot{}, fmt.Errorf("matching: scan history: %w", err)
		}
		snap.TopCategories = append(snap.TopCategories, category)
		totalDone += done
		if avgPay != nil {
			weightedPay += *avgPay * float64(done)
		}
		if avgDuration != nil {
			weightedDuration += *avgDuration * float64(done)
		}
	}
	if err := rows.Err(); err != nil {
		return UserSnapshot{}, fmt.Errorf("matching: iterate history: %w", err)
	}

	if totalDone > 0 {
		snap.TypicalPay = weightedPay / float64(totalDone)
		snap.TypicalDurationMinutes = int(weightedDuration / float64(totalDone))
	}

	return snap, nil
}

// ListOpenTasks returns open listings for scoring, newest first. The poster's
// rating rides along for the rating factor.
func (r *Repository) ListOpenTasks(ctx context.Context, limit int) ([]TaskListing, error) {
	if limit <= 0 || limit > 200 {
		limit = 200
	}

	const query = `
		SELECT t.id, t.title, t.description, t.category, t.pay_amount, t.duration_minutes,
		       t.lat, t.lng, t.urgent, rep.rating, t.created_at
		FROM tasks t
		LEFT JOIN user_reputation rep ON rep.user_id = t.poster_id
		WHERE t.status = 'open'
		ORDER BY t.created_at DESC
		LIMIT $1
	`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("matching: list open tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]TaskListing, 0, limit)
	for rows.Next() {
		var task TaskListing
		if err := rows.Scan(
			&task.ID, &task.Title, &task.Description, &task.Category,
			&task.PayAmount, &task.DurationMinutes, &task.Lat, &task.Lng,
			&task.Urgent, &task.PosterRating, &task.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("matching: scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("matching: iterate tasks: %w", err)
	}
	return tasks, nil
}
