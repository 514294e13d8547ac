package actors

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"taskflow/audit"
	"taskflow/dispute"
	"taskflow/matching"
)

// AuditAppender appends hash-chained events to one booking from many
// goroutines; the FOR UPDATE head read must serialize them without forks.
func AuditAppender(ctx context.Context, pool *pgxpool.Pool, bookingID, actorID string, stop <-chan struct{}) error {
	repo := audit.NewRepository(pool)
	actions := []string{"booking.confirmed", "checkin.start", "checkin.end", "payment.held", "payment.released"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}
		_, err = repo.Append(ctx, tx, audit.AppendParams{
			BookingID: bookingID,
			ActorID:   &actorID,
			Action:    actions[rand.Intn(len(actions))],
			Payload:   map[string]any{"n": rand.Intn(1000)},
		})
		if err != nil {
			_ = tx.Rollback(ctx)
		} else {
			_ = tx.Commit(ctx)
		}
		time.Sleep(time.Duration(10+rand.Intn(20)) * time.Millisecond)
	}
}

// Analyzer re-runs the rule-based pipeline against one dispute while other
// actors mutate its evidence underneath it. Every run must persist a row
// that satisfies the score and strategy oracles.
func Analyzer(ctx context.Context, svc *dispute.Service, disputeID string, stop <-chan struct{}) error {
	first := true
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		analysisType := dispute.AnalysisReanalysis
		if first {
			analysisType = dispute.AnalysisInitial
			first = false
		}
		// Transient failures (chaos killing a backend) are expected; the
		// oracles judge what actually landed in dispute_analyses.
		_, _ = svc.Analyze(ctx, disputeID, analysisType)
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// EvidenceUploader interleaves dispute evidence and work evidence uploads on
// the booking under analysis.
func EvidenceUploader(ctx context.Context, pool *pgxpool.Pool, bookingID, disputeID, uploaderID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		n := rand.Int63()
		if n%2 == 0 {
			_, _ = pool.Exec(ctx, `INSERT INTO evidence_items (booking_id, dispute_id, uploader_id, file_url)
                                   VALUES ($1, $2, $3, $4)`, bookingID, disputeID, uploaderID, fmt.Sprintf("https://cdn.example.com/ev/%d.jpg", n))
		} else {
			_, _ = pool.Exec(ctx, `INSERT INTO evidence_items (booking_id, uploader_id, file_url)
                                   VALUES ($1, $2, $3)`, bookingID, uploaderID, fmt.Sprintf("https://cdn.example.com/work/%d.jpg", n))
		}
		time.Sleep(time.Duration(30+rand.Intn(50)) * time.Millisecond)
	}
}

// CheckinWriter appends GPS check-ins on the booking.
func CheckinWriter(ctx context.Context, pool *pgxpool.Pool, bookingID string, stop <-chan struct{}) error {
	types := []string{"start", "pause", "resume", "end"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		lat := 40.7 + rand.Float64()/100
		lng := -74.0 + rand.Float64()/100
		_, _ = pool.Exec(ctx, `INSERT INTO checkins (booking_id, type, lat, lng) VALUES ($1, $2, $3, $4)`,
			bookingID, types[rand.Intn(len(types))], lat, lng)
		time.Sleep(time.Duration(40+rand.Intn(60)) * time.Millisecond)
	}
}

// ChecklistToggler flips checklist completions between review states, always
// stamping completed_at when leaving pending.
func ChecklistToggler(ctx context.Context, pool *pgxpool.Pool, bookingID string, itemIDs []string, stop <-chan struct{}) error {
	states := []string{"pending", "approved", "rejected"}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		itemID := itemIDs[rand.Intn(len(itemIDs))]
		status := states[rand.Intn(len(states))]
		_, _ = pool.Exec(ctx, `INSERT INTO checklist_completions (item_id, booking_id, status, completed_at)
                               VALUES ($1, $2, $3::checklist_status, CASE WHEN $3 = 'pending' THEN NULL ELSE NOW() END)
                               ON CONFLICT (booking_id, item_id)
                               DO UPDATE SET status = EXCLUDED.status, completed_at = EXCLUDED.completed_at`,
			itemID, bookingID, status)
		time.Sleep(time.Duration(60+rand.Intn(80)) * time.Millisecond)
	}
}

// Recommender scores open tasks for one doer while reputation rows churn.
func Recommender(ctx context.Context, pool *pgxpool.Pool, userID string, stop <-chan struct{}) error {
	svc := matching.NewService(matching.NewRepository(pool))
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		ranked, err := svc.Recommend(ctx, userID, 10)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			continue
		}
		for _, rt := range ranked {
			if rt.Score < 0 || rt.Score > 100 {
				return fmt.Errorf("recommender: score %d out of range for task %s", rt.Score, rt.Task.ID)
			}
		}
		time.Sleep(time.Duration(50+rand.Intn(100)) * time.Millisecond)
	}
}

// ReputationChurner rewrites the doer's reputation snapshot to shake the
// bonus tiers the recommender reads.
func ReputationChurner(ctx context.Context, pool *pgxpool.Pool, userID string, stop <-chan struct{}) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		default:
		}
		_, _ = pool.Exec(ctx, `INSERT INTO user_reputation (user_id, trust_score, rating, completed_tasks, reputation_score, badge_count)
                               VALUES ($1, $2, $3, $4, $5, $6)
                               ON CONFLICT (user_id) DO UPDATE SET
                                   trust_score = EXCLUDED.trust_score,
                                   rating = EXCLUDED.rating,
                                   completed_tasks = EXCLUDED.completed_tasks,
                                   reputation_score = EXCLUDED.reputation_score,
                                   badge_count = EXCLUDED.badge_count,
                                   updated_at = NOW()`,
			userID, rand.Intn(101), 1+rand.Float64()*4, rand.Intn(200), rand.Intn(101), rand.Intn(6))
		time.Sleep(time.Duration(80+rand.Intn(120)) * time.Millisecond)
	}
}
