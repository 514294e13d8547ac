package dispute

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"taskflow/reputation"
)

// TestAnalyzePipeline_Integration connects to a real PostgreSQL via
// DATABASE_URL and runs the full collect, summarize, score, persist pipeline
// against seeded marketplace data.
func TestAnalyzePipeline_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	// Ensure schema exists (migrations applied)
	if !tableExists(ctx, t, pool, "disputes") || !tableExists(ctx, t, pool, "evidence_items") || !tableExists(ctx, t, pool, "dispute_analyses") {
		t.Skip("database schema missing; apply migrations/ against $DATABASE_URL first")
	}

	var (
		giverID   string
		doerID    string
		taskID    string
		bookingID string
		disputeID string
	)

	mustQueryRow := func(query string, args ...any) pgx.Row {
		return pool.QueryRow(ctx, query, args...)
	}

	n := time.Now().UnixNano()
	if err := mustQueryRow(`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`,
		"Dana Giver", fmt.Sprintf("dana+%d@example.com", n)).Scan(&giverID); err != nil {
		t.Fatalf("seed giver: %v", err)
	}
	if err := mustQueryRow(`INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id`,
		"Omar Doer", fmt.Sprintf("omar+%d@example.com", n)).Scan(&doerID); err != nil {
		t.Fatalf("seed doer: %v", err)
	}
	if err := mustQueryRow(`
        INSERT INTO tasks (poster_id, title, category, pay_amount, duration_minutes, status)
        VALUES ($1, 'Mount TV bracket', 'assembly', 90, 60, 'booked') RETURNING id
    `, giverID).Scan(&taskID); err != nil {
		t.Fatalf("seed task: %v", err)
	}
	if err := mustQueryRow(`
        INSERT INTO bookings (task_id, giver_id, doer_id, status, pay_amount, duration_minutes, scheduled_at)
        VALUES ($1, $2, $3, 'disputed', 90, 60, NOW() - interval '2 days') RETURNING id
    `, taskID, giverID, doerID).Scan(&bookingID); err != nil {
		t.Fatalf("seed booking: %v", err)
	}
	if err := mustQueryRow(`
        INSERT INTO disputes (booking_id, raised_by, against, reason, details)
        VALUES ($1, $2, $3, 'quality', 'bracket is crooked') RETURNING id
    `, bookingID, giverID, doerID).Scan(&disputeID); err != nil {
		t.Fatalf("seed dispute: %v", err)
	}

	// full evidence trail: start and end check-ins plus work photos
	if _, err := pool.Exec(ctx, `
        INSERT INTO checkins (booking_id, type, lat, lng, created_at) VALUES
            ($1, 'start', 40.71, -74.0, NOW() - interval '2 days'),
            ($1, 'end', 40.71, -74.0, NOW() - interval '2 days' + interval '1 hour')
    `, bookingID); err != nil {
		t.Fatalf("seed checkins: %v", err)
	}
	if _, err := pool.Exec(ctx, `
        INSERT INTO evidence_items (booking_id, uploader_id, file_url)
        VALUES ($1, $2, 'https://cdn.example.com/work/bracket.jpg')
    `, bookingID, doerID); err != nil {
		t.Fatalf("seed work evidence: %v", err)
	}
	if _, err := pool.Exec(ctx, `
        INSERT INTO evidence_items (booking_id, dispute_id, uploader_id, file_url)
        VALUES ($1, $2, $3, 'https://cdn.example.com/ev/crooked.jpg')
    `, bookingID, disputeID, giverID); err != nil {
		t.Fatalf("seed dispute evidence: %v", err)
	}

	// Cleanup seeded rows after test (best-effort, ignore errors)
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		pool.Exec(ctx2, `DELETE FROM dispute_analyses WHERE dispute_id = $1`, disputeID)
		pool.Exec(ctx2, `DELETE FROM evidence_items WHERE booking_id = $1`, bookingID)
		pool.Exec(ctx2, `DELETE FROM checkins WHERE booking_id = $1`, bookingID)
		pool.Exec(ctx2, `DELETE FROM disputes WHERE id = $1`, disputeID)
		pool.Exec(ctx2, `DELETE FROM bookings WHERE id = $1`, bookingID)
		pool.Exec(ctx2, `DELETE FROM tasks WHERE id = $1`, taskID)
		pool.Exec(ctx2, `DELETE FROM users WHERE id IN ($1, $2)`, giverID, doerID)
	})

	repo := NewRepository(pool)
	log := slog.New(slog.DiscardHandler)
	collector := NewCollector(repo, NewReputationProfiles(reputation.NewService(reputation.NewRepository(pool))), log)
	svc := NewService(collector, NewRuleStrategy(), repo)

	result, err := svc.Analyze(ctx, disputeID, AnalysisInitial)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	// completed work with no rejected checklist items favors the doer
	if result.Strategy != StrategyRule {
		t.Fatalf("expected strategy %q, got %q", StrategyRule, result.Strategy)
	}
	if result.Recommendation != RecommendFavorDoer {
		t.Fatalf("expected recommendation %q, got %q", RecommendFavorDoer, result.Recommendation)
	}
	if !result.Summary.TaskStarted || !result.Summary.TaskCompleted {
		t.Fatalf("expected start and end checkins reflected in summary: %+v", result.Summary)
	}

	// verify the persisted row round-trips through History
	history, err := svc.History(ctx, disputeID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].ID != result.ID {
		t.Fatalf("expected one persisted analysis %q, got %+v", result.ID, history)
	}
	if history[0].Summary.DisputeEvidenceCount != 1 || history[0].Summary.WorkEvidenceCount != 1 {
		t.Fatalf("unexpected evidence counts in stored summary: %+v", history[0].Summary)
	}

	// a second run appends instead of overwriting
	if _, err := svc.Analyze(ctx, disputeID, AnalysisReanalysis); err != nil {
		t.Fatalf("reanalyze: %v", err)
	}
	var count int
	if err := mustQueryRow(`SELECT COUNT(*) FROM dispute_analyses WHERE dispute_id = $1`, disputeID).Scan(&count); err != nil {
		t.Fatalf("count analyses: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected 2 analysis rows, got %d", count)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_schema = 'public' AND table_name = $1)`, name).Scan(&exists)
	if err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
