package dispute

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the dispute does not exist; the only fatal fetch error.
	ErrNotFound = errors.New("dispute: not found")
	// ErrMissingDisputeID signals a malformed request.
	ErrMissingDisputeID = errors.New("dispute: dispute id required")
)

// Repository provides the engine's reads and its single write. The write
// side owns dispute_analyses exclusively; nothing else in the codebase
// inserts there, and nothing anywhere updates it.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetDisputeContext fetches the dispute with its booking and task in one join.
func (r *Repository) GetDisputeContext(ctx context.Context, disputeID string) (Record, BookingContext, error) {
	const query = `
		SELECT d.id, d.booking_id, d.raised_by, d.against, d.reason::text, d.details, d.created_at,
		       b.id, t.id, t.title, t.category, b.giver_id, b.doer_id, b.status::text, b.scheduled_at
		FROM disputes d
		JOIN bookings b ON b.id = d.booking_id
		JOIN tasks t ON t.id = b.task_id
		WHERE d.id = $1
	`

	var (
		rec     Record
		booking BookingContext
	)
	err := r.pool.QueryRow(ctx, query, disputeID).Scan(
		&rec.ID, &rec.BookingID, &rec.RaisedBy, &rec.Against, &rec.Reason, &rec.Details, &rec.CreatedAt,
		&booking.BookingID, &booking.TaskID, &booking.TaskTitle, &booking.TaskCategory,
		&booking.GiverID, &booking.DoerID, &booking.Status, &booking.ScheduledAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Record{}, BookingContext{}, ErrNotFound
		}
		return Record{}, BookingContext{}, fmt.Errorf("dispute: get context: %w", err)
	}
	return rec, booking, nil
}

// ListDisputeEvidence returns evidence uploaded against the dispute itself.
func (r *Repository) ListDisputeEvidence(ctx context.Context, disputeID string) ([]EvidenceItem, error) {
	const query = `
		SELECT id, 'dispute', file_url, uploader_id, created_at
		FROM evidence_items
		WHERE dispute_id = $1
		ORDER BY created_at ASC
	`
	return r.listEvidence(ctx, query, disputeID)
}

// ListWorkEvidence returns evidence uploaded while performing the booking.
func (r *Repository) ListWorkEvidence(ctx context.Context, bookingID string) ([]EvidenceItem, error) {
	const query = `
		SELECT id, 'work', file_url, uploader_id, created_at
		FROM evidence_items
		WHERE booking_id = $1 AND dispute_id IS NULL
		ORDER BY created_at ASC
	`
	return r.listEvidence(ctx, query, bookingID)
}

func (r *Repository) listEvidence(ctx context.Context, query, id string) ([]EvidenceItem, error) {
	rows, err := r.pool.Query(ctx, query, id)
	if err != nil {
		return nil, fmt.Errorf("dispute: list evidence: %w", err)
	}
	defer rows.Close()

	items := make([]EvidenceItem, 0, 8)
	for rows.Next() {
		var item EvidenceItem
		if err := rows.Scan(&item.ID, &item.Kind, &item.FileURL, &item.UploaderID, &item.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan evidence: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate evidence: %w", err)
	}
	return items, nil
}

// ListCheckins returns the booking's check-in events in creation order.
func (r *Repository) ListCheckins(ctx context.Context, bookingID string) ([]CheckinEvent, error) {
	const query = `
		SELECT id, type::text, lat, lng, created_at
		FROM checkins
		WHERE booking_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list checkins: %w", err)
	}
	defer rows.Close()

	events := make([]CheckinEvent, 0, 8)
	for rows.Next() {
		var ev CheckinEvent
		if err := rows.Scan(&ev.ID, &ev.Type, &ev.Lat, &ev.Lng, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan checkin: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate checkins: %w", err)
	}
	return events, nil
}

// ListChecklist returns completions joined with the parent item's title and
// photo-proof requirement.
func (r *Repository) ListChecklist(ctx context.Context, bookingID string) ([]ChecklistCompletion, error) {
	const query = `
		SELECT c.item_id, i.title, c.status::text, i.photo_required, c.completed_at
		FROM checklist_completions c
		JOIN checklist_items i ON i.id = c.item_id
		WHERE c.booking_id = $1
		ORDER BY i.position ASC
	`

	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list checklist: %w", err)
	}
	defer rows.Close()

	items := make([]ChecklistCompletion, 0, 8)
	for rows.Next() {
		var item ChecklistCompletion
		if err := rows.Scan(&item.ItemID, &item.Title, &item.Status, &item.PhotoRequired, &item.CompletedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan checklist item: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate checklist: %w", err)
	}
	return items, nil
}

// ListAuditEvents returns the booking's audit chain in creation order.
func (r *Repository) ListAuditEvents(ctx context.Context, bookingID string) ([]AuditEvent, error) {
	const query = `
		SELECT id, action, event_hash, previous_hash, created_at
		FROM audit_events
		WHERE booking_id = $1
		ORDER BY id ASC
	`

	rows, err := r.pool.Query(ctx, query, bookingID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list audit events: %w", err)
	}
	defer rows.Close()

	events := make([]AuditEvent, 0, 16)
	for rows.Next() {
		var ev AuditEvent
		if err := rows.Scan(&ev.ID, &ev.Action, &ev.EventHash, &ev.PreviousHash, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("dispute: scan audit event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate audit events: %w", err)
	}
	return events, nil
}

// InsertAnalysis appends one immutable analysis row and returns it with the
// store-assigned creation timestamp.
func (r *Repository) InsertAnalysis(ctx context.Context, result AnalysisResult) (AnalysisResult, error) {
	summary, err := json.Marshal(result.Summary)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("dispute: marshal summary: %w", err)
	}

	const query = `
		INSERT INTO dispute_analyses
			(id, dispute_id, analysis_type, strategy, risk_score, confidence_score,
			 recommendation, reasoning, inconsistencies, suggested_resolution, evidence_summary)
		VALUES ($1, $2, $3::analysis_type, $4, $5, $6, $7::recommendation, $8, $9, $10, $11::jsonb)
		RETURNING created_at
	`

	inconsistencies := result.Inconsistencies
	if inconsistencies == nil {
		inconsistencies = []string{}
	}

	err = r.pool.QueryRow(ctx, query,
		result.ID,
		result.DisputeID,
		result.AnalysisType,
		result.Strategy,
		result.RiskScore,
		result.ConfidenceScore,
		result.Recommendation,
		result.Reasoning,
		inconsistencies,
		result.SuggestedResolution,
		string(summary),
	).Scan(&result.CreatedAt)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("dispute: insert analysis: %w", err)
	}

	return result, nil
}

// ListAnalyses returns prior analyses for a dispute, newest first, for the
// downstream review tooling.
func (r *Repository) ListAnalyses(ctx context.Context, disputeID string) ([]AnalysisResult, error) {
	const query = `
		SELECT id, dispute_id, analysis_type::text, strategy, risk_score, confidence_score,
		       recommendation::text, reasoning, inconsistencies, suggested_resolution,
		       evidence_summary, created_at
		FROM dispute_analyses
		WHERE dispute_id = $1
		ORDER BY created_at DESC
	`

	rows, err := r.pool.Query(ctx, query, disputeID)
	if err != nil {
		return nil, fmt.Errorf("dispute: list analyses: %w", err)
	}
	defer rows.Close()

	out := make([]AnalysisResult, 0, 4)
	for rows.Next() {
		var (
			res     AnalysisResult
			summary []byte
		)
		if err := rows.Scan(
			&res.ID, &res.DisputeID, &res.AnalysisType, &res.Strategy,
			&res.RiskScore, &res.ConfidenceScore, &res.Recommendation,
			&res.Reasoning, &res.Inconsistencies, &res.SuggestedResolution,
			&summary, &res.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("dispute: scan analysis: %w", err)
		}
		if err := json.Unmarshal(summary, &res.Summary); err != nil {
			return nil, fmt.Errorf("dispute: unmarshal summary: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("dispute: iterate analyses: %w", err)
	}
	return out, nil
}
