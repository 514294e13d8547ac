package dispute

import "time"

// Reason categorizes why a dispute was raised.
type Reason string

const (
	ReasonQuality Reason = "quality"
	ReasonNoShow  Reason = "no_show"
	ReasonPayment Reason = "payment"
	ReasonDamage  Reason = "damage"
	ReasonOther   Reason = "other"
)

// AnalysisType distinguishes the first analysis of a dispute from re-runs.
type AnalysisType string

const (
	AnalysisInitial    AnalysisType = "initial"
	AnalysisReanalysis AnalysisType = "reanalysis"
)

// Recommendation is the resolution direction produced by a scoring strategy.
type Recommendation string

const (
	RecommendFavorGiver           Recommendation = "favor_giver"
	RecommendFavorDoer            Recommendation = "favor_doer"
	RecommendSplit                Recommendation = "split"
	RecommendEscalate             Recommendation = "escalate"
	RecommendInsufficientEvidence Recommendation = "insufficient_evidence"
)

// Strategy identifiers persisted with every analysis row so reviewers can
// tell which path produced a result.
const (
	StrategyAI   = "ai-backed"
	StrategyRule = "rule-based"
)

// Record mirrors the disputes table. Immutable once created; resolution
// status lives in a separate workflow.
type Record struct {
	ID        string
	BookingID string
	RaisedBy  string
	Against   string
	Reason    Reason
	Details   string
	CreatedAt time.Time
}

// BookingContext is the booking and task the dispute is about, fetched in a
// single join.
type BookingContext struct {
	BookingID    string
	TaskID       string
	TaskTitle    string
	TaskCategory string
	GiverID      string
	DoerID       string
	Status       string
	ScheduledAt  *time.Time
}

// EvidenceKind separates dispute-specific uploads from task-work uploads.
type EvidenceKind string

const (
	EvidenceDispute EvidenceKind = "dispute"
	EvidenceWork    EvidenceKind = "work"
)

// EvidenceItem is an uploaded file reference. Append-only.
type EvidenceItem struct {
	ID         string
	Kind       EvidenceKind
	FileURL    string
	UploaderID string
	CreatedAt  time.Time
}

// CheckinType marks what a GPS check-in event signifies.
type CheckinType string

const (
	CheckinStart  CheckinType = "start"
	CheckinEnd    CheckinType = "end"
	CheckinPause  CheckinType = "pause"
	CheckinResume CheckinType = "resume"
)

// CheckinEvent is a timestamped GPS-tagged marker on a booking. Lat/Lng stay
// nil when the device denied location.
type CheckinEvent struct {
	ID        string
	Type      CheckinType
	Lat       *float64
	Lng       *float64
	CreatedAt time.Time
}

// ChecklistStatus is the review state of one checklist item completion.
type ChecklistStatus string

const (
	ChecklistPending  ChecklistStatus = "pending"
	ChecklistApproved ChecklistStatus = "approved"
	ChecklistRejected ChecklistStatus = "rejected"
)

// ChecklistCompletion is one checklist item's completion state on a booking,
// joined with the parent item's photo-proof requirement.
type ChecklistCompletion struct {
	ItemID        string
	Title         string
	Status        ChecklistStatus
	PhotoRequired bool
	CompletedAt   *time.Time
}

// AuditEvent is the slice of an audit_events row this engine consumes. The
// chain is only a count/presence signal here; full verification lives in the
// audit package.
type AuditEvent struct {
	ID           int64
	Action       string
	EventHash    string
	PreviousHash string
	CreatedAt    time.Time
}

// PartyProfile is a read-only snapshot of one party's standing at analysis
// time. All fields nil when the user has no reputation row.
type PartyProfile struct {
	UserID         string
	TrustScore     *int
	Rating         *float64
	CompletedTasks *int
}

// Bundle is everything the collector gathered for one dispute before
// normalization. Sources that failed to load are present but empty.
type Bundle struct {
	Dispute         Record
	Booking         BookingContext
	DisputeEvidence []EvidenceItem
	WorkEvidence    []EvidenceItem
	Checkins        []CheckinEvent
	Checklist       []ChecklistCompletion
	AuditEvents     []AuditEvent
	Giver           *PartyProfile
	Doer            *PartyProfile
}

// AnalysisResult is the append-only output of one analysis invocation.
// Multiple rows may exist per dispute; re-analysis inserts, never updates.
type AnalysisResult struct {
	ID                  string
	DisputeID           string
	AnalysisType        AnalysisType
	Strategy            string
	RiskScore           int
	ConfidenceScore     int
	Recommendation      Recommendation
	Reasoning           string
	Inconsistencies     []string
	SuggestedResolution string
	Summary             EvidenceSummary
	CreatedAt           time.Time
}
