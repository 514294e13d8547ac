package dispute

// PartySummary is the null-safe reduction of one party's profile. A missing
// profile yields all-nil fields, never zeros.
type PartySummary struct {
	TrustScore     *int     `json:"trust_score"`
	Rating         *float64 `json:"rating"`
	CompletedTasks *int     `json:"completed_tasks"`
}

// EvidenceSummary is the fixed-shape reduction of a Bundle. It is the only
// thing strategies ever see: raw records stay out of prompts and rules alike.
// Persisted verbatim with every analysis row for auditability.
type EvidenceSummary struct {
	DisputeReason        Reason       `json:"dispute_reason"`
	DisputeDetails       string       `json:"dispute_details"`
	TaskCategory         string       `json:"task_category"`
	BookingStatus        string       `json:"booking_status"`
	DisputeEvidenceCount int          `json:"dispute_evidence_count"`
	WorkEvidenceCount    int          `json:"work_evidence_count"`
	CheckinCount         int          `json:"checkin_count"`
	TaskStarted          bool         `json:"task_started"`
	TaskCompleted        bool         `json:"task_completed"`
	LocationsVerified    int          `json:"locations_verified"`
	ChecklistTotal       int          `json:"checklist_total"`
	ChecklistApproved    int          `json:"checklist_approved"`
	ChecklistRejected    int          `json:"checklist_rejected"`
	ChecklistPending     int          `json:"checklist_pending"`
	PhotoProofRequired   int          `json:"photo_proof_required"`
	AuditEventCount      int          `json:"audit_event_count"`
	Giver                PartySummary `json:"giver"`
	Doer                 PartySummary `json:"doer"`
}

// Summarize reduces a collected bundle into the fixed evidence summary.
// Pure and deterministic: identical bundles produce identical summaries.
func Summarize(b Bundle) EvidenceSummary {
	s := EvidenceSummary{
		DisputeReason:        b.Dispute.Reason,
		DisputeDetails:       b.Dispute.Details,
		TaskCategory:         b.Booking.TaskCategory,
		BookingStatus:        b.Booking.Status,
		DisputeEvidenceCount: len(b.DisputeEvidence),
		WorkEvidenceCount:    len(b.WorkEvidence),
		CheckinCount:         len(b.Checkins),
		ChecklistTotal:       len(b.Checklist),
		AuditEventCount:      len(b.AuditEvents),
		Giver:                summarizeParty(b.Giver),
		Doer:                 summarizeParty(b.Doer),
	}

	for _, ev := range b.Checkins {
		switch ev.Type {
		case CheckinStart:
			s.TaskStarted = true
		case CheckinEnd:
			s.TaskCompleted = true
		}
		if ev.Lat != nil && ev.Lng != nil {
			s.LocationsVerified++
		}
	}

	for _, item := range b.Checklist {
		switch item.Status {
		case ChecklistApproved:
			s.ChecklistApproved++
		case ChecklistRejected:
			s.ChecklistRejected++
		default:
			s.ChecklistPending++
		}
		if item.PhotoRequired {
			s.PhotoProofRequired++
		}
	}

	return s
}

func summarizeParty(p *PartyProfile) PartySummary {
	if p == nil {
		return PartySummary{}
	}
	return PartySummary{
		TrustScore:     p.TrustScore,
		Rating:         p.Rating,
		CompletedTasks: p.CompletedTasks,
	}
}

// totalEvidence counts uploads of both kinds; check-ins are counted
// separately because the rule engine distinguishes the two signals.
func (s EvidenceSummary) totalEvidence() int {
	return s.DisputeEvidenceCount + s.WorkEvidenceCount
}
