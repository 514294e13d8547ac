package dispute

import (
	"context"
	"fmt"
)

// RuleStrategy is the deterministic decision tree used whenever the AI
// backend is unavailable or returns unusable output. It never fails.
type RuleStrategy struct{}

// NewRuleStrategy builds the rule engine.
func NewRuleStrategy() *RuleStrategy {
	return &RuleStrategy{}
}

// Name returns the persisted strategy identifier.
func (r *RuleStrategy) Name() string { return StrategyRule }

// Score evaluates the decision tree over the summary.
func (r *RuleStrategy) Score(_ context.Context, summary EvidenceSummary) (Assessment, error) {
	return r.assess(summary), nil
}

func (r *RuleStrategy) assess(s EvidenceSummary) Assessment {
	a := Assessment{
		Strategy:        StrategyRule,
		Inconsistencies: detectInconsistencies(s),
	}

	switch {
	case s.totalEvidence() == 0 && s.CheckinCount == 0:
		a.Recommendation = RecommendInsufficientEvidence
		a.ConfidenceScore = 20
		a.RiskScore = 50
		a.Reasoning = "No evidence items and no check-in events were recorded for this booking; there is nothing to weigh either way."
		a.SuggestedResolution = "Request evidence from both parties before ruling."
	case s.TaskCompleted && s.ChecklistRejected == 0 && s.ChecklistPending == 0:
		a.Recommendation = RecommendFavorDoer
		a.ConfidenceScore = 70
		a.RiskScore = 30
		a.Reasoning = "Check-ins show the task was started and completed and every checklist item was approved."
		a.SuggestedResolution = "Release escrow to the task doer."
	case s.TaskStarted && !s.TaskCompleted:
		a.Recommendation = RecommendFavorGiver
		a.ConfidenceScore = 60
		a.RiskScore = 60
		a.Reasoning = "Check-ins show the task was started but never completed."
		a.SuggestedResolution = "Refund the task giver; the work was not finished."
	default:
		a.Recommendation = RecommendEscalate
		a.ConfidenceScore = 40
		a.RiskScore = 50
		a.Reasoning = "The evidence signals are mixed; no rule applies cleanly."
		a.SuggestedResolution = "Escalate to a human reviewer."
	}

	a.RiskScore = clampScore(a.RiskScore)
	a.ConfidenceScore = clampScore(a.ConfidenceScore)
	return a
}

// detectInconsistencies flags contradictions in the summary. Both strategies
// feed from this list; the AI path appends its own findings to it.
func detectInconsistencies(s EvidenceSummary) []string {
	var out []string
	if s.TaskStarted && s.totalEvidence() == 0 {
		out = append(out, "check-ins show the task started but no evidence was uploaded")
	}
	if s.ChecklistRejected > 0 {
		out = append(out, fmt.Sprintf("%d checklist item(s) were rejected", s.ChecklistRejected))
	}
	return out
}
