package dispute

import (
	"context"
	"log/slog"
)

// Assessment is a scoring strategy's verdict over an evidence summary.
// Scores are integers clamped to [0,100] before an Assessment leaves a
// strategy.
type Assessment struct {
	RiskScore           int
	ConfidenceScore     int
	Recommendation      Recommendation
	Reasoning           string
	Inconsistencies     []string
	SuggestedResolution string
	Strategy            string
}

// ScoringStrategy turns a normalized evidence summary into an assessment.
// Implementations must not mutate the summary or touch raw records.
type ScoringStrategy interface {
	Name() string
	Score(ctx context.Context, summary EvidenceSummary) (Assessment, error)
}

// FallbackStrategy tries a primary strategy and substitutes the fallback on
// any error. The substitution is first-class behavior, not error recovery:
// callers never see the primary's failure.
type FallbackStrategy struct {
	primary  ScoringStrategy
	fallback ScoringStrategy
	log      *slog.Logger
}

// NewFallbackStrategy composes primary and fallback. primary may be nil,
// which means the fallback runs alone (no AI credential configured).
func NewFallbackStrategy(primary, fallback ScoringStrategy, log *slog.Logger) *FallbackStrategy {
	if log == nil {
		log = slog.Default()
	}
	return &FallbackStrategy{primary: primary, fallback: fallback, log: log}
}

// Name reports the primary's identifier when one is configured.
func (f *FallbackStrategy) Name() string {
	if f.primary != nil {
		return f.primary.Name()
	}
	return f.fallback.Name()
}

// Score runs the primary when present and falls back on any failure.
func (f *FallbackStrategy) Score(ctx context.Context, summary EvidenceSummary) (Assessment, error) {
	if f.primary != nil {
		assessment, err := f.primary.Score(ctx, summary)
		if err == nil {
			return assessment, nil
		}
		f.log.Warn("primary scoring strategy failed, falling back",
			"primary", f.primary.Name(),
			"fallback", f.fallback.Name(),
			"error", err,
		)
	}
	return f.fallback.Score(ctx, summary)
}

func clampScore(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
