package dispute

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidAnalysisType signals an analysis type outside the known set.
var ErrInvalidAnalysisType = errors.New("dispute: invalid analysis type")

// EvidenceCollector abstracts the collector for the service.
type EvidenceCollector interface {
	Collect(ctx context.Context, disputeID string) (Bundle, error)
}

// AnalysisStore is the single writer of dispute_analyses rows.
type AnalysisStore interface {
	InsertAnalysis(ctx context.Context, result AnalysisResult) (AnalysisResult, error)
	ListAnalyses(ctx context.Context, disputeID string) ([]AnalysisResult, error)
}

// Service runs the full analysis pipeline: collect, normalize, score,
// persist. One invocation is a synchronous request-scoped unit of work with
// no shared mutable state.
type Service struct {
	collector EvidenceCollector
	strategy  ScoringStrategy
	store     AnalysisStore
	idGen     func() string
	now       func() time.Time
}

// NewService wires the pipeline.
func NewService(collector EvidenceCollector, strategy ScoringStrategy, store AnalysisStore) *Service {
	return &Service{
		collector: collector,
		strategy:  strategy,
		store:     store,
		idGen:     func() string { return uuid.NewString() },
		now:       time.Now,
	}
}

// WithIDGenerator overrides analysis id generation, used by tests.
func (s *Service) WithIDGenerator(gen func() string) *Service {
	s.idGen = gen
	return s
}

// WithClock overrides the timestamp source, used by tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Analyze runs one analysis and persists exactly one result row on success.
// The only fatal failures are a missing dispute id, an unknown dispute, and
// a failed insert; AI unavailability is handled inside the strategy and
// never reaches the caller.
func (s *Service) Analyze(ctx context.Context, disputeID string, analysisType AnalysisType) (AnalysisResult, error) {
	if disputeID == "" {
		return AnalysisResult{}, ErrMissingDisputeID
	}
	switch analysisType {
	case "":
		analysisType = AnalysisInitial
	case AnalysisInitial, AnalysisReanalysis:
	default:
		return AnalysisResult{}, fmt.Errorf("%w %q", ErrInvalidAnalysisType, analysisType)
	}

	bundle, err := s.collector.Collect(ctx, disputeID)
	if err != nil {
		return AnalysisResult{}, err
	}

	summary := Summarize(bundle)

	assessment, err := s.strategy.Score(ctx, summary)
	if err != nil {
		return AnalysisResult{}, fmt.Errorf("dispute: score: %w", err)
	}

	result := AnalysisResult{
		ID:                  s.idGen(),
		DisputeID:           disputeID,
		AnalysisType:        analysisType,
		Strategy:            assessment.Strategy,
		RiskScore:           clampScore(assessment.RiskScore),
		ConfidenceScore:     clampScore(assessment.ConfidenceScore),
		Recommendation:      assessment.Recommendation,
		Reasoning:           assessment.Reasoning,
		Inconsistencies:     assessment.Inconsistencies,
		SuggestedResolution: assessment.SuggestedResolution,
		Summary:             summary,
		CreatedAt:           s.now(),
	}

	stored, err := s.store.InsertAnalysis(ctx, result)
	if err != nil {
		return AnalysisResult{}, err
	}
	return stored, nil
}

// History lists prior analyses for a dispute, newest first.
func (s *Service) History(ctx context.Context, disputeID string) ([]AnalysisResult, error) {
	if disputeID == "" {
		return nil, ErrMissingDisputeID
	}
	return s.store.ListAnalyses(ctx, disputeID)
}
