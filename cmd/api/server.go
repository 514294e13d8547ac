package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"taskflow/audit"
	"taskflow/auth"
	"taskflow/dispute"
	"taskflow/matching"
	"taskflow/reputation"
)

type ctxKey int

const (
	ctxKeyAccountID ctxKey = iota
	ctxKeyRole
)

type disputeAnalyzer interface {
	Analyze(ctx context.Context, disputeID string, analysisType dispute.AnalysisType) (dispute.AnalysisResult, error)
	History(ctx context.Context, disputeID string) ([]dispute.AnalysisResult, error)
}

type taskRecommender interface {
	Recommend(ctx context.Context, userID string, limit int) ([]matching.RankedTask, error)
}

type chainVerifier interface {
	VerifyChain(ctx context.Context, bookingID string) (audit.ChainReport, error)
}

type reputationReader interface {
	Top(ctx context.Context, limit int) ([]reputation.Snapshot, error)
}

type tokenAuthority interface {
	IssueToken(ctx context.Context, req auth.TokenRequest) (string, error)
	VerifyToken(token string) (string, auth.Role, error)
}

// Server exposes the review API over plain net/http handlers.
type Server struct {
	disputeService    disputeAnalyzer
	matchService      taskRecommender
	auditService      chainVerifier
	reputationService reputationReader
	authService       tokenAuthority
	log               *slog.Logger
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/auth/token", s.handleToken)
	mux.Handle("/api/disputes/", s.authenticate(http.HandlerFunc(s.handleDisputeDetail)))
	mux.Handle("/api/users/", s.authenticate(http.HandlerFunc(s.handleUserDetail)))
	mux.Handle("/api/bookings/", s.authenticate(http.HandlerFunc(s.handleBookingDetail)))
	mux.Handle("/api/reputation/top", s.authenticate(http.HandlerFunc(s.handleReputationTop)))
	return mux
}

// authenticate requires a valid bearer token and stashes the caller identity
// in the request context.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			writeError(w, http.StatusUnauthorized, "missing bearer token")
			return
		}

		accountID, role, err := s.authService.VerifyToken(token)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid token")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyAccountID, accountID)
		ctx = context.WithValue(ctx, ctxKeyRole, role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req auth.TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	token, err := s.authService.IssueToken(r.Context(), req)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			writeError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		s.log.Error("issue token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"token": token})
}

// handleDisputeDetail routes /api/disputes/{id}/analyze and
// /api/disputes/{id}/analyses.
func (s *Server) handleDisputeDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/disputes/")
	disputeID, action, _ := strings.Cut(rest, "/")
	if disputeID == "" || action == "" {
		writeError(w, http.StatusBadRequest, "dispute id and action required")
		return
	}

	switch action {
	case "analyze":
		s.handleAnalyze(w, r, disputeID)
	case "analyses":
		s.handleAnalysisHistory(w, r, disputeID)
	default:
		writeError(w, http.StatusNotFound, "unknown action")
	}
}

type analyzeRequest struct {
	Type string `json:"type"`
}

type analyzeResponse struct {
	Success  bool              `json:"success"`
	Analysis *analysisResponse `json:"analysis,omitempty"`
}

type analysisResponse struct {
	ID                  string                  `json:"id"`
	DisputeID           string                  `json:"disputeId"`
	Type                string                  `json:"type"`
	Strategy            string                  `json:"strategy"`
	RiskScore           int                     `json:"riskScore"`
	ConfidenceScore     int                     `json:"confidenceScore"`
	Recommendation      string                  `json:"recommendation"`
	Reasoning           string                  `json:"reasoning"`
	Inconsistencies     []string                `json:"inconsistencies"`
	SuggestedResolution string                  `json:"suggestedResolution"`
	Summary             dispute.EvidenceSummary `json:"summary"`
	CreatedAt           string                  `json:"createdAt"`
}

func toAnalysisResponse(result dispute.AnalysisResult) analysisResponse {
	inconsistencies := result.Inconsistencies
	if inconsistencies == nil {
		inconsistencies = []string{}
	}
	return analysisResponse{
		ID:                  result.ID,
		DisputeID:           result.DisputeID,
		Type:                string(result.AnalysisType),
		Strategy:            result.Strategy,
		RiskScore:           result.RiskScore,
		ConfidenceScore:     result.ConfidenceScore,
		Recommendation:      string(result.Recommendation),
		Reasoning:           result.Reasoning,
		Inconsistencies:     inconsistencies,
		SuggestedResolution: result.SuggestedResolution,
		Summary:             result.Summary,
		CreatedAt:           result.CreatedAt.Format(time.RFC3339),
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request, disputeID string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req analyzeRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	result, err := s.disputeService.Analyze(r.Context(), disputeID, dispute.AnalysisType(req.Type))
	if err != nil {
		switch {
		case errors.Is(err, dispute.ErrNotFound):
			writeError(w, http.StatusNotFound, "dispute not found")
		case errors.Is(err, dispute.ErrMissingDisputeID), errors.Is(err, dispute.ErrInvalidAnalysisType):
			writeError(w, http.StatusBadRequest, err.Error())
		default:
			s.log.Error("analyze dispute", "disputeId", disputeID, "error", err)
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}

	resp := toAnalysisResponse(result)
	writeJSON(w, http.StatusOK, analyzeResponse{Success: true, Analysis: &resp})
}

func (s *Server) handleAnalysisHistory(w http.ResponseWriter, r *http.Request, disputeID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	results, err := s.disputeService.History(r.Context(), disputeID)
	if err != nil {
		s.log.Error("list analyses", "disputeId", disputeID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]analysisResponse, 0, len(results))
	for _, result := range results {
		items = append(items, toAnalysisResponse(result))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

type recommendationResponse struct {
	TaskID    string   `json:"taskId"`
	Title     string   `json:"title"`
	Category  string   `json:"category"`
	PayAmount float64  `json:"payAmount"`
	Urgent    bool     `json:"urgent"`
	Score     int      `json:"score"`
	Reasons   []string `json:"reasons"`
}

// handleUserDetail routes /api/users/{id}/recommendations.
func (s *Server) handleUserDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/users/")
	userID, action, _ := strings.Cut(rest, "/")
	if userID == "" || action != "recommendations" {
		writeError(w, http.StatusBadRequest, "user id and action required")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	ranked, err := s.matchService.Recommend(r.Context(), userID, limit)
	if err != nil {
		if errors.Is(err, matching.ErrUserNotFound) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		s.log.Error("recommend tasks", "userId", userID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]recommendationResponse, 0, len(ranked))
	for _, rt := range ranked {
		items = append(items, recommendationResponse{
			TaskID:    rt.Task.ID,
			Title:     rt.Task.Title,
			Category:  rt.Task.Category,
			PayAmount: rt.Task.PayAmount,
			Urgent:    rt.Task.Urgent,
			Score:     rt.Score,
			Reasons:   rt.Reasons,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

type reputationResponse struct {
	UserID          string   `json:"userId"`
	TrustScore      *int     `json:"trustScore"`
	Rating          *float64 `json:"rating"`
	CompletedTasks  *int     `json:"completedTasks"`
	ReputationScore *int     `json:"reputationScore"`
	BadgeCount      int      `json:"badgeCount"`
}

// handleReputationTop serves the reputation leaderboard the review dashboard
// renders next to dispute analyses.
func (s *Server) handleReputationTop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	limit := 10
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	snapshots, err := s.reputationService.Top(r.Context(), limit)
	if err != nil {
		s.log.Error("list top reputation", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	items := make([]reputationResponse, 0, len(snapshots))
	for _, snap := range snapshots {
		items = append(items, reputationResponse{
			UserID:          snap.UserID,
			TrustScore:      snap.TrustScore,
			Rating:          snap.Rating,
			CompletedTasks:  snap.CompletedTasks,
			ReputationScore: snap.ReputationScore,
			BadgeCount:      snap.BadgeCount,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items, "total": len(items)})
}

type chainResponse struct {
	BookingID  string `json:"bookingId"`
	EventCount int    `json:"eventCount"`
	Valid      bool   `json:"valid"`
	BrokenAt   int    `json:"brokenAt"`
}

// handleBookingDetail routes /api/bookings/{id}/audit/verify.
func (s *Server) handleBookingDetail(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/bookings/")
	bookingID, action, _ := strings.Cut(rest, "/")
	if bookingID == "" || action != "audit/verify" {
		writeError(w, http.StatusBadRequest, "booking id and action required")
		return
	}
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	report, err := s.auditService.VerifyChain(r.Context(), bookingID)
	if err != nil {
		s.log.Error("verify audit chain", "bookingId", bookingID, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	writeJSON(w, http.StatusOK, chainResponse{
		BookingID:  report.BookingID,
		EventCount: report.EventCount,
		Valid:      report.Valid,
		BrokenAt:   report.BrokenAt,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
