package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"taskflow/audit"
	"taskflow/auth"
	"taskflow/dispute"
	"taskflow/matching"
	"taskflow/reputation"
)

type stubDisputeService struct {
	analyzeResult dispute.AnalysisResult
	analyzeErr    error
	historyItems  []dispute.AnalysisResult
	historyErr    error

	gotDisputeID string
	gotType      dispute.AnalysisType
}

func (s *stubDisputeService) Analyze(_ context.Context, disputeID string, analysisType dispute.AnalysisType) (dispute.AnalysisResult, error) {
	s.gotDisputeID = disputeID
	s.gotType = analysisType
	return s.analyzeResult, s.analyzeErr
}

func (s *stubDisputeService) History(_ context.Context, disputeID string) ([]dispute.AnalysisResult, error) {
	s.gotDisputeID = disputeID
	return s.historyItems, s.historyErr
}

type stubMatchService struct {
	ranked   []matching.RankedTask
	err      error
	gotLimit int
}

func (s *stubMatchService) Recommend(_ context.Context, _ string, limit int) ([]matching.RankedTask, error) {
	s.gotLimit = limit
	return s.ranked, s.err
}

type stubAuditService struct {
	report audit.ChainReport
	err    error
}

func (s *stubAuditService) VerifyChain(_ context.Context, _ string) (audit.ChainReport, error) {
	return s.report, s.err
}

type stubReputationService struct {
	snapshots []reputation.Snapshot
	err       error
	gotLimit  int
}

func (s *stubReputationService) Top(_ context.Context, limit int) ([]reputation.Snapshot, error) {
	s.gotLimit = limit
	return s.snapshots, s.err
}

type stubAuthService struct {
	token    string
	issueErr error
}

func (s *stubAuthService) IssueToken(_ context.Context, _ auth.TokenRequest) (string, error) {
	return s.token, s.issueErr
}

func (s *stubAuthService) VerifyToken(token string) (string, auth.Role, error) {
	if token != "valid-token" {
		return "", "", errors.New("auth: invalid token")
	}
	return "acct-1", auth.RoleReviewer, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	return &Server{
		disputeService:    &stubDisputeService{},
		matchService:      &stubMatchService{},
		auditService:      &stubAuditService{},
		reputationService: &stubReputationService{},
		authService:       &stubAuthService{},
		log:               slog.New(slog.DiscardHandler),
	}
}

func authedRequest(method, target string, body *strings.Reader) *http.Request {
	var req *http.Request
	if body == nil {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, body)
	}
	req.Header.Set("Authorization", "Bearer valid-token")
	return req
}

func TestHandleAnalyze_Success(t *testing.T) {
	now := time.Date(2025, 3, 14, 9, 30, 0, 0, time.UTC)
	server := newTestServer(t)
	stub := &stubDisputeService{
		analyzeResult: dispute.AnalysisResult{
			ID:              "an-1",
			DisputeID:       "d1",
			AnalysisType:    dispute.AnalysisInitial,
			Strategy:        dispute.StrategyRule,
			RiskScore:       30,
			ConfidenceScore: 70,
			Recommendation:  dispute.RecommendFavorDoer,
			Reasoning:       "work completed with verified evidence",
			CreatedAt:       now,
		},
	}
	server.disputeService = stub

	req := authedRequest(http.MethodPost, "/api/disputes/d1/analyze", strings.NewReader(`{"type":"initial"}`))
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp analyzeResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Analysis == nil {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Analysis.ID != "an-1" || resp.Analysis.Strategy != dispute.StrategyRule {
		t.Fatalf("unexpected analysis payload: %+v", resp.Analysis)
	}
	if resp.Analysis.CreatedAt != now.Format(time.RFC3339) {
		t.Fatalf("expected createdAt %s, got %s", now.Format(time.RFC3339), resp.Analysis.CreatedAt)
	}
	if resp.Analysis.Inconsistencies == nil {
		t.Fatal("inconsistencies must encode as an empty array, not null")
	}
	if stub.gotDisputeID != "d1" || stub.gotType != dispute.AnalysisInitial {
		t.Fatalf("unexpected service call: id=%q type=%q", stub.gotDisputeID, stub.gotType)
	}
}

func TestHandleAnalyze_EmptyBodyDefaultsType(t *testing.T) {
	server := newTestServer(t)
	stub := &stubDisputeService{}
	server.disputeService = stub

	req := authedRequest(http.MethodPost, "/api/disputes/d1/analyze", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.gotType != "" {
		t.Fatalf("expected empty analysis type passed through, got %q", stub.gotType)
	}
}

func TestHandleAnalyze_NotFound(t *testing.T) {
	server := newTestServer(t)
	server.disputeService = &stubDisputeService{analyzeErr: dispute.ErrNotFound}

	req := authedRequest(http.MethodPost, "/api/disputes/missing/analyze", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleAnalyze_InvalidType(t *testing.T) {
	server := newTestServer(t)
	server.disputeService = &stubDisputeService{
		analyzeErr: dispute.ErrInvalidAnalysisType,
	}

	req := authedRequest(http.MethodPost, "/api/disputes/d1/analyze", strings.NewReader(`{"type":"bogus"}`))
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleAnalyze_WrongMethod(t *testing.T) {
	server := newTestServer(t)

	req := authedRequest(http.MethodGet, "/api/disputes/d1/analyze", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rec.Code)
	}
}

func TestHandleDisputeDetail_UnknownAction(t *testing.T) {
	server := newTestServer(t)

	req := authedRequest(http.MethodGet, "/api/disputes/d1/evidence", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleAnalysisHistory_Success(t *testing.T) {
	now := time.Now().UTC()
	server := newTestServer(t)
	server.disputeService = &stubDisputeService{
		historyItems: []dispute.AnalysisResult{
			{ID: "an-2", DisputeID: "d1", Strategy: dispute.StrategyAI, CreatedAt: now},
			{ID: "an-1", DisputeID: "d1", Strategy: dispute.StrategyRule, CreatedAt: now.Add(-time.Hour)},
		},
	}

	req := authedRequest(http.MethodGet, "/api/disputes/d1/analyses", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var payload struct {
		Items []analysisResponse `json:"items"`
		Total int                `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 2 || len(payload.Items) != 2 || payload.Items[0].ID != "an-2" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleRecommendations_Success(t *testing.T) {
	server := newTestServer(t)
	stub := &stubMatchService{
		ranked: []matching.RankedTask{
			{
				Task:    matching.TaskListing{ID: "t1", Title: "Assemble shelving", Category: "assembly", PayAmount: 120, Urgent: true},
				Score:   82,
				Reasons: []string{"top category match"},
			},
		},
	}
	server.matchService = stub

	req := authedRequest(http.MethodGet, "/api/users/u1/recommendations?limit=5", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.gotLimit != 5 {
		t.Fatalf("expected limit 5 passed through, got %d", stub.gotLimit)
	}

	var payload struct {
		Items []recommendationResponse `json:"items"`
		Total int                      `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 1 || payload.Items[0].TaskID != "t1" || payload.Items[0].Score != 82 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestHandleRecommendations_BadLimit(t *testing.T) {
	server := newTestServer(t)

	req := authedRequest(http.MethodGet, "/api/users/u1/recommendations?limit=zero", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleRecommendations_UnknownUser(t *testing.T) {
	server := newTestServer(t)
	server.matchService = &stubMatchService{err: matching.ErrUserNotFound}

	req := authedRequest(http.MethodGet, "/api/users/ghost/recommendations", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleAuditVerify_BrokenChain(t *testing.T) {
	server := newTestServer(t)
	server.auditService = &stubAuditService{
		report: audit.ChainReport{BookingID: "b1", EventCount: 4, Valid: false, BrokenAt: 2},
	}

	req := authedRequest(http.MethodGet, "/api/bookings/b1/audit/verify", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp chainResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Valid || resp.BrokenAt != 2 || resp.EventCount != 4 {
		t.Fatalf("unexpected payload: %+v", resp)
	}
}

func TestHandleReputationTop_Success(t *testing.T) {
	server := newTestServer(t)
	trust := 88
	rating := 4.7
	completed := 52
	repScore := 91
	stub := &stubReputationService{
		snapshots: []reputation.Snapshot{
			{UserID: "u1", TrustScore: &trust, Rating: &rating, CompletedTasks: &completed, ReputationScore: &repScore, BadgeCount: 3},
			{UserID: "u2", BadgeCount: 0},
		},
	}
	server.reputationService = stub

	req := authedRequest(http.MethodGet, "/api/reputation/top?limit=2", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if stub.gotLimit != 2 {
		t.Fatalf("expected limit 2 passed through, got %d", stub.gotLimit)
	}

	var payload struct {
		Items []reputationResponse `json:"items"`
		Total int                  `json:"total"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Total != 2 || len(payload.Items) != 2 {
		t.Fatalf("unexpected payload: %+v", payload)
	}
	if payload.Items[0].UserID != "u1" || payload.Items[0].TrustScore == nil || *payload.Items[0].TrustScore != 88 {
		t.Fatalf("unexpected first item: %+v", payload.Items[0])
	}
	if payload.Items[1].Rating != nil {
		t.Fatalf("expected nil rating for unrated user, got %v", *payload.Items[1].Rating)
	}
}

func TestHandleReputationTop_DefaultLimit(t *testing.T) {
	server := newTestServer(t)
	stub := &stubReputationService{}
	server.reputationService = stub

	req := authedRequest(http.MethodGet, "/api/reputation/top", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if stub.gotLimit != 10 {
		t.Fatalf("expected default limit 10, got %d", stub.gotLimit)
	}
}

func TestHandleReputationTop_BadLimit(t *testing.T) {
	server := newTestServer(t)

	req := authedRequest(http.MethodGet, "/api/reputation/top?limit=-1", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleToken_Success(t *testing.T) {
	server := newTestServer(t)
	server.authService = &stubAuthService{token: "issued-token"}

	body := strings.NewReader(`{"account_id":"acct-1","secret":"correct-horse-battery"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", body)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["token"] != "issued-token" {
		t.Fatalf("unexpected token payload: %+v", resp)
	}
}

func TestHandleToken_InvalidCredentials(t *testing.T) {
	server := newTestServer(t)
	server.authService = &stubAuthService{issueErr: auth.ErrInvalidCredentials}

	body := strings.NewReader(`{"account_id":"acct-1","secret":"wrong"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/auth/token", body)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthenticate_MissingToken(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/disputes/d1/analyses", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestAuthenticate_BadToken(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/disputes/d1/analyses", nil)
	req.Header.Set("Authorization", "Bearer forged")
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHandleHealth(t *testing.T) {
	server := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()

	server.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
