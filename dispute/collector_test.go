package dispute

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

type fakeCollectorRepo struct {
	record  Record
	booking BookingContext
	ctxErr  error

	disputeEvidence []EvidenceItem
	workEvidence    []EvidenceItem
	checkins        []CheckinEvent
	checklist       []ChecklistCompletion
	auditEvents     []AuditEvent

	disputeEvidenceErr error
	workEvidenceErr    error
	checkinsErr        error
	checklistErr       error
	auditErr           error
}

func (f *fakeCollectorRepo) GetDisputeContext(_ context.Context, _ string) (Record, BookingContext, error) {
	return f.record, f.booking, f.ctxErr
}

func (f *fakeCollectorRepo) ListDisputeEvidence(_ context.Context, _ string) ([]EvidenceItem, error) {
	return f.disputeEvidence, f.disputeEvidenceErr
}

func (f *fakeCollectorRepo) ListWorkEvidence(_ context.Context, _ string) ([]EvidenceItem, error) {
	return f.workEvidence, f.workEvidenceErr
}

func (f *fakeCollectorRepo) ListCheckins(_ context.Context, _ string) ([]CheckinEvent, error) {
	return f.checkins, f.checkinsErr
}

func (f *fakeCollectorRepo) ListChecklist(_ context.Context, _ string) ([]ChecklistCompletion, error) {
	return f.checklist, f.checklistErr
}

func (f *fakeCollectorRepo) ListAuditEvents(_ context.Context, _ string) ([]AuditEvent, error) {
	return f.auditEvents, f.auditErr
}

type fakeProfiles struct {
	profiles map[string]PartyProfile
	err      error
}

func (f *fakeProfiles) PartyProfile(_ context.Context, userID string) (PartyProfile, error) {
	if f.err != nil {
		return PartyProfile{}, f.err
	}
	return f.profiles[userID], nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestCollect_MissingDisputeIsFatal(t *testing.T) {
	collector := NewCollector(&fakeCollectorRepo{ctxErr: ErrNotFound}, nil, discardLogger())

	if _, err := collector.Collect(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCollect_AllSourcesPresent(t *testing.T) {
	repo := &fakeCollectorRepo{
		record:          Record{ID: "d1", BookingID: "b1"},
		booking:         BookingContext{BookingID: "b1", GiverID: "g", DoerID: "w"},
		disputeEvidence: []EvidenceItem{{ID: "e1"}},
		workEvidence:    []EvidenceItem{{ID: "e2"}},
		checkins:        []CheckinEvent{{ID: "c1", Type: CheckinStart}},
		checklist:       []ChecklistCompletion{{ItemID: "i1", Status: ChecklistApproved}},
		auditEvents:     []AuditEvent{{ID: 1}},
	}
	profiles := &fakeProfiles{profiles: map[string]PartyProfile{
		"g": {UserID: "g", TrustScore: ptrI(80)},
		"w": {UserID: "w", TrustScore: ptrI(75)},
	}}

	bundle, err := NewCollector(repo, profiles, discardLogger()).Collect(context.Background(), "d1")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	if len(bundle.DisputeEvidence) != 1 || len(bundle.WorkEvidence) != 1 {
		t.Errorf("evidence not collected: %+v", bundle)
	}
	if len(bundle.Checkins) != 1 || len(bundle.Checklist) != 1 || len(bundle.AuditEvents) != 1 {
		t.Errorf("secondary sources not collected: %+v", bundle)
	}
	if bundle.Giver == nil || *bundle.Giver.TrustScore != 80 {
		t.Errorf("giver profile not collected: %+v", bundle.Giver)
	}
	if bundle.Doer == nil || *bundle.Doer.TrustScore != 75 {
		t.Errorf("doer profile not collected: %+v", bundle.Doer)
	}
}

func TestCollect_SourceFailuresDegradeToEmpty(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &fakeCollectorRepo{
		record:             Record{ID: "d1", BookingID: "b1"},
		booking:            BookingContext{BookingID: "b1", GiverID: "g", DoerID: "w"},
		checkins:           []CheckinEvent{{ID: "c1", Type: CheckinStart}},
		disputeEvidenceErr: boom,
		workEvidenceErr:    boom,
		checklistErr:       boom,
		auditErr:           boom,
	}
	profiles := &fakeProfiles{err: boom}

	bundle, err := NewCollector(repo, profiles, discardLogger()).Collect(context.Background(), "d1")
	if err != nil {
		t.Fatalf("per-source failures must not abort the analysis, got %v", err)
	}

	if len(bundle.DisputeEvidence) != 0 || len(bundle.WorkEvidence) != 0 {
		t.Errorf("failed sources should be empty: %+v", bundle)
	}
	if len(bundle.Checkins) != 1 {
		t.Errorf("healthy source should still be collected: %+v", bundle.Checkins)
	}
	if bundle.Giver != nil || bundle.Doer != nil {
		t.Errorf("failed profile lookups should leave nil profiles")
	}
}

func TestCollect_DegradationWarnsCarryDisputeID(t *testing.T) {
	boom := errors.New("connection reset")
	repo := &fakeCollectorRepo{
		record:             Record{ID: "d1", BookingID: "b1"},
		booking:            BookingContext{BookingID: "b1", GiverID: "g", DoerID: "w"},
		disputeEvidenceErr: boom,
		workEvidenceErr:    boom,
		checkinsErr:        boom,
	}

	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	if _, err := NewCollector(repo, nil, log).Collect(context.Background(), "d1"); err != nil {
		t.Fatalf("collect: %v", err)
	}

	var warned int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry struct {
			Msg       string `json:"msg"`
			Source    string `json:"source"`
			DisputeID string `json:"dispute_id"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry.Msg != "evidence source degraded to empty" {
			continue
		}
		warned++
		if entry.DisputeID != "d1" {
			t.Errorf("source %q warned without the dispute id: %s", entry.Source, line)
		}
	}
	if warned != 3 {
		t.Fatalf("expected 3 degradation warnings, got %d", warned)
	}
}

func TestCollect_NoProfileSource(t *testing.T) {
	repo := &fakeCollectorRepo{
		record:  Record{ID: "d1", BookingID: "b1"},
		booking: BookingContext{BookingID: "b1", GiverID: "g", DoerID: "w"},
	}

	bundle, err := NewCollector(repo, nil, discardLogger()).Collect(context.Background(), "d1")
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if bundle.Giver != nil || bundle.Doer != nil {
		t.Error("expected nil profiles without a profile source")
	}
}
