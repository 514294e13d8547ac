package audit

import (
	"context"
	"testing"
	"time"
)

func chainOf(t *testing.T, bookingID string, actions ...string) []Event {
	t.Helper()
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	prev := genesisHash
	events := make([]Event, 0, len(actions))
	for i, action := range actions {
		ts := base.Add(time.Duration(i) * time.Minute)
		ev := Event{
			ID:           int64(i + 1),
			BookingID:    bookingID,
			Action:       action,
			Payload:      []byte(`{}`),
			PreviousHash: prev,
			CreatedAt:    ts,
		}
		ev.EventHash = ComputeEventHash(prev, bookingID, action, ev.Payload, ts)
		events = append(events, ev)
		prev = ev.EventHash
	}
	return events
}

func TestVerifyEvents_IntactChain(t *testing.T) {
	events := chainOf(t, "b1", "BOOKING_CREATED", "CHECKIN_START", "CHECKIN_END")
	if got := VerifyEvents(events); got != -1 {
		t.Fatalf("expected intact chain, got break at %d", got)
	}
}

func TestVerifyEvents_EmptyChain(t *testing.T) {
	if got := VerifyEvents(nil); got != -1 {
		t.Fatalf("empty chain should verify, got break at %d", got)
	}
}

func TestVerifyEvents_BrokenLinkage(t *testing.T) {
	events := chainOf(t, "b1", "BOOKING_CREATED", "CHECKIN_START", "CHECKIN_END")
	events[2].PreviousHash = "forged"
	if got := VerifyEvents(events); got != 2 {
		t.Fatalf("expected break at index 2, got %d", got)
	}
}

func TestVerifyEvents_TamperedPayload(t *testing.T) {
	events := chainOf(t, "b1", "BOOKING_CREATED", "ESCROW_RELEASED")
	events[1].Payload = []byte(`{"amount":9999}`)
	if got := VerifyEvents(events); got != 1 {
		t.Fatalf("expected break at index 1, got %d", got)
	}
}

func TestComputeEventHash_TimestampNormalized(t *testing.T) {
	ts := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	local := ts.In(time.FixedZone("X", 3*3600))
	a := ComputeEventHash("", "b1", "A", []byte(`{}`), ts)
	b := ComputeEventHash("", "b1", "A", []byte(`{}`), local)
	if a != b {
		t.Fatal("hash must not depend on timestamp zone representation")
	}
}

type fakeEventReader struct {
	events []Event
	err    error
}

func (f *fakeEventReader) ListByBooking(_ context.Context, _ string) ([]Event, error) {
	return f.events, f.err
}

func TestVerifyChain_Report(t *testing.T) {
	events := chainOf(t, "b7", "BOOKING_CREATED", "CHECKIN_START")
	svc := NewService(&fakeEventReader{events: events})

	report, err := svc.VerifyChain(context.Background(), "b7")
	if err != nil {
		t.Fatalf("verify chain: %v", err)
	}
	if !report.Valid || report.EventCount != 2 || report.BrokenAt != -1 {
		t.Fatalf("unexpected report: %+v", report)
	}
}
