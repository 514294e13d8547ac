package audit

import "context"

// EventReader abstracts the read side of the chain for the service.
type EventReader interface {
	ListByBooking(ctx context.Context, bookingID string) ([]Event, error)
}

// Service exposes chain verification to callers.
type Service struct {
	repo EventReader
}

// NewService builds a Service using the provided repository.
func NewService(repo EventReader) *Service {
	return &Service{repo: repo}
}

// VerifyChain loads a booking's events and checks every link.
func (s *Service) VerifyChain(ctx context.Context, bookingID string) (ChainReport, error) {
	events, err := s.repo.ListByBooking(ctx, bookingID)
	if err != nil {
		return ChainReport{}, err
	}

	broken := VerifyEvents(events)
	return ChainReport{
		BookingID:  bookingID,
		EventCount: len(events),
		Valid:      broken == -1,
		BrokenAt:   broken,
	}, nil
}
