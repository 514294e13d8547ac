package reputation

import "context"

// SnapshotReader abstracts repository operations for the service.
type SnapshotReader interface {
	GetByUserID(ctx context.Context, userID string) (Snapshot, error)
	Top(ctx context.Context, limit int) ([]Snapshot, error)
}

// Service exposes read-only reputation lookups to other subsystems.
type Service struct {
	repo SnapshotReader
}

// NewService builds a Service using the provided repository.
func NewService(repo SnapshotReader) *Service {
	return &Service{repo: repo}
}

// GetByUserID returns the reputation snapshot for the given user.
func (s *Service) GetByUserID(ctx context.Context, userID string) (Snapshot, error) {
	return s.repo.GetByUserID(ctx, userID)
}

// Top returns up to limit snapshots ranked by reputation score.
func (s *Service) Top(ctx context.Context, limit int) ([]Snapshot, error) {
	return s.repo.Top(ctx, limit)
}
