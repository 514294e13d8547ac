package matching

import (
	"context"
	"sort"
)

// SnapshotRepository abstracts repository operations for the service.
type SnapshotRepository interface {
	LoadUserSnapshot(ctx context.Context, userID string) (UserSnapshot, error)
	ListOpenTasks(ctx context.Context, limit int) ([]TaskListing, error)
}

// Service ranks open tasks for a user. Scoring itself is pure; the service
// only adds the data loading and the sort.
type Service struct {
	repo SnapshotRepository
}

// NewService builds a Service using the provided repository.
func NewService(repo SnapshotRepository) *Service {
	return &Service{repo: repo}
}

// Recommend returns up to limit open tasks ranked by match score, ties broken
// by recency of the listing (the repository's ordering).
func (s *Service) Recommend(ctx context.Context, userID string, limit int) ([]RankedTask, error) {
	if limit <= 0 || limit > 50 {
		limit = 50
	}

	user, err := s.repo.LoadUserSnapshot(ctx, userID)
	if err != nil {
		return nil, err
	}

	tasks, err := s.repo.ListOpenTasks(ctx, 4*limit)
	if err != nil {
		return nil, err
	}

	ranked := make([]RankedTask, 0, len(tasks))
	for _, task := range tasks {
		res := Score(user, task)
		ranked = append(ranked, RankedTask{Task: task, Score: res.Score, Reasons: res.Reasons})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	return ranked, nil
}
