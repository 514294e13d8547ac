package matching

import "time"

// UserSnapshot is everything the scorer knows about a candidate doer:
// completion history aggregates plus the reputation snapshot. Assembled by
// the repository, never mutated by scoring.
type UserSnapshot struct {
	UserID string
	// TopCategories is ordered by completed-booking count, most first.
	TopCategories []string
	Skills        []string
	// TypicalPay and TypicalDurationMinutes are averages over completed
	// bookings; zero when the user has no history.
	TypicalPay             float64
	TypicalDurationMinutes int
	Lat                    *float64
	Lng                    *float64
	TrustScore             int
	ReputationScore        int
	BadgeCount             int
}

// TaskListing is an open task considered for recommendation.
type TaskListing struct {
	ID              string
	Title           string
	Description     string
	Category        string
	PayAmount       float64
	DurationMinutes int
	Lat             *float64
	Lng             *float64
	Urgent          bool
	PosterRating    *float64
	CreatedAt       time.Time
}

// MatchResult is the scorer's verdict for one user/task pair.
type MatchResult struct {
	TaskID  string
	Score   int
	Reasons []string
}

// RankedTask pairs a listing with its match result for API responses.
type RankedTask struct {
	Task    TaskListing
	Score   int
	Reasons []string
}
