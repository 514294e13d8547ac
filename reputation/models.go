package reputation

import "time"

// Snapshot captures a user's precomputed standing metrics at read time.
// Pointer fields stay nil when the user has no recorded history yet; scoring
// code treats nil as "unknown", never as zero.
type Snapshot struct {
	UserID          string
	TrustScore      *int
	Rating          *float64
	CompletedTasks  *int
	ReputationScore *int
	BadgeCount      int
	UpdatedAt       time.Time
}
