package audit

import "time"

// Event is one link in a booking's append-only hash chain. EventHash covers
// the previous hash, the booking, the action, the payload, and the creation
// timestamp, so any rewrite of history breaks every later link.
type Event struct {
	ID           int64
	BookingID    string
	ActorID      *string
	Action       string
	Payload      []byte
	EventHash    string
	PreviousHash string
	CreatedAt    time.Time
}

// AppendParams enumerates the fields required to append a new event.
type AppendParams struct {
	BookingID string
	ActorID   *string
	Action    string
	Payload   map[string]any
}

// ChainReport summarizes a verification pass over one booking's chain.
type ChainReport struct {
	BookingID  string
	EventCount int
	Valid      bool
	// BrokenAt is the index of the first event whose linkage or hash fails
	// verification; -1 when the chain is intact.
	BrokenAt int
}
