package audit

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

// genesisHash anchors the first event of every booking's chain.
const genesisHash = ""

// ComputeEventHash derives the hash for one event. Timestamps are normalized
// to UTC nanosecond precision so the stored created_at reproduces the hash.
func ComputeEventHash(previousHash, bookingID, action string, payload []byte, createdAt time.Time) string {
	h := sha256.New()
	h.Write([]byte(previousHash))
	h.Write([]byte{0})
	h.Write([]byte(bookingID))
	h.Write([]byte{0})
	h.Write([]byte(action))
	h.Write([]byte{0})
	h.Write(payload)
	h.Write([]byte{0})
	h.Write([]byte(createdAt.UTC().Format(time.RFC3339Nano)))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifyEvents walks events in creation order and returns the index of the
// first event whose previous_hash does not match its predecessor's event_hash
// or whose own hash does not recompute. Returns -1 for an intact chain.
func VerifyEvents(events []Event) int {
	prev := genesisHash
	for i, ev := range events {
		if ev.PreviousHash != prev {
			return i
		}
		if ComputeEventHash(ev.PreviousHash, ev.BookingID, ev.Action, ev.Payload, ev.CreatedAt) != ev.EventHash {
			return i
		}
		prev = ev.EventHash
	}
	return -1
}
