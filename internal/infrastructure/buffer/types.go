package buffer

import (
	"time"

	"github.com/google/uuid"
)

// Reasons recorded with a repair item.
const (
	ReasonPartialAssign = "partial_assign"
	ReasonRetry         = "retry"
)

// Item is an assignment whose two writes did not both land. Replaying it
// re-runs the idempotent assign of TaskID to UserID.
type Item struct {
	ID         string    `json:"id"`
	TaskID     string    `json:"task_id"`
	UserID     string    `json:"user_id"`
	Reason     string    `json:"reason"`
	LastError  string    `json:"last_error,omitempty"`
	Retries    int       `json:"retries"`
	RecordedAt time.Time `json:"recorded_at"`
	AttemptAt  time.Time `json:"attempt_at"`

	seq uint64
}

// Seq is the journal position of an item read back from the store. Zero for
// items that were never stored.
func (i Item) Seq() uint64 { return i.seq }

func (i *Item) normalize(now time.Time) {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	if i.Reason == "" {
		i.Reason = ReasonPartialAssign
	}
	if i.RecordedAt.IsZero() {
		i.RecordedAt = now
	}
	if i.AttemptAt.IsZero() {
		i.AttemptAt = i.RecordedAt
	}
}
