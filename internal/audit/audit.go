// Package audit keeps the append-only log of mutating actions.
package audit

import (
	"context"
	"time"
)

// Action identifies what was done to the target.
type Action string

const (
	ActionCreate   Action = "create"
	ActionUpdate   Action = "update"
	ActionDelete   Action = "delete"
	ActionCheckIn  Action = "check_in"
	ActionCheckOut Action = "check_out"
	ActionAssign   Action = "assign"
	ActionImport   Action = "import"
)

// TargetType identifies the kind of record acted on.
type TargetType string

const (
	TargetParticipant TargetType = "participant"
	TargetGroup       TargetType = "group"
	TargetRoom        TargetType = "room"
	TargetBus         TargetType = "bus"
)

// Change records one field's before/after values.
type Change struct {
	From any `json:"from"`
	To   any `json:"to"`
}

// Entry is one immutable audit record. Corrections are new entries, never
// in-place edits.
type Entry struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	ActorName  string            `json:"actor_name"`
	Action     Action            `json:"action"`
	TargetType TargetType        `json:"target_type"`
	TargetID   string            `json:"target_id"`
	TargetName string            `json:"target_name"`
	Changes    map[string]Change `json:"changes,omitempty"`
}

// Cursor points just past an entry in the timestamp-descending order. The
// ID breaks ties between entries stamped in the same nanosecond.
type Cursor struct {
	Timestamp time.Time
	ID        string
}

// Store persists audit entries.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// List returns up to limit entries ordered by timestamp descending
	// (id descending as tiebreak), starting after the cursor when set.
	List(ctx context.Context, limit int, after *Cursor) ([]Entry, error)
	// DeleteBatch removes at most limit entries and reports how many went.
	DeleteBatch(ctx context.Context, limit int) (int, error)
}
