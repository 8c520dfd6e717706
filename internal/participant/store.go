package participant

import (
	"context"
	"errors"
	"time"
)

// ErrSessionOpen is returned by OpenSession when the participant already
// has an open session. The service maps it to a Conflict for the losing
// side of a concurrent toggle.
var ErrSessionOpen = errors.New("participant already has an open session")

// Store persists participants and their sessions. CloseOpenSession and
// OpenSession must each be atomic against concurrent callers; the
// at-most-one-open-session invariant rests on that.
type Store interface {
	Get(ctx context.Context, id string) (*Participant, error)
	// FindByKey returns the first participant whose lookup key matches.
	FindByKey(ctx context.Context, key string) (*Participant, error)
	Create(ctx context.Context, p *Participant) error
	// UpdateAssignment sets group and room; nil leaves a field unchanged.
	UpdateAssignment(ctx context.Context, id string, group, room *string) error
	// CloseOpenSession stamps the open session's check-out time. It returns
	// the closed session, or nil when no session was open.
	CloseOpenSession(ctx context.Context, participantID string, at time.Time) (*CheckInSession, error)
	// OpenSession appends a new open session, or fails with ErrSessionOpen.
	OpenSession(ctx context.Context, participantID string, at time.Time) (*CheckInSession, error)
}
