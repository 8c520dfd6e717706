// Package participant tracks registered attendees and their check-in
// sessions.
package participant

import "time"

// Status is the derived presence state.
type Status string

const (
	// StatusIn means exactly one session is open.
	StatusIn Status = "in"
	// StatusOut means no session is open.
	StatusOut Status = "out"
)

// CheckInSession is one interval of presence. Closed sessions are immutable.
type CheckInSession struct {
	ID           string     `json:"id"`
	CheckInTime  time.Time  `json:"check_in_time"`
	CheckOutTime *time.Time `json:"check_out_time,omitempty"`
}

// Open reports whether the session has not been closed yet.
func (s CheckInSession) Open() bool { return s.CheckOutTime == nil }

// Duration returns the closed session's length. Open sessions have no
// duration; callers present them as currently active.
func (s CheckInSession) Duration() (time.Duration, bool) {
	if s.CheckOutTime == nil {
		return 0, false
	}
	return s.CheckOutTime.Sub(s.CheckInTime), true
}

// Participant is one tracked attendee. Records are never deleted here;
// removal is an external admin concern.
type Participant struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Email     *string          `json:"email,omitempty"`
	Phone     *string          `json:"phone,omitempty"`
	GroupName *string          `json:"group,omitempty"`
	Room      *string          `json:"room,omitempty"`
	Paid      bool             `json:"paid"`
	Memo      *string          `json:"memo,omitempty"`
	LookupKey *string          `json:"lookup_key,omitempty"`
	Sessions  []CheckInSession `json:"check_ins"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// CurrentStatus derives presence from the session list: in iff any session
// lacks a check-out stamp.
func (p *Participant) CurrentStatus() Status {
	for _, s := range p.Sessions {
		if s.Open() {
			return StatusIn
		}
	}
	return StatusOut
}
