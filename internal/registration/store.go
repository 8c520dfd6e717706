package registration

import (
	"context"
	"errors"

	"regdesk/internal/participant"
)

// ErrCodeTaken reports a personal-code collision on insert. The service
// retries once with a fresh code.
var ErrCodeTaken = errors.New("personal code already in use")

// Store persists surveys and responses. CreateRegistration must write the
// participant and the response atomically so neither persists without the
// other.
type Store interface {
	GetSurvey(ctx context.Context, id string) (*Survey, error)
	CreateRegistration(ctx context.Context, p *participant.Participant, r *Response) error
	GetByCode(ctx context.Context, code string) (*Response, error)
	// FindByEmail returns the newest response for the address within a
	// survey, or nil.
	FindByEmail(ctx context.Context, surveyID, email string) (*Response, error)
	UpdateResponse(ctx context.Context, id string, data map[string]any) error
}
