// Package registration handles public survey submissions: admission
// control, personal code generation, and the atomic participant+response
// write.
package registration

import "time"

// Survey is the registration form participants submit against. Only its
// gate matters here; form structure is owned by the survey builder.
type Survey struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Active bool   `json:"active"`
}

// Response is one submitted registration, retrievable and editable by its
// personal code.
type Response struct {
	ID            string         `json:"id"`
	SurveyID      string         `json:"survey_id"`
	PersonalCode  string         `json:"personal_code"`
	ParticipantID string         `json:"participant_id"`
	SubmittedData map[string]any `json:"submitted_data"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}
