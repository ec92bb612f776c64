package model

import (
	"encoding/json"
	"time"
)

// Submission is one filled-in instance of a form.
// (FormID, ExternalID) is unique when ExternalID is set.
type Submission struct {
	ID          string          `json:"id"`
	FormID      string          `json:"form_id"`
	Data        json.RawMessage `json:"submission_data"`
	SubmittedAt time.Time       `json:"submitted_at"`
	ExternalID  *string         `json:"external_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// RecentSubmission is a submission joined with its form and client.
type RecentSubmission struct {
	ID          string          `json:"id"`
	Data        json.RawMessage `json:"submission_data"`
	SubmittedAt time.Time       `json:"submitted_at"`
	FormName    string          `json:"form_name"`
	Plugin      string          `json:"form_plugin"`
	ClientID    string          `json:"client_id"`
	ClientName  string          `json:"client_name"`
}

// SubmissionFilter narrows a form's submission listing.
type SubmissionFilter struct {
	From *time.Time
	To   *time.Time
}
