// Package dto provides Data Transfer Objects for API requests and responses.
package dto

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/fdcollector/fdc/internal/model"
)

// ErrorResponse is the error body of every failed request.
type ErrorResponse struct {
	Error    string   `json:"error"`
	Code     string   `json:"code"`
	Hint     string   `json:"hint,omitempty"`
	Required []string `json:"required,omitempty"`
}

// SuccessResponse acknowledges a mutation without a body of its own.
type SuccessResponse struct {
	Success bool `json:"success"`
}

// SignupRequest represents the request body for creating an account.
type SignupRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	Name       string `json:"name,omitempty"`
	InviteCode string `json:"invite_code"`
}

// LoginRequest represents the request body for logging in.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// UpdateMeRequest is a partial profile update.
type UpdateMeRequest struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// UserResponse wraps a user profile.
type UserResponse struct {
	User *model.User `json:"user"`
}

// CreateClientRequest represents the request body for creating a client.
type CreateClientRequest struct {
	Name              string `json:"name"`
	WordPressURL      string `json:"wordpress_url"`
	WordPressUsername string `json:"wordpress_username,omitempty"`
	WordPressPassword string `json:"wordpress_password,omitempty"`
}

// CreateAPIKeyRequest represents the request body for generating a key.
type CreateAPIKeyRequest struct {
	Name string `json:"key_name"`
}

// FormSyncItem is one form definition sent by the connector plugin.
type FormSyncItem struct {
	FormID     model.FlexString `json:"form_id"`
	FormName   model.FlexString `json:"form_name"`
	FormPlugin string           `json:"form_plugin"`
	Fields     json.RawMessage  `json:"fields,omitempty"`
	FormSchema json.RawMessage  `json:"form_schema,omitempty"`
}

// Schema returns the fields document, falling back to form_schema.
func (f *FormSyncItem) Schema() json.RawMessage {
	if len(f.Fields) > 0 {
		return f.Fields
	}
	return f.FormSchema
}

// FormSyncRequest accepts either a bare array of forms or {"forms": [...]}.
type FormSyncRequest struct {
	Forms []*FormSyncItem
}

// UnmarshalJSON implements json.Unmarshaler.
func (r *FormSyncRequest) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		return json.Unmarshal(data, &r.Forms)
	}
	if len(data) > 0 && data[0] == '{' {
		var wrapper struct {
			Forms []*FormSyncItem `json:"forms"`
		}
		if err := json.Unmarshal(data, &wrapper); err != nil {
			return err
		}
		r.Forms = wrapper.Forms
		return nil
	}
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	return errors.New("expected a JSON array of forms or an object with a forms array")
}

// FormSyncResponse summarizes a registry sync.
type FormSyncResponse struct {
	Success  bool              `json:"success"`
	ClientID string            `json:"client_id"`
	Received int               `json:"received"`
	Synced   int               `json:"synced"`
	Skipped  int               `json:"skipped"`
	Errors   []model.ItemError `json:"errors"`
}

// SubmissionRequest is a single submission pushed by the connector plugin.
type SubmissionRequest struct {
	FormID         model.FlexString `json:"form_id"`
	FormName       string           `json:"form_name,omitempty"`
	FormPlugin     string           `json:"form_plugin"`
	SubmissionData json.RawMessage  `json:"submission_data"`
	SubmittedAt    string           `json:"submitted_at,omitempty"`
}

// SubmissionResponse acknowledges a stored submission.
type SubmissionResponse struct {
	Success     bool      `json:"success"`
	ID          string    `json:"id"`
	SubmittedAt time.Time `json:"submitted_at"`
}

// BulkSyncResponse summarizes a bulk pull from a client site. Refreshed
// entries are also counted in Skipped.
type BulkSyncResponse struct {
	Success   bool              `json:"success"`
	Synced    int               `json:"synced"`
	Skipped   int               `json:"skipped"`
	Refreshed int               `json:"refreshed"`
	Total     int               `json:"total"`
	Errors    []model.ItemError `json:"errors"`
}

// itemErrors never renders as null.
func itemErrors(errs []model.ItemError) []model.ItemError {
	if errs == nil {
		return []model.ItemError{}
	}
	return errs
}

// ToFormSyncResponse converts a registry sync result.
func ToFormSyncResponse(clientID string, received int, result model.BatchResult) FormSyncResponse {
	return FormSyncResponse{
		Success:  true,
		ClientID: clientID,
		Received: received,
		Synced:   result.Succeeded,
		Skipped:  result.Skipped,
		Errors:   itemErrors(result.Errors),
	}
}

// ToBulkSyncResponse converts a bulk sync result.
func ToBulkSyncResponse(result model.BatchResult, total, refreshed int) BulkSyncResponse {
	return BulkSyncResponse{
		Success:   true,
		Synced:    result.Succeeded,
		Skipped:   result.Skipped,
		Refreshed: refreshed,
		Total:     total,
		Errors:    itemErrors(result.Errors),
	}
}
