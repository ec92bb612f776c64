package service

import "errors"

// Error kinds. Every error a service returns to a handler wraps one of
// these; the handler maps the kind to an HTTP status.
var (
	ErrBadRequest      = errors.New("bad request")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")
	ErrRateLimited     = errors.New("rate limited")
	ErrUpstreamFailure = errors.New("upstream failure")
	ErrUpstreamTimeout = errors.New("upstream timeout")
)

// Error is a client-facing failure with its kind and message.
type Error struct {
	Kind     error
	Message  string
	Hint     string
	Required []string
}

func (e *Error) Error() string {
	return e.Message
}

// Unwrap exposes the kind to errors.Is.
func (e *Error) Unwrap() error {
	return e.Kind
}

func newError(kind error, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Service errors.
var (
	// Identity
	ErrMissingCredentials   = newError(ErrUnauthenticated, "Authorization token required")
	ErrInvalidAPIKey        = newError(ErrUnauthenticated, "Invalid API key")
	ErrInvalidSession       = newError(ErrForbidden, "Invalid or expired token")
	ErrSessionRequired      = newError(ErrForbidden, "User session required")
	ErrMissingClientContext = newError(ErrUnauthenticated, "Missing client context (API key must be linked to a client)")

	// Accounts
	ErrEmailPasswordRequired = newError(ErrBadRequest, "Email and password required")
	ErrInvalidSignupCode     = newError(ErrForbidden, "Invalid invite code")
	ErrEmailExists           = newError(ErrConflict, "Email already exists")
	ErrEmailInUse            = newError(ErrConflict, "Email already in use")
	ErrInvalidCredentials    = newError(ErrUnauthenticated, "Invalid credentials")
	ErrNothingToUpdate       = newError(ErrBadRequest, "Nothing to update")
	ErrInvalidEmail          = newError(ErrBadRequest, "Invalid email")
	ErrUserNotFound          = newError(ErrNotFound, "User not found")
	ErrTooManyLoginAttempts  = newError(ErrRateLimited, "Too many login attempts, please try again later")

	// Clients and keys
	ErrClientFieldsRequired = newError(ErrBadRequest, "Name and WordPress URL required")
	ErrInvalidWordPressURL  = newError(ErrBadRequest, "Invalid WordPress URL")
	ErrClientNotFound       = newError(ErrNotFound, "Client not found")
	ErrAPIKeyNotFound       = newError(ErrNotFound, "API key not found")
	ErrNoActiveClientKey    = newError(ErrBadRequest, "No active API key found for this client")
	ErrKeyNameRequired      = newError(ErrBadRequest, "Key name required")

	// Forms and submissions
	ErrNoForms            = newError(ErrBadRequest, "No forms provided")
	ErrFormNotFound       = newError(ErrNotFound, "Form not found")
	ErrSubmissionNotFound = newError(ErrNotFound, "Submission not found")
	ErrInvalidSubmittedAt = newError(ErrBadRequest, "Invalid submitted_at timestamp")
	ErrInvalidSubmission  = newError(ErrBadRequest, "submission_data must be a JSON object")
	ErrInvalidDateRange   = newError(ErrBadRequest, "Invalid date range")
	ErrInvalidDays        = newError(ErrBadRequest, "days must be between 1 and 365")
)

// ErrMissingSubmissionFields reports the required ingestion fields.
var ErrMissingSubmissionFields = &Error{
	Kind:     ErrBadRequest,
	Message:  "Missing required fields",
	Required: []string{"form_id", "form_plugin", "submission_data"},
}

// ErrFormNotSynced is returned when ingestion names an unregistered form.
var ErrFormNotSynced = &Error{
	Kind:    ErrNotFound,
	Message: "Form not found",
	Hint:    "Sync forms first via POST /api/forms/sync, then retry this submission.",
}
