package service

import (
	"context"
	"time"

	"github.com/fdcollector/fdc/internal/model"
)

// The store interfaces below are implemented by *repository.Repository.
// They return the repository's sentinel errors (repository.ErrXNotFound,
// repository.ErrEmailExists) which services translate.

// UserStore persists accounts.
type UserStore interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	UpdateUser(ctx context.Context, id string, update model.UserUpdate, updatedAt time.Time) (*model.User, error)
}

// APIKeyStore persists API keys.
type APIKeyStore interface {
	CreateAPIKey(ctx context.Context, key *model.APIKey) error
	GetAPIKeyByHash(ctx context.Context, hash string) (*model.APIKey, error)
	GetActiveClientKey(ctx context.Context, clientID string) (*model.APIKey, error)
	ListAPIKeysByUserID(ctx context.Context, userID string) ([]*model.APIKey, error)
	DeactivateAPIKey(ctx context.Context, id, userID string) error
}

// ClientStore persists tenants.
type ClientStore interface {
	CreateClientWithKey(ctx context.Context, client *model.Client, key *model.APIKey) error
	GetClientByID(ctx context.Context, id string) (*model.Client, error)
	ListClients(ctx context.Context) ([]*model.Client, error)
	DeleteClient(ctx context.Context, id string) error
}

// FormStore persists the form registry.
type FormStore interface {
	UpsertForm(ctx context.Context, form *model.Form, overwrite model.FormOverwrite) (*model.Form, error)
	GetFormByKey(ctx context.Context, key model.FormKey) (*model.Form, error)
	GetFormByID(ctx context.Context, id string) (*model.Form, error)
	ListFormsByClient(ctx context.Context, clientID string) ([]*model.Form, error)
	DeleteForm(ctx context.Context, id string) error
}

// SubmissionStore persists submissions.
type SubmissionStore interface {
	CreateSubmission(ctx context.Context, sub *model.Submission) error
	UpsertSubmission(ctx context.Context, sub *model.Submission) (bool, error)
	ListSubmissionsByForm(ctx context.Context, formID string, filter model.SubmissionFilter) ([]*model.Submission, error)
	ListRecentSubmissions(ctx context.Context, since time.Time, limit int) ([]*model.RecentSubmission, error)
	DeleteSubmission(ctx context.Context, id string) error
}

// StatsStore answers aggregate queries.
type StatsStore interface {
	CountSubmissions(ctx context.Context, clientID string, from, to time.Time) (int64, error)
	CountClients(ctx context.Context) (int64, error)
	CountForms(ctx context.Context, clientID string) (int64, error)
	DailySubmissionCounts(ctx context.Context, clientID string, from time.Time) ([]model.DailyCount, error)
	SubmissionTotalsByClient(ctx context.Context, clientIDs []string) ([]model.ClientTotal, error)
}

// Store is the full persistence surface used by the API.
type Store interface {
	UserStore
	APIKeyStore
	ClientStore
	FormStore
	SubmissionStore
	StatsStore
}
