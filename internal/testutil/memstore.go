package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
)

// MemoryStore is an in-memory stand-in for *repository.Repository. It
// keeps the constraints the schema enforces (unique emails, unique form
// keys, unique (form, external_id) submissions, cascading deletes) and
// returns the repository's sentinel errors.
type MemoryStore struct {
	mu          sync.Mutex
	users       map[string]*model.User
	clients     map[string]*model.Client
	keys        map[string]*model.APIKey
	forms       map[string]*model.Form
	submissions map[string]*model.Submission
	failures    map[string]error
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:       make(map[string]*model.User),
		clients:     make(map[string]*model.Client),
		keys:        make(map[string]*model.APIKey),
		forms:       make(map[string]*model.Form),
		submissions: make(map[string]*model.Submission),
		failures:    make(map[string]error),
	}
}

// FailOn makes every later call of the named method return err. A nil err
// clears the failure.
func (s *MemoryStore) FailOn(method string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failures, method)
		return
	}
	s.failures[method] = err
}

// Ping reports the failure set for "Ping", if any.
func (s *MemoryStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure("Ping")
}

func (s *MemoryStore) failure(method string) error {
	return s.failures[method]
}

// Users

func (s *MemoryStore) CreateUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateUser"); err != nil {
		return err
	}
	for _, u := range s.users {
		if u.Email == user.Email {
			return repository.ErrEmailExists
		}
	}
	cp := *user
	s.users[user.ID] = &cp
	return nil
}

func (s *MemoryStore) GetUserByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (s *MemoryStore) GetUserByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *MemoryStore) UpdateUser(_ context.Context, id string, update model.UserUpdate, updatedAt time.Time) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	if update.Email != nil {
		for _, other := range s.users {
			if other.ID != id && other.Email == *update.Email {
				return nil, repository.ErrEmailExists
			}
		}
		u.Email = *update.Email
	}
	if update.Name != nil {
		u.Name = *update.Name
	}
	u.UpdatedAt = updatedAt
	cp := *u
	return &cp, nil
}

// API keys

func (s *MemoryStore) CreateAPIKey(_ context.Context, key *model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateAPIKey"); err != nil {
		return err
	}
	cp := *key
	s.keys[key.ID] = &cp
	return nil
}

func (s *MemoryStore) GetAPIKeyByHash(_ context.Context, hash string) (*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("GetAPIKeyByHash"); err != nil {
		return nil, err
	}
	for _, k := range s.keys {
		if k.KeyHash == hash {
			cp := *k
			return &cp, nil
		}
	}
	return nil, repository.ErrAPIKeyNotFound
}

func (s *MemoryStore) GetActiveClientKey(_ context.Context, clientID string) (*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var found []*model.APIKey
	for _, k := range s.keys {
		if k.ClientID != nil && *k.ClientID == clientID && k.IsActive {
			found = append(found, k)
		}
	}
	if len(found) == 0 {
		return nil, repository.ErrAPIKeyNotFound
	}
	sortKeysNewestFirst(found)
	cp := *found[0]
	return &cp, nil
}

func (s *MemoryStore) ListAPIKeysByUserID(_ context.Context, userID string) ([]*model.APIKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]*model.APIKey, 0)
	for _, k := range s.keys {
		if k.UserID == userID {
			cp := *k
			keys = append(keys, &cp)
		}
	}
	sortKeysNewestFirst(keys)
	return keys, nil
}

func (s *MemoryStore) DeactivateAPIKey(_ context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[id]
	if !ok || k.UserID != userID {
		return repository.ErrAPIKeyNotFound
	}
	k.IsActive = false
	return nil
}

func sortKeysNewestFirst(keys []*model.APIKey) {
	sort.Slice(keys, func(i, j int) bool {
		if !keys[i].CreatedAt.Equal(keys[j].CreatedAt) {
			return keys[i].CreatedAt.After(keys[j].CreatedAt)
		}
		return keys[i].ID > keys[j].ID
	})
}

// Clients

func (s *MemoryStore) CreateClientWithKey(_ context.Context, client *model.Client, key *model.APIKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateClientWithKey"); err != nil {
		return err
	}
	c := *client
	k := *key
	s.clients[client.ID] = &c
	s.keys[key.ID] = &k
	return nil
}

func (s *MemoryStore) GetClientByID(_ context.Context, id string) (*model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.clients[id]
	if !ok {
		return nil, repository.ErrClientNotFound
	}
	cp := *c
	return &cp, nil
}

func (s *MemoryStore) ListClients(context.Context) ([]*model.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clients := make([]*model.Client, 0, len(s.clients))
	for _, c := range s.clients {
		cp := *c
		clients = append(clients, &cp)
	}
	sort.Slice(clients, func(i, j int) bool {
		if !clients[i].CreatedAt.Equal(clients[j].CreatedAt) {
			return clients[i].CreatedAt.After(clients[j].CreatedAt)
		}
		return clients[i].ID > clients[j].ID
	})
	return clients, nil
}

func (s *MemoryStore) DeleteClient(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.clients[id]; !ok {
		return repository.ErrClientNotFound
	}
	delete(s.clients, id)
	for kid, k := range s.keys {
		if k.ClientID != nil && *k.ClientID == id {
			delete(s.keys, kid)
		}
	}
	for fid, f := range s.forms {
		if f.ClientID == id {
			s.deleteFormLocked(fid)
		}
	}
	return nil
}

// Forms

func (s *MemoryStore) UpsertForm(_ context.Context, form *model.Form, overwrite model.FormOverwrite) (*model.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpsertForm"); err != nil {
		return nil, err
	}
	if _, ok := s.clients[form.ClientID]; !ok {
		return nil, errors.New("forms_client_id_fkey violation")
	}

	if existing := s.formByKeyLocked(form.Key()); existing != nil {
		if overwrite.Has(model.OverwriteName) {
			existing.Name = form.Name
		}
		if overwrite.Has(model.OverwriteSchema) {
			existing.Schema = form.Schema
		}
		existing.UpdatedAt = form.UpdatedAt
		cp := *existing
		return &cp, nil
	}

	stored := *form
	stored.CreatedAt = form.UpdatedAt
	s.forms[form.ID] = &stored
	cp := stored
	return &cp, nil
}

func (s *MemoryStore) formByKeyLocked(key model.FormKey) *model.Form {
	for _, f := range s.forms {
		if f.Key() == key {
			return f
		}
	}
	return nil
}

func (s *MemoryStore) GetFormByKey(_ context.Context, key model.FormKey) (*model.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f := s.formByKeyLocked(key)
	if f == nil {
		return nil, repository.ErrFormNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) GetFormByID(_ context.Context, id string) (*model.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.forms[id]
	if !ok {
		return nil, repository.ErrFormNotFound
	}
	cp := *f
	return &cp, nil
}

func (s *MemoryStore) ListFormsByClient(_ context.Context, clientID string) ([]*model.Form, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	forms := make([]*model.Form, 0)
	for _, f := range s.forms {
		if f.ClientID == clientID {
			cp := *f
			forms = append(forms, &cp)
		}
	}
	sort.Slice(forms, func(i, j int) bool {
		if forms[i].Name != forms[j].Name {
			return forms[i].Name < forms[j].Name
		}
		return forms[i].ID < forms[j].ID
	})
	return forms, nil
}

func (s *MemoryStore) DeleteForm(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.forms[id]; !ok {
		return repository.ErrFormNotFound
	}
	s.deleteFormLocked(id)
	return nil
}

func (s *MemoryStore) deleteFormLocked(id string) {
	delete(s.forms, id)
	for sid, sub := range s.submissions {
		if sub.FormID == id {
			delete(s.submissions, sid)
		}
	}
}

// Submissions

func (s *MemoryStore) CreateSubmission(_ context.Context, sub *model.Submission) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CreateSubmission"); err != nil {
		return err
	}
	if _, ok := s.forms[sub.FormID]; !ok {
		return errors.New("submissions_form_id_fkey violation")
	}
	if sub.ExternalID != nil && s.submissionByExternalLocked(sub.FormID, *sub.ExternalID) != nil {
		return errors.New("idx_submissions_form_external violation")
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	return nil
}

func (s *MemoryStore) UpsertSubmission(_ context.Context, sub *model.Submission) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("UpsertSubmission"); err != nil {
		return false, err
	}
	if sub.ExternalID == nil {
		return false, errors.New("upsert submission: external id required")
	}
	if _, ok := s.forms[sub.FormID]; !ok {
		return false, errors.New("submissions_form_id_fkey violation")
	}
	if existing := s.submissionByExternalLocked(sub.FormID, *sub.ExternalID); existing != nil {
		existing.Data = sub.Data
		existing.SubmittedAt = sub.SubmittedAt
		return false, nil
	}
	cp := *sub
	s.submissions[sub.ID] = &cp
	return true, nil
}

func (s *MemoryStore) submissionByExternalLocked(formID, externalID string) *model.Submission {
	for _, sub := range s.submissions {
		if sub.FormID == formID && sub.ExternalID != nil && *sub.ExternalID == externalID {
			return sub
		}
	}
	return nil
}

func (s *MemoryStore) ListSubmissionsByForm(_ context.Context, formID string, filter model.SubmissionFilter) ([]*model.Submission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	subs := make([]*model.Submission, 0)
	for _, sub := range s.submissions {
		if sub.FormID != formID {
			continue
		}
		if filter.From != nil && sub.SubmittedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && sub.SubmittedAt.After(*filter.To) {
			continue
		}
		cp := *sub
		subs = append(subs, &cp)
	}
	sortSubmissionsNewestFirst(subs)
	return subs, nil
}

func (s *MemoryStore) ListRecentSubmissions(_ context.Context, since time.Time, limit int) ([]*model.RecentSubmission, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var subs []*model.Submission
	for _, sub := range s.submissions {
		if !sub.SubmittedAt.Before(since) {
			subs = append(subs, sub)
		}
	}
	sortSubmissionsNewestFirst(subs)
	if len(subs) > limit {
		subs = subs[:limit]
	}

	recent := make([]*model.RecentSubmission, 0, len(subs))
	for _, sub := range subs {
		form := s.forms[sub.FormID]
		client := s.clients[form.ClientID]
		recent = append(recent, &model.RecentSubmission{
			ID:          sub.ID,
			Data:        sub.Data,
			SubmittedAt: sub.SubmittedAt,
			FormName:    form.Name,
			Plugin:      form.Plugin,
			ClientID:    client.ID,
			ClientName:  client.Name,
		})
	}
	return recent, nil
}

func (s *MemoryStore) DeleteSubmission(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.submissions[id]; !ok {
		return repository.ErrSubmissionNotFound
	}
	delete(s.submissions, id)
	return nil
}

func sortSubmissionsNewestFirst(subs []*model.Submission) {
	sort.Slice(subs, func(i, j int) bool {
		if !subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].SubmittedAt.After(subs[j].SubmittedAt)
		}
		return subs[i].ID > subs[j].ID
	})
}

// SubmissionCount returns the number of stored submissions.
func (s *MemoryStore) SubmissionCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.submissions)
}

// Stats

func (s *MemoryStore) clientOfLocked(sub *model.Submission) string {
	if f, ok := s.forms[sub.FormID]; ok {
		return f.ClientID
	}
	return ""
}

func (s *MemoryStore) CountSubmissions(_ context.Context, clientID string, from, to time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failure("CountSubmissions"); err != nil {
		return 0, err
	}
	var n int64
	for _, sub := range s.submissions {
		if clientID != "" && s.clientOfLocked(sub) != clientID {
			continue
		}
		if !from.IsZero() && sub.SubmittedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !sub.SubmittedAt.Before(to) {
			continue
		}
		n++
	}
	return n, nil
}

func (s *MemoryStore) CountClients(context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.clients)), nil
}

func (s *MemoryStore) CountForms(_ context.Context, clientID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, f := range s.forms {
		if clientID == "" || f.ClientID == clientID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) DailySubmissionCounts(_ context.Context, clientID string, from time.Time) ([]model.DailyCount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDay := make(map[time.Time]int64)
	for _, sub := range s.submissions {
		if clientID != "" && s.clientOfLocked(sub) != clientID {
			continue
		}
		if sub.SubmittedAt.Before(from) {
			continue
		}
		t := sub.SubmittedAt.UTC()
		byDay[time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)]++
	}

	counts := make([]model.DailyCount, 0, len(byDay))
	for day, n := range byDay {
		counts = append(counts, model.DailyCount{Day: day, Count: n})
	}
	sort.Slice(counts, func(i, j int) bool { return counts[i].Day.Before(counts[j].Day) })
	return counts, nil
}

func (s *MemoryStore) SubmissionTotalsByClient(_ context.Context, clientIDs []string) ([]model.ClientTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var wanted map[string]bool
	if clientIDs != nil {
		wanted = make(map[string]bool, len(clientIDs))
		for _, id := range clientIDs {
			wanted[id] = true
		}
	}

	totals := make([]model.ClientTotal, 0)
	for _, c := range s.clients {
		if wanted != nil && !wanted[c.ID] {
			continue
		}
		t := model.ClientTotal{ClientID: c.ID, ClientName: c.Name}
		for _, sub := range s.submissions {
			if s.clientOfLocked(sub) == c.ID {
				t.Total++
			}
		}
		totals = append(totals, t)
	}
	sort.Slice(totals, func(i, j int) bool {
		if totals[i].Total != totals[j].Total {
			return totals[i].Total > totals[j].Total
		}
		return totals[i].ClientName < totals[j].ClientName
	})
	return totals, nil
}
