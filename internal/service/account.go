package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/repository"
)

// AccountService handles signup, login and profile updates.
type AccountService struct {
	users      UserStore
	sessions   *auth.SessionManager
	signupCode string
	now        func() time.Time
}

// NewAccountService creates a new AccountService.
func NewAccountService(users UserStore, sessions *auth.SessionManager, signupCode string) *AccountService {
	return &AccountService{
		users:      users,
		sessions:   sessions,
		signupCode: signupCode,
		now:        time.Now,
	}
}

// SignupInput defines input for creating an account.
type SignupInput struct {
	Email      string
	Password   string
	Name       string
	InviteCode string
}

// Session is an issued token with its user.
type Session struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

// Signup creates a user after checking the invite code and returns a
// session for it.
func (s *AccountService) Signup(ctx context.Context, input SignupInput) (*Session, error) {
	email := normalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, ErrEmailPasswordRequired
	}
	if !strings.Contains(email, "@") {
		return nil, ErrInvalidEmail
	}
	if input.InviteCode == "" || subtle.ConstantTimeCompare([]byte(input.InviteCode), []byte(s.signupCode)) != 1 {
		return nil, ErrInvalidSignupCode
	}

	hash, err := auth.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	user := &model.User{
		ID:           newID(),
		Email:        email,
		Name:         strings.TrimSpace(input.Name),
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	return s.issue(user)
}

// Login checks credentials and returns a session. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *AccountService) Login(ctx context.Context, email, password string) (*Session, error) {
	email = normalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrEmailPasswordRequired
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			auth.BurnPasswordCheck(password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	ok, err := auth.VerifyPassword(password, user.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	return s.issue(user)
}

// Me returns the acting user.
func (s *AccountService) Me(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// UpdateMe changes the acting user's name and/or email. Blank values are
// treated as absent.
func (s *AccountService) UpdateMe(ctx context.Context, userID string, update model.UserUpdate) (*model.User, error) {
	update.Name = trimmedOrNil(update.Name)
	update.Email = trimmedOrNil(update.Email)
	if update.Email != nil {
		email := normalizeEmail(*update.Email)
		if !strings.Contains(email, "@") {
			return nil, ErrInvalidEmail
		}
		update.Email = &email
	}
	if update.IsEmpty() {
		return nil, ErrNothingToUpdate
	}

	user, err := s.users.UpdateUser(ctx, userID, update, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrEmailExists):
			return nil, ErrEmailInUse
		case errors.Is(err, repository.ErrUserNotFound):
			return nil, ErrUserNotFound
		default:
			return nil, fmt.Errorf("update user: %w", err)
		}
	}
	return user, nil
}

func (s *AccountService) issue(user *model.User) (*Session, error) {
	token, err := s.sessions.Issue(user.ID, user.Email)
	if err != nil {
		return nil, fmt.Errorf("issue session: %w", err)
	}
	return &Session{Token: token, User: user}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	t := strings.TrimSpace(*v)
	if t == "" {
		return nil
	}
	return &t
}
