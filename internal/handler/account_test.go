package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fdcollector/fdc/internal/model"
)

type sessionBody struct {
	Token string      `json:"token"`
	User  *model.User `json:"user"`
}

func (fx *fixture) signup(t *testing.T, email string) sessionBody {
	t.Helper()
	req := newRequest(t, http.MethodPost, "/api/auth/signup", map[string]string{
		"email":       email,
		"password":    "correct horse",
		"name":        "Ops",
		"invite_code": testSignupCode,
	})
	rec := httptest.NewRecorder()
	fx.accounts.Signup(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup: status %d body %s", rec.Code, rec.Body.String())
	}
	var body sessionBody
	decodeBody(t, rec, &body)
	return body
}

func TestAccountHandler_Signup(t *testing.T) {
	fx := newFixture(t)

	body := fx.signup(t, "Ops@Agency.test")
	if body.Token == "" {
		t.Error("expected a session token")
	}
	if body.User == nil || body.User.Email != "ops@agency.test" {
		t.Errorf("unexpected user: %+v", body.User)
	}

	testCases := []struct {
		name       string
		body       map[string]string
		wantStatus int
		wantError  string
	}{
		{
			name:       "duplicate email",
			body:       map[string]string{"email": "ops@agency.test", "password": "pw", "invite_code": testSignupCode},
			wantStatus: http.StatusBadRequest,
			wantError:  "Email already exists",
		},
		{
			name:       "wrong invite code",
			body:       map[string]string{"email": "new@agency.test", "password": "pw", "invite_code": "guess"},
			wantStatus: http.StatusForbidden,
			wantError:  "Invalid invite code",
		},
		{
			name:       "missing password",
			body:       map[string]string{"email": "new@agency.test", "invite_code": testSignupCode},
			wantStatus: http.StatusBadRequest,
			wantError:  "Email and password required",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fx.accounts.Signup(rec, newRequest(t, http.MethodPost, "/api/auth/signup", tc.body))

			if rec.Code != tc.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tc.wantStatus)
			}
			if got := decodeError(t, rec); got.Error != tc.wantError {
				t.Errorf("error = %q, want %q", got.Error, tc.wantError)
			}
		})
	}
}

func TestAccountHandler_Login(t *testing.T) {
	fx := newFixture(t)
	fx.signup(t, "ops@agency.test")

	testCases := []struct {
		name       string
		password   string
		wantStatus int
	}{
		{"correct password", "correct horse", http.StatusOK},
		{"wrong password", "battery staple", http.StatusUnauthorized},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			fx.accounts.Login(rec, newRequest(t, http.MethodPost, "/api/auth/login", map[string]string{
				"email":    "ops@agency.test",
				"password": tc.password,
			}))

			if rec.Code != tc.wantStatus {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tc.wantStatus, rec.Body.String())
			}
			if tc.wantStatus == http.StatusOK {
				var body sessionBody
				decodeBody(t, rec, &body)
				if body.Token == "" || body.User == nil {
					t.Errorf("unexpected login body: %+v", body)
				}
			}
		})
	}
}

func TestAccountHandler_MeAndUpdate(t *testing.T) {
	fx := newFixture(t)
	session := fx.signup(t, "ops@agency.test")
	identity := &model.AuthContext{Kind: model.CredentialSession, UserID: session.User.ID, Email: session.User.Email}

	rec := httptest.NewRecorder()
	fx.accounts.Me(rec, withIdentity(newRequest(t, http.MethodGet, "/api/auth/me", nil), identity))
	if rec.Code != http.StatusOK {
		t.Fatalf("Me: status %d", rec.Code)
	}
	var me struct {
		User *model.User `json:"user"`
	}
	decodeBody(t, rec, &me)
	if me.User == nil || me.User.ID != session.User.ID {
		t.Fatalf("Me returned %+v", me.User)
	}

	rec = httptest.NewRecorder()
	req := newRequest(t, http.MethodPatch, "/api/auth/me", map[string]string{"name": "Operations"})
	fx.accounts.UpdateMe(rec, withIdentity(req, identity))
	if rec.Code != http.StatusOK {
		t.Fatalf("UpdateMe: status %d body %s", rec.Code, rec.Body.String())
	}
	decodeBody(t, rec, &me)
	if me.User.Name != "Operations" || me.User.Email != "ops@agency.test" {
		t.Errorf("unexpected updated user: %+v", me.User)
	}

	rec = httptest.NewRecorder()
	req = newRequest(t, http.MethodPatch, "/api/auth/me", map[string]string{})
	fx.accounts.UpdateMe(rec, withIdentity(req, identity))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty update: status = %d, want 400", rec.Code)
	}
	if got := decodeError(t, rec); got.Error != "Nothing to update" {
		t.Errorf("empty update: error = %q", got.Error)
	}
}
