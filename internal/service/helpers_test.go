package service

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/fdcollector/fdc/internal/auth"
	"github.com/fdcollector/fdc/internal/model"
	"github.com/fdcollector/fdc/internal/testutil"
)

const testSignupCode = "let-me-in"

func testSealer(t *testing.T) *auth.Sealer {
	t.Helper()
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i + 1)
	}
	sealer, err := auth.NewSealer(base64.StdEncoding.EncodeToString(key))
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	return sealer
}

func testSessions(t *testing.T) *auth.SessionManager {
	t.Helper()
	sessions, err := auth.NewSessionManager("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewSessionManager: %v", err)
	}
	return sessions
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// seedClient creates a client through ClientService and returns its id
// and plaintext connector key.
func seedClient(t *testing.T, store *testutil.MemoryStore, sealer *auth.Sealer, siteURL string) (string, string) {
	t.Helper()
	resp, err := NewClientService(store, sealer).Create(context.Background(), CreateClientInput{
		Name:         "Acme",
		WordPressURL: siteURL,
		CreatedBy:    "user-1",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	return resp.ClientID, resp.APIKey
}

func clientIdentity(clientID string) *model.AuthContext {
	return &model.AuthContext{Kind: model.CredentialAPIKey, UserID: "user-1", ClientID: clientID, KeyID: "key-1"}
}
