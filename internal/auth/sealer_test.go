package auth

import (
	"bytes"
	"encoding/base64"
	"errors"
	"testing"
)

func testSealer(t *testing.T, fill byte) *Sealer {
	t.Helper()
	s, err := NewSealer(base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{fill}, 32)))
	if err != nil {
		t.Fatalf("NewSealer failed: %v", err)
	}
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := testSealer(t, 1)

	sealed, err := s.Seal([]byte("app-password"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}
	if bytes.Contains(sealed, []byte("app-password")) {
		t.Error("sealed value should not contain the plaintext")
	}

	opened, err := s.Open(sealed)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if string(opened) != "app-password" {
		t.Errorf("Open = %q, want app-password", opened)
	}
}

func TestSealer_WrongKey(t *testing.T) {
	sealed, err := testSealer(t, 1).Seal([]byte("secret"))
	if err != nil {
		t.Fatalf("Seal failed: %v", err)
	}

	if _, err := testSealer(t, 2).Open(sealed); !errors.Is(err, ErrUnsealFailed) {
		t.Errorf("expected ErrUnsealFailed, got %v", err)
	}
}

func TestSealer_Truncated(t *testing.T) {
	if _, err := testSealer(t, 1).Open([]byte("short")); !errors.Is(err, ErrUnsealFailed) {
		t.Errorf("expected ErrUnsealFailed, got %v", err)
	}
}

func TestNewSealer_InvalidKey(t *testing.T) {
	testCases := []string{"", "not base64!", base64.StdEncoding.EncodeToString([]byte("too short"))}
	for _, key := range testCases {
		if _, err := NewSealer(key); err == nil {
			t.Errorf("NewSealer(%q): expected error", key)
		}
	}
}
