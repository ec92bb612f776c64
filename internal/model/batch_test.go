package model

import "testing"

func TestBatchResult_Fold(t *testing.T) {
	var b BatchResult

	b.Succeed()
	b.Skip(1, "missing form_id")
	b.Skip(2, "")
	b.Succeed()

	if b.Processed != 4 {
		t.Errorf("Processed = %d, want 4", b.Processed)
	}
	if b.Succeeded != 2 {
		t.Errorf("Succeeded = %d, want 2", b.Succeeded)
	}
	if b.Skipped != 2 {
		t.Errorf("Skipped = %d, want 2", b.Skipped)
	}
	if b.Processed != b.Succeeded+b.Skipped {
		t.Errorf("Processed should equal Succeeded + Skipped")
	}
	if len(b.Errors) != 1 {
		t.Fatalf("expected 1 reported error, got %d", len(b.Errors))
	}
	if b.Errors[0].Index != 1 || b.Errors[0].Reason != "missing form_id" {
		t.Errorf("unexpected item error: %+v", b.Errors[0])
	}
}

func TestFormOverwrite_Has(t *testing.T) {
	testCases := []struct {
		name      string
		overwrite FormOverwrite
		flag      FormOverwrite
		want      bool
	}{
		{"name only has name", OverwriteName, OverwriteName, true},
		{"name only lacks schema", OverwriteName, OverwriteSchema, false},
		{"both has schema", OverwriteName | OverwriteSchema, OverwriteSchema, true},
		{"none", 0, OverwriteName, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.overwrite.Has(tc.flag); got != tc.want {
				t.Errorf("Has(%d) = %v, want %v", tc.flag, got, tc.want)
			}
		})
	}
}

func TestAuthContext_Predicates(t *testing.T) {
	var nilCtx *AuthContext
	if nilCtx.HasClient() || nilCtx.IsSession() {
		t.Error("nil context should report no client and no session")
	}

	session := &AuthContext{Kind: CredentialSession, UserID: "u1"}
	if !session.IsSession() || session.HasClient() {
		t.Error("session context should be session without client")
	}

	key := &AuthContext{Kind: CredentialAPIKey, UserID: "u1", ClientID: "c1"}
	if key.IsSession() || !key.HasClient() {
		t.Error("scoped key context should carry client and not be session")
	}
}
