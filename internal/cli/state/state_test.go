package state_test

import (
	"path/filepath"
	"testing"
	"time"

	"classqa/internal/cli/state"
)

func TestSaveLoadClear(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "state.json")

	st, err := state.Load(path)
	if err != nil {
		t.Fatalf("load missing state: %v", err)
	}
	if st.AccessToken != "" {
		t.Fatalf("expected empty state")
	}

	expires := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := state.Save(path, state.TokenState{AccessToken: "tok", AccessExpiresAt: expires}); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, err = state.Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if st.AccessToken != "tok" || !st.AccessExpiresAt.Equal(expires) {
		t.Fatalf("unexpected state %+v", st)
	}

	if err := state.Clear(path); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := state.Clear(path); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	if (state.TokenState{}).Expired(now) {
		t.Fatalf("state without expiry must not be expired")
	}
	if !(state.TokenState{AccessExpiresAt: now}).Expired(now) {
		t.Fatalf("token expiring now must be expired")
	}
	if (state.TokenState{AccessExpiresAt: now.Add(time.Minute)}).Expired(now) {
		t.Fatalf("future expiry must not be expired")
	}
}
