package store

import (
	"testing"
	"time"

	"github.com/dukerupert/safealert/internal/model"
)

func setupSessionTestDB(t *testing.T) *SessionStore {
	t.Helper()
	return NewSessionStore(setupStateTestDB(t))
}

func TestSessionEmpty(t *testing.T) {
	ss := setupSessionTestDB(t)

	if ss.LoggedIn() {
		t.Error("expected logged out on empty store")
	}
	sess, err := ss.Session()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess != nil {
		t.Errorf("expected nil session, got %+v", sess)
	}
	u, err := ss.User()
	if err != nil || u != nil {
		t.Errorf("User() = %+v, %v; want nil, nil", u, err)
	}
}

func TestSessionSaveAndLoad(t *testing.T) {
	ss := setupSessionTestDB(t)

	if err := ss.SaveTokens("T1", "R1"); err != nil {
		t.Fatalf("save tokens: %v", err)
	}
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := ss.SaveUser(&model.User{ID: "u1", Name: "Alice", Email: "alice@example.com", Role: "user", CreatedAt: created}); err != nil {
		t.Fatalf("save user: %v", err)
	}

	if !ss.LoggedIn() {
		t.Error("expected logged in")
	}
	sess, err := ss.Session()
	if err != nil {
		t.Fatalf("session: %v", err)
	}
	if sess.AccessToken != "T1" || sess.RefreshToken != "R1" {
		t.Errorf("tokens = %q/%q, want T1/R1", sess.AccessToken, sess.RefreshToken)
	}
	if sess.User == nil || sess.User.Name != "Alice" {
		t.Fatalf("user = %+v, want Alice", sess.User)
	}
	if !sess.User.CreatedAt.Equal(created) {
		t.Errorf("createdAt = %v, want %v", sess.User.CreatedAt, created)
	}
}

func TestSessionRotateTokens(t *testing.T) {
	ss := setupSessionTestDB(t)

	ss.SaveTokens("T1", "R1")
	ss.SaveTokens("T2", "R2")

	access, _ := ss.AccessToken()
	refresh, _ := ss.RefreshToken()
	if access != "T2" || refresh != "R2" {
		t.Errorf("tokens = %q/%q, want T2/R2", access, refresh)
	}
}

func TestSessionClear(t *testing.T) {
	state := setupStateTestDB(t)
	ss := NewSessionStore(state)
	as := NewActivityStore(state)

	ss.SaveTokens("T1", "R1")
	ss.SaveUser(&model.User{ID: "u1", Name: "Alice"})
	as.Add(model.ActivityEntry{Type: model.ActivityReport, Title: "Report: Other"})

	if err := ss.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if access, _ := ss.AccessToken(); access != "" {
		t.Errorf("access token = %q, want empty", access)
	}
	if refresh, _ := ss.RefreshToken(); refresh != "" {
		t.Errorf("refresh token = %q, want empty", refresh)
	}
	if u, _ := ss.User(); u != nil {
		t.Errorf("user = %+v, want nil", u)
	}
	entries, _ := as.List()
	if len(entries) != 1 {
		t.Errorf("activity entries = %d, want 1 (not part of the session)", len(entries))
	}
}

func TestSessionSealedTokens(t *testing.T) {
	state := setupStateTestDB(t)
	if err := state.Unlock("pass"); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	ss := NewSessionStore(state)
	if err := ss.SaveTokens("T1", "R1"); err != nil {
		t.Fatalf("save tokens: %v", err)
	}

	var sealed int
	state.db.QueryRow(`SELECT COUNT(*) FROM client_state WHERE sealed = 1`).Scan(&sealed)
	if sealed != 2 {
		t.Errorf("sealed rows = %d, want 2", sealed)
	}
	if access, _ := ss.AccessToken(); access != "T1" {
		t.Errorf("access token = %q, want T1", access)
	}
}
