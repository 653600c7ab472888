package store

import (
	"encoding/json"
	"fmt"

	"github.com/dukerupert/safealert/internal/model"
)

const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyUser         = "user"
)

// SessionStore persists the single client session: access token, refresh
// token and the cached user profile. Tokens are sealed when the underlying
// state store is unlocked. Last write wins.
type SessionStore struct {
	state *StateStore
}

func NewSessionStore(state *StateStore) *SessionStore {
	return &SessionStore{state: state}
}

func (s *SessionStore) AccessToken() (string, error) {
	v, _, err := s.state.Get(keyAccessToken)
	return v, err
}

func (s *SessionStore) RefreshToken() (string, error) {
	v, _, err := s.state.Get(keyRefreshToken)
	return v, err
}

// SaveTokens stores a rotated token pair atomically.
func (s *SessionStore) SaveTokens(access, refresh string) error {
	err := s.state.SetSealedMany(map[string]string{
		keyAccessToken:  access,
		keyRefreshToken: refresh,
	})
	if err != nil {
		return fmt.Errorf("save tokens: %w", err)
	}
	return nil
}

// User returns the cached profile, or nil when none is cached.
func (s *SessionStore) User() (*model.User, error) {
	raw, ok, err := s.state.Get(keyUser)
	if err != nil || !ok {
		return nil, err
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return nil, fmt.Errorf("decode cached user: %w", err)
	}
	return &u, nil
}

func (s *SessionStore) SaveUser(u *model.User) error {
	if u == nil {
		return s.state.Delete(keyUser)
	}
	data, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	return s.state.Set(keyUser, string(data))
}

// Session returns the stored session, or nil when there is no access token.
func (s *SessionStore) Session() (*model.Session, error) {
	access, err := s.AccessToken()
	if err != nil || access == "" {
		return nil, err
	}
	refresh, err := s.RefreshToken()
	if err != nil {
		return nil, err
	}
	user, err := s.User()
	if err != nil {
		return nil, err
	}
	return &model.Session{AccessToken: access, RefreshToken: refresh, User: user}, nil
}

// LoggedIn reports whether an access token is stored.
func (s *SessionStore) LoggedIn() bool {
	v, err := s.AccessToken()
	return err == nil && v != ""
}

// Clear removes the access token, refresh token and cached profile.
func (s *SessionStore) Clear() error {
	if err := s.state.Delete(keyAccessToken, keyRefreshToken, keyUser); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}
