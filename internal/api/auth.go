package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/dukerupert/safealert/internal/model"
)

type authData struct {
	Token        string      `json:"token"`
	RefreshToken string      `json:"refreshToken"`
	User         *model.User `json:"user"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Register creates an account and persists the returned session.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*model.Session, error) {
	var data authData
	if err := c.call(ctx, http.MethodPost, "/auth/register", req, &data); err != nil {
		return nil, err
	}
	return c.persist(data)
}

// Login authenticates and persists the returned session.
func (c *Client) Login(ctx context.Context, email, password string) (*model.Session, error) {
	var data authData
	if err := c.call(ctx, http.MethodPost, "/auth/login", loginRequest{Email: email, Password: password}, &data); err != nil {
		return nil, err
	}
	return c.persist(data)
}

func (c *Client) persist(data authData) (*model.Session, error) {
	if data.Token == "" {
		return nil, &RequestError{StatusCode: http.StatusOK, Message: "response missing token"}
	}
	if err := c.store.SaveTokens(data.Token, data.RefreshToken); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	if err := c.store.SaveUser(data.User); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	return &model.Session{AccessToken: data.Token, RefreshToken: data.RefreshToken, User: data.User}, nil
}

// Logout tells the backend to revoke the refresh token. The local session is
// cleared whether or not that call succeeds; the backend error is returned
// for logging only.
func (c *Client) Logout(ctx context.Context) error {
	refreshToken, _ := c.store.RefreshToken()
	callErr := c.call(ctx, http.MethodPost, "/auth/logout", refreshRequest{RefreshToken: refreshToken}, nil)

	if err := c.store.Clear(); err != nil {
		return err
	}
	if callErr != nil {
		c.logger.Warn("logout request failed", "error", callErr)
	}
	return callErr
}

// Me fetches the current profile and refreshes the cached copy.
func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var data struct {
		User *model.User `json:"user"`
	}
	if err := c.call(ctx, http.MethodGet, "/auth/me", nil, &data); err != nil {
		return nil, err
	}
	if data.User == nil {
		return nil, &RequestError{StatusCode: http.StatusOK, Message: "response missing user"}
	}
	if err := c.store.SaveUser(data.User); err != nil {
		c.logger.Warn("cache user", "error", err)
	}
	return data.User, nil
}
