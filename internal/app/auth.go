package app

import (
	"context"
	"errors"

	"github.com/dukerupert/safealert/internal/api"
	"github.com/dukerupert/safealert/internal/model"
)

func (a *App) Login(ctx context.Context, in Login) (*model.User, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	sess, err := a.client.Login(ctx, in.Email, in.Password)
	if err != nil {
		return nil, err
	}
	a.setUser(sess.User)
	a.logger.Info("logged in", "email", in.Email)
	return sess.User, nil
}

func (a *App) Register(ctx context.Context, in Register) (*model.User, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	sess, err := a.client.Register(ctx, api.RegisterRequest{Name: in.Name, Email: in.Email, Password: in.Password})
	if err != nil {
		return nil, err
	}
	a.setUser(sess.User)
	a.logger.Info("registered", "email", in.Email)
	return sess.User, nil
}

// Logout always succeeds locally. A failed backend call is only logged.
func (a *App) Logout(ctx context.Context) error {
	a.poller.Clear()
	if err := a.client.Logout(ctx); err != nil {
		a.logger.Warn("logout request failed; local session cleared", "error", err)
	}
	a.setUser(nil)
	return nil
}

// CheckAuth loads the cached profile, then refreshes it from the backend. A
// failed refresh keeps the cached profile unless the session has expired.
func (a *App) CheckAuth(ctx context.Context) (*model.User, error) {
	if !a.sessions.LoggedIn() {
		a.setUser(nil)
		return nil, ErrNotLoggedIn
	}

	cached, err := a.sessions.User()
	if err != nil {
		a.logger.Warn("read cached user", "error", err)
	}
	a.setUser(cached)

	u, err := a.client.Me(ctx)
	if err != nil {
		if errors.Is(err, api.ErrSessionExpired) || cached == nil {
			return nil, err
		}
		a.logger.Warn("refresh profile failed, using cached copy", "error", err)
		return cached, nil
	}
	a.setUser(u)
	return u, nil
}
