package app

import (
	"context"

	"github.com/dukerupert/safealert/internal/api"
	"github.com/dukerupert/safealert/internal/model"
)

func (a *App) UpdateProfile(ctx context.Context, in UpdateProfile) (*model.User, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	u, err := a.client.UpdateProfile(ctx, api.ProfileUpdate{Name: in.Name, Email: in.Email})
	if err != nil {
		return nil, err
	}
	if u != nil {
		a.setUser(u)
	}
	return u, nil
}

// ChangePassword logs the user out after a successful change so the new
// password is used from the next login on.
func (a *App) ChangePassword(ctx context.Context, in ChangePassword) error {
	if err := a.validate(in); err != nil {
		return err
	}
	if err := a.requireLogin(); err != nil {
		return err
	}
	if err := a.client.ChangePassword(ctx, in.Current, in.New); err != nil {
		return err
	}
	a.logger.Info("password changed, logging out")
	return a.Logout(ctx)
}

// UserPage is one page of the user directory.
type UserPage struct {
	Users      []model.User
	Pagination model.Pagination
}

// ListUsers pages through registered users. The backend restricts it to
// admins.
func (a *App) ListUsers(ctx context.Context, in ListUsers) (*UserPage, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	users, page, err := a.client.ListUsers(ctx, in.Page, in.Limit)
	if err != nil {
		return nil, err
	}
	return &UserPage{Users: users, Pagination: page}, nil
}
