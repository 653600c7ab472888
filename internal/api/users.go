package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukerupert/safealert/internal/model"
)

type ProfileUpdate struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

type passwordChange struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdateProfile saves profile changes and re-caches the returned user.
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*model.User, error) {
	var data struct {
		User *model.User `json:"user"`
	}
	if err := c.call(ctx, http.MethodPut, "/users/profile", update, &data); err != nil {
		return nil, err
	}
	if data.User != nil {
		if err := c.store.SaveUser(data.User); err != nil {
			return nil, fmt.Errorf("cache user: %w", err)
		}
	}
	return data.User, nil
}

func (c *Client) ChangePassword(ctx context.Context, current, next string) error {
	return c.call(ctx, http.MethodPut, "/users/change-password", passwordChange{CurrentPassword: current, NewPassword: next}, nil)
}

// ListUsers returns one page of users. Admin only.
func (c *Client) ListUsers(ctx context.Context, page, limit int) ([]model.User, model.Pagination, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(defaultInt(page, 1)))
	q.Set("limit", strconv.Itoa(defaultInt(limit, 10)))

	var data struct {
		Users      []model.User     `json:"users"`
		Pagination model.Pagination `json:"pagination"`
	}
	if err := c.call(ctx, http.MethodGet, "/users?"+q.Encode(), nil, &data); err != nil {
		return nil, model.Pagination{}, err
	}
	return data.Users, data.Pagination, nil
}

func defaultInt(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
