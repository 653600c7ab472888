package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukerupert/safealert/internal/model"
)

const DefaultTrackerHistoryLimit = 50

type trackerData struct {
	Tracker *model.Tracker `json:"tracker"`
}

func trackerPath(id string) string {
	return "/tracker/" + url.PathEscape(id)
}

func (c *Client) CreateTracker(ctx context.Context, t model.NewTracker) (*model.Tracker, error) {
	var data trackerData
	if err := c.call(ctx, http.MethodPost, "/tracker", t, &data); err != nil {
		return nil, err
	}
	return data.Tracker, nil
}

func (c *Client) ListTrackers(ctx context.Context) ([]model.Tracker, error) {
	var data struct {
		Trackers []model.Tracker `json:"trackers"`
	}
	if err := c.call(ctx, http.MethodGet, "/tracker", nil, &data); err != nil {
		return nil, err
	}
	return data.Trackers, nil
}

func (c *Client) GetTracker(ctx context.Context, id string) (*model.Tracker, error) {
	var data trackerData
	if err := c.call(ctx, http.MethodGet, trackerPath(id), nil, &data); err != nil {
		return nil, err
	}
	return data.Tracker, nil
}

// UpdateTrackerLocation pushes a fix and returns the tracker's new last
// location as stored by the backend.
func (c *Client) UpdateTrackerLocation(ctx context.Context, id string, update model.LocationUpdate) (*model.LocationFix, error) {
	var data struct {
		LastLocation *model.LocationFix `json:"lastLocation"`
	}
	if err := c.call(ctx, http.MethodPut, trackerPath(id)+"/location", update, &data); err != nil {
		return nil, err
	}
	return data.LastLocation, nil
}

// TrackerHistory returns recent fixes, newest first. A non-positive limit
// uses DefaultTrackerHistoryLimit.
func (c *Client) TrackerHistory(ctx context.Context, id string, limit int) ([]model.LocationFix, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(defaultInt(limit, DefaultTrackerHistoryLimit)))

	var data struct {
		History []model.LocationFix `json:"history"`
	}
	if err := c.call(ctx, http.MethodGet, trackerPath(id)+"/history?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return data.History, nil
}

// ToggleTracker flips the tracker's active flag on the backend.
func (c *Client) ToggleTracker(ctx context.Context, id string) (*model.Tracker, error) {
	var data trackerData
	if err := c.call(ctx, http.MethodPut, trackerPath(id)+"/toggle", nil, &data); err != nil {
		return nil, err
	}
	return data.Tracker, nil
}

func (c *Client) DeleteTracker(ctx context.Context, id string) error {
	return c.call(ctx, http.MethodDelete, trackerPath(id), nil, nil)
}
