package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dukerupert/safealert/internal/model"
)

const (
	DefaultNearbyRadius         = 5.0
	DefaultLocationHistoryLimit = 20
)

type locationData struct {
	Location *model.SharedLocation `json:"location"`
}

func (c *Client) StartSharing(ctx context.Context, req model.ShareRequest) (*model.SharedLocation, error) {
	var data locationData
	if err := c.call(ctx, http.MethodPost, "/location/share", req, &data); err != nil {
		return nil, err
	}
	return data.Location, nil
}

func (c *Client) UpdateSharedLocation(ctx context.Context, update model.LocationUpdate) (*model.SharedLocation, error) {
	var data locationData
	if err := c.call(ctx, http.MethodPut, "/location/update", update, &data); err != nil {
		return nil, err
	}
	return data.Location, nil
}

func (c *Client) StopSharing(ctx context.Context) error {
	return c.call(ctx, http.MethodPost, "/location/stop", nil, nil)
}

// MyLocation returns the caller's active share, or nil when not sharing.
func (c *Client) MyLocation(ctx context.Context) (*model.SharedLocation, error) {
	var data locationData
	if err := c.call(ctx, http.MethodGet, "/location/my-location", nil, &data); err != nil {
		return nil, err
	}
	return data.Location, nil
}

// Nearby lists shares within radius kilometres of the point. A non-positive
// radius uses DefaultNearbyRadius.
func (c *Client) Nearby(ctx context.Context, lat, lon, radius float64) ([]model.SharedLocation, error) {
	if radius <= 0 {
		radius = DefaultNearbyRadius
	}
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))

	var data struct {
		Locations []model.SharedLocation `json:"locations"`
	}
	if err := c.call(ctx, http.MethodGet, "/location/nearby?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return data.Locations, nil
}

func (c *Client) LocationHistory(ctx context.Context, limit int) ([]model.SharedLocation, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(defaultInt(limit, DefaultLocationHistoryLimit)))

	var data struct {
		History []model.SharedLocation `json:"history"`
	}
	if err := c.call(ctx, http.MethodGet, "/location/history?"+q.Encode(), nil, &data); err != nil {
		return nil, err
	}
	return data.History, nil
}
