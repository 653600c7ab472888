package app

import (
	"context"
	"fmt"
	"slices"

	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/model"
)

// fix takes a fresh sample and resolves its address.
func (a *App) fix(ctx context.Context, opts geo.Options) (model.LocationFix, error) {
	fix, err := a.sampler.Sample(ctx, opts)
	if err != nil {
		return model.LocationFix{}, err
	}
	fix.Address = a.geocoder.ReverseGeocode(ctx, fix.Latitude, fix.Longitude)
	return fix, nil
}

func (a *App) ShareLocation(ctx context.Context, in ShareLocation) (*model.SharedLocation, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	fix, err := a.fix(ctx, geo.DefaultOptions())
	if err != nil {
		return nil, err
	}

	shared, err := a.client.StartSharing(ctx, model.ShareRequest{
		LocationUpdate: fix.Update(),
		SharedWith:     in.SharedWith,
		Duration:       in.Duration,
	})
	if err != nil {
		return nil, err
	}

	desc := "Sharing location"
	if n := len(in.SharedWith); n > 0 {
		desc = fmt.Sprintf("Sharing location with %d contact(s)", n)
	}
	if in.Duration > 0 {
		desc += fmt.Sprintf(" for %d min", in.Duration)
	}
	a.record(model.ActivityEntry{
		Type:        model.ActivityLocation,
		Title:       "Location shared",
		Description: desc,
		Location:    fix.Address,
	})
	return shared, nil
}

func (a *App) UpdateSharedLocation(ctx context.Context) (*model.SharedLocation, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	fix, err := a.fix(ctx, geo.DefaultOptions())
	if err != nil {
		return nil, err
	}
	return a.client.UpdateSharedLocation(ctx, fix.Update())
}

func (a *App) StopSharing(ctx context.Context) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	return a.client.StopSharing(ctx)
}

func (a *App) MyLocation(ctx context.Context) (*model.SharedLocation, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	return a.client.MyLocation(ctx)
}

// NearbyLocation is a shared location with its distance from the caller.
type NearbyLocation struct {
	model.SharedLocation
	DistanceKm float64
}

func (n NearbyLocation) Distance() string {
	return geo.FormatDistance(n.DistanceKm)
}

// Nearby lists shared locations around the current position, closest first.
func (a *App) Nearby(ctx context.Context, in Nearby) ([]NearbyLocation, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	opts := geo.DefaultOptions()
	opts.MaximumAge = reportFixMaxAge
	fix, err := a.sampler.Sample(ctx, opts)
	if err != nil {
		return nil, err
	}

	locs, err := a.client.Nearby(ctx, fix.Latitude, fix.Longitude, in.Radius)
	if err != nil {
		return nil, err
	}
	out := make([]NearbyLocation, 0, len(locs))
	for _, l := range locs {
		out = append(out, NearbyLocation{
			SharedLocation: l,
			DistanceKm:     geo.Distance(fix.Latitude, fix.Longitude, l.Latitude, l.Longitude),
		})
	}
	slices.SortStableFunc(out, func(x, y NearbyLocation) int {
		switch {
		case x.DistanceKm < y.DistanceKm:
			return -1
		case x.DistanceKm > y.DistanceKm:
			return 1
		}
		return 0
	})
	return out, nil
}

func (a *App) LocationHistory(ctx context.Context, in LocationHistory) ([]model.SharedLocation, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	return a.client.LocationHistory(ctx, in.Limit)
}
