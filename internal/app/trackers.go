package app

import (
	"context"

	"github.com/dukerupert/safealert/internal/model"
)

// TrackerList is the result of LoadTrackers.
type TrackerList struct {
	Trackers []model.Tracker
	Current  *model.Tracker
}

// LoadTrackers fetches the user's trackers, selects the current one and
// starts the polling loop when it is active.
func (a *App) LoadTrackers(ctx context.Context, in LoadTrackers) (*TrackerList, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	trackers, err := a.client.ListTrackers(ctx)
	if err != nil {
		return nil, err
	}

	current := model.SelectCurrent(trackers)
	switch {
	case current == nil:
		a.poller.Clear()
	case current.IsActive && !in.NoPolling:
		a.poller.Start(ctx, *current)
	default:
		a.poller.Follow(*current)
	}
	return &TrackerList{Trackers: trackers, Current: a.poller.Snapshot()}, nil
}

// CreateTracker registers a tracker, makes it current and starts polling.
func (a *App) CreateTracker(ctx context.Context, in CreateTracker) (*model.Tracker, error) {
	if err := a.validate(in); err != nil {
		return nil, err
	}
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	t, err := a.client.CreateTracker(ctx, model.NewTracker{
		ChildName:     in.ChildName,
		ContactNumber: in.ContactNumber,
		DeviceID:      in.DeviceID,
	})
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}

	a.record(model.ActivityEntry{
		Type:        model.ActivityTracker,
		Title:       "Tracker: " + t.ChildName,
		Description: "Started tracking " + t.ChildName,
	})
	a.poller.Start(ctx, *t)
	return a.poller.Snapshot(), nil
}

func (a *App) trackerID(id string) (string, error) {
	if id != "" {
		return id, nil
	}
	if cur := a.poller.Snapshot(); cur != nil {
		return cur.ID, nil
	}
	return "", ErrNoTracker
}

// ToggleTracker flips the active flag on the backend. For the current
// tracker the loop follows the new state.
func (a *App) ToggleTracker(ctx context.Context, in ToggleTracker) (*model.Tracker, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	id, err := a.trackerID(in.ID)
	if err != nil {
		return nil, err
	}
	t, err := a.client.ToggleTracker(ctx, id)
	if err != nil {
		return nil, err
	}
	if t == nil {
		return nil, nil
	}

	if cur := a.poller.Snapshot(); cur != nil && cur.ID == t.ID {
		if t.IsActive {
			a.poller.Start(ctx, *t)
		} else {
			a.poller.Follow(*t)
		}
	}
	return t, nil
}

func (a *App) DeleteTracker(ctx context.Context, in DeleteTracker) error {
	if err := a.requireLogin(); err != nil {
		return err
	}
	id, err := a.trackerID(in.ID)
	if err != nil {
		return err
	}
	if err := a.client.DeleteTracker(ctx, id); err != nil {
		return err
	}
	if cur := a.poller.Snapshot(); cur != nil && cur.ID == id {
		a.poller.Clear()
	}
	return nil
}

func (a *App) TrackerHistory(ctx context.Context, in TrackerHistory) ([]model.LocationFix, error) {
	if err := a.requireLogin(); err != nil {
		return nil, err
	}
	id, err := a.trackerID(in.ID)
	if err != nil {
		return nil, err
	}
	return a.client.TrackerHistory(ctx, id, in.Limit)
}
