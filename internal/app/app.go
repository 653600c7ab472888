package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dukerupert/safealert/internal/api"
	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/model"
	"github.com/dukerupert/safealert/internal/store"
	"github.com/dukerupert/safealert/internal/tracker"
	"github.com/go-playground/validator/v10"
)

var (
	ErrNotLoggedIn = errors.New("not logged in")
	ErrNoTracker   = errors.New("no tracker selected")
)

type LocationSampler interface {
	Sample(ctx context.Context, opts geo.Options) (model.LocationFix, error)
}

type AddressLookup interface {
	ReverseGeocode(ctx context.Context, lat, lon float64) string
}

// Deps are the collaborators an App drives.
type Deps struct {
	Client   *api.Client
	Sessions *store.SessionStore
	Activity *store.ActivityStore
	Sampler  LocationSampler
	Geocoder AddressLookup
	Poller   *tracker.Poller
	Logger   *slog.Logger
	// OnActivity is called after an activity entry is recorded.
	OnActivity func(model.ActivityEntry)
}

// Context is the state shared by the controllers: who is logged in and which
// tracker is being followed.
type Context struct {
	User    *model.User
	Tracker *model.Tracker
}

// App holds the feature controllers.
type App struct {
	client     *api.Client
	sessions   *store.SessionStore
	activity   *store.ActivityStore
	sampler    LocationSampler
	geocoder   AddressLookup
	poller     *tracker.Poller
	logger     *slog.Logger
	onActivity func(model.ActivityEntry)
	validator  *validator.Validate

	mu   sync.RWMutex
	user *model.User

	expired chan struct{}
}

func New(d Deps) *App {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &App{
		client:     d.Client,
		sessions:   d.Sessions,
		activity:   d.Activity,
		sampler:    d.Sampler,
		geocoder:   d.Geocoder,
		poller:     d.Poller,
		logger:     logger,
		onActivity: d.OnActivity,
		validator:  newValidator(),
		expired:    make(chan struct{}, 1),
	}
}

// Context returns a copy of the current app context.
func (a *App) Context() Context {
	a.mu.RLock()
	var u *model.User
	if a.user != nil {
		c := *a.user
		u = &c
	}
	a.mu.RUnlock()
	return Context{User: u, Tracker: a.poller.Snapshot()}
}

func (a *App) setUser(u *model.User) {
	a.mu.Lock()
	a.user = u
	a.mu.Unlock()
}

// HandleSessionExpired resets the context after the client has cleared an
// unrecoverable session. It may be called from inside a tracker cycle, so the
// loop is torn down asynchronously.
func (a *App) HandleSessionExpired() {
	a.setUser(nil)
	go a.poller.Clear()
	a.logger.Warn("session expired, login required")
	select {
	case a.expired <- struct{}{}:
	default:
	}
}

// SessionExpired receives a value after the session has been torn down, so a
// long-running caller can send the user back to login.
func (a *App) SessionExpired() <-chan struct{} {
	return a.expired
}

func (a *App) requireLogin() error {
	if !a.sessions.LoggedIn() {
		return ErrNotLoggedIn
	}
	return nil
}

// Dispatch routes an intent to its controller and returns the controller's
// result.
func (a *App) Dispatch(ctx context.Context, in Intent) (any, error) {
	switch in := in.(type) {
	case Login:
		return a.Login(ctx, in)
	case Register:
		return a.Register(ctx, in)
	case Logout:
		return nil, a.Logout(ctx)
	case CheckAuth:
		return a.CheckAuth(ctx)
	case UpdateProfile:
		return a.UpdateProfile(ctx, in)
	case ChangePassword:
		return nil, a.ChangePassword(ctx, in)
	case ListUsers:
		return a.ListUsers(ctx, in)
	case SubmitReport:
		return a.SubmitReport(ctx, in)
	case MyReports:
		return a.MyReports(ctx)
	case GetReport:
		return a.GetReport(ctx, in)
	case UpdateReport:
		return a.UpdateReport(ctx, in)
	case DeleteReport:
		return nil, a.DeleteReport(ctx, in)
	case GetReportStats:
		return a.ReportStats(ctx)
	case Feed:
		return a.Feed(ctx, in)
	case LoadTrackers:
		return a.LoadTrackers(ctx, in)
	case CreateTracker:
		return a.CreateTracker(ctx, in)
	case ToggleTracker:
		return a.ToggleTracker(ctx, in)
	case DeleteTracker:
		return nil, a.DeleteTracker(ctx, in)
	case TrackerHistory:
		return a.TrackerHistory(ctx, in)
	case ShareLocation:
		return a.ShareLocation(ctx, in)
	case UpdateSharedLocation:
		return a.UpdateSharedLocation(ctx)
	case StopSharing:
		return nil, a.StopSharing(ctx)
	case MyLocation:
		return a.MyLocation(ctx)
	case Nearby:
		return a.Nearby(ctx, in)
	case LocationHistory:
		return a.LocationHistory(ctx, in)
	case RecentActivity:
		return a.RecentActivity()
	default:
		return nil, fmt.Errorf("unknown intent %T", in)
	}
}
