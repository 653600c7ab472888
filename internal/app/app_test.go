package app

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dukerupert/safealert/internal/api"
	"github.com/dukerupert/safealert/internal/database"
	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/model"
	"github.com/dukerupert/safealert/internal/store"
	"github.com/dukerupert/safealert/internal/tracker"
)

type sensorFunc func(ctx context.Context, high bool) (model.LocationFix, error)

func (f sensorFunc) Read(ctx context.Context, high bool) (model.LocationFix, error) {
	return f(ctx, high)
}

type fixedAddress string

func (f fixedAddress) ReverseGeocode(context.Context, float64, float64) string { return string(f) }

// backend is a fake REST backend recording what it receives.
type backend struct {
	mu       sync.Mutex
	calls    map[string]int
	reports  []map[string]any
	shares   []map[string]any
	trackers []model.Tracker
	*http.ServeMux
}

func (b *backend) hit(key string) {
	b.mu.Lock()
	b.calls[key]++
	b.mu.Unlock()
}

func (b *backend) count(key string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[key]
}

func reply(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{"success": status < 300, "data": data}
	json.NewEncoder(w).Encode(body)
}

func newBackend() *backend {
	b := &backend{calls: map[string]int{}, ServeMux: http.NewServeMux()}
	user := map[string]string{"id": "u1", "name": "Ada", "email": "ada@example.com", "role": "user"}

	b.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		b.hit("login")
		reply(w, http.StatusOK, map[string]any{"token": "t1", "refreshToken": "r1", "user": user})
	})
	b.HandleFunc("POST /auth/register", func(w http.ResponseWriter, r *http.Request) {
		b.hit("register")
		reply(w, http.StatusCreated, map[string]any{"token": "t1", "refreshToken": "r1", "user": user})
	})
	b.HandleFunc("POST /auth/logout", func(w http.ResponseWriter, r *http.Request) {
		b.hit("logout")
		reply(w, http.StatusOK, nil)
	})
	b.HandleFunc("GET /auth/me", func(w http.ResponseWriter, r *http.Request) {
		b.hit("me")
		reply(w, http.StatusOK, map[string]any{"user": user})
	})
	b.HandleFunc("PUT /users/change-password", func(w http.ResponseWriter, r *http.Request) {
		b.hit("password")
		reply(w, http.StatusOK, nil)
	})
	b.HandleFunc("POST /reports", func(w http.ResponseWriter, r *http.Request) {
		b.hit("report")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.reports = append(b.reports, body)
		b.mu.Unlock()
		body["_id"] = "rep1"
		body["createdAt"] = "2026-05-01T12:00:00Z"
		body["status"] = "pending"
		reply(w, http.StatusCreated, map[string]any{"report": body})
	})
	b.HandleFunc("PUT /reports/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.hit("report-update")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.reports = append(b.reports, body)
		b.mu.Unlock()
		body["_id"] = r.PathValue("id")
		reply(w, http.StatusOK, map[string]any{"report": body})
	})
	b.HandleFunc("GET /tracker", func(w http.ResponseWriter, r *http.Request) {
		b.hit("trackers")
		b.mu.Lock()
		defer b.mu.Unlock()
		reply(w, http.StatusOK, map[string]any{"trackers": b.trackers})
	})
	b.HandleFunc("GET /tracker/{id}", func(w http.ResponseWriter, r *http.Request) {
		b.hit("tracker")
		b.mu.Lock()
		defer b.mu.Unlock()
		for _, t := range b.trackers {
			if t.ID == r.PathValue("id") {
				reply(w, http.StatusOK, map[string]any{"tracker": t})
				return
			}
		}
		reply(w, http.StatusNotFound, nil)
	})
	b.HandleFunc("PUT /tracker/{id}/location", func(w http.ResponseWriter, r *http.Request) {
		b.hit("tracker-location")
		var u model.LocationUpdate
		json.NewDecoder(r.Body).Decode(&u)
		reply(w, http.StatusOK, map[string]any{"lastLocation": u})
	})
	b.HandleFunc("POST /location/share", func(w http.ResponseWriter, r *http.Request) {
		b.hit("share")
		var body map[string]any
		json.NewDecoder(r.Body).Decode(&body)
		b.mu.Lock()
		b.shares = append(b.shares, body)
		b.mu.Unlock()
		reply(w, http.StatusCreated, map[string]any{"location": body})
	})
	b.HandleFunc("GET /location/nearby", func(w http.ResponseWriter, r *http.Request) {
		b.hit("nearby")
		reply(w, http.StatusOK, map[string]any{"locations": []map[string]any{
			{"_id": "far", "latitude": 0.1, "longitude": 0},
			{"_id": "near", "latitude": 0.001, "longitude": 0},
		}})
	})
	return b
}

type harness struct {
	app      *App
	backend  *backend
	sessions *store.SessionStore
	poller   *tracker.Poller
}

func setupApp(t *testing.T, sensor geo.Sensor) *harness {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	state := store.NewStateStore(db)
	sessions := store.NewSessionStore(state)

	b := newBackend()
	srv := httptest.NewServer(b)
	t.Cleanup(srv.Close)

	var a *App
	client := api.NewClient(api.Config{BaseURL: srv.URL, Timeout: 5 * time.Second}, sessions,
		api.WithLogger(logger),
		api.WithSessionExpired(func() { a.HandleSessionExpired() }),
	)
	sampler := geo.NewSampler(sensor)
	address := fixedAddress("1 Main St")
	poller := tracker.NewPoller(client, sampler, address, tracker.WithLogger(logger), tracker.WithInterval(time.Hour))
	t.Cleanup(poller.Stop)

	a = New(Deps{
		Client:   client,
		Sessions: sessions,
		Activity: store.NewActivityStore(state),
		Sampler:  sampler,
		Geocoder: address,
		Poller:   poller,
		Logger:   logger,
	})
	return &harness{app: a, backend: b, sessions: sessions, poller: poller}
}

func login(t *testing.T, h *harness) {
	t.Helper()
	if _, err := h.app.Login(context.Background(), Login{Email: "ada@example.com", Password: "Secret1"}); err != nil {
		t.Fatalf("login: %v", err)
	}
}

func TestRegisterValidation(t *testing.T) {
	h := setupApp(t, nil)

	tests := []struct {
		name string
		in   Register
		want string
	}{
		{"missing name", Register{Email: "a@b.co", Password: "Secret1"}, "Name is required"},
		{"bad email", Register{Name: "A", Email: "nope", Password: "Secret1"}, "Please enter a valid email address"},
		{"mismatch", Register{Name: "A", Email: "a@b.co", Password: "Secret1", Confirm: "Secret2"}, "Passwords do not match"},
		{"short", Register{Name: "A", Email: "a@b.co", Password: "Ab1"}, "Password must be at least 6 characters"},
		{"weak", Register{Name: "A", Email: "a@b.co", Password: "secret1"}, "Password must contain at least one uppercase letter, one lowercase letter, and one number"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := h.app.Register(context.Background(), tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("err = %v, want *ValidationError", err)
			}
			if got := UserMessage(err); got != tt.want {
				t.Errorf("message = %q, want %q", got, tt.want)
			}
		})
	}
	if n := h.backend.count("register"); n != 0 {
		t.Errorf("register calls = %d, want 0", n)
	}
}

func TestRegisterAcceptsStrongPassword(t *testing.T) {
	h := setupApp(t, nil)
	u, err := h.app.Register(context.Background(), Register{Name: "Ada", Email: "ada@example.com", Password: "Secret1", Confirm: "Secret1"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.ID != "u1" {
		t.Errorf("ID = %q, want u1", u.ID)
	}
	if !h.sessions.LoggedIn() {
		t.Error("expected persisted session")
	}
}

func TestLoginSetsContext(t *testing.T) {
	h := setupApp(t, nil)
	login(t, h)

	ctx := h.app.Context()
	if ctx.User == nil || ctx.User.Name != "Ada" {
		t.Errorf("User = %+v, want Ada", ctx.User)
	}
}

func TestCheckAuth(t *testing.T) {
	h := setupApp(t, nil)
	if _, err := h.app.CheckAuth(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Fatalf("err = %v, want ErrNotLoggedIn", err)
	}

	login(t, h)
	u, err := h.app.CheckAuth(context.Background())
	if err != nil {
		t.Fatalf("check auth: %v", err)
	}
	if u.Email != "ada@example.com" {
		t.Errorf("Email = %q", u.Email)
	}
	if n := h.backend.count("me"); n != 1 {
		t.Errorf("me calls = %d, want 1", n)
	}
}

func TestControllersRequireLogin(t *testing.T) {
	h := setupApp(t, nil)
	if _, err := h.app.MyReports(context.Background()); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("err = %v, want ErrNotLoggedIn", err)
	}
}

func TestSubmitReportWithoutCoordinatesOnPermissionDenied(t *testing.T) {
	denied := sensorFunc(func(context.Context, bool) (model.LocationFix, error) {
		return model.LocationFix{}, geo.ErrPermissionDenied
	})
	h := setupApp(t, denied)
	login(t, h)

	report, err := h.app.SubmitReport(context.Background(), SubmitReport{
		Type:        model.ReportVandalism,
		Address:     "Main Street",
		Description: "Broken bus shelter",
	})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if report.ID != "rep1" {
		t.Errorf("ID = %q, want rep1", report.ID)
	}

	sent := h.backend.reports[0]
	loc := sent["location"].(map[string]any)
	if loc["coordinates"] != nil {
		t.Errorf("coordinates = %v, want null", loc["coordinates"])
	}
	if sent["visibility"] != "public" {
		t.Errorf("visibility = %v, want public", sent["visibility"])
	}

	entries, err := h.app.RecentActivity()
	if err != nil {
		t.Fatalf("activity: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("len = %d, want 1", len(entries))
	}
	if entries[0].Title != "Report: Vandalism" {
		t.Errorf("Title = %q, want %q", entries[0].Title, "Report: Vandalism")
	}
	if entries[0].ID != "rep1" || entries[0].Location != "Main Street" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestSubmitReportAttachesCoordinates(t *testing.T) {
	h := setupApp(t, geo.StaticSensor{Latitude: 51.5, Longitude: -0.12})
	login(t, h)

	if _, err := h.app.SubmitReport(context.Background(), SubmitReport{
		Type:        model.ReportTrespassing,
		Address:     "Park",
		Description: "Fence climbed",
	}); err != nil {
		t.Fatalf("submit: %v", err)
	}
	loc := h.backend.reports[0]["location"].(map[string]any)
	coords, ok := loc["coordinates"].(map[string]any)
	if !ok {
		t.Fatalf("coordinates = %v, want object", loc["coordinates"])
	}
	if coords["latitude"] != 51.5 {
		t.Errorf("latitude = %v, want 51.5", coords["latitude"])
	}
}

func TestSubmitReportRejectsUnknownType(t *testing.T) {
	h := setupApp(t, nil)
	login(t, h)
	_, err := h.app.SubmitReport(context.Background(), SubmitReport{Type: "arson", Address: "x", Description: "y"})
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Field != "Type" {
		t.Fatalf("err = %v, want Type validation error", err)
	}
}

func TestUpdateReportSendsSetFields(t *testing.T) {
	h := setupApp(t, nil)
	login(t, h)

	rep, err := h.app.UpdateReport(context.Background(), UpdateReport{ID: "rep9", Status: model.StatusResolved})
	if err != nil {
		t.Fatalf("update report: %v", err)
	}
	if rep.ID != "rep9" || rep.Status != model.StatusResolved {
		t.Errorf("report = %+v, want rep9 resolved", rep)
	}
	body := h.backend.reports[0]
	if len(body) != 1 || body["status"] != model.StatusResolved {
		t.Errorf("body = %v, want only status", body)
	}
}

func TestUpdateReportRequiresAField(t *testing.T) {
	h := setupApp(t, nil)
	login(t, h)

	_, err := h.app.UpdateReport(context.Background(), UpdateReport{ID: "rep9"})
	if got := UserMessage(err); got != "Nothing to update" {
		t.Errorf("message = %q, want %q", got, "Nothing to update")
	}
	if n := h.backend.count("report-update"); n != 0 {
		t.Errorf("update calls = %d, want 0", n)
	}
}

func TestChangePasswordLogsOut(t *testing.T) {
	h := setupApp(t, nil)
	login(t, h)

	err := h.app.ChangePassword(context.Background(), ChangePassword{Current: "Secret1", New: "Secret2", Confirm: "Secret2"})
	if err != nil {
		t.Fatalf("change password: %v", err)
	}
	if h.sessions.LoggedIn() {
		t.Error("expected logout after password change")
	}
	if h.app.Context().User != nil {
		t.Error("expected empty context")
	}
	if n := h.backend.count("logout"); n != 1 {
		t.Errorf("logout calls = %d, want 1", n)
	}
}

func TestChangePasswordMismatch(t *testing.T) {
	h := setupApp(t, nil)
	login(t, h)

	err := h.app.ChangePassword(context.Background(), ChangePassword{Current: "a", New: "Secret2", Confirm: "Secret3"})
	if got := UserMessage(err); got != "Passwords do not match" {
		t.Errorf("message = %q", got)
	}
	if n := h.backend.count("password"); n != 0 {
		t.Errorf("password calls = %d, want 0", n)
	}
}

func TestLoadTrackersStartsActiveTracker(t *testing.T) {
	h := setupApp(t, geo.StaticSensor{Latitude: 1, Longitude: 2})
	h.backend.trackers = []model.Tracker{
		{ID: "a", ChildName: "Sam", IsActive: false},
		{ID: "b", ChildName: "Alex", IsActive: true},
	}
	login(t, h)

	list, err := h.app.LoadTrackers(context.Background(), LoadTrackers{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(list.Trackers) != 2 {
		t.Errorf("len = %d, want 2", len(list.Trackers))
	}
	if list.Current == nil || list.Current.ID != "b" {
		t.Fatalf("Current = %+v, want b", list.Current)
	}
	if !h.poller.Running() {
		t.Error("expected polling loop to run")
	}
	if n := h.backend.count("tracker-location"); n != 1 {
		t.Errorf("location pushes = %d, want 1", n)
	}
	if loc := h.app.Context().Tracker.LastLocation; loc == nil || loc.Address != "1 Main St" {
		t.Errorf("LastLocation = %+v, want address 1 Main St", loc)
	}
}

func TestLoadTrackersInactiveDoesNotPoll(t *testing.T) {
	h := setupApp(t, geo.StaticSensor{Latitude: 1, Longitude: 2})
	h.backend.trackers = []model.Tracker{{ID: "a", ChildName: "Sam"}}
	login(t, h)

	list, err := h.app.LoadTrackers(context.Background(), LoadTrackers{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if list.Current == nil || list.Current.ID != "a" {
		t.Fatalf("Current = %+v, want a", list.Current)
	}
	if h.poller.Running() {
		t.Error("inactive tracker must not start the loop")
	}
}

func TestLoadTrackersNoPollingFollowsOnly(t *testing.T) {
	h := setupApp(t, geo.StaticSensor{Latitude: 1, Longitude: 2})
	h.backend.trackers = []model.Tracker{{ID: "b", ChildName: "Alex", IsActive: true}}
	login(t, h)

	list, err := h.app.LoadTrackers(context.Background(), LoadTrackers{NoPolling: true})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if list.Current == nil || list.Current.ID != "b" {
		t.Fatalf("Current = %+v, want b", list.Current)
	}
	if h.poller.Running() {
		t.Error("NoPolling must not start the loop")
	}
	if n := h.backend.count("tracker-location"); n != 0 {
		t.Errorf("location pushes = %d, want 0", n)
	}
}

func TestTrackerHistoryWithoutTracker(t *testing.T) {
	h := setupApp(t, nil)
	login(t, h)

	_, err := h.app.TrackerHistory(context.Background(), TrackerHistory{})
	if !errors.Is(err, ErrNoTracker) {
		t.Errorf("err = %v, want ErrNoTracker", err)
	}
}

func TestShareLocationRecordsActivity(t *testing.T) {
	h := setupApp(t, geo.StaticSensor{Latitude: 1, Longitude: 2, Accuracy: 9})
	login(t, h)

	if _, err := h.app.ShareLocation(context.Background(), ShareLocation{SharedWith: []string{"u2"}, Duration: 60}); err != nil {
		t.Fatalf("share: %v", err)
	}
	sent := h.backend.shares[0]
	if sent["address"] != "1 Main St" || sent["duration"] != float64(60) {
		t.Errorf("sent = %v", sent)
	}
	entries, _ := h.app.RecentActivity()
	if len(entries) != 1 || entries[0].Type != model.ActivityLocation {
		t.Errorf("entries = %+v, want one location entry", entries)
	}
}

func TestShareLocationFailsWithoutSensor(t *testing.T) {
	h := setupApp(t, nil)
	login(t, h)

	_, err := h.app.ShareLocation(context.Background(), ShareLocation{})
	if !errors.Is(err, geo.ErrUnsupported) {
		t.Fatalf("err = %v, want ErrUnsupported", err)
	}
	if n := h.backend.count("share"); n != 0 {
		t.Errorf("share calls = %d, want 0", n)
	}
}

func TestNearbySortsByDistance(t *testing.T) {
	h := setupApp(t, geo.StaticSensor{Latitude: 0, Longitude: 0})
	login(t, h)

	locs, err := h.app.Nearby(context.Background(), Nearby{})
	if err != nil {
		t.Fatalf("nearby: %v", err)
	}
	if len(locs) != 2 || locs[0].ID != "near" {
		t.Fatalf("locs = %+v, want near first", locs)
	}
	if got := locs[0].Distance(); got != "111m" {
		t.Errorf("Distance = %q, want 111m", got)
	}
}

func TestDispatchRoutesIntents(t *testing.T) {
	h := setupApp(t, nil)

	res, err := h.app.Dispatch(context.Background(), Login{Email: "ada@example.com", Password: "Secret1"})
	if err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if u, ok := res.(*model.User); !ok || u.ID != "u1" {
		t.Errorf("result = %#v, want *model.User u1", res)
	}

	if _, err := h.app.Dispatch(context.Background(), Logout{}); err != nil {
		t.Fatalf("dispatch logout: %v", err)
	}
	if h.sessions.LoggedIn() {
		t.Error("expected logged out")
	}

	if _, err := h.app.Dispatch(context.Background(), nil); err == nil {
		t.Error("expected error for nil intent")
	}
}

func TestHandleSessionExpiredSignalsAndStopsTracking(t *testing.T) {
	h := setupApp(t, geo.StaticSensor{Latitude: 1, Longitude: 2, Accuracy: 5})
	login(t, h)
	h.poller.Start(context.Background(), model.Tracker{ID: "t1", ChildName: "Sam", IsActive: true})

	h.app.HandleSessionExpired()
	h.app.HandleSessionExpired()

	select {
	case <-h.app.SessionExpired():
	case <-time.After(2 * time.Second):
		t.Fatal("expected an expiry signal")
	}
	select {
	case <-h.app.SessionExpired():
		t.Error("repeated expiry should not queue a second signal")
	default:
	}

	if h.app.Context().User != nil {
		t.Error("expected user to be cleared")
	}
	deadline := time.Now().Add(2 * time.Second)
	for h.poller.Running() {
		if time.Now().After(deadline) {
			t.Fatal("tracking still running after expiry")
		}
		time.Sleep(time.Millisecond)
	}
}
