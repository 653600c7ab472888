package dashboard

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/dukerupert/safealert/internal/app"
	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/middleware"
	"github.com/dukerupert/safealert/internal/model"
	ws "github.com/dukerupert/safealert/internal/websocket"
)

//go:embed templates/*.html
var templateFS embed.FS

const (
	apiRequestLimit  = 120
	maxTokenFailures = 5
	failureWindow    = 15 * time.Minute
	cleanupInterval  = 5 * time.Minute
	shutdownTimeout  = 5 * time.Second
)

// StateSource supplies what the dashboard shows.
type StateSource interface {
	Context() app.Context
	RecentActivity() ([]model.ActivityEntry, error)
}

// Server is the local read-only dashboard: a map page for the followed
// tracker, JSON endpoints and a websocket feed of live updates.
type Server struct {
	state    StateSource
	hub      *ws.Hub
	token    string
	requests *middleware.Limiter
	failures *middleware.Limiter
	tmpl     *template.Template
	logger   *slog.Logger
}

// New builds a dashboard. A non-empty token is required on every route
// except /health.
func New(state StateSource, hub *ws.Hub, token string, logger *slog.Logger) *Server {
	tmpl := template.Must(template.New("").Funcs(template.FuncMap{
		"coords": geo.FormatCoordinates,
		"when":   func(t time.Time) string { return t.Local().Format("Jan 2 15:04") },
	}).ParseFS(templateFS, "templates/*.html"))

	return &Server{
		state:    state,
		hub:      hub,
		token:    token,
		requests: middleware.NewLimiter(apiRequestLimit, time.Minute),
		failures: middleware.NewLimiter(maxTokenFailures, failureWindow),
		tmpl:     tmpl,
		logger:   logger,
	}
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()
	outerMux.HandleFunc("GET /health", s.healthHandler)

	protectedMux := http.NewServeMux()
	protectedMux.HandleFunc("GET /{$}", s.pageHandler)
	protectedMux.HandleFunc("GET /api/tracker", s.rateLimited(s.trackerHandler))
	protectedMux.HandleFunc("GET /api/activity", s.rateLimited(s.activityHandler))
	protectedMux.HandleFunc("GET /ws", ws.Handler(s.hub, s.initialMessages, s.logger.With("component", "websocket")))

	requireToken := middleware.RequireToken(s.token, s.failures, s.logger)
	outerMux.Handle("/", requireToken(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

// Run serves the dashboard on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Run on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	// No WriteTimeout: websocket connections outlive any single write deadline.
	httpServer := &http.Server{
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go s.cleanupLoop(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("dashboard listening", "addr", ln.Addr().String())
		errCh <- httpServer.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve dashboard: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown dashboard: %w", err)
	}
	return nil
}

func (s *Server) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.requests.Cleanup()
			s.failures.Cleanup()
		}
	}
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.requests, middleware.RealIP)
	return rl(h).ServeHTTP
}

func (s *Server) initialMessages() []ws.Message {
	c := s.state.Context()
	if c.Tracker == nil {
		return nil
	}
	return []ws.Message{ws.TrackerMessage(*c.Tracker)}
}

type pageData struct {
	User     *model.User
	Tracker  *model.Tracker
	MapURL   string
	MapsLink string
	Activity []model.ActivityEntry
}

func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	c := s.state.Context()
	data := pageData{User: c.User, Tracker: c.Tracker}
	if c.Tracker != nil {
		msg := ws.TrackerMessage(*c.Tracker)
		data.MapURL, data.MapsLink = msg.MapURL, msg.MapsLink
	}

	activity, err := s.state.RecentActivity()
	if err != nil {
		s.logger.Error("load activity", "error", err)
	}
	data.Activity = activity

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := s.tmpl.ExecuteTemplate(w, "dashboard.html", data); err != nil {
		s.logger.Error("render dashboard", "error", err)
		http.Error(w, "template error", http.StatusInternalServerError)
	}
}

func (s *Server) trackerHandler(w http.ResponseWriter, r *http.Request) {
	c := s.state.Context()
	if c.Tracker == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "no tracker"})
		return
	}
	writeJSON(w, http.StatusOK, ws.TrackerMessage(*c.Tracker))
}

func (s *Server) activityHandler(w http.ResponseWriter, r *http.Request) {
	activity, err := s.state.RecentActivity()
	if err != nil {
		s.logger.Error("load activity", "error", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load activity"})
		return
	}
	if activity == nil {
		activity = []model.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, activity)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "clients": s.hub.ClientCount()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
