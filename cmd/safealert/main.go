package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/dukerupert/safealert/internal/api"
	"github.com/dukerupert/safealert/internal/app"
	"github.com/dukerupert/safealert/internal/config"
	"github.com/dukerupert/safealert/internal/database"
	"github.com/dukerupert/safealert/internal/geo"
	"github.com/dukerupert/safealert/internal/logging"
	"github.com/dukerupert/safealert/internal/model"
	"github.com/dukerupert/safealert/internal/store"
	"github.com/dukerupert/safealert/internal/tracker"
	ws "github.com/dukerupert/safealert/internal/websocket"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", errorText(err))
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 || isHelp(args[0]) {
		printUsage(out)
		return nil
	}
	cmd, ok := lookupCommand(args[0])
	if !ok {
		return usageErrorf("unknown command %q, run 'safealert help'", args[0])
	}

	cfg, err := config.Load()
	if err != nil {
		return usageErrorf("configuration: %v", err)
	}
	logger := logging.Setup(cfg.LogLevel, cfg.LogFormat)

	if err := logging.InitSentry(cfg.SentryDSN, cfg.Environment, version); err != nil {
		logger.Warn("sentry init failed", "error", err)
	}
	defer logging.FlushSentry()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rt, err := setup(cfg, logger, out)
	if err != nil {
		return err
	}
	defer rt.close()

	if err := cmd.run(ctx, rt, args[1:]); err != nil {
		logger.Debug("command failed", "command", cmd.name, "error", err)
		if !isExpected(err) {
			logging.CaptureError(err, map[string]string{"command": cmd.name})
		}
		return err
	}
	return nil
}

// runtime is the wired client shared by every command.
type runtime struct {
	cfg      config.Config
	logger   *slog.Logger
	out      io.Writer
	db       *sql.DB
	sessions *store.SessionStore
	poller   *tracker.Poller
	hub      *ws.Hub
	app      *app.App
}

func setup(cfg config.Config, logger *slog.Logger, out io.Writer) (*runtime, error) {
	db, err := database.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	state := store.NewStateStore(db)
	if cfg.Passphrase != "" {
		if err := state.Unlock(cfg.Passphrase); err != nil {
			db.Close()
			if errors.Is(err, store.ErrWrongPassphrase) {
				return nil, usageErrorf("SAFEALERT_PASSPHRASE does not match this database")
			}
			return nil, fmt.Errorf("unlock state: %w", err)
		}
	}
	sessions := store.NewSessionStore(state)
	activity := store.NewActivityStore(state)

	hub := ws.NewHub(logger.With("component", "websocket"))
	rt := &runtime{
		cfg:      cfg,
		logger:   logger,
		out:      out,
		db:       db,
		sessions: sessions,
		hub:      hub,
	}

	// The expiry hook needs the app, which needs the client.
	var a *app.App
	client := api.NewClient(api.Config{
		BaseURL:   cfg.APIURL,
		Timeout:   cfg.HTTPTimeout,
		UserAgent: "safealert/" + version,
	}, sessions,
		api.WithLogger(logger.With("component", "api")),
		api.WithSessionExpired(func() {
			if a != nil {
				a.HandleSessionExpired()
			}
		}),
	)

	sampler := geo.NewSampler(sensorFor(cfg.Sensor))
	geocoder := geo.NewGeocoder(geo.GeocoderConfig{
		URL:       cfg.Geocoder.URL,
		UserAgent: cfg.Geocoder.UserAgent,
		Timeout:   cfg.HTTPTimeout,
	}, logger.With("component", "geocoder"))

	rt.poller = tracker.NewPoller(client, sampler, geocoder,
		tracker.WithInterval(cfg.PollInterval),
		tracker.WithLogger(logger.With("component", "tracker")),
		tracker.WithUpdateHook(func(t model.Tracker) {
			hub.Broadcast(ws.TrackerMessage(t))
		}),
	)

	a = app.New(app.Deps{
		Client:   client,
		Sessions: sessions,
		Activity: activity,
		Sampler:  sampler,
		Geocoder: geocoder,
		Poller:   rt.poller,
		Logger:   logger.With("component", "app"),
		OnActivity: func(e model.ActivityEntry) {
			hub.Broadcast(ws.ActivityMessage(e))
		},
	})
	rt.app = a
	return rt, nil
}

func (rt *runtime) close() {
	rt.poller.Stop()
	if err := rt.db.Close(); err != nil {
		rt.logger.Error("close database", "error", err)
	}
}

// sensorFor picks the location source: gpsd when configured, else fixed
// coordinates, else none.
func sensorFor(cfg config.SensorConfig) geo.Sensor {
	switch {
	case cfg.GPSDAddr != "":
		return geo.GPSDSensor{Addr: cfg.GPSDAddr}
	case cfg.Latitude != nil && cfg.Longitude != nil:
		return geo.StaticSensor{Latitude: *cfg.Latitude, Longitude: *cfg.Longitude, Accuracy: cfg.Accuracy}
	default:
		return nil
	}
}

type usageError struct {
	msg string
}

func (e *usageError) Error() string { return e.msg }

func usageErrorf(format string, args ...any) error {
	return &usageError{msg: fmt.Sprintf(format, args...)}
}

// errorText is what the user sees for a failed command.
func errorText(err error) string {
	var ue *usageError
	switch {
	case errors.As(err, &ue):
		return ue.msg
	case errors.Is(err, store.ErrLocked):
		return "The saved session is encrypted. Set SAFEALERT_PASSPHRASE to unlock it."
	default:
		return app.UserMessage(err)
	}
}

// isExpected reports errors caused by user input or the environment rather
// than a defect.
func isExpected(err error) bool {
	var ue *usageError
	var ve *app.ValidationError
	var le *geo.LocationError
	var ne *api.NetworkError
	var re *api.RequestError
	return errors.As(err, &ue) ||
		errors.As(err, &ve) ||
		errors.As(err, &le) ||
		errors.As(err, &ne) ||
		errors.As(err, &re) ||
		errors.Is(err, api.ErrSessionExpired) ||
		errors.Is(err, app.ErrNotLoggedIn) ||
		errors.Is(err, app.ErrNoTracker) ||
		errors.Is(err, store.ErrLocked)
}
