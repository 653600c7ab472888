package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIURL      = "https://safe-app-backend-p8rf.onrender.com/api"
	DefaultGeocoderURL = "https://nominatim.openstreetmap.org/reverse"
	DefaultUserAgent   = "safealert/1.0 (+https://github.com/dukerupert/safealert)"
)

// Config holds client configuration read from the environment.
type Config struct {
	APIURL      string
	DBPath      string
	Passphrase  string
	HTTPTimeout time.Duration

	LogLevel  string
	LogFormat string

	Geocoder GeocoderConfig
	Sensor   SensorConfig

	PollInterval   time.Duration
	DashboardAddr  string
	DashboardToken string

	SentryDSN   string
	Environment string
}

type GeocoderConfig struct {
	URL       string
	UserAgent string
}

// SensorConfig selects the location source. GPSDAddr wins over fixed
// coordinates; with neither set the sampler reports Unsupported.
type SensorConfig struct {
	GPSDAddr  string
	Latitude  *float64
	Longitude *float64
	Accuracy  float64
}

// Load reads an optional .env file from the working directory, then the
// environment. Malformed numeric or duration values are errors.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromLookup(os.LookupEnv)
}

// FromLookup builds a Config using lookup for every key.
func FromLookup(lookup func(string) (string, bool)) (Config, error) {
	get := func(key, def string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		return def
	}

	cfg := Config{
		APIURL:         strings.TrimRight(get("SAFEALERT_API_URL", DefaultAPIURL), "/"),
		DBPath:         get("SAFEALERT_DB_PATH", "safealert.db"),
		Passphrase:     get("SAFEALERT_PASSPHRASE", ""),
		LogLevel:       get("SAFEALERT_LOG_LEVEL", "info"),
		LogFormat:      get("SAFEALERT_LOG_FORMAT", "text"),
		DashboardAddr:  get("SAFEALERT_DASHBOARD_ADDR", ""),
		DashboardToken: get("SAFEALERT_DASHBOARD_TOKEN", ""),
		SentryDSN:      get("SAFEALERT_SENTRY_DSN", ""),
		Environment:    get("SAFEALERT_ENV", "development"),
		Geocoder: GeocoderConfig{
			URL:       get("SAFEALERT_GEOCODER_URL", DefaultGeocoderURL),
			UserAgent: get("SAFEALERT_GEOCODER_USER_AGENT", DefaultUserAgent),
		},
		Sensor: SensorConfig{
			GPSDAddr: get("SAFEALERT_GPSD_ADDR", ""),
		},
	}

	var err error
	if cfg.HTTPTimeout, err = parseDuration(get("SAFEALERT_HTTP_TIMEOUT", "15s")); err != nil {
		return Config{}, fmt.Errorf("SAFEALERT_HTTP_TIMEOUT: %w", err)
	}
	if cfg.PollInterval, err = parseDuration(get("SAFEALERT_POLL_INTERVAL", "30s")); err != nil {
		return Config{}, fmt.Errorf("SAFEALERT_POLL_INTERVAL: %w", err)
	}

	lat, lon := get("SAFEALERT_LATITUDE", ""), get("SAFEALERT_LONGITUDE", "")
	if (lat == "") != (lon == "") {
		return Config{}, fmt.Errorf("SAFEALERT_LATITUDE and SAFEALERT_LONGITUDE must be set together")
	}
	if lat != "" {
		la, err := strconv.ParseFloat(lat, 64)
		if err != nil || la < -90 || la > 90 {
			return Config{}, fmt.Errorf("SAFEALERT_LATITUDE: invalid value %q", lat)
		}
		lo, err := strconv.ParseFloat(lon, 64)
		if err != nil || lo < -180 || lo > 180 {
			return Config{}, fmt.Errorf("SAFEALERT_LONGITUDE: invalid value %q", lon)
		}
		cfg.Sensor.Latitude, cfg.Sensor.Longitude = &la, &lo
	}
	if acc := get("SAFEALERT_ACCURACY", ""); acc != "" {
		a, err := strconv.ParseFloat(acc, 64)
		if err != nil || a < 0 {
			return Config{}, fmt.Errorf("SAFEALERT_ACCURACY: invalid value %q", acc)
		}
		cfg.Sensor.Accuracy = a
	}

	return cfg, nil
}

// parseDuration accepts Go duration strings or a bare number of seconds.
func parseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		if n <= 0 {
			return 0, fmt.Errorf("must be positive, got %d", n)
		}
		return time.Duration(n) * time.Second, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("must be positive, got %s", d)
	}
	return d, nil
}
