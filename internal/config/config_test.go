package config

import (
	"testing"
	"time"
)

func lookupFrom(env map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
}

func TestDefaults(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(nil))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != DefaultAPIURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, DefaultAPIURL)
	}
	if cfg.DBPath != "safealert.db" {
		t.Errorf("DBPath = %q, want %q", cfg.DBPath, "safealert.db")
	}
	if cfg.PollInterval != 30*time.Second {
		t.Errorf("PollInterval = %v, want 30s", cfg.PollInterval)
	}
	if cfg.HTTPTimeout != 15*time.Second {
		t.Errorf("HTTPTimeout = %v, want 15s", cfg.HTTPTimeout)
	}
	if cfg.Sensor.Latitude != nil {
		t.Error("expected no fixed coordinates by default")
	}
	if cfg.Geocoder.URL != DefaultGeocoderURL {
		t.Errorf("Geocoder.URL = %q, want %q", cfg.Geocoder.URL, DefaultGeocoderURL)
	}
}

func TestOverrides(t *testing.T) {
	cfg, err := FromLookup(lookupFrom(map[string]string{
		"SAFEALERT_API_URL":         "http://localhost:5000/api/",
		"SAFEALERT_POLL_INTERVAL":   "10",
		"SAFEALERT_HTTP_TIMEOUT":    "2s",
		"SAFEALERT_LATITUDE":        "-33.9249",
		"SAFEALERT_LONGITUDE":       "18.4241",
		"SAFEALERT_ACCURACY":        "12.5",
		"SAFEALERT_DASHBOARD_TOKEN": "s3cret",
	}))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.APIURL != "http://localhost:5000/api" {
		t.Errorf("APIURL = %q, want trailing slash trimmed", cfg.APIURL)
	}
	if cfg.PollInterval != 10*time.Second {
		t.Errorf("PollInterval = %v, want 10s", cfg.PollInterval)
	}
	if cfg.HTTPTimeout != 2*time.Second {
		t.Errorf("HTTPTimeout = %v, want 2s", cfg.HTTPTimeout)
	}
	if cfg.Sensor.Latitude == nil || *cfg.Sensor.Latitude != -33.9249 {
		t.Errorf("Latitude = %v, want -33.9249", cfg.Sensor.Latitude)
	}
	if cfg.Sensor.Accuracy != 12.5 {
		t.Errorf("Accuracy = %v, want 12.5", cfg.Sensor.Accuracy)
	}
	if cfg.DashboardToken != "s3cret" {
		t.Errorf("DashboardToken = %q, want %q", cfg.DashboardToken, "s3cret")
	}
}

func TestInvalidValues(t *testing.T) {
	bad := []map[string]string{
		{"SAFEALERT_POLL_INTERVAL": "soon"},
		{"SAFEALERT_POLL_INTERVAL": "0"},
		{"SAFEALERT_LATITUDE": "10"},
		{"SAFEALERT_LATITUDE": "95", "SAFEALERT_LONGITUDE": "10"},
		{"SAFEALERT_ACCURACY": "-1"},
	}
	for _, env := range bad {
		if _, err := FromLookup(lookupFrom(env)); err == nil {
			t.Errorf("expected error for %v", env)
		}
	}
}
