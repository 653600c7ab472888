package geo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"
)

// AddressUnavailable is the placeholder used when no address can be found.
const AddressUnavailable = "Address not available"

const (
	cacheTTL           = 30 * time.Minute
	maxCachedAddresses = 256
)

// GeocoderConfig holds reverse-geocoding settings.
type GeocoderConfig struct {
	URL       string
	UserAgent string
	Timeout   time.Duration
}

type cachedAddress struct {
	address   string
	fetchedAt time.Time
}

// Geocoder resolves coordinates to addresses with a Nominatim-compatible
// reverse endpoint. Results are cached per ~10m grid cell.
type Geocoder struct {
	client    *http.Client
	baseURL   string
	userAgent string
	logger    *slog.Logger

	mu         sync.RWMutex
	cache      map[string]cachedAddress
	maxEntries int
}

func NewGeocoder(cfg GeocoderConfig, logger *slog.Logger) *Geocoder {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.URL == "" {
		cfg.URL = "https://nominatim.openstreetmap.org/reverse"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Geocoder{
		client:     &http.Client{Timeout: cfg.Timeout},
		baseURL:    cfg.URL,
		userAgent:  cfg.UserAgent,
		logger:     logger,
		cache:      make(map[string]cachedAddress),
		maxEntries: maxCachedAddresses,
	}
}

func cacheKey(lat, lon float64) string {
	return fmt.Sprintf("%.4f,%.4f", lat, lon)
}

// ReverseGeocode never fails: lookup errors degrade to AddressUnavailable.
func (g *Geocoder) ReverseGeocode(ctx context.Context, lat, lon float64) string {
	addr, err := g.Lookup(ctx, lat, lon)
	if err != nil {
		g.logger.Warn("reverse geocode failed", "error", err)
		return AddressUnavailable
	}
	return addr
}

// Lookup returns the display address for the coordinates or a *GeocodeError.
// A stale cached address is returned when a refresh fails.
func (g *Geocoder) Lookup(ctx context.Context, lat, lon float64) (string, error) {
	key := cacheKey(lat, lon)

	g.mu.RLock()
	entry, ok := g.cache[key]
	g.mu.RUnlock()
	if ok && time.Since(entry.fetchedAt) < cacheTTL {
		return entry.address, nil
	}

	addr, err := g.fetch(ctx, lat, lon)
	if err != nil {
		if ok {
			return entry.address, nil
		}
		return "", &GeocodeError{Latitude: lat, Longitude: lon, Err: err}
	}

	g.store(key, addr)
	return addr, nil
}

// store caches addr under key. A full cache first drops expired entries, then
// the oldest ones.
func (g *Geocoder) store(key, addr string) {
	now := time.Now()
	g.mu.Lock()
	defer g.mu.Unlock()

	if _, ok := g.cache[key]; !ok && len(g.cache) >= g.maxEntries {
		for k, e := range g.cache {
			if now.Sub(e.fetchedAt) >= cacheTTL {
				delete(g.cache, k)
			}
		}
		for len(g.cache) >= g.maxEntries {
			var oldest string
			var at time.Time
			for k, e := range g.cache {
				if oldest == "" || e.fetchedAt.Before(at) {
					oldest, at = k, e.fetchedAt
				}
			}
			delete(g.cache, oldest)
		}
	}
	g.cache[key] = cachedAddress{address: addr, fetchedAt: now}
}

type reverseResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

func (g *Geocoder) fetch(ctx context.Context, lat, lon float64) (string, error) {
	q := url.Values{}
	q.Set("format", "json")
	q.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	if g.userAgent != "" {
		req.Header.Set("User-Agent", g.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("geocoder request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("geocoder returned status %d", resp.StatusCode)
	}

	var body reverseResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("decode geocoder response: %w", err)
	}
	if body.DisplayName == "" {
		if body.Error != "" {
			return "", errors.New(body.Error)
		}
		return "", errors.New("no address for location")
	}
	return body.DisplayName, nil
}
