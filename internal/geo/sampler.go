package geo

import (
	"context"
	"errors"
	"net"
	"os"
	"sync"
	"time"

	"github.com/dukerupert/safealert/internal/model"
)

const DefaultTimeout = 10 * time.Second

// Options mirror the usual geolocation request options.
type Options struct {
	EnableHighAccuracy bool
	Timeout            time.Duration
	// MaximumAge accepts a cached fix up to this old. Zero forces a fresh read.
	MaximumAge time.Duration
}

func DefaultOptions() Options {
	return Options{EnableHighAccuracy: true, Timeout: DefaultTimeout}
}

// Sensor is a source of position fixes.
type Sensor interface {
	Read(ctx context.Context, highAccuracy bool) (model.LocationFix, error)
}

// Sampler takes single-shot location samples from a Sensor.
type Sampler struct {
	sensor Sensor
	now    func() time.Time

	mu   sync.Mutex
	last *model.LocationFix
}

// NewSampler returns a sampler over sensor. A nil sensor makes every sample
// fail with KindUnsupported.
func NewSampler(sensor Sensor) *Sampler {
	return &Sampler{sensor: sensor, now: time.Now}
}

// Sample returns one fix or a *LocationError.
func (s *Sampler) Sample(ctx context.Context, opts Options) (model.LocationFix, error) {
	if s.sensor == nil {
		return model.LocationFix{}, &LocationError{Kind: KindUnsupported}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}

	if opts.MaximumAge > 0 {
		s.mu.Lock()
		last := s.last
		s.mu.Unlock()
		if last != nil && s.now().Sub(last.Timestamp) <= opts.MaximumAge {
			return *last, nil
		}
	}

	readCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	fix, err := s.sensor.Read(readCtx, opts.EnableHighAccuracy)
	if err != nil {
		return model.LocationFix{}, classify(err)
	}
	if !validCoordinates(fix.Latitude, fix.Longitude) {
		return model.LocationFix{}, &LocationError{Kind: KindPositionUnavailable, Err: errors.New("coordinates out of range")}
	}
	if fix.Timestamp.IsZero() {
		fix.Timestamp = s.now().UTC()
	}

	s.mu.Lock()
	cached := fix
	s.last = &cached
	s.mu.Unlock()
	return fix, nil
}

func classify(err error) error {
	var le *LocationError
	if errors.As(err, &le) {
		return le
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return &LocationError{Kind: KindTimeout, Err: err}
	case errors.Is(err, os.ErrPermission):
		return &LocationError{Kind: KindPermissionDenied, Err: err}
	}
	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return &LocationError{Kind: KindTimeout, Err: err}
		}
		return &LocationError{Kind: KindPositionUnavailable, Err: err}
	}
	return &LocationError{Kind: KindUnknown, Err: err}
}

func validCoordinates(lat, lon float64) bool {
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// StaticSensor always reports the same position.
type StaticSensor struct {
	Latitude  float64
	Longitude float64
	Accuracy  float64
}

func (s StaticSensor) Read(ctx context.Context, _ bool) (model.LocationFix, error) {
	if err := ctx.Err(); err != nil {
		return model.LocationFix{}, err
	}
	return model.LocationFix{
		Latitude:  s.Latitude,
		Longitude: s.Longitude,
		Accuracy:  s.Accuracy,
		Timestamp: time.Now().UTC(),
	}, nil
}
