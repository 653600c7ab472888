package geo

import (
	"fmt"
)

// Kind classifies a location failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindPermissionDenied
	KindPositionUnavailable
	KindTimeout
	KindUnsupported
)

func (k Kind) String() string {
	switch k {
	case KindPermissionDenied:
		return "permission denied"
	case KindPositionUnavailable:
		return "position unavailable"
	case KindTimeout:
		return "timeout"
	case KindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Message is the user-facing description of the failure kind.
func (k Kind) Message() string {
	switch k {
	case KindPermissionDenied:
		return "Location access denied by user"
	case KindPositionUnavailable:
		return "Location information unavailable"
	case KindTimeout:
		return "Location request timed out"
	case KindUnsupported:
		return "Geolocation is not supported on this device"
	default:
		return "An unknown error occurred"
	}
}

// LocationError is returned by Sampler.Sample.
type LocationError struct {
	Kind Kind
	Err  error
}

func (e *LocationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("location %s: %v", e.Kind, e.Err)
	}
	return "location " + e.Kind.String()
}

func (e *LocationError) Unwrap() error { return e.Err }

// Is matches any LocationError of the same kind, so the sentinels below work
// with errors.Is.
func (e *LocationError) Is(target error) bool {
	t, ok := target.(*LocationError)
	return ok && t.Kind == e.Kind
}

var (
	ErrPermissionDenied    = &LocationError{Kind: KindPermissionDenied}
	ErrPositionUnavailable = &LocationError{Kind: KindPositionUnavailable}
	ErrTimeout             = &LocationError{Kind: KindTimeout}
	ErrUnsupported         = &LocationError{Kind: KindUnsupported}
)

// GeocodeError is a failed reverse-geocoding lookup.
type GeocodeError struct {
	Latitude  float64
	Longitude float64
	Err       error
}

func (e *GeocodeError) Error() string {
	return fmt.Sprintf("reverse geocode %.6f,%.6f: %v", e.Latitude, e.Longitude, e.Err)
}

func (e *GeocodeError) Unwrap() error { return e.Err }
