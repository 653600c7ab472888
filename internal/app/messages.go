package app

import (
	"errors"

	"github.com/dukerupert/safealert/internal/api"
	"github.com/dukerupert/safealert/internal/geo"
)

// UserMessage turns an error from any controller into text fit to show the
// user.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	var ve *ValidationError
	var le *geo.LocationError
	var ne *api.NetworkError
	var re *api.RequestError
	switch {
	case errors.As(err, &ve):
		return ve.Message
	case errors.Is(err, api.ErrSessionExpired):
		return "Session expired. Please login again."
	case errors.Is(err, ErrNotLoggedIn):
		return "Please login first."
	case errors.Is(err, ErrNoTracker):
		return "No tracker found. Create one first."
	case errors.As(err, &le):
		return le.Kind.Message()
	case errors.As(err, &ne):
		return "Unable to reach the server. Check your connection and try again."
	case errors.As(err, &re):
		return re.Message
	default:
		return "An unexpected error occurred. Please try again."
	}
}
