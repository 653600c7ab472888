package api

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when a token refresh fails. The session has
// already been cleared; the caller should send the user back to login.
var ErrSessionExpired = errors.New("session expired, please login again")

const genericFailure = "Request failed"

// NetworkError is a transport-level failure. It is never retried.
type NetworkError struct {
	Method   string
	Endpoint string
	Err      error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.Endpoint, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// RequestError is a failure reported by the backend, either through a non-2xx
// status or a success:false envelope.
type RequestError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request failed (%d): %s", e.StatusCode, e.Message)
}

func (e *RequestError) Unwrap() error { return e.Err }

// StatusCode returns the HTTP status carried by a RequestError in err's
// chain, or 0.
func StatusCode(err error) int {
	var re *RequestError
	if errors.As(err, &re) {
		return re.StatusCode
	}
	return 0
}
