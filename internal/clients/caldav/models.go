package caldav

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotConfigured is returned by operations that require CalDAV
// credentials when url, username or password is empty. Callers treat
// it as "feature disabled", not as a failure.
var ErrNotConfigured = errors.New("caldav not configured")

// StatusError is a connection-test failure carrying the HTTP status
// the server answered with.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	switch e.Code {
	case http.StatusUnauthorized:
		return "authentication failed, check username and password"
	case http.StatusForbidden:
		return "access forbidden, check permissions"
	default:
		return fmt.Sprintf("connection failed with HTTP status %d", e.Code)
	}
}

// AuthFailure reports whether the error is an explicit credential or
// permission rejection rather than a generic connection problem.
func (e *StatusError) AuthFailure() bool {
	return e.Code == http.StatusUnauthorized || e.Code == http.StatusForbidden
}
