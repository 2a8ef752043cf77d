package ga4

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/mkoziy/ga4mirror/internal/models"
)

// ErrTooManyDimensions is returned before calling the Data API with more
// dimensions than one report accepts.
var ErrTooManyDimensions = errors.New("too many dimensions for one report call")

// StatusError is a non-2xx answer from the analytics APIs.
type StatusError struct {
	Endpoint   string
	StatusCode int
	Status     string
	Message    string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s: status %d %s: %s", e.Endpoint, e.StatusCode, e.Status, e.Message)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Unwrap maps the status onto the model sentinels so callers can use errors.Is.
func (e *StatusError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return models.ErrRemoteNotFound
	case e.StatusCode == http.StatusUnauthorized,
		e.StatusCode == http.StatusForbidden,
		e.StatusCode == http.StatusTooManyRequests,
		e.StatusCode >= 500:
		return models.ErrRemoteUnavailable
	default:
		return nil
	}
}

// retryable reports whether the request may succeed if sent again.
func (e *StatusError) retryable() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500
}

// transportError wraps failures below HTTP, including per-call deadlines.
type transportError struct {
	endpoint string
	err      error
}

func (e *transportError) Error() string {
	return fmt.Sprintf("%s: %v", e.endpoint, e.err)
}

func (e *transportError) Unwrap() []error {
	return []error{models.ErrRemoteUnavailable, e.err}
}

// unhealthy reports whether err says something about the provider's health,
// as opposed to a bad request or a missing resource.
func unhealthy(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.retryable()
	}
	var te *transportError
	return errors.As(err, &te)
}
