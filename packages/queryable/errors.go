package queryable

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNoSend is returned when a call reaches dispatch with no send observer.
var ErrNoSend = errors.New("queryable: no send observer registered")

// AbortError reports a call cancelled through its context or Init.Signal.
type AbortError struct {
	Cause error
}

// Name identifies the error kind independently of its message.
func (e *AbortError) Name() string {
	return "AbortError"
}

func (e *AbortError) Error() string {
	if e.Cause == nil {
		return "request aborted"
	}
	return fmt.Sprintf("request aborted: %v", e.Cause)
}

func (e *AbortError) Unwrap() error {
	return e.Cause
}

// HTTPRequestError is returned for responses outside the 2xx range when
// error throwing is enabled.
type HTTPRequestError struct {
	Status     int
	StatusText string
	URL        string
	Body       string
	Response   *http.Response
}

// Name identifies the error kind independently of its message.
func (e *HTTPRequestError) Name() string {
	return "HTTPRequestError"
}

func (e *HTTPRequestError) Error() string {
	msg := fmt.Sprintf("error making request to %s [%d] %s", e.URL, e.Status, e.StatusText)
	if e.Body != "" {
		msg += " ::> " + e.Body
	}
	return msg
}

// IsHTTPRequestError reports whether err wraps an *HTTPRequestError.
func IsHTTPRequestError(err error) bool {
	var target *HTTPRequestError
	return errors.As(err, &target)
}

// IsAbort reports whether err wraps an *AbortError.
func IsAbort(err error) bool {
	var target *AbortError
	return errors.As(err, &target)
}
