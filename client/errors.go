package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidArgument is returned when a request is rejected by the client before
	// any network traffic, e.g., a value that is not a byte buffer.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound matches responses with HTTP status 404.
	ErrNotFound = errors.New("not found")

	// ErrBadResponse is returned when a server response can't be interpreted.
	ErrBadResponse = errors.New("bad response from DVID server")
)

// ResponseError is a non-2xx response from the DVID server.
type ResponseError struct {
	Method     string
	URL        string
	StatusCode int
	Body       []byte
}

func (e *ResponseError) Error() string {
	body := e.Body
	if len(body) > 500 {
		body = body[:500]
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.URL, e.StatusCode, string(body))
}

// Is lets errors.Is(err, ErrNotFound) succeed for 404 responses.
func (e *ResponseError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Retryable reports whether the status signals a transient condition.
func (e *ResponseError) Retryable() bool {
	return retryableStatus(e.StatusCode)
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests ||
		code == http.StatusRequestTimeout ||
		(code >= 500 && code <= 599)
}

func invalidArgf(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}
