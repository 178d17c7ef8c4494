package httpclient

import (
	goerrors "errors"
	"fmt"
	"net/http"

	"github.com/petalpost/petalpost/internal/errors"
)

// maxResponseExcerpt bounds how much of a failed response ends up in logs
const maxResponseExcerpt = 256

// Error is a non-2xx response from a remote endpoint
type Error struct {
	*errors.InternalError
	StatusCode int
	Response   []byte
}

func NewError(statusCode int, response []byte) *Error {
	return &Error{
		InternalError: errors.New(errors.ErrCodeHTTPClient, fmt.Sprintf("remote returned %d", statusCode)),
		StatusCode:    statusCode,
		Response:      response,
	}
}

func (e *Error) Unwrap() error {
	return e.InternalError.Unwrap()
}

func (e *Error) Error() string {
	return e.InternalError.Error()
}

// Retryable reports whether the remote may accept the same request later
func (e *Error) Retryable() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout,
		http.StatusTooManyRequests,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return e.StatusCode >= http.StatusInternalServerError
}

// Excerpt returns the start of the response body for logging
func (e *Error) Excerpt() string {
	if len(e.Response) <= maxResponseExcerpt {
		return string(e.Response)
	}
	return string(e.Response[:maxResponseExcerpt]) + "..."
}

// IsHTTPError unwraps err to an *Error
func IsHTTPError(err error) (*Error, bool) {
	var httpErr *Error
	if goerrors.As(err, &httpErr) {
		return httpErr, true
	}
	return nil, false
}
