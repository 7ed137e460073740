package client

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError is a non-2xx reply from the server, carrying the error message of
// the response envelope.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s (status %d)", e.Message, e.StatusCode)
}

// Unwrap lets callers match 401 replies with errors.Is(err, ErrUnauthorized)
// and 5xx replies with ErrUnavailable.
func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrUnavailable
	}
	return nil
}
