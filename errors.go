package storefront

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrBadRequest is returned when the server rejects the request as malformed
	ErrBadRequest = errors.New("bad request")

	// ErrInvalidSignature is returned when the signature does not match the address
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrUnauthorized)

	// ErrUnauthorized is returned when the server refuses the credentials
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound is returned when the identity no longer exists
	ErrNotFound = errors.New("not found")

	// ErrRateLimited is returned when the server throttles the caller
	ErrRateLimited = errors.New("rate limited")

	// ErrServer is returned for any 5xx response
	ErrServer = errors.New("server error")

	// ErrInvalidResponse is returned when a success response lacks expected fields
	ErrInvalidResponse = errors.New("invalid response")
)

// APIError is an error response from the auth service
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"error"`

	// Set only when the signature belongs to a different wallet
	Expected string `json:"expected,omitempty"`
	Received string `json:"received,omitempty"`
}

func (e *APIError) Error() string {
	if e.Expected != "" || e.Received != "" {
		return fmt.Sprintf("%d: %s (expected %s, received %s)", e.StatusCode, e.Message, e.Expected, e.Received)
	}
	return fmt.Sprintf("%d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusUnauthorized && e.Message == "Invalid signature":
		return ErrInvalidSignature
	case e.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case e.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return ErrRateLimited
	case e.StatusCode >= http.StatusInternalServerError:
		return ErrServer
	case e.StatusCode >= http.StatusBadRequest:
		return ErrBadRequest
	default:
		return nil
	}
}
