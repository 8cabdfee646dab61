package client

import (
	"errors"
	"fmt"
)

// Sentinel errors for session and authorization failures.
// Use errors.Is() for matching - never compare error strings.
var (
	// ErrUnauthenticated means no usable credential exists and a refresh did not produce one.
	// The session has been (or never was) established; the user must log in again.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidCredentials means the login exchange was rejected. Session state is untouched.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrTransientAuth means a refresh exchange failed for reasons unrelated to the
	// refresh token itself (network, timeout, server error). The session survives.
	ErrTransientAuth = errors.New("transient authentication failure")

	// ErrFatalAuth means the server rejected the refresh token. The session is torn down.
	ErrFatalAuth = errors.New("fatal authentication failure")

	// ErrUnavailable is a downstream or network failure unrelated to authentication
	ErrUnavailable = errors.New("service unavailable")

	// ErrForbidden means the request was authenticated but not permitted
	ErrForbidden = errors.New("permission denied")

	// ErrInvalidMargin is a configuration error: the expiry margin must be positive
	ErrInvalidMargin = errors.New("expiry margin must be positive")

	// ErrPartialCredentials is returned when saving a pair with a missing access or refresh token
	ErrPartialCredentials = errors.New("credential pair must have both access and refresh tokens")
)

// IsRetryable returns true if the error represents a transient condition
// that may succeed on retry without logging in again.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrTransientAuth) || errors.Is(err, ErrUnavailable)
}

// IsAuthFailure returns true if the error means the session is gone
func IsAuthFailure(err error) bool {
	return errors.Is(err, ErrUnauthenticated) || errors.Is(err, ErrFatalAuth)
}

// EndpointError is a non-2xx answer from the token endpoint.
// It unwraps to the class sentinel chosen for it (ErrInvalidCredentials,
// ErrFatalAuth, ErrTransientAuth or ErrUnavailable).
type EndpointError struct {
	Op         string // "obtain" or "refresh"
	StatusCode int
	Code       string
	Detail     string
	Class      error
}

func (e *EndpointError) Error() string {
	msg := fmt.Sprintf("token %s failed: HTTP %d", e.Op, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Code != "" {
		msg += " (" + e.Code + ")"
	}
	return msg
}

func (e *EndpointError) Unwrap() error {
	return e.Class
}

// fatalError marks a refresh failure that also ended the session. It matches
// both ErrFatalAuth (the cause) and ErrUnauthenticated (the outcome).
type fatalError struct {
	cause error
}

func (e *fatalError) Error() string {
	return "session ended: " + e.cause.Error()
}

func (e *fatalError) Unwrap() []error {
	return []error{ErrUnauthenticated, e.cause}
}
