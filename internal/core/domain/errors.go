package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind drives the propagation policy: network errors retry, auth errors
// surface immediately, validation errors surface with a user message, state
// errors log and fail closed.
type ErrorKind int

const (
	KindNetwork ErrorKind = iota
	KindAuth
	KindValidation
	KindState
)

// NetworkError is a transient, retryable failure reaching the backend.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("%s: network error: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError is non-retryable; the user must re-authenticate or rejoin.
type AuthError struct {
	Op  string
	Err error
}

func (e *AuthError) Error() string { return fmt.Sprintf("%s: auth error: %v", e.Op, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ValidationError is bad input, e.g. an unknown session code.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason) }

// StateError is an invalid transition attempt. Callers log it and treat the
// operation as a no-op rather than corrupting state.
type StateError struct {
	Entity string
	From   string
	To     string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("invalid %s transition: %s -> %s", e.Entity, e.From, e.To)
}

// Classify maps an error onto the taxonomy. Typed errors win; untyped errors
// fall back to pattern matching, and anything unrecognized defaults to network
// (retryable) since transport failures dominate in practice.
func Classify(err error) ErrorKind {
	var netErr *NetworkError
	var authErr *AuthError
	var valErr *ValidationError
	var stateErr *StateError

	switch {
	case errors.As(err, &authErr):
		return KindAuth
	case errors.As(err, &valErr):
		return KindValidation
	case errors.As(err, &stateErr):
		return KindState
	case errors.As(err, &netErr):
		return KindNetwork
	}

	s := strings.ToLower(err.Error())
	if strings.Contains(s, "401") || strings.Contains(s, "403") ||
		strings.Contains(s, "unauthorized") || strings.Contains(s, "forbidden") ||
		strings.Contains(s, "invalid token") || strings.Contains(s, "authentication") {
		return KindAuth
	}
	if strings.Contains(s, "not found") || strings.Contains(s, "invalid") {
		return KindValidation
	}
	return KindNetwork
}

// Retryable reports whether the error should be retried with backoff.
func Retryable(err error) bool {
	return err != nil && Classify(err) == KindNetwork
}
