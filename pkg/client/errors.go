package client

import (
	"errors"
	"fmt"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is returned when the backoff ceiling is reached.
	ErrRetryExhausted = errors.New("retry attempts exhausted")

	// ErrContextCancelled is returned when the context is cancelled during a wait.
	ErrContextCancelled = errors.New("context cancelled")

	// ErrAPIDisabled is returned when the site answers with its "API is not
	// enabled" page. It is terminal.
	ErrAPIDisabled = errors.New("the API is not enabled on this site")

	// ErrUserBlocked is matched by UserBlockedError.
	ErrUserBlocked = errors.New("user is blocked")
)

// ErrorClass represents a classification of transport failures.
type ErrorClass string

const (
	// ErrorClassClient represents 4xx client errors.
	ErrorClassClient ErrorClass = "client"

	// ErrorClassServer represents 5xx server errors.
	ErrorClassServer ErrorClass = "server"

	// ErrorClassNetwork represents network, timeout and body read errors.
	ErrorClassNetwork ErrorClass = "network"
)

// TransportError is a failed HTTP exchange.
type TransportError struct {
	StatusCode int
	ErrorClass ErrorClass
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *TransportError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transport %s error (status %d): %s: %v",
			e.ErrorClass, e.StatusCode, e.Message, e.Err)
	}
	return fmt.Sprintf("transport %s error (status %d): %s",
		e.ErrorClass, e.StatusCode, e.Message)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *TransportError) Unwrap() error {
	return e.Err
}

// APIError is an error object returned by the API.
type APIError struct {
	Code string
	Info string
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return fmt.Sprintf("api error %s: %s", e.Code, e.Info)
}

// UserBlockedError is returned when a write request is refused because the
// account is blocked.
type UserBlockedError struct {
	Info string
}

// Error implements the error interface.
func (e *UserBlockedError) Error() string {
	return fmt.Sprintf("user blocked: %s", e.Info)
}

// Unwrap lets errors.Is(err, ErrUserBlocked) match.
func (e *UserBlockedError) Unwrap() error {
	return ErrUserBlocked
}

// errorClassOf returns the class of a transport failure, or "" for other errors.
func errorClassOf(err error) ErrorClass {
	var te *TransportError
	if errors.As(err, &te) {
		return te.ErrorClass
	}
	return ""
}
