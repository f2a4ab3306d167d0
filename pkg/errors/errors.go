// Package errors holds the sentinel errors shared by the engine, the
// searcher and the HTTP layer, and maps them to HTTP status codes.
package errors

import (
	"context"
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrEmptyQuery    = errors.New("empty query")
	ErrInvalidInput  = errors.New("invalid input")
	ErrAlreadyBuilt  = errors.New("index already built")
	ErrIndexFrozen   = errors.New("index frozen")
	ErrIndexNotBuilt = errors.New("index not built")
)

// statuses is checked in order; the first sentinel err wraps decides.
var statuses = []struct {
	target error
	status int
}{
	{ErrNotFound, http.StatusNotFound},
	{ErrEmptyQuery, http.StatusBadRequest},
	{ErrInvalidInput, http.StatusBadRequest},
	{ErrAlreadyBuilt, http.StatusConflict},
	{ErrIndexFrozen, http.StatusConflict},
	{ErrIndexNotBuilt, http.StatusServiceUnavailable},
	{context.DeadlineExceeded, http.StatusGatewayTimeout},
}

// AppError attaches a caller-facing message and, optionally, an explicit
// status to a sentinel.
type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	if e.Message == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// New wraps sentinel with message. A zero statusCode defers to the
// sentinel's mapping.
func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{Err: sentinel, Message: message, StatusCode: statusCode}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return New(sentinel, statusCode, fmt.Sprintf(format, args...))
}

// HTTPStatusCode returns the status for err: an AppError's explicit status,
// else the status of the sentinel it wraps, else 500.
func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.StatusCode != 0 {
		return appErr.StatusCode
	}
	for _, s := range statuses {
		if errors.Is(err, s.target) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}
