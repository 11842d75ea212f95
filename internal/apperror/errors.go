// Package apperror defines the error shape every handler returns and the
// normalization rules applied before an error is shown to a client.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with an HTTP status. Operational errors are expected,
// client-caused failures whose message is safe to return.
type AppError struct {
	StatusCode  int    `json:"statusCode"`
	Status      string `json:"status"`
	Message     string `json:"message"`
	Operational bool   `json:"isOperational"`
	Err         error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error { return e.Err }

// New returns an operational error.
func New(statusCode int, message string) *AppError {
	return &AppError{
		StatusCode:  statusCode,
		Status:      statusFor(statusCode),
		Message:     message,
		Operational: true,
	}
}

// Newf is New with formatting.
func Newf(statusCode int, format string, args ...any) *AppError {
	return New(statusCode, fmt.Sprintf(format, args...))
}

// Internal wraps an unexpected failure. Its message never reaches clients in
// production.
func Internal(err error) *AppError {
	return &AppError{
		StatusCode: http.StatusInternalServerError,
		Status:     "error",
		Message:    err.Error(),
		Err:        err,
	}
}

func BadRequest(message string) *AppError   { return New(http.StatusBadRequest, message) }
func Unauthorized(message string) *AppError { return New(http.StatusUnauthorized, message) }
func Forbidden(message string) *AppError    { return New(http.StatusForbidden, message) }

// NotFound is the factory handlers' answer for a missing document.
func NotFound() *AppError {
	return New(http.StatusNotFound, "No document found with that ID!")
}

// CastError reports a value that could not be converted to the type of the
// field it targets, e.g. a malformed ObjectID.
type CastError struct {
	Path  string
	Value string
	Err   error
}

func (e *CastError) Error() string {
	return fmt.Sprintf("cast to %s failed for value %q", e.Path, e.Value)
}

func (e *CastError) Unwrap() error { return e.Err }

func statusFor(code int) string {
	if code >= 400 && code < 500 {
		return "fail"
	}
	return "error"
}

// As is a small helper around errors.As for *AppError.
func As(err error) (*AppError, bool) {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
