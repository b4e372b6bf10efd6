// Package apperror defines the error taxonomy surfaced to API callers.
package apperror

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// Machine-readable sub-codes carried by forbidden errors.
const (
	CodeNotVerified = "NOT_VERIFIED"
	CodeNotOwner    = "NOT_OWNER"
)

// Error is an API-facing error with a stable HTTP status and code.
type Error struct {
	Status  int
	Code    string
	Message string
	// Details are merged into the JSON body (e.g. the current verification status).
	Details fiber.Map
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, e.Code, e.Message)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

// With returns a copy of e carrying an extra detail field.
func (e *Error) With(key string, value any) *Error {
	out := *e
	out.Details = fiber.Map{}
	for k, v := range e.Details {
		out.Details[k] = v
	}
	out.Details[key] = value
	return &out
}

// Validation reports malformed or missing input (400).
func Validation(msg string) *Error {
	return &Error{Status: fiber.StatusBadRequest, Code: "VALIDATION_ERROR", Message: msg}
}

// Unauthenticated reports missing or invalid credentials (401).
func Unauthenticated(msg string) *Error {
	if msg == "" {
		msg = "Authentication credentials were not provided or are invalid"
	}
	return &Error{Status: fiber.StatusUnauthorized, Code: "UNAUTHORIZED", Message: msg}
}

// Forbidden reports an authenticated caller without rights (403). An empty code
// falls back to FORBIDDEN.
func Forbidden(code, msg string) *Error {
	if code == "" {
		code = "FORBIDDEN"
	}
	if msg == "" {
		msg = "You do not have permission to perform this action"
	}
	return &Error{Status: fiber.StatusForbidden, Code: code, Message: msg}
}

// NotFound reports a referenced entity that does not exist (404).
func NotFound(what string) *Error {
	return &Error{Status: fiber.StatusNotFound, Code: "NOT_FOUND", Message: what + " not found"}
}

// Conflict reports a state conflict (409).
func Conflict(msg string) *Error {
	return &Error{Status: fiber.StatusConflict, Code: "CONFLICT", Message: msg}
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsCode reports whether err carries the given machine-readable code.
func IsCode(err error, code string) bool {
	e, ok := As(err)
	return ok && e.Code == code
}
