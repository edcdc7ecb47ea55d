// Package apperr defines the error kinds that cross the action boundary.
//
// Workflow code returns these values; the action layer inspects them with
// errors.As and maps them to the result envelope. Anything that is not an
// *Error is treated as a downstream failure.
package apperr

import (
	"errors"
	"fmt"
)

type Kind string

const (
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindConflict     Kind = "conflict"
)

type Error struct {
	Kind    Kind
	Message string
	// Details holds per-field messages for validation errors.
	Details map[string][]string
}

func (e *Error) Error() string {
	return e.Message
}

func Unauthorized() *Error {
	return &Error{Kind: KindUnauthorized, Message: "Unauthorized"}
}

// Forbidden builds an authorization error. The reason is appended to the
// "Forbidden: " prefix.
func Forbidden(reason string) *Error {
	return &Error{Kind: KindForbidden, Message: "Forbidden: " + reason}
}

func AdminRequired() *Error {
	return Forbidden("Admin access required")
}

func NotFound(entity string) *Error {
	return &Error{Kind: KindNotFound, Message: entity + " not found"}
}

func Validation(details map[string][]string) *Error {
	return &Error{Kind: KindValidation, Message: "Validation failed", Details: details}
}

// Invalid is a single-field validation error.
func Invalid(field, format string, args ...any) *Error {
	return Validation(map[string][]string{field: {fmt.Sprintf(format, args...)}})
}

func Conflict(message string) *Error {
	return &Error{Kind: KindConflict, Message: message}
}

// As unwraps err into an *Error.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

func Is(err error, kind Kind) bool {
	e, ok := As(err)
	return ok && e.Kind == kind
}
