package services

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrInvalidCredentials covers both unknown users and wrong passwords.
	ErrInvalidCredentials = errors.New("Invalid credentials")

	// ErrAccountBlocked is returned while a lockout window is open.
	ErrAccountBlocked = errors.New("Account is temporarily blocked due to multiple failed login attempts. Please try again later.")

	// ErrUnauthenticated is returned for missing, expired or revoked tokens.
	ErrUnauthenticated = errors.New("Unauthenticated")

	// ErrForbidden is the sentinel wrapped by every ForbiddenError.
	ErrForbidden = errors.New("forbidden")

	// ErrNotMeeting is returned when a decision targets a document outside
	// the Rapat phase.
	ErrNotMeeting = errors.New("Document is not a meeting")
)

// ForbiddenError is an authorization failure with a client-facing message.
type ForbiddenError struct {
	Message string
}

func (e *ForbiddenError) Error() string {
	return e.Message
}

func (e *ForbiddenError) Unwrap() error {
	return ErrForbidden
}

func forbidden(message string) error {
	return &ForbiddenError{Message: message}
}

// ValidationError carries field-level messages keyed by request field name.
type ValidationError struct {
	Message string
	Fields  map[string][]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e.Fields[k], ", ")))
	}
	return e.Message + " (" + strings.Join(parts, "; ") + ")"
}

// Add appends a message for field.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[field] = append(e.Fields[field], message)
}

func newValidationError(field, message string) *ValidationError {
	v := &ValidationError{Message: "Validasi gagal"}
	v.Add(field, message)
	return v
}
