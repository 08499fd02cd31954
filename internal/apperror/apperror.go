// Package apperror defines the typed failures the access layer returns.
//
// Every failure carries one of the sentinel kinds below so transports can map
// it with errors.Is, plus a human-readable message that is safe to show.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("Validation Error")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
)

type AppError struct {
	Err     error             // actual error
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: every invalid field and its message
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundBy is NotFound for lookups on something other than the primary key,
// e.g. NotFoundBy("post", "slug", "abc").
func NotFoundBy(resource, key, value string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with %s %s", resource, key, value),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// Conflict reports a duplicate unique key, e.g. Conflict("category", "slug", "go").
func Conflict(resource, key, value string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: fmt.Sprintf("%s with %s %q already exists", resource, key, value),
		Field:   key,
	}
}

// Forbidden returns an AppError indicating the caller lacks permission.
// HTTP handlers map this to 403 Forbidden.
func Forbidden(message string) *AppError {
	return &AppError{
		Err:     ErrForbidden,
		Message: message,
	}
}

// Unauthorized is returned when an operation needs a principal and none is present.
func Unauthorized() *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: "authentication required",
	}
}

// Validation collects field errors so a caller can report all of them at once
// instead of stopping at the first one.
type Validation struct {
	fields map[string]string
}

// Add records message for field. The first message per field wins.
func (v *Validation) Add(field, message string) {
	if v.fields == nil {
		v.fields = make(map[string]string)
	}
	if _, ok := v.fields[field]; !ok {
		v.fields[field] = message
	}
}

// Check records message for field when ok is false.
func (v *Validation) Check(ok bool, field, message string) {
	if !ok {
		v.Add(field, message)
	}
}

// Err returns nil when nothing was recorded, otherwise an ErrValidation AppError.
func (v *Validation) Err() error {
	if len(v.fields) == 0 {
		return nil
	}

	names := make([]string, 0, len(v.fields))
	for name := range v.fields {
		names = append(names, name)
	}
	sort.Strings(names)

	msgs := make([]string, 0, len(names))
	for _, name := range names {
		msgs = append(msgs, fmt.Sprintf("%s: %s", name, v.fields[name]))
	}

	fields := make(map[string]string, len(v.fields))
	for k, m := range v.fields {
		fields[k] = m
	}

	return &AppError{
		Err:     ErrValidation,
		Message: strings.Join(msgs, "; "),
		Field:   names[0],
		Fields:  fields,
	}
}
