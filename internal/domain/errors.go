package domain

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("token is invalid or expired")
	ErrDuplicate          = errors.New("duplicate record")
	ErrPermissionDenied   = errors.New("permission denied")
)

// PermissionError carries the human readable reason shown to the client.
type PermissionError struct{ Reason string }

func (e *PermissionError) Error() string        { return e.Reason }
func (e *PermissionError) Is(target error) bool { return target == ErrPermissionDenied }

// ValidationError maps request fields to the messages describing what is wrong
// with them.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

func FieldError(field string, msgs ...string) *ValidationError {
	v := NewValidationError()
	for _, m := range msgs {
		v.Add(field, m)
	}
	return v
}

func (v *ValidationError) Add(field, msg string) {
	v.Fields[field] = append(v.Fields[field], msg)
}

func (v *ValidationError) Empty() bool { return v == nil || len(v.Fields) == 0 }

// Err returns nil for an empty set so callers can write `return v.Err()`.
func (v *ValidationError) Err() error {
	if v.Empty() {
		return nil
	}
	return v
}

func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+strings.Join(v.Fields[k], " "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
