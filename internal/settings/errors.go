package settings

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation indicates the raw settings failed a shape, type or range check
	ErrValidation = errors.New("invalid settings")
	// ErrUnknownAlias indicates an alias has no entry in the alias table
	ErrUnknownAlias = errors.New("unknown alias")
)

// ValidationError reports the first violated settings constraint.
type ValidationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s=%v: %s", ErrValidation, e.Field, e.Value, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalid(field string, value any, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Value: value, Reason: fmt.Sprintf(format, args...)}
}

// UnknownAliasError is returned by ResolveAlias. Callers treat it as "no alias"
// and fall through to their default resolution.
type UnknownAliasError struct {
	Name string
}

func (e *UnknownAliasError) Error() string {
	return fmt.Sprintf("%s: %q", ErrUnknownAlias, e.Name)
}

func (e *UnknownAliasError) Unwrap() error { return ErrUnknownAlias }
