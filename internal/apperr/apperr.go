// Package apperr defines the error categories used across FairDerm-cli.
//
// Error taxonomy
//
//	UserError    – caused by missing or invalid user input (wrong flag, bad value, …).
//	               The CLI prints only the message; usage help is NOT repeated.
//	               Exit code: 1.
//
//	ErrCancelled – the user deliberately aborted an interactive flow (label
//	               triage, confirmation prompt, …).
//	               Exit code: 0 (not a failure).
//
// Data-quality kinds raised by the corpus and fairness core:
//
//	UnmappedLabelOverflowError – a source's unmapped-label ratio exceeded its
//	                             ceiling; only that source's batch fails.
//	InsufficientDataError      – a required class or group has no usable samples;
//	                             only the affected computation fails.
//	ErrEmptyInput              – nothing usable was left after filtering.
//	ErrMalformedRecord         – a record lacks a structurally required field;
//	                             readers skip and count it.
//
// Missing ground truth is never an error: it is reported as a count.
// Everything else is a plain Go error (I/O, YAML, BOM encoding, …) and is
// propagated with fmt.Errorf("context: %w", err) wrapping.
package apperr

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned when the user explicitly aborts an interactive
// operation.  The CLI should exit 0 rather than 1 when it sees this error.
var ErrCancelled = errors.New("operation cancelled")

// ErrEmptyInput is returned when an operation has no usable input left
// after filtering, instead of producing a vacuous result.
var ErrEmptyInput = errors.New("no usable input after filtering")

// ErrMalformedRecord marks a record missing a structurally required field.
var ErrMalformedRecord = errors.New("malformed record")

// UserError represents an error caused by invalid or missing user input.
// Cobra command handlers return this instead of a bare fmt.Errorf so that
// the root command can suppress repeated usage output and format the message
// in a user-friendly way.
type UserError struct {
	Message string
}

func (e *UserError) Error() string { return e.Message }

// User creates a UserError with the given message.
func User(msg string) error { return &UserError{Message: msg} }

// Userf creates a formatted UserError.
func Userf(format string, args ...any) error {
	return &UserError{Message: fmt.Sprintf(format, args...)}
}

// IsUser reports whether err is (or wraps) a *UserError.
func IsUser(err error) bool {
	var u *UserError
	return errors.As(err, &u)
}

// UnmappedLabelOverflowError reports a source whose share of unmapped raw
// labels exceeds the configured ceiling.
type UnmappedLabelOverflowError struct {
	Source   string
	Unmapped int
	Total    int
	Ceiling  float64
}

func (e *UnmappedLabelOverflowError) Ratio() float64 {
	if e.Total == 0 {
		return 0
	}
	return float64(e.Unmapped) / float64(e.Total)
}

func (e *UnmappedLabelOverflowError) Error() string {
	return fmt.Sprintf("source %q: %d of %d labels unmapped (%.2f%% > ceiling %.2f%%); the mapping table likely needs new entries",
		e.Source, e.Unmapped, e.Total, e.Ratio()*100, e.Ceiling*100)
}

// InsufficientDataError reports a computation that has no usable samples
// for a required class or group.
type InsufficientDataError struct {
	What   string
	Detail string
}

func (e *InsufficientDataError) Error() string {
	if e.Detail == "" {
		return "insufficient data: " + e.What
	}
	return fmt.Sprintf("insufficient data: %s: %s", e.What, e.Detail)
}

// Insufficient creates an InsufficientDataError.
func Insufficient(what, format string, args ...any) error {
	return &InsufficientDataError{What: what, Detail: fmt.Sprintf(format, args...)}
}

// IsInsufficient reports whether err is (or wraps) an *InsufficientDataError.
func IsInsufficient(err error) bool {
	var e *InsufficientDataError
	return errors.As(err, &e)
}

// IsOverflow reports whether err is (or wraps) an *UnmappedLabelOverflowError.
func IsOverflow(err error) bool {
	var e *UnmappedLabelOverflowError
	return errors.As(err, &e)
}
