package errs

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound is returned when a referenced row does not exist or is not
// visible to the requesting user.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller lacks the role for an operation.
var ErrForbidden = errors.New("forbidden")

// ValidationError collects field-level problems with client input.
// Nothing has been written when one is returned.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

// NewValidationError builds a ValidationError with a single field message.
func NewValidationError(field, msg string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, msg)
	return v
}

// Add appends a message for field.
func (v *ValidationError) Add(field, msg string) {
	if v.Fields == nil {
		v.Fields = make(map[string][]string)
	}
	v.Fields[field] = append(v.Fields[field], msg)
}

// Merge copies all messages from o under prefix (e.g. "sensitive_items[0].").
func (v *ValidationError) Merge(prefix string, o *ValidationError) {
	if o == nil {
		return
	}
	for f, msgs := range o.Fields {
		for _, m := range msgs {
			v.Add(prefix+f, m)
		}
	}
}

// OrNil returns nil when no field has been flagged, so callers can
// `return v.OrNil()` without a typed-nil error.
func (v *ValidationError) OrNil() error {
	if v == nil || len(v.Fields) == 0 {
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
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(v.Fields[k], "; ")))
	}
	return "validation failed: " + strings.Join(parts, ", ")
}

// PersistenceError reports a storage failure while writing a scan or its items.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string { return fmt.Sprintf("persist %s: %v", e.Op, e.Err) }
func (e *PersistenceError) Unwrap() error { return e.Err }

// StatsUpdateError reports a counter increment that failed after the
// triggering write had already been committed.
type StatsUpdateError struct {
	UserID  int64
	Counter string
	// ScanID is set when the failure followed a successful ingestion.
	ScanID int64
	Err    error
}

func (e *StatsUpdateError) Error() string {
	return fmt.Sprintf("update %s for user %d: %v", e.Counter, e.UserID, e.Err)
}
func (e *StatsUpdateError) Unwrap() error { return e.Err }
