package payouts

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when a vendor, period or line item does not exist.
	ErrNotFound = errors.New("payouts: not found")
	// ErrNilRepository is returned by constructors given a nil dependency.
	ErrNilRepository = errors.New("payouts: nil repository")
)

// NotFound wraps ErrNotFound with the missing resource.
func NotFound(resource, id string) error {
	return fmt.Errorf("%s %s: %w", resource, id, ErrNotFound)
}

// ValidationError carries field-level messages for a rejected request.
type ValidationError struct {
	Fields map[string]string
}

// NewValidationError builds a ValidationError for a single field.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: map[string]string{field: message}}
}

// Add records a field message.
func (e *ValidationError) Add(field, message string) {
	if e.Fields == nil {
		e.Fields = make(map[string]string)
	}
	e.Fields[field] = message
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *ValidationError) Error() string {
	if e.Empty() {
		return "payouts: validation failed"
	}
	keys := make([]string, 0, len(e.Fields))
	for key := range e.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, key := range keys {
		parts = append(parts, key+": "+e.Fields[key])
	}
	return "payouts: validation failed: " + strings.Join(parts, "; ")
}

// StateConflictError is returned when a transition is attempted from the wrong status.
type StateConflictError struct {
	Resource string
	ID       string
	Action   string
	Current  PeriodStatus
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("payouts: cannot %s %s %s with status '%s'", e.Action, e.Resource, e.ID, e.Current)
}

// DownstreamError wraps a failure of the calculation routines or persistence layer.
type DownstreamError struct {
	Op  string
	Err error
}

func (e *DownstreamError) Error() string {
	if e.Err == nil {
		return e.Op + " failed"
	}
	return e.Err.Error()
}

func (e *DownstreamError) Unwrap() error { return e.Err }

// Downstream wraps err unless it is nil or already classified.
func Downstream(op string, err error) error {
	if err == nil {
		return nil
	}
	var validation *ValidationError
	var conflict *StateConflictError
	var downstream *DownstreamError
	if errors.Is(err, ErrNotFound) || errors.As(err, &validation) || errors.As(err, &conflict) || errors.As(err, &downstream) {
		return err
	}
	return &DownstreamError{Op: op, Err: err}
}
