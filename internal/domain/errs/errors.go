// Package errs defines the error taxonomy of the capacity ledger.
package errs

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrCapacityExceeded = errors.New("capacity exceeded")
	ErrValidation       = errors.New("validation failed")
	ErrConsistency      = errors.New("consistency failure")
)

// NotFoundError reports a missing station, bar, circuit, sub-circuit,
// notification, request or backup.
type NotFoundError struct {
	Entity string
	ID     int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// NotFound builds a NotFoundError.
func NotFound(entity string, id int64) error {
	return &NotFoundError{Entity: entity, ID: id}
}

// CapacityError carries the admission verdict that blocked a load.
type CapacityError struct {
	StationID       int64
	AvailableBefore decimal.Decimal
	AvailableAfter  decimal.Decimal
	Message         string
}

func (e *CapacityError) Error() string {
	return e.Message
}

func (e *CapacityError) Is(target error) bool { return target == ErrCapacityExceeded }

// ValidationError rejects input before anything is written.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid builds a ValidationError.
func Invalid(field, format string, a ...interface{}) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// ConsistencyError wraps the failure that aborted a restore.
type ConsistencyError struct {
	Step string
	Err  error
}

func (e *ConsistencyError) Error() string {
	return fmt.Sprintf("restore aborted at %s: %v", e.Step, e.Err)
}

func (e *ConsistencyError) Unwrap() error { return e.Err }

func (e *ConsistencyError) Is(target error) bool { return target == ErrConsistency }

// Consistency wraps err as a ConsistencyError unless it already is one.
func Consistency(step string, err error) error {
	var ce *ConsistencyError
	if errors.As(err, &ce) {
		return err
	}
	return &ConsistencyError{Step: step, Err: err}
}
