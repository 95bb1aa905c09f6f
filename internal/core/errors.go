package core

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount        = errors.New("invalid amount")
	ErrInvalidDate          = errors.New("invalid date")
	ErrMissingField         = errors.New("missing required field")
	ErrInvalidRecurrency    = errors.New("invalid recurrency")
	ErrInvalidPeriod        = errors.New("period end before period start")
	ErrDuplicateTransaction = errors.New("duplicate transaction id")
	ErrEmptyBatch           = errors.New("no valid rows in batch")
	ErrLookupDegraded       = errors.New("price lookup degraded")
)

// ValidationError describes a single rejected ledger row.
type ValidationError struct {
	Row           int    // zero-based position in the input
	TransactionID string // may be empty when the id itself is missing
	Field         string
	Err           error
}

func (e *ValidationError) Error() string {
	if e.TransactionID != "" {
		return fmt.Sprintf("row %d (%s): %s: %v", e.Row, e.TransactionID, e.Field, e.Err)
	}
	return fmt.Sprintf("row %d: %s: %v", e.Row, e.Field, e.Err)
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// EmptyBatchError is returned when no row in a batch survives validation.
type EmptyBatchError struct {
	Rows     int
	Rejected int
}

func (e *EmptyBatchError) Error() string {
	return fmt.Sprintf("empty batch: %d rows received, %d rejected, none valid", e.Rows, e.Rejected)
}

func (e *EmptyBatchError) Is(target error) bool {
	return target == ErrEmptyBatch
}

// AnalyzerFailure records an analyzer that returned an error, panicked or timed out.
type AnalyzerFailure struct {
	Analyzer string
	Err      error
}

func (e *AnalyzerFailure) Error() string {
	return fmt.Sprintf("analyzer %s failed: %v", e.Analyzer, e.Err)
}

func (e *AnalyzerFailure) Unwrap() error {
	return e.Err
}
