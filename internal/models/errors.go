package models

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// ErrIdempotencyConflict reports that the effect was already applied. Batch
// jobs count it as a skipped no-op, not a failure.
var ErrIdempotencyConflict = errors.New("idempotency conflict: already applied")

// ErrNotFound is returned when a referenced record does not exist
var ErrNotFound = errors.New("not found")

// ValidationError is a rejected input. Nothing was applied.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s %s", e.Field, e.Message)
}

// GatewayError wraps a failed or timed-out payment gateway call. The
// operation is safe to retry on the next run.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error {
	return e.Err
}

// ReconciliationError means a statement's closing balance disagrees with
// the ledger. The statement must not be persisted.
type ReconciliationError struct {
	Expected decimal.Decimal
	Actual   decimal.Decimal
	Detail   string
}

func (e *ReconciliationError) Error() string {
	msg := fmt.Sprintf("statement does not reconcile: expected %s, got %s", e.Expected.StringFixed(2), e.Actual.StringFixed(2))
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// IsValidation returns true if err is or wraps a ValidationError
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsGateway returns true if err is or wraps a GatewayError
func IsGateway(err error) bool {
	var g *GatewayError
	return errors.As(err, &g)
}

// IsReconciliation returns true if err is or wraps a ReconciliationError
func IsReconciliation(err error) bool {
	var r *ReconciliationError
	return errors.As(err, &r)
}

// IsRetryable returns true if the next scheduled run may succeed
func IsRetryable(err error) bool {
	return IsGateway(err)
}
