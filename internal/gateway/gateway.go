// Package gateway defines the payment gateway collaborator. Card
// tokenization and the actual processor integration live behind Gateway.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/kasa/internal/models"
)

// DefaultTimeout bounds every gateway call when none is configured
const DefaultTimeout = 15 * time.Second

// ErrDeclined is returned by gateways when the processor declined the charge
var ErrDeclined = errors.New("charge declined")

// ChargeRequest charges a saved instrument
type ChargeRequest struct {
	InstrumentID string
	AmountCents  int64
	// IdempotencyKey is forwarded to processors that deduplicate charges.
	IdempotencyKey string
	Description    string
}

// ChargeResult is a successful charge
type ChargeResult struct {
	ExternalPaymentID string
}

// RefundResult is a successful refund
type RefundResult struct {
	ExternalRefundID string
}

// Gateway charges saved instruments and refunds captured payments
type Gateway interface {
	Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)
	Refund(ctx context.Context, externalPaymentID string, amountCents int64, reason models.RefundReason) (*RefundResult, error)
}

// ToCents converts a decimal amount to integer cents, rounding half away
// from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromCents converts integer cents back to a decimal amount
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

type timeoutGateway struct {
	next    Gateway
	timeout time.Duration
}

// WithTimeout bounds every call to next and converts failures into
// *models.GatewayError. A call that outlives the timeout is reported as
// failed even if next ignores its context.
func WithTimeout(next Gateway, timeout time.Duration) Gateway {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &timeoutGateway{next: next, timeout: timeout}
}

func (g *timeoutGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	if req.AmountCents <= 0 {
		return nil, &models.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if req.InstrumentID == "" {
		return nil, &models.ValidationError{Field: "saved_instrument_id", Message: "is required"}
	}
	return bounded(ctx, g.timeout, "charge", func(ctx context.Context) (*ChargeResult, error) {
		return g.next.Charge(ctx, req)
	})
}

func (g *timeoutGateway) Refund(ctx context.Context, externalPaymentID string, amountCents int64, reason models.RefundReason) (*RefundResult, error) {
	if !reason.Valid() {
		return nil, &models.ValidationError{Field: "reason", Message: fmt.Sprintf("%q is not a valid refund reason", reason)}
	}
	if amountCents <= 0 {
		return nil, &models.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	return bounded(ctx, g.timeout, "refund", func(ctx context.Context) (*RefundResult, error) {
		return g.next.Refund(ctx, externalPaymentID, amountCents, reason)
	})
}

type outcome[T any] struct {
	val *T
	err error
}

func bounded[T any](ctx context.Context, timeout time.Duration, op string, call func(context.Context) (*T, error)) (*T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan outcome[T], 1)
	go func() {
		val, err := call(ctx)
		done <- outcome[T]{val: val, err: err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			if models.IsGateway(res.err) || models.IsValidation(res.err) {
				return nil, res.err
			}
			return nil, &models.GatewayError{Op: op, Err: res.err}
		}
		if res.val == nil {
			return nil, &models.GatewayError{Op: op, Err: errors.New("empty response")}
		}
		return res.val, nil
	case <-ctx.Done():
		return nil, &models.GatewayError{Op: op, Err: ctx.Err()}
	}
}
