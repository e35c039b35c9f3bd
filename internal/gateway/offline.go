package gateway

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/models"
)

// ErrNotConfigured is returned by the offline gateway for every charge and
// refund.
var ErrNotConfigured = errors.New("no payment processor configured")

// Offline stands in for a payment processor when none is configured. It
// refuses all money movement unless it was created with NewDemo, in which
// case it accepts everything without contacting anyone.
type Offline struct {
	logger *logrus.Logger
	accept bool
}

// NewOffline creates a gateway that fails every charge and refund with a
// GatewayError wrapping ErrNotConfigured.
func NewOffline(logger *logrus.Logger) *Offline {
	return &Offline{logger: logger}
}

// NewDemo creates a gateway that approves every charge and refund. It is
// only meant for in-memory demo runs.
func NewDemo(logger *logrus.Logger) *Offline {
	return &Offline{logger: logger, accept: true}
}

func (g *Offline) Charge(_ context.Context, req ChargeRequest) (*ChargeResult, error) {
	fields := logrus.Fields{
		"instrument_id":   req.InstrumentID,
		"amount_cents":    req.AmountCents,
		"idempotency_key": req.IdempotencyKey,
	}
	if !g.accept {
		g.logger.WithFields(fields).Warn("Charge refused: no payment processor configured")
		return nil, &models.GatewayError{Op: "charge", Err: ErrNotConfigured}
	}
	id := "demo_ch_" + uuid.NewString()
	fields["external_id"] = id
	g.logger.WithFields(fields).Info("Demo gateway accepted charge")
	return &ChargeResult{ExternalPaymentID: id}, nil
}

func (g *Offline) Refund(_ context.Context, externalPaymentID string, amountCents int64, reason models.RefundReason) (*RefundResult, error) {
	fields := logrus.Fields{
		"payment_external_id": externalPaymentID,
		"amount_cents":        amountCents,
		"reason":              reason,
	}
	if !g.accept {
		g.logger.WithFields(fields).Warn("Refund refused: no payment processor configured")
		return nil, &models.GatewayError{Op: "refund", Err: ErrNotConfigured}
	}
	id := "demo_re_" + uuid.NewString()
	fields["external_id"] = id
	g.logger.WithFields(fields).Info("Demo gateway accepted refund")
	return &RefundResult{ExternalRefundID: id}, nil
}
