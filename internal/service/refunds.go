package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/gateway"
	"github.com/Kerhoff/kasa/internal/metrics"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/repository"
)

// RefundRequest asks for a full or partial refund of one payment
type RefundRequest struct {
	PaymentID  int64               `json:"payment_id"`
	Amount     decimal.Decimal     `json:"amount"`
	Reason     models.RefundReason `json:"reason"`
	RefundedBy string              `json:"refunded_by,omitempty"`
	Notes      string              `json:"notes,omitempty"`
}

// RefundResult is the refunded payment and the entry that was added
type RefundResult struct {
	Payment *models.Payment    `json:"payment"`
	Refund  models.RefundEntry `json:"refund"`
}

var errRefundExceedsRemaining = &models.ValidationError{Field: "amount", Message: "refund amount exceeds remaining amount"}

// IssueRefund refunds part or all of a payment. The amount is reserved
// against the payment before the gateway is called, so concurrent refunds
// can never together exceed the payment amount. A failed gateway call
// releases the reservation and leaves the payment unchanged.
func (s *Service) IssueRefund(ctx context.Context, req RefundRequest) (*RefundResult, error) {
	if !req.Amount.IsPositive() {
		return nil, &models.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if !req.Reason.Valid() {
		return nil, &models.ValidationError{Field: "reason", Message: fmt.Sprintf("%q is not an accepted reason code", req.Reason)}
	}

	payment, err := s.Payments.GetByID(ctx, req.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get payment %d: %w", req.PaymentID, err)
	}
	if payment == nil {
		return nil, fmt.Errorf("payment %d: %w", req.PaymentID, models.ErrNotFound)
	}
	if req.Amount.GreaterThan(payment.Remaining()) {
		return nil, errRefundExceedsRemaining
	}
	useGateway := payment.Method.UsesGateway()
	if useGateway && payment.ExternalPaymentID == "" {
		return nil, &models.ValidationError{Field: "payment_id", Message: "card payment has no gateway reference to refund"}
	}

	date := clock.Today(s.clock)
	if date.Before(payment.Date) {
		date = payment.Date
	}

	log := s.logger.WithFields(logrus.Fields{
		"payment_id": payment.ID,
		"family_id":  payment.FamilyID,
		"amount":     req.Amount.StringFixed(2),
		"reason":     string(req.Reason),
	})

	entry, err := s.Payments.ReserveRefund(ctx, payment.ID, &models.RefundEntry{
		PaymentID:  payment.ID,
		Amount:     req.Amount,
		Date:       date,
		Reason:     req.Reason,
		Status:     models.RefundPending,
		RefundedBy: strings.TrimSpace(req.RefundedBy),
		Notes:      strings.TrimSpace(req.Notes),
	})
	if errors.Is(err, repository.ErrConflict) {
		// Another refund took the remaining amount since we read it.
		return nil, errRefundExceedsRemaining
	}
	if err != nil {
		return nil, fmt.Errorf("failed to reserve refund on payment %d: %w", payment.ID, err)
	}

	externalID := ""
	if useGateway {
		res, err := s.gateway.Refund(ctx, payment.ExternalPaymentID, gateway.ToCents(req.Amount), req.Reason)
		if err != nil {
			if ferr := s.Payments.FailRefund(ctx, entry.ID); ferr != nil {
				log.WithError(ferr).Error("Failed to release refund reservation")
			}
			log.WithError(err).Warn("Gateway refund failed")
			s.metrics.ObserveRefund(metrics.OutcomeFailed)
			s.notify(ctx, notify.EventRefundFailed, notify.Payload{
				"payment_id": payment.ID,
				"amount":     req.Amount.StringFixed(2),
				"error":      err.Error(),
			})
			return nil, err
		}
		externalID = res.ExternalRefundID
	}

	if err := s.Payments.CompleteRefund(ctx, entry.ID, externalID); err != nil {
		return nil, fmt.Errorf("failed to complete refund %d: %w", entry.ID, err)
	}
	s.metrics.ObserveRefund(metrics.OutcomeSucceeded)

	updated, err := s.Payments.GetByID(ctx, payment.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to reload payment %d: %w", payment.ID, err)
	}

	result := &RefundResult{Payment: updated}
	for _, r := range updated.Refunds {
		if r.ID == entry.ID {
			result.Refund = r
		}
	}

	log.WithField("refund_id", entry.ID).Info("Refund issued")
	s.notify(ctx, notify.EventRefundIssued, notify.Payload{
		"payment_id":         payment.ID,
		"refund_id":          entry.ID,
		"amount":             req.Amount.StringFixed(2),
		"external_refund_id": externalID,
		"fully_refunded":     updated.IsFullyRefunded(),
	})
	return result, nil
}
