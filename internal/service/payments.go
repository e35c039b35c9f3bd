package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/repository"
)

// RecordPayment validates and stores a payment received outside the
// recurring billing job.
func (s *Service) RecordPayment(ctx context.Context, p *models.Payment) (*models.Payment, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	family, err := s.family(ctx, p.FamilyID)
	if err != nil {
		return nil, err
	}
	if err := s.checkMemberOf(ctx, p.MemberID, family.ID); err != nil {
		return nil, err
	}

	in := *p
	in.Date = clock.Day(in.Date)
	if in.Year == 0 {
		in.Year = in.Date.Year()
	}
	if in.Method == "" {
		in.Method = models.PaymentMethodCash
	}
	if in.Type == "" {
		in.Type = models.PaymentTypeMembership
	}
	if in.Frequency == "" {
		in.Frequency = models.PaymentOneTime
	}
	in.RefundedAmount = decimal.Zero
	in.Refunds = nil

	created, err := s.Payments.Create(ctx, &in)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("payment %s: %w", in.BillingKey, models.ErrIdempotencyConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create payment for family %d: %w", family.ID, err)
	}

	s.logger.WithFields(logrus.Fields{
		"family_id":  family.ID,
		"payment_id": created.ID,
		"amount":     created.Amount.StringFixed(2),
	}).Info("Payment recorded")
	s.notifyPayment(ctx, family.OwnerID, created)
	return created, nil
}

func (s *Service) notifyPayment(ctx context.Context, ownerID int64, p *models.Payment) {
	settings, err := s.AutomationSettings(ctx, ownerID)
	if err != nil {
		s.logger.WithError(err).Warn("Skipping payment notification")
		return
	}
	if !settings.EnablePaymentEmails {
		return
	}
	s.notify(ctx, notify.EventPaymentRecorded, notify.Payload{
		"family_id":  p.FamilyID,
		"payment_id": p.ID,
		"amount":     p.Amount.StringFixed(2),
		"date":       p.Date.Format(dateLayout),
	})
}

// RecordWithdrawal stores a family-level debit.
func (s *Service) RecordWithdrawal(ctx context.Context, w *models.Withdrawal) (*models.Withdrawal, error) {
	if !w.Amount.IsPositive() {
		return nil, &models.ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if w.Date.IsZero() {
		return nil, &models.ValidationError{Field: "withdrawal_date", Message: "is required"}
	}
	if _, err := s.family(ctx, w.FamilyID); err != nil {
		return nil, err
	}

	in := *w
	in.Date = clock.Day(in.Date)
	created, err := s.Withdrawals.Create(ctx, &in)
	if err != nil {
		return nil, fmt.Errorf("failed to create withdrawal for family %d: %w", w.FamilyID, err)
	}
	return created, nil
}

// RecordLifecycleEvent stores a ceremonial charge. A zero amount takes the
// configured default for the event type. Events are reported but never
// change a balance.
func (s *Service) RecordLifecycleEvent(ctx context.Context, e *models.LifecycleEvent) (*models.LifecycleEvent, error) {
	cfg, ok := s.EventType(e.Type)
	if !ok {
		return nil, &models.ValidationError{Field: "event_type", Message: fmt.Sprintf("%q is not configured", e.Type)}
	}
	if e.Date.IsZero() {
		return nil, &models.ValidationError{Field: "event_date", Message: "is required"}
	}
	if e.Amount.IsNegative() {
		return nil, &models.ValidationError{Field: "amount", Message: "must not be negative"}
	}
	if _, err := s.family(ctx, e.FamilyID); err != nil {
		return nil, err
	}
	if err := s.checkMemberOf(ctx, e.MemberID, e.FamilyID); err != nil {
		return nil, err
	}

	in := *e
	in.Date = clock.Day(in.Date)
	if in.Amount.IsZero() {
		in.Amount = cfg.Amount
	}
	if in.Year == 0 {
		in.Year = in.Date.Year()
	}

	created, err := s.Events.Create(ctx, &in)
	if errors.Is(err, repository.ErrDuplicate) {
		return nil, fmt.Errorf("%s event already recorded: %w", in.Type, models.ErrIdempotencyConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create lifecycle event for family %d: %w", e.FamilyID, err)
	}
	return created, nil
}

func (s *Service) checkMemberOf(ctx context.Context, memberID *int64, familyID int64) error {
	if memberID == nil {
		return nil
	}
	member, err := s.member(ctx, *memberID)
	if err != nil {
		return err
	}
	if member.FamilyID != familyID {
		return &models.ValidationError{Field: "member_id", Message: fmt.Sprintf("%d does not belong to family %d", member.ID, familyID)}
	}
	return nil
}
