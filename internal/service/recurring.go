package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/gateway"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/plans"
	"github.com/Kerhoff/kasa/internal/repository"
)

// BillingWork is one monthly charge that is due
type BillingWork struct {
	Enrollment *models.RecurringEnrollment
	BillingKey string
	BillingDay time.Time
}

// PlanRecurringWork returns the charges due in today's month: active
// enrollments whose billing day has arrived and that started by then.
// Whether the month was already charged is checked by the executor.
func PlanRecurringWork(enrollments []*models.RecurringEnrollment, today time.Time) []BillingWork {
	today = clock.Day(today)
	year, month := today.Year(), today.Month()

	var work []BillingWork
	seen := make(map[string]bool)
	for _, e := range enrollments {
		if !e.Active || e.SavedInstrumentID == "" {
			continue
		}
		day := e.BillingDay(year, month)
		if day.After(today) || clock.Day(e.StartDate).After(day) {
			continue
		}
		key := e.BillingKey(year, month)
		if seen[key] {
			continue
		}
		seen[key] = true
		work = append(work, BillingWork{Enrollment: e, BillingKey: key, BillingDay: day})
	}
	return work
}

// RunRecurringPayments charges every enrollment of the owner that is due
// this month. A target is charged at most once per month: the billing key
// (target, year, month) is checked before the charge, sent to the gateway
// and stored uniquely on the payment. A failed charge records nothing, so
// the next run retries it.
func (s *Service) RunRecurringPayments(ctx context.Context, ownerID int64, force bool) (*Summary, error) {
	settings, err := s.AutomationSettings(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	if !force && !settings.EnableMonthlyPayments {
		return s.disabled(JobRecurringPayments, ownerID), nil
	}

	enrollments, err := s.Enrollments.ListActiveByOwner(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list enrollments of owner %d: %w", ownerID, err)
	}
	catalog, err := s.Catalog(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	work := PlanRecurringWork(enrollments, clock.Today(s.clock))
	items := make([]workItem, 0, len(work))
	for _, w := range work {
		items = append(items, workItem{
			fields: logrus.Fields{
				"family_id":     w.Enrollment.FamilyID,
				"enrollment_id": w.Enrollment.ID,
				"billing_key":   w.BillingKey,
			},
			run: func(ctx context.Context) error {
				return s.chargeEnrollment(ctx, w, catalog, settings)
			},
		})
	}
	return s.runJob(ctx, JobRecurringPayments, ownerID, items), nil
}

func (s *Service) chargeEnrollment(ctx context.Context, w BillingWork, catalog *plans.Catalog, settings *models.AutomationSettings) error {
	e := w.Enrollment

	existing, err := s.Payments.GetByBillingKey(ctx, w.BillingKey)
	if err != nil {
		return fmt.Errorf("failed to look up billing key %s: %w", w.BillingKey, err)
	}
	if existing != nil {
		return fmt.Errorf("billing key %s: %w", w.BillingKey, models.ErrIdempotencyConflict)
	}

	amount, err := s.enrollmentAmount(ctx, e, catalog, w.BillingDay)
	if err != nil {
		return err
	}

	res, err := s.gateway.Charge(ctx, gateway.ChargeRequest{
		InstrumentID:   e.SavedInstrumentID,
		AmountCents:    gateway.ToCents(amount),
		IdempotencyKey: w.BillingKey,
		Description:    fmt.Sprintf("Monthly dues %s", w.BillingDay.Format("2006-01")),
	})
	if err != nil {
		s.notify(ctx, notify.EventChargeFailed, notify.Payload{
			"family_id":     e.FamilyID,
			"enrollment_id": e.ID,
			"billing_key":   w.BillingKey,
			"amount":        amount.StringFixed(2),
			"error":         err.Error(),
		})
		return err
	}

	enrollmentID := e.ID
	payment, err := s.Payments.Create(ctx, &models.Payment{
		FamilyID:          e.FamilyID,
		MemberID:          e.MemberID,
		Amount:            amount,
		Date:              w.BillingDay,
		Year:              w.BillingDay.Year(),
		Method:            models.PaymentMethodCreditCard,
		Type:              models.PaymentTypeMembership,
		Frequency:         models.PaymentMonthly,
		Notes:             e.Notes,
		ExternalPaymentID: res.ExternalPaymentID,
		SavedInstrumentID: e.SavedInstrumentID,
		EnrollmentID:      &enrollmentID,
		BillingKey:        w.BillingKey,
		RefundedAmount:    decimal.Zero,
	})
	if errors.Is(err, repository.ErrDuplicate) {
		// A concurrent run recorded the same month. The gateway received the
		// same idempotency key and will not have charged twice.
		return fmt.Errorf("billing key %s: %w", w.BillingKey, models.ErrIdempotencyConflict)
	}
	if err != nil {
		return fmt.Errorf("failed to record charge %s (external id %s): %w", w.BillingKey, res.ExternalPaymentID, err)
	}

	if err := s.Enrollments.MarkCharged(ctx, e.ID, s.clock.Now()); err != nil {
		s.logger.WithError(err).WithField("enrollment_id", e.ID).Warn("Failed to stamp enrollment")
	}
	if settings.EnablePaymentEmails {
		s.notify(ctx, notify.EventPaymentRecorded, notify.Payload{
			"family_id":   payment.FamilyID,
			"payment_id":  payment.ID,
			"amount":      payment.Amount.StringFixed(2),
			"date":        payment.Date.Format(dateLayout),
			"billing_key": payment.BillingKey,
		})
	}
	return nil
}

// enrollmentAmount is the configured amount, or the monthly price of the
// member's own plan, or of the family plan.
func (s *Service) enrollmentAmount(ctx context.Context, e *models.RecurringEnrollment, catalog *plans.Catalog, day time.Time) (decimal.Decimal, error) {
	if e.Amount.IsPositive() {
		return e.Amount, nil
	}

	planNumber := plans.Unassigned
	if e.MemberID != nil {
		member, err := s.member(ctx, *e.MemberID)
		if err != nil {
			return decimal.Zero, err
		}
		planNumber = plans.ResolvePlan(member, day).PlanNumber
	}
	if planNumber == plans.Unassigned {
		family, err := s.family(ctx, e.FamilyID)
		if err != nil {
			return decimal.Zero, err
		}
		planNumber = family.PlanNumber
	}

	price := catalog.MonthlyPrice(planNumber)
	if planNumber == plans.Unassigned || !price.IsPositive() {
		return decimal.Zero, &models.ValidationError{Field: "amount", Message: fmt.Sprintf("enrollment %d has no amount and no priced plan", e.ID)}
	}
	return price, nil
}
