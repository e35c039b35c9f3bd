package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RecurringEnrollment bills a saved instrument once per calendar month.
// The target is the member when MemberID is set, otherwise the family.
type RecurringEnrollment struct {
	ID                int64  `json:"id" db:"id"`
	FamilyID          int64  `json:"family_id" db:"family_id"`
	MemberID          *int64 `json:"member_id,omitempty" db:"member_id"`
	SavedInstrumentID string `json:"saved_instrument_id" db:"saved_instrument_id"`
	// Amount zero means the monthly price of the target's plan.
	Amount        decimal.Decimal `json:"amount" db:"amount"`
	StartDate     time.Time       `json:"start_date" db:"start_date"`
	Active        bool            `json:"active" db:"active"`
	Notes         string          `json:"notes,omitempty" db:"notes"`
	LastChargedAt *time.Time      `json:"last_charged_at,omitempty" db:"last_charged_at"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// TargetID identifies the billed family or member, e.g. "member:42".
func (e *RecurringEnrollment) TargetID() string {
	if e.MemberID != nil {
		return fmt.Sprintf("member:%d", *e.MemberID)
	}
	return fmt.Sprintf("family:%d", e.FamilyID)
}

// BillingKey is the idempotency key for the charge of the given month.
func (e *RecurringEnrollment) BillingKey(year int, month time.Month) string {
	return BillingKey(e.TargetID(), year, month)
}

// BillingKey formats the (target, year, month) idempotency key.
func BillingKey(targetID string, year int, month time.Month) string {
	return fmt.Sprintf("%s:%04d-%02d", targetID, year, int(month))
}

// BillingDay returns the day of the given month on which the enrollment
// is charged: the start date's day, clamped to the month length.
func (e *RecurringEnrollment) BillingDay(year int, month time.Month) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	d := e.StartDate.Day()
	if d > last {
		d = last
	}
	return time.Date(year, month, d, 0, 0, 0, 0, time.UTC)
}
