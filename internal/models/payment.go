package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a payment was made
type PaymentMethod string

const (
	PaymentMethodCash       PaymentMethod = "cash"
	PaymentMethodCreditCard PaymentMethod = "credit_card"
	PaymentMethodCheck      PaymentMethod = "check"
	PaymentMethodQuickPay   PaymentMethod = "quick_pay"
)

// UsesGateway reports whether refunds for this method go through the
// payment gateway.
func (m PaymentMethod) UsesGateway() bool {
	return m == PaymentMethodCreditCard
}

// PaymentType categorizes a payment
type PaymentType string

const (
	PaymentTypeMembership PaymentType = "membership"
	PaymentTypeDonation   PaymentType = "donation"
	PaymentTypeOther      PaymentType = "other"
)

// PaymentFrequency distinguishes one-off from recurring payments
type PaymentFrequency string

const (
	PaymentOneTime PaymentFrequency = "one-time"
	PaymentMonthly PaymentFrequency = "monthly"
)

// RefundReason is the reason code sent to the gateway
type RefundReason string

const (
	RefundReasonDuplicate           RefundReason = "duplicate"
	RefundReasonFraudulent          RefundReason = "fraudulent"
	RefundReasonRequestedByCustomer RefundReason = "requested_by_customer"
	RefundReasonCancelled           RefundReason = "cancelled"
	RefundReasonError               RefundReason = "error"
	RefundReasonOther               RefundReason = "other"
)

// Valid returns true for the accepted reason codes
func (r RefundReason) Valid() bool {
	switch r {
	case RefundReasonDuplicate, RefundReasonFraudulent, RefundReasonRequestedByCustomer,
		RefundReasonCancelled, RefundReasonError, RefundReasonOther:
		return true
	}
	return false
}

// RefundStatus is the state of a single refund entry
type RefundStatus string

const (
	RefundPending   RefundStatus = "pending"
	RefundSucceeded RefundStatus = "succeeded"
	RefundFailed    RefundStatus = "failed"
)

// RefundEntry is one line of a payment's refund sub-ledger.
type RefundEntry struct {
	ID               int64           `json:"id" db:"id"`
	PaymentID        int64           `json:"payment_id" db:"payment_id"`
	Amount           decimal.Decimal `json:"amount" db:"amount"`
	Date             time.Time       `json:"date" db:"refund_date"`
	Reason           RefundReason    `json:"reason" db:"reason"`
	ExternalRefundID string          `json:"external_refund_id,omitempty" db:"external_refund_id"`
	Status           RefundStatus    `json:"status" db:"status"`
	RefundedBy       string          `json:"refunded_by,omitempty" db:"refunded_by"`
	Notes            string          `json:"notes,omitempty" db:"notes"`
	CreatedAt        time.Time       `json:"created_at" db:"created_at"`
}

// Payment is an immutable record of money received. Only the refund
// sub-ledger changes after creation. MemberID is nil for family-level
// payments.
type Payment struct {
	ID                int64            `json:"id" db:"id"`
	FamilyID          int64            `json:"family_id" db:"family_id"`
	MemberID          *int64           `json:"member_id,omitempty" db:"member_id"`
	Amount            decimal.Decimal  `json:"amount" db:"amount"`
	Date              time.Time        `json:"payment_date" db:"payment_date"`
	Year              int              `json:"year" db:"year"`
	Method            PaymentMethod    `json:"payment_method" db:"payment_method"`
	Type              PaymentType      `json:"type" db:"type"`
	Frequency         PaymentFrequency `json:"payment_frequency" db:"payment_frequency"`
	Notes             string           `json:"notes,omitempty" db:"notes"`
	ExternalPaymentID string           `json:"external_payment_id,omitempty" db:"external_payment_id"`
	SavedInstrumentID string           `json:"saved_instrument_id,omitempty" db:"saved_instrument_id"`
	EnrollmentID      *int64           `json:"enrollment_id,omitempty" db:"enrollment_id"`
	// BillingKey is set on recurring charges and is unique across payments.
	BillingKey     string          `json:"billing_key,omitempty" db:"billing_key"`
	RefundedAmount decimal.Decimal `json:"refunded_amount" db:"refunded_amount"`
	Refunds        []RefundEntry   `json:"refunds,omitempty"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// Remaining returns the amount that can still be refunded
func (p *Payment) Remaining() decimal.Decimal {
	return p.Amount.Sub(p.RefundedAmount)
}

// IsFullyRefunded returns true when nothing is left to refund
func (p *Payment) IsFullyRefunded() bool {
	return p.Amount.IsPositive() && p.RefundedAmount.Equal(p.Amount)
}

// IsPartiallyRefunded returns true when some but not all was refunded
func (p *Payment) IsPartiallyRefunded() bool {
	return p.RefundedAmount.IsPositive() && p.RefundedAmount.LessThan(p.Amount)
}

// IsMemberScoped returns true for payments attributed to a member
func (p *Payment) IsMemberScoped() bool {
	return p.MemberID != nil
}

// SucceededRefunds returns the refund entries that actually moved money.
func (p *Payment) SucceededRefunds() []RefundEntry {
	var out []RefundEntry
	for _, r := range p.Refunds {
		if r.Status == RefundSucceeded {
			out = append(out, r)
		}
	}
	return out
}

// RefundedBefore sums succeeded refunds dated strictly before t.
func (p *Payment) RefundedBefore(t time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, r := range p.SucceededRefunds() {
		if r.Date.Before(t) {
			total = total.Add(r.Amount)
		}
	}
	return total
}

// Validate checks the fields required to record a payment
func (p *Payment) Validate() error {
	if p.FamilyID == 0 {
		return &ValidationError{Field: "family_id", Message: "is required"}
	}
	if !p.Amount.IsPositive() {
		return &ValidationError{Field: "amount", Message: "must be greater than zero"}
	}
	if p.Date.IsZero() {
		return &ValidationError{Field: "payment_date", Message: "is required"}
	}
	return nil
}
