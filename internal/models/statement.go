package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItemType names the kind of transaction behind a statement line
type LineItemType string

const (
	LineItemPayment    LineItemType = "payment"
	LineItemRefund     LineItemType = "refund"
	LineItemWithdrawal LineItemType = "withdrawal"
	LineItemPlanCharge LineItemType = "plan_charge"
	LineItemLifecycle  LineItemType = "lifecycle_event"
)

// LineItem is one itemized row of a statement. The json names are read by
// the statement renderer and must not change.
type LineItem struct {
	Date        time.Time       `json:"date"`
	Type        LineItemType    `json:"type"`
	Description string          `json:"description"`
	Amount      decimal.Decimal `json:"amount"`
	Notes       string          `json:"notes"`
	// OriginalAmount is set on refunded payments; the renderer strikes it
	// through and Amount carries the amount as received.
	OriginalAmount *decimal.Decimal `json:"originalAmount,omitempty"`
	// Informational lines are shown but not summed into the balance.
	Informational bool `json:"informational,omitempty"`
}

// Statement is an immutable snapshot of a family or member ledger over
// [FromDate, ToDate).
type Statement struct {
	ID              int64           `json:"id" db:"id"`
	FamilyID        int64           `json:"familyId" db:"family_id"`
	MemberID        *int64          `json:"memberId,omitempty" db:"member_id"`
	Number          string          `json:"statementNumber" db:"statement_number"`
	Sequence        int             `json:"sequence" db:"sequence"`
	FromDate        time.Time       `json:"fromDate" db:"from_date"`
	ToDate          time.Time       `json:"toDate" db:"to_date"`
	OpeningBalance  decimal.Decimal `json:"openingBalance" db:"opening_balance"`
	Income          decimal.Decimal `json:"income" db:"income"`
	Withdrawals     decimal.Decimal `json:"withdrawals" db:"withdrawals"`
	Expenses        decimal.Decimal `json:"expenses" db:"expenses"`
	LifecycleEvents decimal.Decimal `json:"lifecycleEvents" db:"lifecycle_events"`
	ClosingBalance  decimal.Decimal `json:"closingBalance" db:"closing_balance"`
	LineItems       []LineItem      `json:"transactions"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
}

// IsMemberStatement returns true for member-scoped statements
func (s *Statement) IsMemberStatement() bool {
	return s.MemberID != nil
}
