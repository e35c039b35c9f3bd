// Package statement builds period statements on top of the ledger. It never
// writes anything; persisting an issued statement is the caller's choice.
package statement

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/kasa/internal/ledger"
	"github.com/Kerhoff/kasa/internal/models"
)

// Generate builds the family statement for [from, to).
func Generate(s ledger.Snapshot, from, to time.Time) (*models.Statement, error) {
	if s.Family == nil {
		return nil, &models.ValidationError{Field: "family", Message: "is required"}
	}
	st, err := build(ledger.FamilyTransactions(s), from, to)
	if err != nil {
		return nil, err
	}
	st.FamilyID = s.Family.ID
	return st, nil
}

// GenerateForMember builds the statement of one member for [from, to).
func GenerateForMember(s ledger.Snapshot, m *models.Member, from, to time.Time) (*models.Statement, error) {
	st, err := build(ledger.MemberTransactions(s, m), from, to)
	if err != nil {
		return nil, err
	}
	st.FamilyID = m.FamilyID
	memberID := m.ID
	st.MemberID = &memberID
	return st, nil
}

func build(txs []ledger.Transaction, from, to time.Time) (*models.Statement, error) {
	if !from.Before(to) {
		return nil, &models.ValidationError{Field: "toDate", Message: "must be after fromDate"}
	}

	st := &models.Statement{
		FromDate:        from,
		ToDate:          to,
		OpeningBalance:  ledger.Compute(txs, from).Balance,
		Income:          decimal.Zero,
		Withdrawals:     decimal.Zero,
		Expenses:        decimal.Zero,
		LifecycleEvents: decimal.Zero,
		LineItems:       []models.LineItem{},
	}

	for _, tx := range txs {
		p := tx.Project()
		if p.Date.Before(from) || !p.Date.Before(to) {
			continue
		}
		item := models.LineItem{
			Date:        p.Date,
			Type:        lineItemType(p.Kind),
			Description: p.Description,
			Amount:      p.Amount,
			Notes:       p.Notes,
		}

		switch tx := tx.(type) {
		case ledger.PaymentTx:
			st.Income = st.Income.Add(tx.Payment.Amount)
			if refunded := tx.Payment.RefundedBefore(to); refunded.IsPositive() {
				original := tx.Payment.Amount
				item.OriginalAmount = &original
				item.Notes = joinNotes(item.Notes, fmt.Sprintf("refunded %s", refunded.StringFixed(2)))
			}
		case ledger.RefundTx:
			st.Income = st.Income.Sub(tx.Refund.Amount)
		case ledger.WithdrawalTx:
			st.Withdrawals = st.Withdrawals.Add(tx.Withdrawal.Amount)
		case ledger.PlanChargeTx:
			st.Expenses = st.Expenses.Add(tx.Amount)
		case ledger.LifecycleTx:
			st.LifecycleEvents = st.LifecycleEvents.Add(tx.Event.Amount)
			item.Informational = true
		}
		st.LineItems = append(st.LineItems, item)
	}

	st.ClosingBalance = st.OpeningBalance.Add(st.Income).Sub(st.Withdrawals).Sub(st.Expenses)

	expected := ledger.Compute(txs, to).Balance
	if !st.ClosingBalance.Equal(expected) {
		return nil, &models.ReconciliationError{
			Expected: expected,
			Actual:   st.ClosingBalance,
			Detail:   fmt.Sprintf("period %s to %s", from.Format("2006-01-02"), to.Format("2006-01-02")),
		}
	}
	return st, nil
}

func lineItemType(k ledger.Kind) models.LineItemType {
	switch k {
	case ledger.KindPayment:
		return models.LineItemPayment
	case ledger.KindRefund:
		return models.LineItemRefund
	case ledger.KindWithdrawal:
		return models.LineItemWithdrawal
	case ledger.KindPlanCharge:
		return models.LineItemPlanCharge
	default:
		return models.LineItemLifecycle
	}
}

func joinNotes(a, b string) string {
	if a == "" {
		return b
	}
	return a + "; " + b
}

// CheckChain verifies that next may follow prev, the latest statement of the
// same ledger. Issuing prev's period again is an idempotency conflict, and a
// period starting before prev ended overlaps it. When next starts where prev
// ended, its opening balance must equal prev's closing balance.
func CheckChain(prev, next *models.Statement) error {
	if prev == nil {
		return nil
	}
	if prev.FromDate.Equal(next.FromDate) && prev.ToDate.Equal(next.ToDate) {
		return fmt.Errorf("statement %s already covers %s to %s: %w",
			prev.Number, next.FromDate.Format("2006-01-02"), next.ToDate.Format("2006-01-02"), models.ErrIdempotencyConflict)
	}
	if next.FromDate.Before(prev.ToDate) {
		return &models.ValidationError{
			Field:   "fromDate",
			Message: fmt.Sprintf("overlaps statement %s, which ends %s", prev.Number, prev.ToDate.Format("2006-01-02")),
		}
	}
	if !prev.ToDate.Equal(next.FromDate) {
		return nil
	}
	if !prev.ClosingBalance.Equal(next.OpeningBalance) {
		return &models.ReconciliationError{
			Expected: prev.ClosingBalance,
			Actual:   next.OpeningBalance,
			Detail:   fmt.Sprintf("opening balance does not continue statement %s", prev.Number),
		}
	}
	return nil
}

// ItemizedTotal sums the balance-affecting line items. It equals
// closing minus opening balance.
func ItemizedTotal(st *models.Statement) decimal.Decimal {
	total := decimal.Zero
	for _, item := range st.LineItems {
		if item.Informational {
			continue
		}
		total = total.Add(item.Amount)
	}
	return total
}
