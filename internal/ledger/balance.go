package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/kasa/internal/models"
)

// Pricer resolves the yearly price of a plan number.
type Pricer interface {
	YearlyPrice(planNumber int) decimal.Decimal
}

// Snapshot is everything persisted for one family. Member-scoped
// computations pick their subset out of it.
type Snapshot struct {
	Family      *models.Family
	Payments    []*models.Payment
	Withdrawals []*models.Withdrawal
	Events      []*models.LifecycleEvent
	PlanCharges []*models.PlanCharge
	Prices      Pricer
}

// Balance is the result of a balance computation as of a date. Only
// transactions dated strictly before AsOf are counted.
type Balance struct {
	AsOf                   time.Time       `json:"asOf"`
	TotalPayments          decimal.Decimal `json:"totalPayments"`
	RefundedTotal          decimal.Decimal `json:"refundedTotal"`
	TotalWithdrawals       decimal.Decimal `json:"totalWithdrawals"`
	PlanCost               decimal.Decimal `json:"planCost"`
	TotalLifecyclePayments decimal.Decimal `json:"totalLifecyclePayments"`
	Balance                decimal.Decimal `json:"balance"`
}

// FamilyTransactions returns the family-level transactions: payments not
// attributed to a member and their refunds, withdrawals, plan cost and
// lifecycle events.
func FamilyTransactions(s Snapshot) []Transaction {
	var txs []Transaction
	for _, p := range s.Payments {
		if p.IsMemberScoped() {
			continue
		}
		txs = appendPayment(txs, p)
	}
	for _, w := range s.Withdrawals {
		txs = append(txs, WithdrawalTx{Withdrawal: w})
	}
	if f := s.Family; f != nil && f.HasPlan() {
		txs = append(txs, assignmentCharge(f.PlanNumber, f.PlanAssignedAt, s.Prices))
	}
	for _, c := range s.PlanCharges {
		txs = append(txs, PlanChargeTx{PlanNumber: c.PlanNumber, Date: c.CycleDate, Amount: c.Amount, Cycle: true})
	}
	for _, e := range s.Events {
		txs = append(txs, LifecycleTx{Event: e})
	}
	Sort(txs)
	return txs
}

// MemberTransactions returns the member's own payments and refunds, its
// lifecycle events, and the plan cost of its own plan or, when it has none,
// the family plan. Withdrawals and cycle charges stay at family level.
func MemberTransactions(s Snapshot, m *models.Member) []Transaction {
	var txs []Transaction
	for _, p := range s.Payments {
		if p.MemberID == nil || *p.MemberID != m.ID {
			continue
		}
		txs = appendPayment(txs, p)
	}
	switch {
	case m.HasPlan():
		txs = append(txs, assignmentCharge(m.PlanNumber, m.PlanAssignedAt, s.Prices))
	case s.Family != nil && s.Family.HasPlan():
		txs = append(txs, assignmentCharge(s.Family.PlanNumber, s.Family.PlanAssignedAt, s.Prices))
	}
	for _, e := range s.Events {
		if e.MemberID != nil && *e.MemberID == m.ID {
			txs = append(txs, LifecycleTx{Event: e})
		}
	}
	Sort(txs)
	return txs
}

func appendPayment(txs []Transaction, p *models.Payment) []Transaction {
	txs = append(txs, PaymentTx{Payment: p})
	for _, r := range p.SucceededRefunds() {
		txs = append(txs, RefundTx{Payment: p, Refund: r})
	}
	return txs
}

func assignmentCharge(number int, assignedAt *time.Time, prices Pricer) PlanChargeTx {
	tx := PlanChargeTx{PlanNumber: number, Amount: decimal.Zero}
	if assignedAt != nil {
		tx.Date = *assignedAt
	}
	if prices != nil {
		tx.Amount = prices.YearlyPrice(number)
	}
	return tx
}

// Compute folds transactions dated before asOf into a Balance.
func Compute(txs []Transaction, asOf time.Time) Balance {
	b := Balance{
		AsOf:                   asOf,
		TotalPayments:          decimal.Zero,
		RefundedTotal:          decimal.Zero,
		TotalWithdrawals:       decimal.Zero,
		PlanCost:               decimal.Zero,
		TotalLifecyclePayments: decimal.Zero,
	}
	for _, tx := range txs {
		p := tx.Project()
		if !p.Date.Before(asOf) {
			continue
		}
		switch tx := tx.(type) {
		case PaymentTx:
			b.TotalPayments = b.TotalPayments.Add(tx.Payment.Amount)
		case RefundTx:
			b.TotalPayments = b.TotalPayments.Sub(tx.Refund.Amount)
			b.RefundedTotal = b.RefundedTotal.Add(tx.Refund.Amount)
		case WithdrawalTx:
			b.TotalWithdrawals = b.TotalWithdrawals.Add(tx.Withdrawal.Amount)
		case PlanChargeTx:
			b.PlanCost = b.PlanCost.Add(tx.Amount)
		case LifecycleTx:
			b.TotalLifecyclePayments = b.TotalLifecyclePayments.Add(tx.Event.Amount)
		}
	}
	b.Balance = b.TotalPayments.Sub(b.TotalWithdrawals).Sub(b.PlanCost)
	return b
}

// ComputeFamilyBalance returns the family balance as of asOf:
// net family payments minus withdrawals minus plan cost. Lifecycle events
// are totalled separately and never change the balance.
func ComputeFamilyBalance(s Snapshot, asOf time.Time) Balance {
	return Compute(FamilyTransactions(s), asOf)
}

// ComputeMemberBalance returns the balance of one member as of asOf.
func ComputeMemberBalance(s Snapshot, m *models.Member, asOf time.Time) Balance {
	return Compute(MemberTransactions(s, m), asOf)
}
