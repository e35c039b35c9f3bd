// Package ledger computes balances from the transactions of a family or a
// member. It is a pure read model: nothing here touches storage.
package ledger

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/Kerhoff/kasa/internal/models"
)

// Kind tags a Transaction
type Kind string

const (
	KindPayment    Kind = "payment"
	KindRefund     Kind = "refund"
	KindWithdrawal Kind = "withdrawal"
	KindPlanCharge Kind = "plan_charge"
	KindLifecycle  Kind = "lifecycle_event"
)

// Projection is the shape every transaction shares.
type Projection struct {
	Kind        Kind
	Date        time.Time
	Amount      decimal.Decimal
	Description string
	Notes       string
}

// Transaction is one of PaymentTx, RefundTx, WithdrawalTx, PlanChargeTx or
// LifecycleTx.
type Transaction interface {
	Project() Projection
	// Effect is the signed change to the balance.
	Effect() decimal.Decimal
	isTransaction()
}

// PaymentTx credits the full payment amount on its date. Refunds are
// separate RefundTx entries.
type PaymentTx struct {
	Payment *models.Payment
}

func (t PaymentTx) Project() Projection {
	p := t.Payment
	return Projection{
		Kind:        KindPayment,
		Date:        p.Date,
		Amount:      p.Amount,
		Description: paymentDescription(p),
		Notes:       p.Notes,
	}
}

func (t PaymentTx) Effect() decimal.Decimal { return t.Payment.Amount }
func (PaymentTx) isTransaction()            {}

// RefundTx debits a succeeded refund on the refund date.
type RefundTx struct {
	Payment *models.Payment
	Refund  models.RefundEntry
}

func (t RefundTx) Project() Projection {
	return Projection{
		Kind:        KindRefund,
		Date:        t.Refund.Date,
		Amount:      t.Refund.Amount.Neg(),
		Description: fmt.Sprintf("Refund of payment #%d (%s)", t.Payment.ID, t.Refund.Reason),
		Notes:       t.Refund.Notes,
	}
}

func (t RefundTx) Effect() decimal.Decimal { return t.Refund.Amount.Neg() }
func (RefundTx) isTransaction()            {}

// WithdrawalTx debits a family withdrawal.
type WithdrawalTx struct {
	Withdrawal *models.Withdrawal
}

func (t WithdrawalTx) Project() Projection {
	w := t.Withdrawal
	desc := "Withdrawal"
	if w.Reason != "" {
		desc += ": " + w.Reason
	}
	return Projection{
		Kind:        KindWithdrawal,
		Date:        w.Date,
		Amount:      w.Amount.Neg(),
		Description: desc,
		Notes:       w.Notes,
	}
}

func (t WithdrawalTx) Effect() decimal.Decimal { return t.Withdrawal.Amount.Neg() }
func (WithdrawalTx) isTransaction()            {}

// PlanChargeTx is a plan-cost liability: either the initial assignment or
// a cycle rollover.
type PlanChargeTx struct {
	PlanNumber int
	Date       time.Time
	Amount     decimal.Decimal
	Cycle      bool
}

func (t PlanChargeTx) Project() Projection {
	desc := fmt.Sprintf("Plan %d yearly dues", t.PlanNumber)
	if t.Cycle {
		desc = fmt.Sprintf("Plan %d cycle renewal", t.PlanNumber)
	}
	return Projection{
		Kind:        KindPlanCharge,
		Date:        t.Date,
		Amount:      t.Amount.Neg(),
		Description: desc,
	}
}

func (t PlanChargeTx) Effect() decimal.Decimal { return t.Amount.Neg() }
func (PlanChargeTx) isTransaction()            {}

// LifecycleTx is reported but never affects the balance.
type LifecycleTx struct {
	Event *models.LifecycleEvent
}

func (t LifecycleTx) Project() Projection {
	e := t.Event
	return Projection{
		Kind:        KindLifecycle,
		Date:        e.Date,
		Amount:      e.Amount,
		Description: lifecycleDescription(e.Type),
		Notes:       e.Notes,
	}
}

func (LifecycleTx) Effect() decimal.Decimal { return decimal.Zero }
func (LifecycleTx) isTransaction()          {}

func paymentDescription(p *models.Payment) string {
	method := strings.ReplaceAll(string(p.Method), "_", " ")
	if method == "" {
		return "Payment"
	}
	if p.Frequency == models.PaymentMonthly {
		return fmt.Sprintf("Monthly payment (%s)", method)
	}
	return fmt.Sprintf("Payment (%s)", method)
}

var lifecycleNames = map[models.LifecycleEventType]string{}

func init() {
	for _, t := range models.DefaultLifecycleEventTypes() {
		lifecycleNames[t.Type] = t.Name
	}
}

func lifecycleDescription(t models.LifecycleEventType) string {
	if name, ok := lifecycleNames[t]; ok {
		return name
	}
	return string(t)
}

// kindOrder sorts same-day transactions: money in before money out.
var kindOrder = map[Kind]int{
	KindPlanCharge: 0,
	KindPayment:    1,
	KindRefund:     2,
	KindWithdrawal: 3,
	KindLifecycle:  4,
}

// Sort orders transactions by date, then kind. The sort is stable so input
// order breaks remaining ties.
func Sort(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i].Project(), txs[j].Project()
		if !a.Date.Equal(b.Date) {
			return a.Date.Before(b.Date)
		}
		return kindOrder[a.Kind] < kindOrder[b.Kind]
	})
}
