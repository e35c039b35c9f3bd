package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/Kerhoff/kasa/internal/models"
)

type priceTable map[int]decimal.Decimal

func (p priceTable) YearlyPrice(n int) decimal.Decimal { return p[n] }

var prices = priceTable{
	1: decimal.NewFromInt(1200),
	2: decimal.NewFromInt(1500),
	3: decimal.NewFromInt(1800),
	4: decimal.NewFromInt(2500),
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func assertDec(t *testing.T, want int64, got decimal.Decimal, msgAndArgs ...any) {
	t.Helper()
	assert.True(t, got.Equal(dec(want)), append([]any{"want %d, got %s", want, got.String()}, msgAndArgs...)...)
}

func exampleFamily() Snapshot {
	return Snapshot{
		Family: &models.Family{ID: 1, PlanNumber: 2, PlanAssignedAt: ptr(day(2024, 1, 1))},
		Payments: []*models.Payment{
			{ID: 10, FamilyID: 1, Amount: dec(1800), Date: day(2024, 1, 10), Method: models.PaymentMethodCreditCard},
		},
		Prices: prices,
	}
}

func TestFamilyBalanceBeforeAndAfterRefund(t *testing.T) {
	s := exampleFamily()

	b := ComputeFamilyBalance(s, day(2024, 1, 20))
	assertDec(t, 1800, b.TotalPayments)
	assertDec(t, 1500, b.PlanCost)
	assertDec(t, 300, b.Balance)

	s.Payments[0].RefundedAmount = dec(300)
	s.Payments[0].Refunds = []models.RefundEntry{{
		Amount: dec(300), Date: day(2024, 2, 1), Reason: models.RefundReasonRequestedByCustomer, Status: models.RefundSucceeded,
	}}

	b = ComputeFamilyBalance(s, day(2024, 2, 2))
	assertDec(t, 1500, b.TotalPayments)
	assertDec(t, 300, b.RefundedTotal)
	assertDec(t, 0, b.Balance)

	// The refund is dated 2024-02-01, so it is not yet counted on that day.
	b = ComputeFamilyBalance(s, day(2024, 2, 1))
	assertDec(t, 300, b.Balance)
}

func TestPlanCostStartsAfterAssignment(t *testing.T) {
	s := exampleFamily()
	b := ComputeFamilyBalance(s, day(2024, 1, 1))
	assertDec(t, 0, b.PlanCost)
	assertDec(t, 0, b.Balance)

	b = ComputeFamilyBalance(s, day(2024, 1, 2))
	assertDec(t, 1500, b.PlanCost)
	assertDec(t, -1500, b.Balance)
}

func TestUnassignedPlanCostsNothing(t *testing.T) {
	s := exampleFamily()
	s.Family.PlanNumber = 0
	b := ComputeFamilyBalance(s, day(2030, 1, 1))
	assertDec(t, 0, b.PlanCost)
	assertDec(t, 1800, b.Balance)
}

func TestWithdrawalsAndCycleCharges(t *testing.T) {
	s := exampleFamily()
	s.Withdrawals = []*models.Withdrawal{{FamilyID: 1, Amount: dec(200), Date: day(2024, 3, 1)}}
	s.PlanCharges = []*models.PlanCharge{{FamilyID: 1, CycleDate: day(2025, 1, 1), PlanNumber: 2, Amount: dec(1500), Kind: models.PlanChargeCycle}}

	b := ComputeFamilyBalance(s, day(2024, 12, 31))
	assertDec(t, 200, b.TotalWithdrawals)
	assertDec(t, 1500, b.PlanCost)
	assertDec(t, 100, b.Balance)

	b = ComputeFamilyBalance(s, day(2025, 1, 2))
	assertDec(t, 3000, b.PlanCost)
	assertDec(t, -1400, b.Balance)
}

func TestLifecycleEventsDoNotChangeBalance(t *testing.T) {
	s := exampleFamily()
	asOf := day(2024, 6, 1)
	before := ComputeFamilyBalance(s, asOf)

	s.Events = []*models.LifecycleEvent{
		{FamilyID: 1, Type: models.EventChasena, Amount: dec(12180), Date: day(2024, 4, 1)},
		{FamilyID: 1, Type: models.EventBirthBoy, Amount: dec(500), Date: day(2024, 5, 1)},
	}
	after := ComputeFamilyBalance(s, asOf)

	assert.True(t, before.Balance.Equal(after.Balance))
	assertDec(t, 0, before.TotalLifecyclePayments)
	assertDec(t, 12680, after.TotalLifecyclePayments)
}

func TestMemberPaymentsRollUpSeparately(t *testing.T) {
	s := exampleFamily()
	s.Payments = append(s.Payments, &models.Payment{ID: 11, FamilyID: 1, MemberID: ptr(int64(5)), Amount: dec(600), Date: day(2024, 1, 15)})

	fam := ComputeFamilyBalance(s, day(2024, 2, 1))
	assertDec(t, 1800, fam.TotalPayments)

	member := &models.Member{ID: 5, FamilyID: 1}
	mb := ComputeMemberBalance(s, member, day(2024, 2, 1))
	assertDec(t, 600, mb.TotalPayments)
	// No own plan: the family plan applies.
	assertDec(t, 1500, mb.PlanCost)
	assertDec(t, -900, mb.Balance)

	member.PaymentPlanAssigned = true
	member.PlanNumber = 1
	member.PlanAssignedAt = ptr(day(2024, 1, 10))
	mb = ComputeMemberBalance(s, member, day(2024, 2, 1))
	assertDec(t, 1200, mb.PlanCost)
	assertDec(t, -600, mb.Balance)
}

func TestMemberWithoutAnyPlan(t *testing.T) {
	s := Snapshot{Family: &models.Family{ID: 1}, Prices: prices}
	mb := ComputeMemberBalance(s, &models.Member{ID: 3, PlanNumber: 3}, day(2024, 1, 1))
	assertDec(t, 0, mb.PlanCost)
}

func TestSortOrdersByDateThenKind(t *testing.T) {
	p := &models.Payment{ID: 1, Amount: dec(10), Date: day(2024, 1, 2)}
	txs := []Transaction{
		RefundTx{Payment: p, Refund: models.RefundEntry{Amount: dec(5), Date: day(2024, 1, 2)}},
		LifecycleTx{Event: &models.LifecycleEvent{Date: day(2024, 1, 1), Amount: dec(1)}},
		PaymentTx{Payment: p},
	}
	Sort(txs)
	assert.Equal(t, KindLifecycle, txs[0].Project().Kind)
	assert.Equal(t, KindPayment, txs[1].Project().Kind)
	assert.Equal(t, KindRefund, txs[2].Project().Kind)
}

func TestProjectionSigns(t *testing.T) {
	p := &models.Payment{ID: 1, Amount: dec(100), Method: models.PaymentMethodQuickPay}
	assert.Equal(t, "Payment (quick pay)", PaymentTx{Payment: p}.Project().Description)
	assertDec(t, -40, RefundTx{Payment: p, Refund: models.RefundEntry{Amount: dec(40)}}.Project().Amount)
	assertDec(t, -70, WithdrawalTx{Withdrawal: &models.Withdrawal{Amount: dec(70)}}.Project().Amount)
	assertDec(t, 0, LifecycleTx{Event: &models.LifecycleEvent{Amount: dec(500)}}.Effect())
	assert.Equal(t, "Bar/Bat Mitzvah", LifecycleTx{Event: &models.LifecycleEvent{Type: models.EventBarMitzvah}}.Project().Description)
}
