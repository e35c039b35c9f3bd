package statement

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/kasa/internal/ledger"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/plans"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func dec(v int64) decimal.Decimal { return decimal.NewFromInt(v) }

func exampleSnapshot() ledger.Snapshot {
	return ledger.Snapshot{
		Family: &models.Family{ID: 1, PlanNumber: 2, PlanAssignedAt: ptr(day(2024, 1, 1))},
		Payments: []*models.Payment{{
			ID:             10,
			FamilyID:       1,
			Amount:         dec(1800),
			Date:           day(2024, 1, 10),
			Method:         models.PaymentMethodCreditCard,
			RefundedAmount: dec(300),
			Refunds: []models.RefundEntry{{
				Amount: dec(300),
				Date:   day(2024, 2, 1),
				Reason: models.RefundReasonRequestedByCustomer,
				Status: models.RefundSucceeded,
			}},
		}},
		Prices: plans.NewCatalog(nil),
	}
}

func TestExampleStatement(t *testing.T) {
	st, err := Generate(exampleSnapshot(), day(2024, 1, 1), day(2024, 3, 1))
	require.NoError(t, err)

	assert.True(t, st.OpeningBalance.IsZero(), st.OpeningBalance.String())
	assert.True(t, st.Income.Equal(dec(1500)), st.Income.String())
	assert.True(t, st.Withdrawals.IsZero())
	assert.True(t, st.Expenses.Equal(dec(1500)), st.Expenses.String())
	assert.True(t, st.ClosingBalance.IsZero(), st.ClosingBalance.String())
	assert.Equal(t, int64(1), st.FamilyID)

	require.Len(t, st.LineItems, 3)
	assert.Equal(t, models.LineItemPlanCharge, st.LineItems[0].Type)
	assert.Equal(t, models.LineItemPayment, st.LineItems[1].Type)
	require.NotNil(t, st.LineItems[1].OriginalAmount)
	assert.True(t, st.LineItems[1].OriginalAmount.Equal(dec(1800)))
	assert.True(t, st.LineItems[1].Amount.Equal(dec(1800)))
	assert.Equal(t, "refunded 300.00", st.LineItems[1].Notes)
	assert.Equal(t, models.LineItemRefund, st.LineItems[2].Type)
	assert.True(t, st.LineItems[2].Amount.Equal(dec(-300)))

	assert.True(t, ItemizedTotal(st).Equal(st.ClosingBalance.Sub(st.OpeningBalance)))
}

func TestRefundInLaterPeriod(t *testing.T) {
	s := exampleSnapshot()

	jan, err := Generate(s, day(2024, 1, 1), day(2024, 2, 1))
	require.NoError(t, err)
	assert.True(t, jan.Income.Equal(dec(1800)))
	assert.True(t, jan.ClosingBalance.Equal(dec(300)))
	require.Len(t, jan.LineItems, 2)
	assert.Nil(t, jan.LineItems[1].OriginalAmount, "refund after the period is not noted")
	assert.Empty(t, jan.LineItems[1].Notes)

	feb, err := Generate(s, day(2024, 2, 1), day(2024, 3, 1))
	require.NoError(t, err)
	assert.True(t, feb.OpeningBalance.Equal(dec(300)))
	assert.True(t, feb.Income.Equal(dec(-300)))
	assert.True(t, feb.ClosingBalance.IsZero())
	assert.NoError(t, CheckChain(jan, feb))
}

func TestLifecycleEventsAreReportedNotSummed(t *testing.T) {
	s := exampleSnapshot()
	without, err := Generate(s, day(2024, 1, 1), day(2024, 3, 1))
	require.NoError(t, err)

	s.Events = []*models.LifecycleEvent{{FamilyID: 1, Type: models.EventBarMitzvah, Amount: dec(1800), Date: day(2024, 2, 15)}}
	with, err := Generate(s, day(2024, 1, 1), day(2024, 3, 1))
	require.NoError(t, err)

	assert.True(t, with.ClosingBalance.Equal(without.ClosingBalance))
	assert.True(t, with.Income.Equal(without.Income))
	assert.True(t, with.LifecycleEvents.Equal(dec(1800)))
	require.Len(t, with.LineItems, 4)
	assert.True(t, with.LineItems[3].Informational)
	assert.True(t, ItemizedTotal(with).Equal(with.ClosingBalance.Sub(with.OpeningBalance)))
}

func TestInvalidPeriod(t *testing.T) {
	_, err := Generate(exampleSnapshot(), day(2024, 3, 1), day(2024, 3, 1))
	assert.True(t, models.IsValidation(err))
}

func TestCheckChainDetectsGap(t *testing.T) {
	prev := &models.Statement{Number: "STMT-000001-1", ToDate: day(2024, 2, 1), ClosingBalance: dec(100)}
	next := &models.Statement{FromDate: day(2024, 2, 1), OpeningBalance: dec(90)}
	err := CheckChain(prev, next)
	assert.True(t, models.IsReconciliation(err))

	// Non-contiguous periods are not compared.
	next.FromDate = day(2024, 3, 1)
	assert.NoError(t, CheckChain(prev, next))
	assert.NoError(t, CheckChain(nil, next))
}

func TestCheckChainRejectsRepeatAndOverlap(t *testing.T) {
	prev := &models.Statement{Number: "STMT-000001-1", FromDate: day(2024, 1, 1), ToDate: day(2024, 2, 1), ClosingBalance: dec(100)}

	again := &models.Statement{FromDate: day(2024, 1, 1), ToDate: day(2024, 2, 1), OpeningBalance: dec(0)}
	assert.ErrorIs(t, CheckChain(prev, again), models.ErrIdempotencyConflict)

	overlapping := &models.Statement{FromDate: day(2024, 1, 15), ToDate: day(2024, 3, 1), OpeningBalance: dec(50)}
	err := CheckChain(prev, overlapping)
	assert.True(t, models.IsValidation(err), "got %v", err)

	earlier := &models.Statement{FromDate: day(2023, 12, 1), ToDate: day(2024, 1, 1)}
	assert.True(t, models.IsValidation(CheckChain(prev, earlier)))

	next := &models.Statement{FromDate: day(2024, 2, 1), ToDate: day(2024, 3, 1), OpeningBalance: dec(100)}
	assert.NoError(t, CheckChain(prev, next))
}

func TestMemberStatement(t *testing.T) {
	s := exampleSnapshot()
	s.Payments = append(s.Payments, &models.Payment{ID: 11, FamilyID: 1, MemberID: ptr(int64(5)), Amount: dec(100), Date: day(2024, 1, 20)})
	m := &models.Member{ID: 5, FamilyID: 1, PaymentPlanAssigned: true, PlanNumber: 1, PlanAssignedAt: ptr(day(2023, 12, 1))}

	st, err := GenerateForMember(s, m, day(2024, 1, 1), day(2024, 2, 1))
	require.NoError(t, err)
	require.NotNil(t, st.MemberID)
	assert.Equal(t, int64(5), *st.MemberID)
	assert.True(t, st.OpeningBalance.Equal(dec(-1200)))
	assert.True(t, st.Income.Equal(dec(100)))
	assert.True(t, st.ClosingBalance.Equal(dec(-1100)))
}

func TestNumbers(t *testing.T) {
	assert.Equal(t, "STMT-000042-1", Number(42, 1))
	assert.Equal(t, "STMT-234567-12", Number(1234567, 12))
	assert.Equal(t, "STMT-MEM-000007-3", MemberNumber(7, 3))
}

func randomSnapshot(rng *rand.Rand) ledger.Snapshot {
	start := day(2022, 1, 1)
	randDay := func() time.Time { return start.AddDate(0, 0, rng.Intn(3*365)) }
	money := func() decimal.Decimal { return decimal.New(int64(1+rng.Intn(500000)), -2) }

	s := ledger.Snapshot{
		Family: &models.Family{ID: 9},
		Prices: plans.NewCatalog([]*models.PaymentPlan{{Number: 2, YearlyPrice: decimal.RequireFromString("1500.50")}}),
	}
	if rng.Intn(3) > 0 {
		s.Family.PlanNumber = 1 + rng.Intn(4)
		s.Family.PlanAssignedAt = ptr(randDay())
	}

	for i := 0; i < rng.Intn(25); i++ {
		p := &models.Payment{ID: int64(i + 1), FamilyID: 9, Amount: money(), Date: randDay(), RefundedAmount: decimal.Zero}
		if rng.Intn(4) == 0 {
			p.MemberID = ptr(int64(1 + rng.Intn(2)))
		}
		for j := 0; j < rng.Intn(3); j++ {
			amt := p.Remaining().Mul(decimal.NewFromFloat(rng.Float64())).Round(2)
			if !amt.IsPositive() {
				continue
			}
			status := models.RefundSucceeded
			if rng.Intn(5) == 0 {
				status = models.RefundFailed
			}
			p.Refunds = append(p.Refunds, models.RefundEntry{Amount: amt, Date: p.Date.AddDate(0, 0, rng.Intn(90)), Status: status})
			if status == models.RefundSucceeded {
				p.RefundedAmount = p.RefundedAmount.Add(amt)
			}
		}
		s.Payments = append(s.Payments, p)
	}
	for i := 0; i < rng.Intn(6); i++ {
		s.Withdrawals = append(s.Withdrawals, &models.Withdrawal{FamilyID: 9, Amount: money(), Date: randDay()})
	}
	for i := 0; i < rng.Intn(3); i++ {
		s.PlanCharges = append(s.PlanCharges, &models.PlanCharge{FamilyID: 9, CycleDate: randDay(), PlanNumber: 2, Amount: dec(1500)})
	}
	for i := 0; i < rng.Intn(4); i++ {
		s.Events = append(s.Events, &models.LifecycleEvent{FamilyID: 9, Type: models.EventBirthGirl, Amount: money(), Date: randDay()})
	}
	return s
}

func TestStatementsReconcileWithLedger(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	members := []*models.Member{{ID: 1, FamilyID: 9}, {ID: 2, FamilyID: 9, PaymentPlanAssigned: true, PlanNumber: 3}}

	for iter := 0; iter < 300; iter++ {
		s := randomSnapshot(rng)

		cuts := []time.Time{day(2021, 6, 1)}
		for len(cuts) < 8 {
			next := cuts[len(cuts)-1].AddDate(0, 0, 1+rng.Intn(200))
			cuts = append(cuts, next)
		}

		var prev *models.Statement
		for i := 0; i+1 < len(cuts); i++ {
			st, err := Generate(s, cuts[i], cuts[i+1])
			require.NoError(t, err)

			want := ledger.ComputeFamilyBalance(s, cuts[i+1]).Balance
			require.True(t, st.ClosingBalance.Equal(want), "iter %d: closing %s, ledger %s", iter, st.ClosingBalance, want)
			require.True(t, ItemizedTotal(st).Equal(st.ClosingBalance.Sub(st.OpeningBalance)))
			require.NoError(t, CheckChain(prev, st))
			prev = st

			for _, m := range members {
				ms, err := GenerateForMember(s, m, cuts[i], cuts[i+1])
				require.NoError(t, err)
				require.True(t, ms.ClosingBalance.Equal(ledger.ComputeMemberBalance(s, m, cuts[i+1]).Balance))
			}
		}
	}
}
