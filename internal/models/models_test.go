package models

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPaymentRefundState(t *testing.T) {
	p := &Payment{Amount: decimal.NewFromInt(1800)}
	assert.False(t, p.IsPartiallyRefunded())
	assert.False(t, p.IsFullyRefunded())

	p.RefundedAmount = decimal.NewFromInt(300)
	assert.True(t, p.IsPartiallyRefunded())
	assert.True(t, p.Remaining().Equal(decimal.NewFromInt(1500)))

	p.RefundedAmount = decimal.NewFromInt(1800)
	assert.True(t, p.IsFullyRefunded())
	assert.False(t, p.IsPartiallyRefunded())
}

func TestRefundedBeforeCountsSucceededOnly(t *testing.T) {
	p := &Payment{
		Amount: decimal.NewFromInt(1000),
		Refunds: []RefundEntry{
			{Amount: decimal.NewFromInt(100), Date: date(2024, 2, 1), Status: RefundSucceeded},
			{Amount: decimal.NewFromInt(200), Date: date(2024, 2, 1), Status: RefundFailed},
			{Amount: decimal.NewFromInt(50), Date: date(2024, 3, 1), Status: RefundSucceeded},
			{Amount: decimal.NewFromInt(70), Date: date(2024, 1, 5), Status: RefundPending},
		},
	}
	assert.True(t, p.RefundedBefore(date(2024, 2, 1)).IsZero())
	assert.True(t, p.RefundedBefore(date(2024, 2, 2)).Equal(decimal.NewFromInt(100)))
	assert.True(t, p.RefundedBefore(date(2025, 1, 1)).Equal(decimal.NewFromInt(150)))
}

func TestPaymentValidate(t *testing.T) {
	p := &Payment{FamilyID: 1, Amount: decimal.NewFromInt(-5), Date: date(2024, 1, 1)}
	err := p.Validate()
	require.Error(t, err)
	assert.True(t, IsValidation(err))

	p.Amount = decimal.NewFromInt(5)
	assert.NoError(t, p.Validate())
}

func TestMonthlyPriceIsDerived(t *testing.T) {
	plan := &PaymentPlan{YearlyPrice: decimal.NewFromInt(1500)}
	assert.Equal(t, "125", plan.MonthlyPrice().String())

	plan.YearlyPrice = decimal.NewFromInt(1000)
	assert.Equal(t, "83.33", plan.MonthlyPrice().String())
}

func TestEnrollmentBillingKeyAndDay(t *testing.T) {
	memberID := int64(42)
	e := &RecurringEnrollment{FamilyID: 7, StartDate: date(2024, 1, 31)}
	assert.Equal(t, "family:7:2024-02", e.BillingKey(2024, time.February))
	assert.Equal(t, date(2024, 2, 29), e.BillingDay(2024, time.February))
	assert.Equal(t, date(2024, 3, 31), e.BillingDay(2024, time.March))

	e.MemberID = &memberID
	assert.Equal(t, "member:42:2024-12", e.BillingKey(2024, time.December))
}

func TestCycleConfigValidate(t *testing.T) {
	tests := []struct {
		month, day int
		ok         bool
	}{
		{1, 1, true},
		{12, 31, true},
		{0, 1, false},
		{13, 1, false},
		{2, 0, false},
		{2, 32, false},
	}
	for _, tt := range tests {
		err := (&CycleConfig{CycleStartMonth: tt.month, CycleStartDay: tt.day}).Validate()
		if tt.ok {
			assert.NoError(t, err)
		} else {
			assert.True(t, IsValidation(err))
		}
	}
}

func TestMemberWeddingDue(t *testing.T) {
	wedding := date(2024, 6, 10)
	m := &Member{WeddingDate: &wedding}
	assert.False(t, m.WeddingDue(date(2024, 6, 9)))
	assert.True(t, m.WeddingDue(date(2024, 6, 10)))
	assert.True(t, (&Member{ConversionState: ConversionConverting}).IsActive())
	assert.False(t, (&Member{ConversionState: ConversionConverted}).IsActive())
}

func TestErrorHelpers(t *testing.T) {
	gw := &GatewayError{Op: "charge", Err: assert.AnError}
	assert.True(t, IsGateway(gw))
	assert.True(t, IsRetryable(gw))
	assert.ErrorIs(t, gw, assert.AnError)
	assert.False(t, IsRetryable(&ValidationError{Field: "amount", Message: "bad"}))
	assert.True(t, IsReconciliation(&ReconciliationError{Expected: decimal.Zero, Actual: decimal.NewFromInt(1)}))
}
