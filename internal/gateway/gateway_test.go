package gateway

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/kasa/internal/models"
)

type stubGateway struct {
	block  chan struct{}
	err    error
	charge int
}

func (s *stubGateway) Charge(ctx context.Context, req ChargeRequest) (*ChargeResult, error) {
	s.charge++
	if s.block != nil {
		<-s.block
	}
	if s.err != nil {
		return nil, s.err
	}
	return &ChargeResult{ExternalPaymentID: "ch_1"}, nil
}

func (s *stubGateway) Refund(ctx context.Context, externalPaymentID string, amountCents int64, reason models.RefundReason) (*RefundResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &RefundResult{ExternalRefundID: "re_1"}, nil
}

func TestCents(t *testing.T) {
	assert.Equal(t, int64(150050), ToCents(decimal.RequireFromString("1500.50")))
	assert.Equal(t, int64(13333), ToCents(decimal.RequireFromString("133.333")))
	assert.Equal(t, int64(13334), ToCents(decimal.RequireFromString("133.335")))
	assert.True(t, FromCents(150050).Equal(decimal.RequireFromString("1500.50")))
}

func TestWithTimeoutBoundsSlowGateway(t *testing.T) {
	stub := &stubGateway{block: make(chan struct{})}
	defer close(stub.block)

	g := WithTimeout(stub, 20*time.Millisecond)
	start := time.Now()
	_, err := g.Charge(context.Background(), ChargeRequest{InstrumentID: "pm_1", AmountCents: 100})

	assert.True(t, models.IsGateway(err))
	assert.True(t, models.IsRetryable(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestWithTimeoutWrapsFailures(t *testing.T) {
	g := WithTimeout(&stubGateway{err: ErrDeclined}, time.Second)

	_, err := g.Charge(context.Background(), ChargeRequest{InstrumentID: "pm_1", AmountCents: 100})
	require.Error(t, err)
	assert.True(t, models.IsGateway(err))
	assert.ErrorIs(t, err, ErrDeclined)

	_, err = g.Refund(context.Background(), "ch_1", 100, models.RefundReasonDuplicate)
	assert.True(t, models.IsGateway(err))
}

func TestWithTimeoutValidatesInput(t *testing.T) {
	stub := &stubGateway{}
	g := WithTimeout(stub, time.Second)

	_, err := g.Charge(context.Background(), ChargeRequest{AmountCents: 100})
	assert.True(t, models.IsValidation(err))
	_, err = g.Charge(context.Background(), ChargeRequest{InstrumentID: "pm_1"})
	assert.True(t, models.IsValidation(err))
	assert.Zero(t, stub.charge)

	_, err = g.Refund(context.Background(), "ch_1", 100, models.RefundReason("because"))
	assert.True(t, models.IsValidation(err))

	res, err := g.Refund(context.Background(), "ch_1", 100, models.RefundReasonOther)
	require.NoError(t, err)
	assert.Equal(t, "re_1", res.ExternalRefundID)
}

func TestOfflineGatewayRefusesMoneyMovement(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	g := WithTimeout(NewOffline(logger), time.Second)

	res, err := g.Charge(context.Background(), ChargeRequest{InstrumentID: "pm_1", AmountCents: 100})
	assert.Nil(t, res)
	assert.True(t, models.IsGateway(err))
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = g.Refund(context.Background(), "ch_1", 100, models.RefundReasonRequestedByCustomer)
	assert.True(t, models.IsGateway(err))
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestDemoGateway(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	g := WithTimeout(NewDemo(logger), time.Second)

	res, err := g.Charge(context.Background(), ChargeRequest{InstrumentID: "pm_1", AmountCents: 100})
	require.NoError(t, err)
	assert.Contains(t, res.ExternalPaymentID, "demo_ch_")

	_, err = g.Refund(context.Background(), res.ExternalPaymentID, 100, models.RefundReasonRequestedByCustomer)
	assert.NoError(t, err)
	assert.False(t, errors.Is(err, ErrDeclined))
}
