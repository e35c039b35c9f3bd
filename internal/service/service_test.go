package service

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/gateway"
	"github.com/Kerhoff/kasa/internal/metrics"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/notify"
	"github.com/Kerhoff/kasa/internal/repository"
	"github.com/Kerhoff/kasa/internal/repository/memory"
)

// fakeGateway charges everything unless an error is scripted for the
// instrument.
type fakeGateway struct {
	mu        sync.Mutex
	chargeErr map[string]error
	refundErr error
	charges   []gateway.ChargeRequest
	refunds   []string
}

func (g *fakeGateway) Charge(_ context.Context, req gateway.ChargeRequest) (*gateway.ChargeResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.charges = append(g.charges, req)
	if err := g.chargeErr[req.InstrumentID]; err != nil {
		return nil, err
	}
	return &gateway.ChargeResult{ExternalPaymentID: "ch_" + req.IdempotencyKey}, nil
}

func (g *fakeGateway) Refund(_ context.Context, externalPaymentID string, _ int64, _ models.RefundReason) (*gateway.RefundResult, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.refunds = append(g.refunds, externalPaymentID)
	if g.refundErr != nil {
		return nil, g.refundErr
	}
	return &gateway.RefundResult{ExternalRefundID: fmt.Sprintf("re_%d", len(g.refunds))}, nil
}

func (g *fakeGateway) failCharges(instrument string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.chargeErr == nil {
		g.chargeErr = make(map[string]error)
	}
	g.chargeErr[instrument] = err
}

func (g *fakeGateway) chargeCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.charges)
}

type testEnv struct {
	svc     *Service
	store   *repository.Store
	clock   *clock.Fixed
	gateway *fakeGateway
	sent    *notify.Recorder
	owner   *models.User
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()
	ctx := context.Background()

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	store := memory.New().Repositories()
	env := &testEnv{
		store:   store,
		clock:   clock.NewFixed(now),
		gateway: &fakeGateway{},
		sent:    &notify.Recorder{},
	}
	env.svc = New(store, logger, Deps{
		Clock:    env.clock,
		Gateway:  gateway.WithTimeout(env.gateway, time.Second),
		Notifier: env.sent,
		Metrics:  metrics.New(nil),
		Workers:  3,
	})

	owner, err := store.Users.Create(ctx, &models.User{Email: "gabbai@example.com", FirstName: "Moshe", IsActive: true})
	require.NoError(t, err)
	env.owner = owner

	for number, price := range map[int]int64{1: 1200, 2: 1500, 3: 1800, 4: 2500} {
		_, err := store.Plans.Create(ctx, &models.PaymentPlan{
			OwnerID:     owner.ID,
			Number:      number,
			Name:        fmt.Sprintf("Plan %d", number),
			YearlyPrice: decimal.NewFromInt(price),
		})
		require.NoError(t, err)
	}
	return env
}

func (e *testEnv) family(t *testing.T, mutate func(f *models.Family)) *models.Family {
	t.Helper()
	f := &models.Family{OwnerID: e.owner.ID, Name: "Cohen Family"}
	if mutate != nil {
		mutate(f)
	}
	created, err := e.store.Families.Create(context.Background(), f)
	require.NoError(t, err)
	return created
}

func (e *testEnv) member(t *testing.T, familyID int64, mutate func(m *models.Member)) *models.Member {
	t.Helper()
	m := &models.Member{FamilyID: familyID, FirstName: "Dovid", LastName: "Cohen", Gender: models.GenderMale}
	if mutate != nil {
		mutate(m)
	}
	created, err := e.store.Members.Create(context.Background(), m)
	require.NoError(t, err)
	return created
}

func (e *testEnv) setToday(t time.Time) {
	e.clock.Set(t.Add(9 * time.Hour))
}

func day(year int, month time.Month, d int) time.Time {
	return clock.Date(year, month, d)
}

func ptr[T any](v T) *T {
	return &v
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

func TestNewDefaults(t *testing.T) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	svc := New(memory.New().Repositories(), logger, Deps{})

	assert.Equal(t, DefaultWorkers, svc.workers)
	assert.NotNil(t, svc.Clock())
	cfg, ok := svc.EventType(models.EventChasena)
	require.True(t, ok)
	assertDecimal(t, "12180", cfg.Amount)
}

func TestEnsureOwner(t *testing.T) {
	env := newTestEnv(t, time.Now())
	ctx := context.Background()

	same, err := env.svc.EnsureOwner(ctx, " Gabbai@Example.com ", "", "")
	require.NoError(t, err)
	assert.Equal(t, env.owner.ID, same.ID)

	created, err := env.svc.EnsureOwner(ctx, "treasurer@example.com", "Chaim", "Levi")
	require.NoError(t, err)
	assert.NotEqual(t, env.owner.ID, created.ID)
	assert.Equal(t, "treasurer@example.com", created.Email)

	_, err = env.svc.EnsureOwner(ctx, "  ", "", "")
	assert.True(t, models.IsValidation(err))
}

func TestOwnerByTelegramID(t *testing.T) {
	env := newTestEnv(t, time.Now())
	ctx := context.Background()

	user, err := env.store.Users.Create(ctx, &models.User{Email: "admin@example.com", TelegramID: ptr(int64(777)), IsActive: true})
	require.NoError(t, err)

	got, err := env.svc.OwnerByTelegramID(ctx, 777)
	require.NoError(t, err)
	assert.Equal(t, user.ID, got.ID)

	_, err = env.svc.OwnerByTelegramID(ctx, 778)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestAutomationSettingsDefault(t *testing.T) {
	env := newTestEnv(t, time.Now())
	ctx := context.Background()

	settings, err := env.svc.AutomationSettings(ctx, env.owner.ID)
	require.NoError(t, err)
	assert.True(t, settings.EnableCycleRollover)

	off := models.DefaultAutomationSettings(env.owner.ID)
	off.EnableCycleRollover = false
	require.NoError(t, env.store.Settings.SaveAutomationSettings(ctx, off))

	settings, err = env.svc.AutomationSettings(ctx, env.owner.ID)
	require.NoError(t, err)
	assert.False(t, settings.EnableCycleRollover)
}
