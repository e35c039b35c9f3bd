package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/kasa/internal/config"
	"github.com/Kerhoff/kasa/internal/models"
)

func TestApplySeedKeepsExistingPlans(t *testing.T) {
	env := newTestEnv(t, day(2024, 3, 1))
	ctx := context.Background()

	seed := config.DefaultSeed("gabbai@example.com")
	seed.Plans = append(seed.Plans, config.SeedPlan{Number: 5, Name: "Plan 5", YearlyPrice: dec("3600")})
	seed.Automation.EnableMonthlyPayments = false

	res, err := env.svc.ApplySeed(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, env.owner.ID, res.Owner.ID)
	assert.Equal(t, 1, res.PlansCreated)
	assert.Equal(t, 4, res.PlansKept)

	catalog, err := env.svc.Catalog(ctx, env.owner.ID)
	require.NoError(t, err)
	assertDecimal(t, "3600", catalog.YearlyPrice(5))
	assertDecimal(t, "1500", catalog.YearlyPrice(2))

	cycle, err := env.store.Settings.GetCycleConfig(ctx, env.owner.ID)
	require.NoError(t, err)
	require.NotNil(t, cycle)
	assert.Equal(t, 9, cycle.CycleStartMonth)
	assert.Equal(t, 1, cycle.CycleStartDay)

	settings, err := env.svc.AutomationSettings(ctx, env.owner.ID)
	require.NoError(t, err)
	assert.False(t, settings.EnableMonthlyPayments)
	assert.True(t, settings.EnableCycleRollover)

	// Applying again changes nothing.
	res, err = env.svc.ApplySeed(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, 0, res.PlansCreated)
	assert.Equal(t, 5, res.PlansKept)
}

func TestApplySeedCreatesTelegramOwner(t *testing.T) {
	env := newTestEnv(t, day(2024, 3, 1))
	ctx := context.Background()

	seed := config.DefaultSeed("Treasurer@Example.com")
	seed.Owner.TelegramID = ptr(int64(555))

	res, err := env.svc.ApplySeed(ctx, seed)
	require.NoError(t, err)
	assert.Equal(t, "treasurer@example.com", res.Owner.Email)
	assert.Equal(t, 4, res.PlansCreated)

	owner, err := env.svc.OwnerByTelegramID(ctx, 555)
	require.NoError(t, err)
	assert.Equal(t, res.Owner.ID, owner.ID)

	other := config.DefaultSeed("someone@example.com")
	other.Owner.TelegramID = ptr(int64(555))
	_, err = env.svc.ApplySeed(ctx, other)
	assert.True(t, models.IsValidation(err))
}

func TestApplySeedRejectsInvalidCycle(t *testing.T) {
	env := newTestEnv(t, day(2024, 3, 1))

	seed := config.DefaultSeed("gabbai@example.com")
	seed.Cycle.CycleStartMonth = 13

	_, err := env.svc.ApplySeed(context.Background(), seed)
	assert.True(t, models.IsValidation(err))
}
