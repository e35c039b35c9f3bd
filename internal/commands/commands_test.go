package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/kasa/internal/clock"
	"github.com/Kerhoff/kasa/internal/config"
	"github.com/Kerhoff/kasa/internal/models"
	"github.com/Kerhoff/kasa/internal/service"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestHebrewCommand(t *testing.T) {
	out, err := execute(t, "hebrew", "2011-05-01", "--as-of", "2024-06-01")
	require.NoError(t, err)
	assert.Contains(t, out, "27 Nisan 5771")
	assert.Contains(t, out, "bar mitzvah: 2024-05-05")
	assert.Contains(t, out, "hebrew age on 2024-06-01: 13")

	_, err = execute(t, "hebrew", "May 1st")
	assert.Error(t, err)
}

func TestSeedInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")

	out, err := execute(t, "seed", "init", path, "--email", "gabbai@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "wrote")

	seed, err := config.LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, "gabbai@example.com", seed.Owner.Email)
	assert.NotEmpty(t, seed.Plans)

	_, err = execute(t, "seed", "init", path, "--email", "other@example.com")
	assert.ErrorContains(t, err, "already exists")

	_, err = execute(t, "seed", "init", path, "--email", "other@example.com", "--force")
	require.NoError(t, err)
	seed, err = config.LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, "other@example.com", seed.Owner.Email)
}

func TestRunInMemory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, config.SaveSeed(path, config.DefaultSeed("gabbai@example.com")))

	t.Setenv("DATABASE_URL", "")
	t.Setenv("KASA_SEED_FILE", path)
	t.Setenv("LOG_LEVEL", "error")

	out, err := execute(t, "run", "recurring", "--memory", "--json")
	require.NoError(t, err)

	var reports []service.Report
	require.NoError(t, json.Unmarshal([]byte(out), &reports))
	require.Len(t, reports, 1)
	assert.False(t, reports[0].Disabled)
	assert.Zero(t, reports[0].Failed)

	_, err = execute(t, "run", "everything", "--memory")
	assert.ErrorContains(t, err, "unknown job")
}

func TestOnlyInMemoryRunsApproveCharges(t *testing.T) {
	t.Setenv("DATABASE_URL", "")
	t.Setenv("KASA_SEED_FILE", "")
	t.Setenv("LOG_LEVEL", "error")

	a, err := openApp(true)
	require.NoError(t, err)
	defer a.Close()
	require.True(t, a.demo)

	ctx := context.Background()
	owner, err := a.store.Users.Create(ctx, &models.User{Email: "gabbai@example.com", IsActive: true})
	require.NoError(t, err)
	now := time.Now()
	enroll := func() {
		family, err := a.store.Families.Create(ctx, &models.Family{OwnerID: owner.ID, Name: "Cohen Family"})
		require.NoError(t, err)
		_, err = a.store.Enrollments.Create(ctx, &models.RecurringEnrollment{
			FamilyID:          family.ID,
			SavedInstrumentID: "pm_visa",
			Amount:            decimal.NewFromInt(10),
			StartDate:         clock.Date(now.Year(), now.Month(), 1),
			Active:            true,
		})
		require.NoError(t, err)
	}

	enroll()
	sum, err := a.service(nil).RunRecurringPayments(ctx, owner.ID, true)
	require.NoError(t, err)
	assert.Equal(t, 1, sum.Succeeded())

	a.demo = false
	enroll()
	sum, err = a.service(nil).RunRecurringPayments(ctx, owner.ID, true)
	require.NoError(t, err)
	assert.Zero(t, sum.Succeeded())
	assert.Equal(t, 1, sum.Skipped())
	assert.Equal(t, 1, sum.Failed())
	assert.True(t, models.IsGateway(sum.Err()))
}

func TestWriteReports(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeReports(&buf, nil, false))
	assert.Equal(t, "nothing to run\n", buf.String())

	buf.Reset()
	require.NoError(t, writeReports(&buf, []service.Report{
		{Job: "recurring", OwnerID: 1, RunID: "r1", Succeeded: 2, Failed: 1, Errors: []string{"card declined"}},
		{Job: "wedding", OwnerID: 1, RunID: "r2", Disabled: true},
	}, false))
	out := buf.String()
	assert.Contains(t, out, "2 succeeded, 0 skipped, 1 failed")
	assert.Contains(t, out, "error: card declined")
	assert.Contains(t, out, "disabled")
}
