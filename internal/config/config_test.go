package config

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Kerhoff/kasa/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://localhost/kasa")
	for _, key := range []string{"LOG_LEVEL", "PORT", "SCHEDULER_INTERVAL", "SCHEDULER_WORKERS", "GATEWAY_TIMEOUT", "TELEGRAM_TIMEOUT", "TELEGRAM_ADMIN_CHAT_ID"} {
		t.Setenv(key, "")
	}

	cfg, err := Load(true)
	require.NoError(t, err)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, time.Hour, cfg.SchedulerInterval)
	assert.Equal(t, 4, cfg.SchedulerWorkers)
	assert.Equal(t, 15*time.Second, cfg.GatewayTimeout)
	assert.Equal(t, 10*time.Second, cfg.TelegramTimeout)
	assert.Zero(t, cfg.TelegramAdminChatID)
}

func TestLoadRequiresDatabaseURL(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := Load(true)
	assert.Error(t, err)

	_, err = Load(false)
	assert.NoError(t, err)
}

func TestLoadRejectsBadValues(t *testing.T) {
	tests := map[string]string{
		"SCHEDULER_INTERVAL":     "soon",
		"SCHEDULER_WORKERS":      "-1",
		"GATEWAY_TIMEOUT":        "0s",
		"TELEGRAM_TIMEOUT":       "-1s",
		"TELEGRAM_ADMIN_CHAT_ID": "admins",
	}
	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load(false)
			assert.Error(t, err)
		})
	}
}

func TestSeedRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kasa.yaml")
	require.NoError(t, SaveSeed(path, DefaultSeed("gabbai@example.com")))

	seed, err := LoadSeed(path)
	require.NoError(t, err)
	assert.Equal(t, "gabbai@example.com", seed.Owner.Email)
	require.Len(t, seed.Plans, 4)
	assert.Equal(t, "1800", seed.Plans[2].YearlyPrice.String())
	require.Len(t, seed.LifecycleEvents, 4)
	assert.Equal(t, models.EventChasena, seed.LifecycleEvents[0].Type)
	assert.Equal(t, "12180", seed.LifecycleEvents[0].Amount.String())
	assert.Equal(t, 9, seed.Cycle.CycleStartMonth)
	assert.True(t, seed.Automation.EnableWeddingConversion)
}

func TestSeedValidate(t *testing.T) {
	seed := DefaultSeed("")
	assert.True(t, models.IsValidation(seed.Validate()))

	seed = DefaultSeed("gabbai@example.com")
	seed.Plans = append(seed.Plans, SeedPlan{Number: 1, Name: "again", YearlyPrice: seed.Plans[0].YearlyPrice})
	assert.True(t, models.IsValidation(seed.Validate()))

	seed = DefaultSeed("gabbai@example.com")
	seed.Plans[0].YearlyPrice = seed.Plans[0].YearlyPrice.Neg()
	assert.True(t, models.IsValidation(seed.Validate()))
}
