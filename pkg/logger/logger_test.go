package logger

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewParsesLevel(t *testing.T) {
	assert.Equal(t, logrus.DebugLevel, New("debug", "text").GetLevel())
	assert.Equal(t, logrus.InfoLevel, New("loud", "text").GetLevel())
}

func TestJSONFormatCarriesJobFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithOutput("info", "json", &buf)

	ForJob(l, "cycle_rollover", "run-1").WithField("family_id", 7).Info("Job started")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "cycle_rollover", line["job"])
	assert.Equal(t, "run-1", line["run_id"])
	assert.Equal(t, float64(7), line["family_id"])
	assert.Equal(t, "Job started", line["msg"])
}
