package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte("environment: test\n"))
	require.NoError(t, err)

	assert.Equal(t, 8080, c.Server.Port)
	assert.Equal(t, "sqlite", c.Store.Backend)
	assert.Equal(t, "none", c.Source.Type)
	assert.Equal(t, 0.6, c.Extraction.QualityThreshold)
	assert.Equal(t, 0.3, c.Extraction.MinRelevance)
	assert.Equal(t, 2*time.Minute, c.Extraction.LockTTL)
	assert.Equal(t, "macrochain.documents", c.Kafka.DocumentsTopic)
	assert.Equal(t, -1, c.Kafka.RequiredAcks)
	assert.Equal(t, "earliest", c.Kafka.Consumer.AutoOffsetReset)
	assert.Equal(t, 5*time.Second, c.SQLite.BusyTimeout)
	assert.Equal(t, 4, c.SQLite.MaxOpenConns)
	assert.Equal(t, 2, c.Extraction.MaxPerRole)
	assert.Equal(t, 5, c.Extraction.MaxCandidates)
	assert.Equal(t, 20, c.Extraction.MinStepLength)
	assert.Equal(t, 200, c.Extraction.MaxStepLength)
}

func TestParseRejects(t *testing.T) {
	cases := map[string]string{
		"missing environment":       "store: {backend: sqlite}\n",
		"unknown backend":           "environment: test\nstore: {backend: postgres}\n",
		"kafka without brokers":     "environment: test\nsource: {routing: kafka}\n",
		"http registry without url": "environment: test\nregistry: {source: http}\n",
		"bad threshold":             "environment: test\nextraction: {quality_threshold: 1.5}\n",
		"instrument without names":  "environment: test\nregistry:\n  instruments:\n    - symbol: AAPL\n",
		"inverted step lengths":     "environment: test\nextraction: {min_step_length: 50, max_step_length: 30}\n",
		"unknown offset reset":      "environment: test\nkafka: {consumer: {auto_offset_reset: middle}}\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("environment: test\n"), 0o644))

	t.Setenv("SQLITE_PATH", "/tmp/chains.db")
	t.Setenv("QUALITY_THRESHOLD", "0.7")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/chains.db", c.SQLite.Path)
	assert.Equal(t, 0.7, c.Extraction.QualityThreshold)

	t.Setenv("QUALITY_THRESHOLD", "high")
	_, err = LoadWithEnv(path)
	assert.Error(t, err)
}
