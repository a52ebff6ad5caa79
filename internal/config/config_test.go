package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEnv(t *testing.T) {
	t.Helper()
	t.Setenv("DATABASE_URL", "postgres://localhost/readings_test")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")
	t.Setenv("MODEL_API_KEY", "test-key")
}

func TestDefaultTuning(t *testing.T) {
	cfg := Default()

	assert.Equal(t, 5*time.Minute, cfg.Jobs.StaleAfter)
	assert.Equal(t, 3, cfg.Jobs.ImageAttemptLimit)
	assert.Equal(t, 2, cfg.Tuning.MaxMissingSections)
	assert.Equal(t, 500, cfg.Tuning.LegacyMinWords)
	assert.Equal(t, 1500, cfg.Tuning.LegacyMaxWords)
	assert.Equal(t, 650, cfg.Tuning.LegacyFinalMinWords)
	assert.Equal(t, 1600, cfg.Tuning.LegacyFinalMaxWords)
	assert.NotEmpty(t, cfg.Tuning.RefusalPhrases)
}

func TestLoadFromEnv(t *testing.T) {
	validEnv(t)
	t.Setenv("PORT", "9090")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "postgres://localhost/readings_test", cfg.DatabaseURL)
	assert.Equal(t, "test-key", cfg.Model.APIKey)
	assert.False(t, cfg.Model.MockMode)
}

func TestLoadMockEndpointEnablesMockMode(t *testing.T) {
	validEnv(t)
	t.Setenv("MODEL_API_KEY", "")
	t.Setenv("MODEL_MOCK_ENDPOINT", "http://localhost:8089")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.True(t, cfg.Model.MockMode)
	assert.Equal(t, "http://localhost:8089", cfg.Model.MockEndpoint)
}

func TestLoadFromFile(t *testing.T) {
	validEnv(t)

	path := filepath.Join(t.TempDir(), "config.json")
	content := `{
		"port": 8181,
		"tuning": {
			"refusal_phrases": ["i refuse"],
			"legacy_min_words": 400,
			"legacy_max_words": 1200,
			"legacy_extend_below": 600,
			"legacy_final_min_words": 350,
			"legacy_final_max_words": 1300,
			"max_missing_sections": 1
		}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 8181, cfg.Port)
	assert.Equal(t, []string{"i refuse"}, cfg.Tuning.RefusalPhrases)
	assert.Equal(t, 1, cfg.Tuning.MaxMissingSections)
}

func TestLoadMissingFile(t *testing.T) {
	validEnv(t)
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	assert.Error(t, err)
}

func TestValidateRequiresCredential(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "postgres://localhost/test"
	cfg.RedisURL = "redis://localhost:6379/0"

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")

	cfg.Model.MockMode = true
	assert.Error(t, cfg.Validate()) // mock mode without an endpoint

	cfg.Model.MockEndpoint = "http://localhost:8089"
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsEmptyRefusalPhrases(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "postgres://localhost/test"
	cfg.RedisURL = "redis://localhost:6379/0"
	cfg.Model.APIKey = "key"
	cfg.Tuning.RefusalPhrases = nil

	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsInvertedWordFloors(t *testing.T) {
	cfg := Default()
	cfg.DatabaseURL = "postgres://localhost/test"
	cfg.RedisURL = "redis://localhost:6379/0"
	cfg.Model.APIKey = "key"
	cfg.Tuning.LegacyFinalMinWords = cfg.Tuning.LegacyMinWords + 100

	assert.Error(t, cfg.Validate())
}
