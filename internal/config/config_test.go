package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/insighter/internal/config"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, config.ModeLocal, cfg.Mode)
	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "mock", cfg.LLM.Provider)
	assert.InDelta(t, 0.3, cfg.LLM.RoutingTemperature, 0.0001)
	assert.InDelta(t, 0.7, cfg.LLM.AgentTemperature, 0.0001)
	assert.Equal(t, 10, cfg.Orchestrator.MaxTurns)
	assert.Equal(t, int64(16<<20), cfg.Files.MaxBytes)
	assert.Equal(t, 24*time.Hour, cfg.Storage.StateTTL)
	assert.False(t, cfg.Database.Enabled())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("INSIGHTER_SERVER_PORT", "9090")
	t.Setenv("INSIGHTER_ORCHESTRATOR_MAX_TURNS", "4")
	t.Setenv("INSIGHTER_LLM_PROVIDER", "compatible")
	t.Setenv("INSIGHTER_LLM_API_KEY", "sk-test")

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, 4, cfg.Orchestrator.MaxTurns)
	assert.Equal(t, "compatible", cfg.LLM.Provider)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "insighter.yaml")
	content := `
llm:
  provider: anthropic
  api_key: key
  model: claude-sonnet-4-5
database:
  host: db.local
  name: sales
files:
  backend: s3
  s3_bucket: insighter-files
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "claude-sonnet-4-5", cfg.LLM.Model)
	assert.True(t, cfg.Database.Enabled())
	assert.Equal(t, 3306, cfg.Database.Port)
	assert.Equal(t, "insighter-files", cfg.Files.S3Bucket)
}

func TestValidateFailsFast(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing api key", map[string]string{"INSIGHTER_LLM_PROVIDER": "openai"}},
		{"unknown provider", map[string]string{"INSIGHTER_LLM_PROVIDER": "llama"}},
		{"gcp without project", map[string]string{"INSIGHTER_MODE": "gcp"}},
		{"s3 without bucket", map[string]string{"INSIGHTER_FILES_BACKEND": "s3"}},
		{"zero turns", map[string]string{"INSIGHTER_ORCHESTRATOR_MAX_TURNS": "0"}},
		{"database without name", map[string]string{"INSIGHTER_DATABASE_HOST": "db"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := config.Load("")
			assert.Error(t, err)
		})
	}
}
