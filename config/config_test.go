package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BaSui01/tutorflow/rag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoader_DefaultsOnly(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, "course_material", cfg.Engine.Collection)
	assert.Equal(t, 5, cfg.Engine.TopK)
	assert.Equal(t, 0.3, cfg.Engine.MinScore)
	assert.Equal(t, string(rag.FanoutFailFast), cfg.Engine.FanoutPolicy)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoader_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
engine:
  collection: physics_notes
  top_k: 8
  min_score: 0.5
log:
  level: debug
  format: console
`), 0o600))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "physics_notes", cfg.Engine.Collection)
	assert.Equal(t, 8, cfg.Engine.TopK)
	assert.Equal(t, 0.5, cfg.Engine.MinScore)
	assert.Equal(t, "console", cfg.Log.Format)
	// 未覆盖的字段保持默认
	assert.Equal(t, 3, cfg.Engine.NumQueries)
}

func TestLoader_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  top_k: 8\n"), 0o600))

	t.Setenv("TUTORFLOW_ENGINE_TOP_K", "12")
	t.Setenv("TUTORFLOW_ENGINE_ALPHA", "0.9")
	t.Setenv("TUTORFLOW_LLM_API_KEY", "sk-test")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Engine.TopK)
	assert.Equal(t, 0.9, cfg.Engine.Alpha)
	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
}

func TestLoader_CustomEnvPrefix(t *testing.T) {
	t.Setenv("EDU_ENGINE_COLLECTION", "math")

	cfg, err := NewLoader().WithEnvPrefix("EDU").Load()
	require.NoError(t, err)
	assert.Equal(t, "math", cfg.Engine.Collection)
}

func TestLoader_MissingFileFails(t *testing.T) {
	_, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config file")
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid defaults", func(c *Config) {}, ""},
		{"zero top_k", func(c *Config) { c.Engine.TopK = 0 }, "top_k"},
		{"negative min_score", func(c *Config) { c.Engine.MinScore = -0.1 }, "min_score"},
		{"alpha above one", func(c *Config) { c.Engine.Alpha = 1.2 }, "alpha"},
		{"bad fanout policy", func(c *Config) { c.Engine.FanoutPolicy = "maybe" }, "fanout_policy"},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			}
		})
	}
}

func TestConfig_ToEngineConfig(t *testing.T) {
	cfg := Default()
	cfg.Engine.NumQueries = 4
	cfg.Engine.FanoutPolicy = string(rag.FanoutBestEffort)

	ec := cfg.ToEngineConfig()
	assert.Equal(t, rag.FanoutBestEffort, ec.FanoutPolicy)
	assert.Equal(t, 4, ec.NumQueries)
	assert.Equal(t, 4, ec.Transform.MaxVariants)
	assert.Equal(t, 200, ec.Synthesizer.PreviewLength)
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, logger)

	_, err = NewLogger(LogConfig{Level: "shouting", Format: "json"})
	assert.Error(t, err)
}
