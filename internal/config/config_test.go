package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyDefaults(t *testing.T) {
	var cfg Config
	cfg.ApplyDefaults()

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "http://localhost:5000/api", cfg.Backend.BaseURL)
	assert.Equal(t, 3, cfg.Backend.MaxRetries)
	assert.Equal(t, 30*time.Second, cfg.Backend.Timeout.Duration())
	assert.Equal(t, "gpt-4o-mini", cfg.LLM.Model)
	assert.Equal(t, cfg.LLM.Model, cfg.LLM.PlannerModel)
	assert.Equal(t, "event_kb", cfg.Vector.Collection)
	assert.Equal(t, "text-embedding-3-small", cfg.Vector.EmbeddingModel)
	assert.Equal(t, "user_event", cfg.Retrieval.PrimaryGroup)
	assert.Equal(t, "pattern", cfg.Retrieval.FallbackGroup)
	assert.Equal(t, 4, cfg.Retrieval.TopKPrimary)
	assert.Equal(t, 2, cfg.Retrieval.TopKFallback)
	assert.Equal(t, 1.0, cfg.Retrieval.MaxDistance)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
	assert.False(t, cfg.Agent.DisableScopeGate)
	assert.Equal(t, []string{"kb/patterns", "kb/user_events"}, cfg.Knowledge.Dirs)
}

func TestApplyDefaultsKeepsExplicitValues(t *testing.T) {
	cfg := Config{
		LLM:       LLMConfig{Model: "gpt-4o", PlannerModel: "o3-mini"},
		Retrieval: RetrievalConfig{TopKPrimary: 8},
		Agent:     AgentConfig{MaxIterations: 5},
	}
	cfg.ApplyDefaults()

	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "o3-mini", cfg.LLM.PlannerModel)
	assert.Equal(t, 8, cfg.Retrieval.TopKPrimary)
	assert.Equal(t, 5, cfg.Agent.MaxIterations)
}

func TestValidate(t *testing.T) {
	valid := func() Config {
		var cfg Config
		cfg.ApplyDefaults()
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{name: "defaults are valid", mutate: func(*Config) {}},
		{
			name:    "negative port",
			mutate:  func(c *Config) { c.Server.Port = -1 },
			wantErr: "invalid port",
		},
		{
			name:    "port too large",
			mutate:  func(c *Config) { c.Server.Port = 70000 },
			wantErr: "invalid port",
		},
		{
			name:    "non-http backend url",
			mutate:  func(c *Config) { c.Backend.BaseURL = "localhost:5000" },
			wantErr: "base_url",
		},
		{
			name:    "too few retries",
			mutate:  func(c *Config) { c.Backend.MaxRetries = -2 },
			wantErr: "max_retries",
		},
		{
			name:    "negative max distance",
			mutate:  func(c *Config) { c.Retrieval.MaxDistance = -0.5 },
			wantErr: "max_distance",
		},
		{
			name:    "negative fallback top-k",
			mutate:  func(c *Config) { c.Retrieval.TopKFallback = -1 },
			wantErr: "top-k",
		},
		{
			name:    "negative iterations",
			mutate:  func(c *Config) { c.Agent.MaxIterations = -1 },
			wantErr: "max_iterations",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDurationUnmarshalText(t *testing.T) {
	var d Duration
	require.NoError(t, d.UnmarshalText([]byte("1m30s")))
	assert.Equal(t, 90*time.Second, d.Duration())

	require.Error(t, d.UnmarshalText([]byte("not a duration")))
	require.Error(t, d.UnmarshalText([]byte("-5s")))

	out, err := Duration(2 * time.Second).MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2s", string(out))
}

func TestSecretRedaction(t *testing.T) {
	s := Secret("super-secret-key")

	assert.Equal(t, "[REDACTED]", s.String())
	assert.Equal(t, "[REDACTED]", fmt.Sprintf("%s", s))
	assert.Equal(t, "Secret([REDACTED])", fmt.Sprintf("%#v", s))
	assert.Equal(t, "super-secret-key", s.Value())
	assert.True(t, s.IsSet())

	data, err := json.Marshal(s)
	require.NoError(t, err)
	assert.Equal(t, `"[REDACTED]"`, string(data))

	var empty Secret
	assert.Equal(t, "", empty.String())
	assert.False(t, empty.IsSet())
	data, err = json.Marshal(empty)
	require.NoError(t, err)
	assert.Equal(t, `""`, string(data))
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: 9100
backend:
  base_url: http://backend.internal:5000
  timeout: 10s
llm:
  model: gpt-4o
  api_key: sk-test-123
retrieval:
  max_distance: 0.8
agent:
  disable_scope_gate: true
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, "http://backend.internal:5000", cfg.Backend.BaseURL)
	assert.Equal(t, 10*time.Second, cfg.Backend.Timeout.Duration())
	assert.Equal(t, "gpt-4o", cfg.LLM.Model)
	assert.Equal(t, "sk-test-123", cfg.LLM.APIKey.Value())
	assert.Equal(t, 0.8, cfg.Retrieval.MaxDistance)
	assert.True(t, cfg.Agent.DisableScopeGate)

	// Unset fields still get defaults.
	assert.Equal(t, "localhost", cfg.Server.Host)
	assert.Equal(t, 10, cfg.Agent.MaxIterations)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9100\n"), 0o600))

	t.Setenv("AGENTD_SERVER_PORT", "9200")
	t.Setenv("AGENTD_BACKEND_BASE_URL", "https://prod.example.com")
	t.Setenv("AGENTD_RETRIEVAL_MAX_DISTANCE", "0.75")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9200, cfg.Server.Port)
	assert.Equal(t, "https://prod.example.com", cfg.Backend.BaseURL)
	assert.Equal(t, 0.75, cfg.Retrieval.MaxDistance)
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Server.Port)
}

func TestLoadMissingFileIsAnError(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 99999\n"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid config")
}

func TestTransformEnvKey(t *testing.T) {
	assert.Equal(t, "server.port", transformEnvKey("AGENTD_SERVER_PORT"))
	assert.Equal(t, "backend.base_url", transformEnvKey("AGENTD_BACKEND_BASE_URL"))
	assert.Equal(t, "retrieval.max_distance", transformEnvKey("AGENTD_RETRIEVAL_MAX_DISTANCE"))
	assert.Equal(t, "agent", transformEnvKey("AGENTD_AGENT"))
}
