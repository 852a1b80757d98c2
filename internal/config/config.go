// Package config provides configuration loading for agentd.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration for agentd.
type Config struct {
	Logging   LoggingConfig   `koanf:"logging"`
	Server    ServerConfig    `koanf:"server"`
	Backend   BackendConfig   `koanf:"backend"`
	LLM       LLMConfig       `koanf:"llm"`
	Vector    VectorConfig    `koanf:"vectorstore"`
	Retrieval RetrievalConfig `koanf:"retrieval"`
	Agent     AgentConfig     `koanf:"agent"`
	Knowledge KnowledgeConfig `koanf:"knowledge"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Host string `koanf:"host"`
	Port int    `koanf:"port"`
}

// BackendConfig configures the event backend client.
type BackendConfig struct {
	// BaseURL is the Node backend base URL. Normalized to end in /api.
	BaseURL string `koanf:"base_url"`

	// ServiceKey authenticates calls that carry no user token.
	ServiceKey Secret `koanf:"service_key"`

	// Timeout bounds a single request attempt.
	Timeout Duration `koanf:"timeout"`

	// MaxRetries is the retry budget for retryable failures.
	MaxRetries int `koanf:"max_retries"`

	// InitialBackoff is the first inter-attempt delay.
	InitialBackoff Duration `koanf:"initial_backoff"`

	// MaxBackoff caps the inter-attempt delay.
	MaxBackoff Duration `koanf:"max_backoff"`
}

// LLMConfig configures the chat model client.
type LLMConfig struct {
	BaseURL      string   `koanf:"base_url"`
	APIKey       Secret   `koanf:"api_key"`
	Model        string   `koanf:"model"`
	PlannerModel string   `koanf:"planner_model"`
	Timeout      Duration `koanf:"timeout"`
	RateLimit    float64  `koanf:"rate_limit"`
	Burst        int      `koanf:"burst"`
}

// VectorConfig configures the embedded vector store.
type VectorConfig struct {
	Path           string `koanf:"path"`
	Collection     string `koanf:"collection"`
	Compress       bool   `koanf:"compress"`
	EmbeddingModel string `koanf:"embedding_model"`
}

// RetrievalConfig configures tiered knowledge retrieval.
type RetrievalConfig struct {
	PrimaryGroup  string  `koanf:"primary_group"`
	FallbackGroup string  `koanf:"fallback_group"`
	TopKPrimary   int     `koanf:"top_k_primary"`
	TopKFallback  int     `koanf:"top_k_fallback"`
	MaxDistance   float64 `koanf:"max_distance"`

	// PlannerTopK is the flat top-k used by planner tools.
	PlannerTopK int `koanf:"planner_top_k"`
}

// AgentConfig configures the turn orchestrator.
type AgentConfig struct {
	MaxIterations int      `koanf:"max_iterations"`
	TurnTimeout   Duration `koanf:"turn_timeout"`

	// DisableScopeGate passes every message to the agent without the
	// event-domain check.
	DisableScopeGate bool `koanf:"disable_scope_gate"`
}

// KnowledgeConfig configures the KB indexer.
type KnowledgeConfig struct {
	Dirs []string `koanf:"dirs"`
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Server.Host == "" {
		c.Server.Host = "localhost"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8000
	}
	if c.Backend.BaseURL == "" {
		c.Backend.BaseURL = "http://localhost:5000/api"
	}
	if c.Backend.Timeout == 0 {
		c.Backend.Timeout = Duration(30 * time.Second)
	}
	if c.Backend.MaxRetries == 0 {
		c.Backend.MaxRetries = 3
	}
	if c.Backend.InitialBackoff == 0 {
		c.Backend.InitialBackoff = Duration(time.Second)
	}
	if c.Backend.MaxBackoff == 0 {
		c.Backend.MaxBackoff = Duration(30 * time.Second)
	}
	if c.LLM.BaseURL == "" {
		c.LLM.BaseURL = "https://api.openai.com"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "gpt-4o-mini"
	}
	if c.LLM.PlannerModel == "" {
		c.LLM.PlannerModel = c.LLM.Model
	}
	if c.LLM.Timeout == 0 {
		c.LLM.Timeout = Duration(60 * time.Second)
	}
	if c.LLM.RateLimit == 0 {
		c.LLM.RateLimit = 2
	}
	if c.LLM.Burst == 0 {
		c.LLM.Burst = 4
	}
	if c.Vector.Path == "" {
		c.Vector.Path = "~/.config/agentd/vectorstore"
	}
	if c.Vector.Collection == "" {
		c.Vector.Collection = "event_kb"
	}
	if c.Vector.EmbeddingModel == "" {
		c.Vector.EmbeddingModel = "text-embedding-3-small"
	}
	if c.Retrieval.PrimaryGroup == "" {
		c.Retrieval.PrimaryGroup = "user_event"
	}
	if c.Retrieval.FallbackGroup == "" {
		c.Retrieval.FallbackGroup = "pattern"
	}
	if c.Retrieval.TopKPrimary == 0 {
		c.Retrieval.TopKPrimary = 4
	}
	if c.Retrieval.TopKFallback == 0 {
		c.Retrieval.TopKFallback = 2
	}
	if c.Retrieval.MaxDistance == 0 {
		c.Retrieval.MaxDistance = 1.0
	}
	if c.Retrieval.PlannerTopK == 0 {
		c.Retrieval.PlannerTopK = 12
	}
	if c.Agent.MaxIterations == 0 {
		c.Agent.MaxIterations = 10
	}
	if len(c.Knowledge.Dirs) == 0 {
		c.Knowledge.Dirs = []string{"kb/patterns", "kb/user_events"}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server: invalid port %d", c.Server.Port)
	}
	if !strings.HasPrefix(c.Backend.BaseURL, "http://") && !strings.HasPrefix(c.Backend.BaseURL, "https://") {
		return fmt.Errorf("backend: base_url must be an http(s) URL, got %q", c.Backend.BaseURL)
	}
	if c.Backend.MaxRetries < 1 {
		return fmt.Errorf("backend: max_retries must be at least 1")
	}
	if c.Retrieval.MaxDistance < 0 {
		return fmt.Errorf("retrieval: max_distance must be non-negative")
	}
	if c.Retrieval.TopKPrimary <= 0 || c.Retrieval.TopKFallback < 0 {
		return fmt.Errorf("retrieval: invalid top-k values")
	}
	if c.Agent.MaxIterations <= 0 {
		return fmt.Errorf("agent: max_iterations must be positive")
	}
	return nil
}
