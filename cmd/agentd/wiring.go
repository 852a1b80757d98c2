package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/backend"
	"github.com/myfevent/agentd/internal/config"
	"github.com/myfevent/agentd/internal/llm"
	"github.com/myfevent/agentd/internal/logging"
	"github.com/myfevent/agentd/internal/vectorstore"
)

// loadConfig loads and validates configuration, then builds the logger.
func loadConfig() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("creating logger: %w", err)
	}
	return cfg, logger, nil
}

// newVectorStore opens the embedded vector store with an OpenAI embedding
// function, reusing the model API key.
func newVectorStore(cfg *config.Config, logger *zap.Logger) (vectorstore.Store, error) {
	path, err := expandHome(cfg.Vector.Path)
	if err != nil {
		return nil, err
	}
	embedding := chromem.NewEmbeddingFuncOpenAI(
		cfg.LLM.APIKey.Value(),
		chromem.EmbeddingModelOpenAI(cfg.Vector.EmbeddingModel),
	)
	return vectorstore.NewChromemStore(vectorstore.ChromemConfig{
		Path:       path,
		Compress:   cfg.Vector.Compress,
		Collection: cfg.Vector.Collection,
	}, embedding, logger)
}

// newBackendClient builds the event backend client.
func newBackendClient(cfg *config.Config, logger *zap.Logger) (*backend.Client, error) {
	return backend.NewClient(backend.Config{
		BaseURL:        cfg.Backend.BaseURL,
		ServiceKey:     cfg.Backend.ServiceKey.Value(),
		Timeout:        time.Duration(cfg.Backend.Timeout),
		MaxRetries:     cfg.Backend.MaxRetries,
		InitialBackoff: time.Duration(cfg.Backend.InitialBackoff),
		MaxBackoff:     time.Duration(cfg.Backend.MaxBackoff),
	}, logger)
}

// newModelClients builds the conversation client and the planner client.
// They share credentials and limits but may run different models.
func newModelClients(cfg *config.Config, logger *zap.Logger) (chat, planner llm.Client, err error) {
	base := llm.Config{
		BaseURL:   cfg.LLM.BaseURL,
		APIKey:    cfg.LLM.APIKey,
		Timeout:   time.Duration(cfg.LLM.Timeout),
		RateLimit: cfg.LLM.RateLimit,
		Burst:     cfg.LLM.Burst,
	}

	chatCfg := base
	chatCfg.Model = cfg.LLM.Model
	chatClient, err := llm.NewHTTPClient(chatCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating chat client: %w", err)
	}

	if cfg.LLM.PlannerModel == cfg.LLM.Model {
		return chatClient, chatClient, nil
	}

	plannerCfg := base
	plannerCfg.Model = cfg.LLM.PlannerModel
	plannerClient, err := llm.NewHTTPClient(plannerCfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("creating planner client: %w", err)
	}
	return chatClient, plannerClient, nil
}

// expandHome resolves a leading ~/ against the user's home directory.
func expandHome(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolving home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}
