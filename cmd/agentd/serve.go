package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/httpapi"
	"github.com/myfevent/agentd/internal/orchestrator"
	"github.com/myfevent/agentd/internal/retrieval"
	"github.com/myfevent/agentd/internal/tools"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the agent HTTP server",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync() //nolint:errcheck

	store, err := newVectorStore(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening vector store: %w", err)
	}
	defer store.Close()

	backendClient, err := newBackendClient(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating backend client: %w", err)
	}

	chatClient, plannerClient, err := newModelClients(cfg, logger)
	if err != nil {
		return err
	}

	engine, err := retrieval.NewEngine(store, retrieval.Config{
		PrimaryGroup:  cfg.Retrieval.PrimaryGroup,
		FallbackGroup: cfg.Retrieval.FallbackGroup,
		TopKPrimary:   cfg.Retrieval.TopKPrimary,
		TopKFallback:  cfg.Retrieval.TopKFallback,
		MaxDistance:   cfg.Retrieval.MaxDistance,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating retrieval engine: %w", err)
	}

	registry := tools.NewRegistry()
	for _, t := range []tools.Tool{
		tools.NewGetEventDetail(backendClient, logger),
		tools.NewCreateEvent(backendClient, logger),
		tools.NewCreateDepartments(backendClient, logger),
		tools.NewGenerateEpics(engine, plannerClient, cfg.Retrieval.PlannerTopK, logger),
		tools.NewGenerateTasks(engine, plannerClient, cfg.Retrieval.PlannerTopK, logger),
	} {
		if err := registry.Register(t); err != nil {
			return fmt.Errorf("registering tools: %w", err)
		}
	}

	orch, err := orchestrator.New(chatClient, registry, orchestrator.Config{
		MaxIterations:    cfg.Agent.MaxIterations,
		TurnTimeout:      time.Duration(cfg.Agent.TurnTimeout),
		DisableScopeGate: cfg.Agent.DisableScopeGate,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating orchestrator: %w", err)
	}

	server, err := httpapi.NewServer(orch, httpapi.Config{
		Host: cfg.Server.Host,
		Port: cfg.Server.Port,
	}, logger)
	if err != nil {
		return fmt.Errorf("creating http server: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutdown signal received")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", zap.Error(err))
		return err
	}
	logger.Info("shutdown complete")
	return nil
}
