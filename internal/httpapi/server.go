// Package httpapi provides the HTTP API for the agent service.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/llm"
	"github.com/myfevent/agentd/internal/orchestrator"
)

// TurnRunner runs one conversation turn. Implemented by the orchestrator.
type TurnRunner interface {
	RunTurn(ctx context.Context, history []llm.Message, userToken string) (*orchestrator.TurnResult, error)
}

// Config holds HTTP server configuration.
type Config struct {
	Host string
	Port int
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "localhost"
	}
	if c.Port == 0 {
		c.Port = 8000
	}
}

// Server exposes the agent over HTTP.
type Server struct {
	echo   *echo.Echo
	runner TurnRunner
	logger *zap.Logger
	config Config
}

// NewServer creates the HTTP server.
func NewServer(runner TurnRunner, cfg Config, logger *zap.Logger) (*Server, error) {
	if runner == nil {
		return nil, fmt.Errorf("httpapi: turn runner is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("httpapi: logger is required")
	}
	cfg.ApplyDefaults()

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	e.Use(middleware.CORS())
	e.Use(func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			duration := time.Since(start)

			logger.Info("http request",
				zap.String("method", c.Request().Method),
				zap.String("uri", c.Request().RequestURI),
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", duration),
				zap.String("request_id", c.Response().Header().Get(echo.HeaderXRequestID)),
			)

			return err
		}
	})

	s := &Server{
		echo:   e,
		runner: runner,
		logger: logger,
		config: cfg,
	}
	s.registerRoutes()
	return s, nil
}

func (s *Server) registerRoutes() {
	s.echo.GET("/health", s.handleHealth)
	s.echo.POST("/agent/event-planner/turn", s.handleTurn)

	// Compatibility endpoint for the older chat backend.
	s.echo.POST("/api/chat/message", s.handleChatMessage)
}

// TurnRequest is the request body for POST /agent/event-planner/turn.
type TurnRequest struct {
	HistoryMessages []llm.Message `json:"history_messages"`
	EventID         string        `json:"eventId,omitempty"`
}

// TurnResponse is the response body for POST /agent/event-planner/turn.
type TurnResponse struct {
	AssistantReply string           `json:"assistant_reply"`
	Messages       []llm.Message    `json:"messages"`
	Plans          []map[string]any `json:"plans"`
	EventID        string           `json:"eventId,omitempty"`
}

// ChatMessageRequest is the request body for POST /api/chat/message.
type ChatMessageRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatMessageResponse is the response body for POST /api/chat/message.
type ChatMessageResponse struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	State     string `json:"state"`
}

// HealthResponse is the response body for GET /health.
type HealthResponse struct {
	Status  string `json:"status"`
	Service string `json:"service"`
}

func (s *Server) handleHealth(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{Status: "ok", Service: "agentd"})
}

func (s *Server) handleTurn(c echo.Context) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	var req TurnRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid turn request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	result, err := s.runner.RunTurn(c.Request().Context(), req.HistoryMessages, token)
	if err != nil {
		s.logger.Error("turn failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "agent error, please try again")
	}

	return c.JSON(http.StatusOK, TurnResponse{
		AssistantReply: result.Reply,
		Messages:       result.Messages,
		Plans:          result.Plans,
		EventID:        req.EventID,
	})
}

func (s *Server) handleChatMessage(c echo.Context) error {
	token, err := bearerToken(c)
	if err != nil {
		return err
	}

	var req ChatMessageRequest
	if err := c.Bind(&req); err != nil {
		s.logger.Warn("invalid chat request", zap.Error(err))
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	history := []llm.Message{llm.UserMessage(req.Message)}
	result, err := s.runner.RunTurn(c.Request().Context(), history, token)
	if err != nil {
		s.logger.Error("chat turn failed", zap.Error(err))
		return echo.NewHTTPError(http.StatusInternalServerError, "agent error, please try again")
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = "session-" + uuid.NewString()
	}
	return c.JSON(http.StatusOK, ChatMessageResponse{
		Message:   result.Reply,
		SessionID: sessionID,
		State:     "conversation",
	})
}

// bearerToken extracts the caller's token from the Authorization header.
func bearerToken(c echo.Context) (string, error) {
	auth := c.Request().Header.Get(echo.HeaderAuthorization)
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", echo.NewHTTPError(http.StatusUnauthorized,
			"missing or invalid Authorization header, provide a Bearer token")
	}
	token := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	if token == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "empty authorization token")
	}
	return token, nil
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.logger.Info("starting http server", zap.String("addr", addr))
	return s.echo.Start(addr)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down http server")
	return s.echo.Shutdown(ctx)
}
