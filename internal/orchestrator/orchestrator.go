// Package orchestrator runs one conversation turn: scope gating, the
// model/tool loop, and plan collection.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/classify"
	"github.com/myfevent/agentd/internal/llm"
	"github.com/myfevent/agentd/internal/prompt"
	"github.com/myfevent/agentd/internal/tools"
)

// defaultMaxIterations bounds the model/tool rounds in one turn.
const defaultMaxIterations = 10

// Config holds configuration for the turn orchestrator.
type Config struct {
	// MaxIterations is the model-call budget per turn.
	MaxIterations int

	// TurnTimeout bounds a whole turn. Zero disables the bound and leaves
	// the caller's context in charge.
	TurnTimeout time.Duration

	// DisableScopeGate skips the event-domain gate, passing every message
	// straight to the agent.
	DisableScopeGate bool
}

// ApplyDefaults sets default values for unset fields.
func (c *Config) ApplyDefaults() {
	if c.MaxIterations == 0 {
		c.MaxIterations = defaultMaxIterations
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.MaxIterations <= 0 {
		return fmt.Errorf("orchestrator: max iterations must be positive")
	}
	if c.TurnTimeout < 0 {
		return fmt.Errorf("orchestrator: turn timeout must be non-negative")
	}
	return nil
}

// TurnResult is the outcome of one conversation turn.
type TurnResult struct {
	// Reply is the final assistant text for the user.
	Reply string `json:"assistant_reply"`

	// Messages is the full transcript of the turn, system prompt
	// included, in the order the model saw it.
	Messages []llm.Message `json:"messages"`

	// Plans are the preview plans collected from tool results, in
	// execution order. Never nil.
	Plans []map[string]any `json:"plans"`
}

// Orchestrator drives the model/tool loop for conversation turns.
type Orchestrator struct {
	model    llm.Client
	registry *tools.Registry
	scope    *ScopeGate
	config   Config
	logger   *zap.Logger
}

// New creates an orchestrator.
func New(model llm.Client, registry *tools.Registry, cfg Config, logger *zap.Logger) (*Orchestrator, error) {
	if model == nil {
		return nil, fmt.Errorf("orchestrator: model client is required")
	}
	if registry == nil {
		return nil, fmt.Errorf("orchestrator: tool registry is required")
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		model:    model,
		registry: registry,
		scope:    NewScopeGate(model, logger),
		config:   cfg,
		logger:   logger,
	}, nil
}

// RunTurn runs one turn over the prior conversation. history carries the
// frontend's messages without a system prompt; userToken is forwarded to
// tools acting on the caller's behalf.
//
// Only model-call failures are returned as errors. Tool failures are
// surfaced to the model inside the transcript, and an exhausted iteration
// budget yields a fixed apology reply, not an error.
func (o *Orchestrator) RunTurn(ctx context.Context, history []llm.Message, userToken string) (*TurnResult, error) {
	if o.config.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.config.TurnTimeout)
		defer cancel()
	}

	messages := make([]llm.Message, 0, len(history)+2)
	messages = append(messages, llm.SystemMessage(prompt.AgentSystem))
	messages = append(messages, history...)

	if lastUser, ok := lastUserMessage(history); ok && !o.config.DisableScopeGate && !o.scope.InScope(ctx, lastUser) {
		o.logger.Info("rejected out-of-scope message", zap.String("preview", preview(lastUser, 50)))
		messages = append(messages, llm.AssistantMessage(prompt.OutOfScopeReply))
		return &TurnResult{
			Reply:    prompt.OutOfScopeReply,
			Messages: messages,
			Plans:    []map[string]any{},
		}, nil
	}

	plans := []map[string]any{}
	defs := o.registry.Definitions()

	for iteration := 1; iteration <= o.config.MaxIterations; iteration++ {
		o.logger.Debug("model round", zap.Int("iteration", iteration), zap.Int("budget", o.config.MaxIterations))

		msg, err := o.model.Chat(ctx, messages, defs)
		if err != nil {
			return nil, fmt.Errorf("model call: %w", err)
		}

		if len(msg.ToolCalls) == 0 {
			messages = append(messages, llm.AssistantMessage(msg.Content))
			o.logger.Info("turn complete",
				zap.Int("iterations", iteration), zap.Int("plans", len(plans)))
			return &TurnResult{Reply: msg.Content, Messages: messages, Plans: plans}, nil
		}

		messages = append(messages, llm.Message{Role: llm.RoleAssistant, ToolCalls: msg.ToolCalls})

		for _, call := range msg.ToolCalls {
			result := o.executeTool(ctx, call, userToken)
			if plan, ok := planFromResult(call.Function.Name, result); ok {
				plans = append(plans, plan)
			}
			content, err := json.Marshal(result)
			if err != nil {
				content = []byte(fmt.Sprintf(`{"error":true,"error_message":%q}`, err.Error()))
			}
			messages = append(messages, llm.ToolMessage(call.ID, call.Function.Name, string(content)))
		}
	}

	o.logger.Warn("iteration budget exhausted", zap.Int("budget", o.config.MaxIterations))
	messages = append(messages, llm.AssistantMessage(prompt.BudgetExhaustedReply))
	return &TurnResult{Reply: prompt.BudgetExhaustedReply, Messages: messages, Plans: plans}, nil
}

// executeTool runs one tool call and always produces a payload the model
// can read, folding failures into an error object.
func (o *Orchestrator) executeTool(ctx context.Context, call llm.ToolCall, userToken string) map[string]any {
	name := call.Function.Name
	o.logger.Info("calling tool", zap.String("tool", name))

	result, err := o.registry.Dispatch(ctx, name, call.Function.Arguments, userToken)
	if err == nil {
		return result
	}

	class := classify.Classify(err)
	o.logger.Warn("tool failed",
		zap.String("tool", name),
		zap.String("category", string(class.Category)),
		zap.Error(err))

	args, malformed := tools.ParseArguments(call.Function.Arguments)
	payload := map[string]any{
		"error":         true,
		"error_type":    string(class.Category),
		"error_message": class.Message,
		"suggestion":    class.Suggestion,
		"tool_name":     name,
		"tool_args":     args,
		"message":       fmt.Sprintf("Error running %s: %s. %s", name, class.Message, class.Suggestion),
	}
	if malformed {
		payload["argsMalformed"] = true
	}
	return payload
}

// planFromResult extracts a preview plan from a successful tool payload.
// Only the closed set of plan types is collected.
func planFromResult(toolName string, result map[string]any) (map[string]any, bool) {
	planType, _ := result["type"].(string)
	if planType != tools.PlanTypeEpics && planType != tools.PlanTypeTasks {
		return nil, false
	}
	plan := map[string]any{"tool": toolName}
	for k, v := range result {
		plan[k] = v
	}
	return plan, true
}

func lastUserMessage(history []llm.Message) (string, bool) {
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == llm.RoleUser {
			return history[i].Content, true
		}
	}
	return "", false
}

func preview(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
