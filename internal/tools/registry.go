// Package tools implements the callable tools exposed to the model and
// their dispatch.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/myfevent/agentd/internal/classify"
	"github.com/myfevent/agentd/internal/llm"
)

// Plan type tags recognized in tool payloads.
const (
	PlanTypeEpics = "epics_plan"
	PlanTypeTasks = "tasks_plan"
)

// Tool is one callable capability advertised to the model.
type Tool interface {
	// Name is the stable tool identifier on the wire.
	Name() string

	// Definition describes the tool to the model.
	Definition() llm.ToolDefinition

	// Call executes the tool. The args map is already validated against
	// the tool's schema. userToken is the caller's bearer token, forwarded
	// to the backend on their behalf.
	Call(ctx context.Context, args map[string]any, userToken string) (map[string]any, error)
}

// Registry holds the tool set for dispatch. Safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering the same name twice is an error.
func (r *Registry) Register(t Tool) error {
	if t == nil {
		return fmt.Errorf("tools: tool is nil")
	}
	name := t.Name()
	if name == "" {
		return fmt.Errorf("tools: tool name is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tools: tool %q already registered", name)
	}
	r.tools[name] = t
	return nil
}

// Get returns the named tool, or false when unknown.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the tool definitions in stable name order.
func (r *Registry) Definitions() []llm.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)

	defs := make([]llm.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Dispatch parses and validates rawArgs, then runs the named tool. An
// unknown name yields an unknown-tool classified error so the turn keeps
// going with the failure surfaced to the model.
func (r *Registry) Dispatch(ctx context.Context, name, rawArgs, userToken string) (map[string]any, error) {
	t, ok := r.Get(name)
	if !ok {
		return nil, classify.NewError(classify.CategoryUnknownTool,
			fmt.Sprintf("unknown tool %q", name))
	}

	args, malformed := ParseArguments(rawArgs)

	var schema Schema
	if err := json.Unmarshal(t.Definition().Function.Parameters, &schema); err == nil {
		if err := schema.Validate(args); err != nil {
			return nil, err
		}
	}

	result, err := t.Call(ctx, args, userToken)
	if err != nil {
		return nil, err
	}
	if malformed {
		// The handler still runs on empty args; the flag rides on the result
		// so the model and the caller can see the arguments were unusable.
		if result == nil {
			result = map[string]any{}
		}
		result["argsMalformed"] = true
	}
	return result, nil
}

// ParseArguments decodes a model-produced JSON argument string. A blank or
// malformed string yields an empty map and malformed=true rather than an
// error, matching how loosely models emit arguments.
func ParseArguments(raw string) (map[string]any, bool) {
	if raw == "" {
		return map[string]any{}, false
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil || args == nil {
		return map[string]any{}, true
	}
	return args, false
}
