package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/classify"
	"github.com/myfevent/agentd/internal/llm"
	"github.com/myfevent/agentd/internal/prompt"
	"github.com/myfevent/agentd/internal/retrieval"
)

// defaultPlannerTopK is the knowledge budget for one planning call.
const defaultPlannerTopK = 12

// GenerateEpics drafts an epic plan per department. It only proposes; the
// backend applies plans after the user confirms.
type GenerateEpics struct {
	engine *retrieval.Engine
	model  llm.Client
	topK   int
	logger *zap.Logger
}

// NewGenerateEpics creates the generate_epics tool. topK <= 0 uses the
// default planner budget.
func NewGenerateEpics(engine *retrieval.Engine, model llm.Client, topK int, logger *zap.Logger) *GenerateEpics {
	if topK <= 0 {
		topK = defaultPlannerTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateEpics{engine: engine, model: model, topK: topK, logger: logger}
}

func (t *GenerateEpics) Name() string { return "generate_epics" }

func (t *GenerateEpics) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name: t.Name(),
			Description: "Draft an epic plan for each department of an event, grounded on " +
				"templates and similar past events. Returns a preview plan only; nothing is " +
				"written to the event until the user applies it.",
			Parameters: Schema{
				Type: "object",
				Properties: map[string]Property{
					"eventId":          {Type: "string", Description: "Event identifier"},
					"eventDescription": {Type: "string", Description: "Event description giving the planner context"},
					"departments":      {Type: "array", Items: &Property{Type: "string"}, Description: "Department names to plan for"},
				},
				Required: []string{"eventId", "eventDescription", "departments"},
			}.MustMarshal(),
		},
	}
}

func (t *GenerateEpics) Call(ctx context.Context, args map[string]any, _ string) (map[string]any, error) {
	eventID := stringArg(args, "eventId")
	eventDescription := stringArg(args, "eventDescription")
	departments := stringSliceArg(args, "departments")

	query := fmt.Sprintf("%s departments: %s epic_template",
		eventDescription, strings.Join(departments, ", "))
	chunks, err := t.engine.Retrieve(ctx, query, t.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving epic templates: %w", err)
	}
	t.logger.Debug("retrieved knowledge for epic planning", zap.Int("chunks", len(chunks)))

	var plan struct {
		Epics []map[string]any `json:"epics"`
	}
	userPrompt := prompt.EpicPlannerUser(eventDescription, departments, formatKBText(chunks, "No templates found."))
	if err := t.model.CompleteJSON(ctx, prompt.EpicPlannerSystem, userPrompt, &plan); err != nil {
		return nil, fmt.Errorf("epic planner call: %w", err)
	}
	if len(plan.Epics) == 0 {
		return nil, classify.NewError(classify.CategoryValidation,
			"the planner produced no epics; add more detail to the event description and retry")
	}

	return map[string]any{
		"type":             PlanTypeEpics,
		"eventId":          eventID,
		"departments":      departments,
		"eventDescription": eventDescription,
		"plan":             map[string]any{"epics": plan.Epics},
	}, nil
}

// formatKBText renders retrieved chunks for a planner prompt.
func formatKBText(chunks []retrieval.Chunk, empty string) string {
	if len(chunks) == 0 {
		return empty
	}
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		kind := c.Kind
		if kind == "" {
			kind = c.Group
		}
		if kind == "" {
			kind = "unknown"
		}
		parts[i] = fmt.Sprintf("[KB#%d] (%s): %s", i+1, kind, c.Text)
	}
	return strings.Join(parts, "\n\n")
}

var _ Tool = (*GenerateEpics)(nil)
