package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/classify"
	"github.com/myfevent/agentd/internal/llm"
	"github.com/myfevent/agentd/internal/prompt"
	"github.com/myfevent/agentd/internal/retrieval"
)

// GenerateTasks breaks one epic into a task plan. Like GenerateEpics it
// returns a preview plan only.
type GenerateTasks struct {
	engine *retrieval.Engine
	model  llm.Client
	topK   int
	logger *zap.Logger
}

// NewGenerateTasks creates the generate_tasks tool.
func NewGenerateTasks(engine *retrieval.Engine, model llm.Client, topK int, logger *zap.Logger) *GenerateTasks {
	if topK <= 0 {
		topK = defaultPlannerTopK
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GenerateTasks{engine: engine, model: model, topK: topK, logger: logger}
}

func (t *GenerateTasks) Name() string { return "generate_tasks" }

func (t *GenerateTasks) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name: t.Name(),
			Description: "Break one epic into a task plan, grounded on task templates and " +
				"snapshots from similar events. Returns a preview plan only.",
			Parameters: Schema{
				Type: "object",
				Properties: map[string]Property{
					"eventId":          {Type: "string", Description: "Event identifier"},
					"epicId":           {Type: "string", Description: "Parent epic identifier"},
					"epicTitle":        {Type: "string", Description: "Parent epic title"},
					"department":       {Type: "string", Description: "Department owning the epic"},
					"eventDescription": {Type: "string", Description: "Event description giving the planner context"},
					"eventStartDate":   {Type: "string", Description: "Event start date, yyyy-mm-dd"},
				},
				Required: []string{"eventId", "epicId", "epicTitle", "department", "eventDescription", "eventStartDate"},
			}.MustMarshal(),
		},
	}
}

func (t *GenerateTasks) Call(ctx context.Context, args map[string]any, _ string) (map[string]any, error) {
	eventID := stringArg(args, "eventId")
	epicID := stringArg(args, "epicId")
	epicTitle := stringArg(args, "epicTitle")
	department := stringArg(args, "department")
	eventDescription := stringArg(args, "eventDescription")
	eventStartDate := stringArg(args, "eventStartDate")

	query := fmt.Sprintf("%s EPIC: %s department: %s task_template task_snapshot",
		eventDescription, epicTitle, department)
	chunks, err := t.engine.Retrieve(ctx, query, t.topK)
	if err != nil {
		return nil, fmt.Errorf("retrieving task templates: %w", err)
	}
	t.logger.Debug("retrieved knowledge for task planning",
		zap.String("epic", epicTitle), zap.Int("chunks", len(chunks)))

	var plan struct {
		Tasks []map[string]any `json:"tasks"`
	}
	userPrompt := prompt.TaskPlannerUser(eventDescription, epicTitle, department, eventStartDate,
		formatKBText(chunks, "No task templates found."))
	if err := t.model.CompleteJSON(ctx, prompt.TaskPlannerSystem, userPrompt, &plan); err != nil {
		return nil, fmt.Errorf("task planner call: %w", err)
	}
	if len(plan.Tasks) == 0 {
		return nil, classify.NewError(classify.CategoryValidation,
			"the planner produced no tasks for this epic; add more detail to the event description and retry")
	}

	return map[string]any{
		"type":           PlanTypeTasks,
		"eventId":        eventID,
		"epicId":         epicID,
		"epicTitle":      epicTitle,
		"department":     department,
		"eventStartDate": eventStartDate,
		"plan":           map[string]any{"tasks": plan.Tasks},
	}, nil
}

var _ Tool = (*GenerateTasks)(nil)
