package tools

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/backend"
	"github.com/myfevent/agentd/internal/llm"
)

// GetEventDetail fetches the AI-oriented event detail from the backend and
// annotates it with the caller's planning capabilities.
type GetEventDetail struct {
	backend *backend.Client
	logger  *zap.Logger
}

// NewGetEventDetail creates the get_event_detail tool.
func NewGetEventDetail(client *backend.Client, logger *zap.Logger) *GetEventDetail {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GetEventDetail{backend: client, logger: logger}
}

func (t *GetEventDetail) Name() string { return "get_event_detail" }

func (t *GetEventDetail) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name: t.Name(),
			Description: "Fetch full detail for one event: event info, current user's role, " +
				"departments, members, epics, schedules, risks, and milestones. " +
				"Always call this before answering questions about an event or planning work for it.",
			Parameters: Schema{
				Type: "object",
				Properties: map[string]Property{
					"eventId": {Type: "string", Description: "Event identifier"},
				},
				Required: []string{"eventId"},
			}.MustMarshal(),
		},
	}
}

func (t *GetEventDetail) Call(ctx context.Context, args map[string]any, userToken string) (map[string]any, error) {
	eventID := stringArg(args, "eventId")

	result, err := t.backend.Get(ctx, "/events/"+eventID+"/ai-detail", nil, userToken)
	if err != nil {
		return nil, err
	}

	// The backend wraps payloads in { data: {...} }.
	data := result
	if inner, ok := result["data"].(map[string]any); ok {
		data = inner
	}
	if _, ok := data["event"]; !ok {
		return nil, fmt.Errorf("backend returned no event for %s", eventID)
	}

	annotateUserRole(data)
	return data, nil
}

// annotateUserRole adds an explicit capability summary so the model does not
// have to infer permissions from the raw role string.
func annotateUserRole(data map[string]any) {
	currentUser, ok := data["currentUser"].(map[string]any)
	if !ok {
		return
	}
	role, _ := currentUser["role"].(string)
	if role == "" {
		return
	}

	info := map[string]any{
		"role":            role,
		"can_create_epic": role == "HoOC",
		"can_create_task": role == "HoOC" || role == "HoD",
	}
	switch role {
	case "HoOC":
		info["message"] = "Current user is " + role + ". They may create both epics and tasks for any department."
	case "HoD":
		info["message"] = "Current user is " + role + ". They may only create tasks within their own department's epics, not new epics."
	default:
		info["message"] = "Current user is " + role + ". They may not create epics or tasks."
	}
	data["_user_role_info"] = info
}

var _ Tool = (*GetEventDetail)(nil)
