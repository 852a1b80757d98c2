package tools

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/backend"
	"github.com/myfevent/agentd/internal/classify"
	"github.com/myfevent/agentd/internal/llm"
)

// defaultEventImage is used when the model supplies no cover image.
const defaultEventImage = "https://images.unsplash.com/photo-1540575467063-178a50c2df87?w=800"

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)

// CreateEvent creates a new event through the backend on the caller's
// behalf.
type CreateEvent struct {
	backend *backend.Client
	logger  *zap.Logger
}

// NewCreateEvent creates the create_event tool.
func NewCreateEvent(client *backend.Client, logger *zap.Logger) *CreateEvent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateEvent{backend: client, logger: logger}
}

func (t *CreateEvent) Name() string { return "create_event" }

func (t *CreateEvent) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name: t.Name(),
			Description: "Create a new event. Collect every required field from the user first, " +
				"including a 2-5 sentence description of the event's goal, audience, and size.",
			Parameters: Schema{
				Type: "object",
				Properties: map[string]Property{
					"name":           {Type: "string", Description: "Event name"},
					"description":    {Type: "string", Description: "Detailed event description"},
					"organizerName":  {Type: "string", Description: "Organizing unit"},
					"eventStartDate": {Type: "string", Description: "Start date, yyyy-mm-dd"},
					"eventEndDate":   {Type: "string", Description: "End date, yyyy-mm-dd"},
					"location":       {Type: "string", Description: "Venue"},
					"type":           {Type: "string", Enum: []string{"public", "private"}, Description: "Event visibility"},
					"images":         {Type: "array", Items: &Property{Type: "string"}, Description: "Cover image URLs"},
				},
				Required: []string{"name", "description", "organizerName", "eventStartDate", "eventEndDate", "location", "type"},
			}.MustMarshal(),
		},
	}
}

func (t *CreateEvent) Call(ctx context.Context, args map[string]any, userToken string) (map[string]any, error) {
	startDate := stringArg(args, "eventStartDate")
	endDate := stringArg(args, "eventEndDate")
	if !datePattern.MatchString(startDate) {
		return nil, classify.NewError(classify.CategoryValidation,
			fmt.Sprintf("invalid start date %q, expected yyyy-mm-dd (e.g. 2025-05-06)", startDate))
	}
	if !datePattern.MatchString(endDate) {
		return nil, classify.NewError(classify.CategoryValidation,
			fmt.Sprintf("invalid end date %q, expected yyyy-mm-dd (e.g. 2025-05-11)", endDate))
	}

	eventType := stringArg(args, "type")
	if eventType == "" {
		eventType = "private"
	}
	images := stringSliceArg(args, "images")
	if len(images) == 0 {
		images = []string{defaultEventImage}
	}

	payload := map[string]any{
		"name":           stringArg(args, "name"),
		"description":    stringArg(args, "description"),
		"organizerName":  stringArg(args, "organizerName"),
		"eventStartDate": startDate,
		"eventEndDate":   endDate,
		"location":       stringArg(args, "location"),
		"type":           eventType,
		"images":         images,
	}

	t.logger.Info("creating event",
		zap.String("name", stringArg(args, "name")),
		zap.String("start", startDate),
		zap.Bool("has_token", strings.TrimSpace(userToken) != ""))

	return t.backend.Post(ctx, "/events", payload, userToken)
}

var _ Tool = (*CreateEvent)(nil)
