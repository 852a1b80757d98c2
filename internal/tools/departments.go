package tools

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/myfevent/agentd/internal/backend"
	"github.com/myfevent/agentd/internal/classify"
	"github.com/myfevent/agentd/internal/llm"
)

// CreateDepartments creates departments for an event, skipping names that
// already exist. The operation is idempotent per name.
type CreateDepartments struct {
	backend *backend.Client
	logger  *zap.Logger
}

// NewCreateDepartments creates the create_departments tool.
func NewCreateDepartments(client *backend.Client, logger *zap.Logger) *CreateDepartments {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CreateDepartments{backend: client, logger: logger}
}

func (t *CreateDepartments) Name() string { return "create_departments" }

func (t *CreateDepartments) Definition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.FunctionDefinition{
			Name: t.Name(),
			Description: "Create departments for an event. Names that already exist are skipped, " +
				"so the call is safe to repeat. Returns created, skipped, and a name-to-id map.",
			Parameters: Schema{
				Type: "object",
				Properties: map[string]Property{
					"eventId":     {Type: "string", Description: "Event identifier"},
					"departments": {Type: "array", Items: &Property{Type: "string"}, Description: "Department names to create"},
				},
				Required: []string{"eventId", "departments"},
			}.MustMarshal(),
		},
	}
}

func (t *CreateDepartments) Call(ctx context.Context, args map[string]any, userToken string) (map[string]any, error) {
	eventID := stringArg(args, "eventId")
	names := normalizeNames(stringSliceArg(args, "departments"))
	if len(names) == 0 {
		return nil, classify.NewError(classify.CategoryMissingField,
			"departments must be a non-empty list of names")
	}

	listPath := "/events/" + eventID + "/departments"
	listParams := map[string]string{"page": "1", "limit": "200"}

	existing, err := t.listDepartments(ctx, listPath, listParams, userToken)
	if err != nil {
		// A failed listing degrades to creating everything; duplicates are
		// rejected server-side.
		t.logger.Warn("listing existing departments failed", zap.Error(err))
		existing = nil
	}
	existingByName := indexByName(existing)

	var created, skipped, failures []map[string]any
	for _, name := range names {
		key := strings.ToLower(name)
		if dept, ok := existingByName[key]; ok {
			skipped = append(skipped, map[string]any{
				"name":         name,
				"departmentId": departmentID(dept),
				"reason":       "already_exists",
			})
			continue
		}

		payload := map[string]any{
			"name":        name,
			"description": fmt.Sprintf("Department created automatically by the AI agent for event %s", eventID),
		}
		res, err := t.backend.Post(ctx, listPath, payload, userToken)
		if err != nil {
			t.logger.Warn("creating department failed",
				zap.String("name", name), zap.Error(err))
			failures = append(failures, map[string]any{"name": name, "error": err.Error()})
			continue
		}
		data := res
		if inner, ok := res["data"].(map[string]any); ok {
			data = inner
		}
		created = append(created, map[string]any{
			"name":         name,
			"departmentId": departmentID(data),
			"raw":          data,
		})
	}

	// Reload so the map reflects departments created in this call too.
	final, err := t.listDepartments(ctx, listPath, listParams, userToken)
	if err != nil {
		t.logger.Warn("reloading departments failed", zap.Error(err))
		final = existing
	}

	departmentMap := make(map[string]any, len(final))
	for _, dept := range final {
		name, _ := dept["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		departmentMap[strings.ToLower(name)] = map[string]any{
			"id":   departmentID(dept),
			"name": name,
		}
	}

	return map[string]any{
		"eventId":           eventID,
		"input_departments": names,
		"created":           created,
		"skipped":           skipped,
		"errors":            failures,
		"department_map":    departmentMap,
	}, nil
}

func (t *CreateDepartments) listDepartments(ctx context.Context, path string, params map[string]string, userToken string) ([]map[string]any, error) {
	res, err := t.backend.Get(ctx, path, params, userToken)
	if err != nil {
		return nil, err
	}
	items, ok := res["data"].([]any)
	if !ok {
		items, _ = res["items"].([]any)
	}
	depts := make([]map[string]any, 0, len(items))
	for _, item := range items {
		if d, ok := item.(map[string]any); ok {
			depts = append(depts, d)
		}
	}
	return depts, nil
}

func normalizeNames(raw []string) []string {
	out := make([]string, 0, len(raw))
	for _, name := range raw {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func indexByName(depts []map[string]any) map[string]map[string]any {
	byName := make(map[string]map[string]any, len(depts))
	for _, dept := range depts {
		name, _ := dept["name"].(string)
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		byName[strings.ToLower(name)] = dept
	}
	return byName
}

func departmentID(dept map[string]any) string {
	if id, ok := dept["_id"].(string); ok && id != "" {
		return id
	}
	id, _ := dept["id"].(string)
	return id
}

var _ Tool = (*CreateDepartments)(nil)
