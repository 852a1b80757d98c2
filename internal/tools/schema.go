package tools

import (
	"encoding/json"
	"fmt"

	"github.com/myfevent/agentd/internal/classify"
)

// Schema is the subset of JSON Schema used for tool parameters: a flat
// object with typed properties and a required list.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one tool parameter.
type Property struct {
	Type        string    `json:"type"`
	Description string    `json:"description,omitempty"`
	Enum        []string  `json:"enum,omitempty"`
	Items       *Property `json:"items,omitempty"`
}

// MustMarshal renders the schema for a tool definition. Schemas are
// package-level literals, so a marshal failure is a programming error.
func (s Schema) MustMarshal() json.RawMessage {
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("tools: marshaling schema: %v", err))
	}
	return data
}

// Validate checks required fields and property types, returning classified
// errors the model can read and correct.
func (s Schema) Validate(args map[string]any) error {
	for _, name := range s.Required {
		v, ok := args[name]
		if !ok || v == nil || isEmptyString(v) {
			return classify.NewError(classify.CategoryMissingField,
				fmt.Sprintf("required field %q is missing", name))
		}
	}

	for name, prop := range s.Properties {
		v, ok := args[name]
		if !ok || v == nil {
			continue
		}
		if err := prop.check(name, v); err != nil {
			return err
		}
	}
	return nil
}

func (p Property) check(name string, v any) error {
	switch p.Type {
	case "string":
		s, ok := v.(string)
		if !ok {
			return typeError(name, "string", v)
		}
		if len(p.Enum) > 0 && !contains(p.Enum, s) {
			return classify.NewError(classify.CategoryValidation,
				fmt.Sprintf("field %q must be one of %v, got %q", name, p.Enum, s))
		}
	case "number", "integer":
		// Decoded JSON numbers arrive as float64.
		if _, ok := v.(float64); !ok {
			return typeError(name, p.Type, v)
		}
	case "boolean":
		if _, ok := v.(bool); !ok {
			return typeError(name, "boolean", v)
		}
	case "array":
		items, ok := v.([]any)
		if !ok {
			return typeError(name, "array", v)
		}
		if p.Items != nil {
			for _, item := range items {
				if err := p.Items.check(name+"[]", item); err != nil {
					return err
				}
			}
		}
	case "object":
		if _, ok := v.(map[string]any); !ok {
			return typeError(name, "object", v)
		}
	}
	return nil
}

func typeError(name, want string, got any) error {
	return classify.NewError(classify.CategoryValidation,
		fmt.Sprintf("field %q must be a %s, got %T", name, want, got))
}

func isEmptyString(v any) bool {
	s, ok := v.(string)
	return ok && s == ""
}

func contains(values []string, s string) bool {
	for _, v := range values {
		if v == s {
			return true
		}
	}
	return false
}

// Argument coercion helpers shared by handlers.

func stringArg(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

func stringSliceArg(args map[string]any, name string) []string {
	raw, _ := args[name].([]any)
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
