// Package tools defines the function-calling surface exposed to the model
// and dispatches validated calls against the task service.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/taskhive/taskhive-backend/internal/llm"
)

// Result codes. Tool failures are reported back to the model as data, never
// as Go errors; a malformed tool call must not abort the chat turn.
const (
	CodeOK              = "ok"
	CodeInvalidArgument = "invalid_argument"
	CodeNotFound        = "not_found"
	CodeInternal        = "internal"
	CodeUnknownTool     = "unknown_tool"
)

// Result is the structured outcome of one tool dispatch.
type Result struct {
	Tool    string `json:"tool"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

// OK reports whether the dispatch succeeded.
func (r Result) OK() bool { return r.Code == CodeOK }

// JSON renders the result for the tool message fed back to the model.
func (r Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"tool":%q,"code":%q}`, r.Tool, CodeInternal)
	}
	return string(b)
}

// Handler executes one validated tool call on behalf of a user. Arguments
// arrive coerced to the declared schema types.
type Handler func(ctx context.Context, userID int64, args map[string]any) (any, error)

// Tool is one callable exposed to the model.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]any
	Handler     Handler
}

// Registry holds the tool set for chat turns.
type Registry struct {
	tools map[string]*Tool
}

func newEmptyRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Later registrations with the same name replace
// earlier ones.
func (r *Registry) Register(t *Tool) { r.tools[t.Name] = t }

// Schemas returns the tool schemas advertised to the model, sorted by name
// so the prompt is stable across processes.
func (r *Registry) Schemas() []llm.ToolSchema {
	out := make([]llm.ToolSchema, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, llm.ToolSchema{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  t.Parameters,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Dispatch validates and executes one model-requested tool call. It never
// returns an error; every failure mode is encoded in the Result.
func (r *Registry) Dispatch(ctx context.Context, userID int64, call llm.ToolCall) Result {
	tool, ok := r.tools[call.Name]
	if !ok {
		return Result{Tool: call.Name, Code: CodeUnknownTool, Message: fmt.Sprintf("no tool named %q", call.Name)}
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return Result{Tool: call.Name, Code: CodeInvalidArgument, Message: "arguments are not a JSON object"}
		}
	}
	if err := validateArgs(tool.Parameters, args); err != nil {
		return Result{Tool: call.Name, Code: CodeInvalidArgument, Message: err.Error()}
	}

	data, err := tool.Handler(ctx, userID, args)
	if err != nil {
		return errorResult(call.Name, err)
	}
	return Result{Tool: call.Name, Code: CodeOK, Data: data}
}

// validateArgs checks args against a JSON-schema style parameter object and
// coerces numeric values to the declared type in place.
func validateArgs(schema, args map[string]any) error {
	props, _ := schema["properties"].(map[string]any)

	if req, ok := schema["required"].([]string); ok {
		for _, name := range req {
			if _, present := args[name]; !present {
				return fmt.Errorf("missing required argument %q", name)
			}
		}
	}

	for name, raw := range args {
		spec, ok := props[name].(map[string]any)
		if !ok {
			// unknown arguments are dropped rather than rejected; models
			// routinely invent extras
			delete(args, name)
			continue
		}
		coerced, err := coerceValue(name, spec, raw)
		if err != nil {
			return err
		}
		args[name] = coerced
	}
	return nil
}

func coerceValue(name string, spec map[string]any, raw any) (any, error) {
	typ, _ := spec["type"].(string)
	switch typ {
	case "string":
		s, ok := raw.(string)
		if !ok {
			return nil, fmt.Errorf("argument %q must be a string", name)
		}
		if err := checkEnum(name, spec, s); err != nil {
			return nil, err
		}
		return s, nil
	case "integer":
		switch v := raw.(type) {
		case float64:
			if v != float64(int64(v)) {
				return nil, fmt.Errorf("argument %q must be an integer", name)
			}
			return int64(v), nil
		case int64:
			return v, nil
		}
		return nil, fmt.Errorf("argument %q must be an integer", name)
	case "number":
		if v, ok := raw.(float64); ok {
			return v, nil
		}
		return nil, fmt.Errorf("argument %q must be a number", name)
	case "boolean":
		if v, ok := raw.(bool); ok {
			return v, nil
		}
		return nil, fmt.Errorf("argument %q must be a boolean", name)
	case "array":
		items, ok := raw.([]any)
		if !ok {
			return nil, fmt.Errorf("argument %q must be an array", name)
		}
		itemSpec, _ := spec["items"].(map[string]any)
		if itemSpec == nil {
			return items, nil
		}
		out := make([]any, 0, len(items))
		for _, it := range items {
			cv, err := coerceValue(name, itemSpec, it)
			if err != nil {
				return nil, err
			}
			out = append(out, cv)
		}
		return out, nil
	default:
		return raw, nil
	}
}

func checkEnum(name string, spec map[string]any, v string) error {
	allowed, ok := spec["enum"].([]string)
	if !ok {
		return nil
	}
	for _, a := range allowed {
		if v == a {
			return nil
		}
	}
	return fmt.Errorf("argument %q must be one of %v", name, allowed)
}
