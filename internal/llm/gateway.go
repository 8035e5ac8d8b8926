// Package llm abstracts the chat-completions provider behind a small
// gateway interface so services never touch provider SDK types.
package llm

import "context"

// Message is one entry of the prompt sent to the model.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// ToolCall is a function invocation requested by the model. Arguments is the
// raw JSON object string exactly as the provider produced it.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolSchema advertises one callable tool to the model. Parameters is a
// JSON-schema object.
type ToolSchema struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ToolChoice constrains whether the model may call tools on this request.
type ToolChoice string

const (
	// ToolChoiceAuto lets the model decide between text and tool calls.
	ToolChoiceAuto ToolChoice = "auto"
	// ToolChoiceNone forbids tool calls; the model must answer in text.
	ToolChoiceNone ToolChoice = "none"
)

// Request is one chat-completion call.
type Request struct {
	Messages   []Message
	Tools      []ToolSchema
	ToolChoice ToolChoice
}

// Reply is the model's answer: either text, or one or more tool calls.
type Reply struct {
	Text      string
	ToolCalls []ToolCall
}

// HasToolCalls reports whether the model asked to invoke tools.
func (r *Reply) HasToolCalls() bool { return len(r.ToolCalls) > 0 }

// Gateway is the provider-neutral chat interface.
type Gateway interface {
	Complete(ctx context.Context, req Request) (*Reply, error)
}
