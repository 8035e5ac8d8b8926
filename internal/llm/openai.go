package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync/atomic"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

// OpenAIGateway talks to any OpenAI-compatible chat-completions endpoint.
type OpenAIGateway struct {
	client  *openai.Client
	model   string
	healthy atomic.Int32
}

// NewOpenAIGateway builds a gateway for the given credential and model.
// baseURL overrides the provider endpoint when non-empty, which is how tests
// and self-hosted deployments point the gateway elsewhere.
func NewOpenAIGateway(credential, model, baseURL string) *OpenAIGateway {
	cfg := openai.DefaultConfig(credential)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	g := &OpenAIGateway{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
	g.healthy.Store(1)
	return g
}

// Complete performs one chat-completion call and normalizes the outcome.
func (g *OpenAIGateway) Complete(ctx context.Context, req Request) (*Reply, error) {
	chatReq := openai.ChatCompletionRequest{
		Model:    g.model,
		Messages: toOpenAIMessages(req.Messages),
	}
	// an empty tool list is omitted entirely rather than sent as []
	if len(req.Tools) > 0 {
		chatReq.Tools = toOpenAITools(req.Tools)
		if req.ToolChoice != "" {
			chatReq.ToolChoice = string(req.ToolChoice)
		}
	}

	resp, err := g.client.CreateChatCompletion(ctx, chatReq)
	if err != nil {
		g.healthy.Store(0)
		return nil, mapOpenAIError(err)
	}
	g.healthy.Store(1)

	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in response", ErrInvalidReply)
	}
	msg := resp.Choices[0].Message

	reply := &Reply{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		if tc.Function.Name == "" {
			return nil, fmt.Errorf("%w: tool call without function name", ErrInvalidReply)
		}
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply, nil
}

// Name implements health.Checker.
func (g *OpenAIGateway) Name() string { return "model-gateway" }

// IsHealthy reports whether the last provider call succeeded.
func (g *OpenAIGateway) IsHealthy() bool { return g.healthy.Load() == 1 }

// Start implements health.Checker. The gateway is probed passively through
// real traffic; active pings would burn quota.
func (g *OpenAIGateway) Start(ctx context.Context, _ time.Duration) { <-ctx.Done() }

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(msgs))
	for _, m := range msgs {
		om := openai.ChatCompletionMessage{
			Role:       m.Role,
			Content:    m.Content,
			ToolCallID: m.ToolCallID,
		}
		for _, tc := range m.ToolCalls {
			om.ToolCalls = append(om.ToolCalls, openai.ToolCall{
				ID:   tc.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		out = append(out, om)
	}
	return out
}

func toOpenAITools(schemas []ToolSchema) []openai.Tool {
	out := make([]openai.Tool, 0, len(schemas))
	for _, s := range schemas {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return out
}

func mapOpenAIError(err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.HTTPStatusCode == 429:
			return fmt.Errorf("%w: %v", ErrQuota, err)
		case apiErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrInternal, err)
		default:
			return fmt.Errorf("%w: %v", ErrInvalidReply, err)
		}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		switch {
		case reqErr.HTTPStatusCode == 429:
			return fmt.Errorf("%w: %v", ErrQuota, err)
		case reqErr.HTTPStatusCode >= 500:
			return fmt.Errorf("%w: %v", ErrInternal, err)
		}
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	return fmt.Errorf("%w: %v", ErrTransport, err)
}
