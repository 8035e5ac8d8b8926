package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskhive/taskhive-backend/internal/llm"
	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
	"github.com/taskhive/taskhive-backend/internal/tools"
)

const systemPrompt = `You are TaskHive, a task management assistant. You help the user manage
their todo list through the provided tools. Use tools to read or change
tasks instead of guessing; after the tools run, answer the user in one or
two concise sentences. Dates are ISO 8601.`

const maxUserTextLen = 8000

// ChatConfig carries the tunables of the chat pipeline.
type ChatConfig struct {
	HistoryWindow      int
	HistoryTokenBudget int
	TurnDeadline       time.Duration
	ModelCallDeadline  time.Duration
	MaxToolRounds      int
}

// ChatResult is the outcome of one accepted chat turn. The HTTP layer maps
// it onto the response body.
type ChatResult struct {
	ConversationID     int64
	ResponseText       string
	ToolCallsPerformed []tools.Result
}

// ChatService drives the chat turn pipeline: history assembly, model calls,
// tool dispatch and atomic transcript persistence.
type ChatService struct {
	store    store.Store
	gateway  llm.Gateway
	registry *tools.Registry
	counter  *llm.TokenCounter
	cfg      ChatConfig
	log      zerolog.Logger
}

// NewChatService builds the chat pipeline. gateway may be nil when the
// process has no model credential; HandleChat then fails cleanly.
func NewChatService(s store.Store, gateway llm.Gateway, registry *tools.Registry, counter *llm.TokenCounter, cfg ChatConfig, log zerolog.Logger) *ChatService {
	if cfg.MaxToolRounds <= 0 {
		cfg.MaxToolRounds = 1
	}
	if cfg.HistoryWindow <= 0 {
		cfg.HistoryWindow = 50
	}
	return &ChatService{store: s, gateway: gateway, registry: registry, counter: counter, cfg: cfg, log: log}
}

// HandleChat runs one turn. conversationID 0 starts a new conversation; the
// conversation row is only created once the turn succeeds, so failed turns
// leave no trace. Tool interchanges are never persisted: exactly one user
// and one assistant message are committed per accepted turn.
func (s *ChatService) HandleChat(ctx context.Context, userID, conversationID int64, userText string) (*ChatResult, error) {
	if s.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}

	userText = strings.TrimSpace(userText)
	if userText == "" {
		return nil, fmt.Errorf("%w: message is empty", model.ErrValidation)
	}
	if len(userText) > maxUserTextLen {
		return nil, fmt.Errorf("%w: message exceeds %d characters", model.ErrValidation, maxUserTextLen)
	}

	if s.cfg.TurnDeadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.TurnDeadline)
		defer cancel()
	}

	msgs, err := s.buildPrompt(ctx, userID, conversationID, userText)
	if err != nil {
		return nil, err
	}

	schemas := s.registry.Schemas()
	reply, err := s.call(ctx, msgs, schemas, llm.ToolChoiceAuto)
	if err != nil {
		return nil, err
	}

	var performed []tools.Result
	rounds := 0
	for reply.HasToolCalls() {
		if rounds >= s.cfg.MaxToolRounds {
			return nil, fmt.Errorf("%w: tool call after tool budget was spent", ErrUpstreamProtocol)
		}
		rounds++

		msgs = append(msgs, llm.Message{
			Role:      model.RoleAssistant,
			Content:   reply.Text,
			ToolCalls: reply.ToolCalls,
		})
		for _, call := range reply.ToolCalls {
			res := s.registry.Dispatch(ctx, userID, call)
			performed = append(performed, res)
			s.log.Debug().
				Int64("user_id", userID).
				Str("tool", call.Name).
				Str("code", res.Code).
				Msg("tool dispatched")
			msgs = append(msgs, llm.Message{
				Role:       model.RoleTool,
				Content:    res.JSON(),
				ToolCallID: call.ID,
			})
		}

		choice := llm.ToolChoiceAuto
		if rounds >= s.cfg.MaxToolRounds {
			choice = llm.ToolChoiceNone
		}
		reply, err = s.call(ctx, msgs, schemas, choice)
		if err != nil {
			return nil, err
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: turn deadline exceeded", ErrUpstreamUnavailable)
	}

	// the commit must not be torn apart by a deadline firing mid-transaction
	conv, err := s.store.Conversations().CommitTurn(
		context.WithoutCancel(ctx), userID, conversationID, userText, reply.Text)
	if err != nil {
		if isNotFound(err) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailed, err)
	}

	if performed == nil {
		performed = []tools.Result{}
	}
	return &ChatResult{
		ConversationID:     conv.ID,
		ResponseText:       reply.Text,
		ToolCallsPerformed: performed,
	}, nil
}

// buildPrompt assembles system prompt, trimmed history and the new user
// message. An unknown or foreign conversation surfaces as ErrNotFound before
// any model call is made.
func (s *ChatService) buildPrompt(ctx context.Context, userID, conversationID int64, userText string) ([]llm.Message, error) {
	var history []llm.Message
	if conversationID != 0 {
		stored, err := s.store.Conversations().Messages(ctx, userID, conversationID, 0, 0)
		if err != nil {
			return nil, err
		}
		if len(stored) > s.cfg.HistoryWindow {
			stored = stored[len(stored)-s.cfg.HistoryWindow:]
		}
		for _, m := range stored {
			history = append(history, llm.Message{Role: m.Role, Content: m.Content})
		}
	}

	assemble := func() []llm.Message {
		msgs := make([]llm.Message, 0, len(history)+2)
		msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt})
		msgs = append(msgs, history...)
		return append(msgs, llm.Message{Role: model.RoleUser, Content: userText})
	}

	if s.counter != nil && s.cfg.HistoryTokenBudget > 0 {
		for len(history) > 0 && s.counter.Count(assemble()) > s.cfg.HistoryTokenBudget {
			history = history[1:]
		}
	}
	return assemble(), nil
}

func (s *ChatService) call(ctx context.Context, msgs []llm.Message, schemas []llm.ToolSchema, choice llm.ToolChoice) (*llm.Reply, error) {
	callCtx := ctx
	if s.cfg.ModelCallDeadline > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, s.cfg.ModelCallDeadline)
		defer cancel()
	}

	reply, err := s.gateway.Complete(callCtx, llm.Request{
		Messages:   msgs,
		Tools:      schemas,
		ToolChoice: choice,
	})
	if err != nil {
		return nil, mapGatewayError(err)
	}
	return reply, nil
}

func mapGatewayError(err error) error {
	if isProtocolError(err) {
		return fmt.Errorf("%w: %v", ErrUpstreamProtocol, err)
	}
	return fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
}
