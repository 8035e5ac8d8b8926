package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-backend/internal/llm"
	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
	"github.com/taskhive/taskhive-backend/internal/tools"
)

// stubGateway replays a scripted sequence of replies and records every
// request it saw.
type stubGateway struct {
	replies []*llm.Reply
	errs    []error
	reqs    []llm.Request
}

func (g *stubGateway) Complete(_ context.Context, req llm.Request) (*llm.Reply, error) {
	g.reqs = append(g.reqs, req)
	i := len(g.reqs) - 1
	if i < len(g.errs) && g.errs[i] != nil {
		return nil, g.errs[i]
	}
	if i < len(g.replies) {
		return g.replies[i], nil
	}
	return &llm.Reply{Text: "fallback"}, nil
}

func textReply(text string) *llm.Reply { return &llm.Reply{Text: text} }

func toolReply(name, args string) *llm.Reply {
	return &llm.Reply{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: name, Arguments: args}}}
}

func newChatFixture(t *testing.T, gw llm.Gateway, cfg ChatConfig) (*ChatService, store.Store, int64) {
	t.Helper()
	s := newTestStore(t)
	userID := newTestUser(t, s, "chat@example.com")
	taskSvc := NewTaskService(s, nil, zerolog.Nop())
	registry := tools.NewRegistry(taskSvc)
	svc := NewChatService(s, gw, registry, nil, cfg, zerolog.Nop())
	return svc, s, userID
}

func TestHandleChat_NoGateway(t *testing.T) {
	svc, _, userID := newChatFixture(t, nil, ChatConfig{})
	svc.gateway = nil
	_, err := svc.HandleChat(context.Background(), userID, 0, "hi")
	assert.ErrorIs(t, err, ErrGatewayNotConfigured)
}

func TestHandleChat_EmptyMessage(t *testing.T) {
	svc, _, userID := newChatFixture(t, &stubGateway{}, ChatConfig{})
	_, err := svc.HandleChat(context.Background(), userID, 0, "   \n  ")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestHandleChat_UnknownConversation(t *testing.T) {
	gw := &stubGateway{}
	svc, s, userID := newChatFixture(t, gw, ChatConfig{})

	_, err := svc.HandleChat(context.Background(), userID, 31337, "hello?")
	assert.ErrorIs(t, err, model.ErrNotFound)
	// rejected before any model call, and no conversation was created
	assert.Empty(t, gw.reqs)
	list, err := s.Conversations().List(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleChat_PlainTextTurn(t *testing.T) {
	gw := &stubGateway{replies: []*llm.Reply{textReply("Hello! How can I help?")}}
	svc, s, userID := newChatFixture(t, gw, ChatConfig{})

	res, err := svc.HandleChat(context.Background(), userID, 0, "hi there")
	require.NoError(t, err)
	assert.Equal(t, "Hello! How can I help?", res.ResponseText)
	assert.NotZero(t, res.ConversationID)
	assert.Empty(t, res.ToolCallsPerformed)

	msgs, err := s.Conversations().Messages(context.Background(), userID, res.ConversationID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, "hi there", msgs[0].Content)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)

	// tools were advertised with free choice
	require.Len(t, gw.reqs, 1)
	assert.Len(t, gw.reqs[0].Tools, 6)
	assert.Equal(t, llm.ToolChoiceAuto, gw.reqs[0].ToolChoice)
	assert.Equal(t, "system", gw.reqs[0].Messages[0].Role)
}

func TestHandleChat_ToolRound(t *testing.T) {
	gw := &stubGateway{replies: []*llm.Reply{
		toolReply("add_task", `{"title":"buy milk","priority":"high"}`),
		textReply("Added \"buy milk\" to your list."),
	}}
	svc, s, userID := newChatFixture(t, gw, ChatConfig{MaxToolRounds: 1})

	res, err := svc.HandleChat(context.Background(), userID, 0, "remind me to buy milk, it's important")
	require.NoError(t, err)
	require.Len(t, res.ToolCallsPerformed, 1)
	assert.Equal(t, "add_task", res.ToolCallsPerformed[0].Tool)
	assert.Equal(t, tools.CodeOK, res.ToolCallsPerformed[0].Code)

	// the tool actually ran
	list, err := s.Tasks().List(context.Background(), userID, model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "buy milk", list[0].Title)
	assert.Equal(t, model.PriorityHigh, list[0].Priority)

	// second call carried the tool interchange and forbade further calls
	require.Len(t, gw.reqs, 2)
	assert.Equal(t, llm.ToolChoiceNone, gw.reqs[1].ToolChoice)
	last := gw.reqs[1].Messages
	assert.Equal(t, model.RoleTool, last[len(last)-1].Role)
	assert.Equal(t, "call_1", last[len(last)-1].ToolCallID)

	// but the transcript holds only the visible pair
	msgs, err := s.Conversations().Messages(context.Background(), userID, res.ConversationID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
}

func TestHandleChat_FailedToolStillAnswers(t *testing.T) {
	gw := &stubGateway{replies: []*llm.Reply{
		toolReply("complete_task", `{"task_id":999}`),
		textReply("I couldn't find that task."),
	}}
	svc, _, userID := newChatFixture(t, gw, ChatConfig{MaxToolRounds: 1})

	res, err := svc.HandleChat(context.Background(), userID, 0, "finish task 999")
	require.NoError(t, err)
	require.Len(t, res.ToolCallsPerformed, 1)
	assert.Equal(t, tools.CodeNotFound, res.ToolCallsPerformed[0].Code)
	assert.Equal(t, "I couldn't find that task.", res.ResponseText)
}

func TestHandleChat_ProtocolViolation(t *testing.T) {
	gw := &stubGateway{replies: []*llm.Reply{
		toolReply("add_task", `{"title":"a"}`),
		toolReply("add_task", `{"title":"b"}`), // after tool_choice none
	}}
	svc, s, userID := newChatFixture(t, gw, ChatConfig{MaxToolRounds: 1})

	_, err := svc.HandleChat(context.Background(), userID, 0, "add two tasks")
	assert.ErrorIs(t, err, ErrUpstreamProtocol)

	// nothing was persisted for the failed turn
	list, err := s.Conversations().List(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleChat_UpstreamFailure(t *testing.T) {
	gw := &stubGateway{errs: []error{llm.ErrQuota}}
	svc, s, userID := newChatFixture(t, gw, ChatConfig{})

	_, err := svc.HandleChat(context.Background(), userID, 0, "hi")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	list, err := s.Conversations().List(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestHandleChat_InvalidReplyIsProtocolError(t *testing.T) {
	gw := &stubGateway{errs: []error{llm.ErrInvalidReply}}
	svc, _, userID := newChatFixture(t, gw, ChatConfig{})

	_, err := svc.HandleChat(context.Background(), userID, 0, "hi")
	assert.ErrorIs(t, err, ErrUpstreamProtocol)
}

func TestHandleChat_ContinuesConversation(t *testing.T) {
	gw := &stubGateway{replies: []*llm.Reply{
		textReply("first answer"),
		textReply("second answer"),
	}}
	svc, s, userID := newChatFixture(t, gw, ChatConfig{})
	ctx := context.Background()

	res1, err := svc.HandleChat(ctx, userID, 0, "first question")
	require.NoError(t, err)
	res2, err := svc.HandleChat(ctx, userID, res1.ConversationID, "second question")
	require.NoError(t, err)
	assert.Equal(t, res1.ConversationID, res2.ConversationID)

	// the second prompt replayed the stored history
	second := gw.reqs[1].Messages
	require.Len(t, second, 4) // system + 2 history + new user message
	assert.Equal(t, "first question", second[1].Content)
	assert.Equal(t, "first answer", second[2].Content)
	assert.Equal(t, "second question", second[3].Content)

	msgs, err := s.Conversations().Messages(ctx, userID, res1.ConversationID, 0, 0)
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
}

func TestHandleChat_HistoryWindow(t *testing.T) {
	gw := &stubGateway{}
	svc, _, userID := newChatFixture(t, gw, ChatConfig{HistoryWindow: 2})
	ctx := context.Background()

	res, err := svc.HandleChat(ctx, userID, 0, "turn one")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = svc.HandleChat(ctx, userID, res.ConversationID, "another turn")
		require.NoError(t, err)
	}

	// last prompt: system + at most 2 history messages + the new user message
	last := gw.reqs[len(gw.reqs)-1].Messages
	assert.Len(t, last, 4)
}

func TestHandleChat_TurnDeadline(t *testing.T) {
	slow := &slowGateway{delay: 50 * time.Millisecond}
	svc, s, userID := newChatFixture(t, slow, ChatConfig{TurnDeadline: 5 * time.Millisecond})

	_, err := svc.HandleChat(context.Background(), userID, 0, "hi")
	assert.ErrorIs(t, err, ErrUpstreamUnavailable)

	list, err := s.Conversations().List(context.Background(), userID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

type slowGateway struct{ delay time.Duration }

func (g *slowGateway) Complete(ctx context.Context, _ llm.Request) (*llm.Reply, error) {
	select {
	case <-ctx.Done():
		return nil, llm.ErrTransport
	case <-time.After(g.delay):
		return &llm.Reply{Text: "late"}, nil
	}
}
