package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestGateway(t *testing.T, handler http.HandlerFunc) *OpenAIGateway {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewOpenAIGateway("test-credential", "gpt-4o-mini", srv.URL+"/v1")
}

func completionJSON(msg map[string]any) []byte {
	b, _ := json.Marshal(map[string]any{
		"id":      "chatcmpl-test",
		"object":  "chat.completion",
		"model":   "gpt-4o-mini",
		"choices": []any{map[string]any{"index": 0, "message": msg, "finish_reason": "stop"}},
	})
	return b
}

func TestOpenAIGateway_TextReply(t *testing.T) {
	var gotReq struct {
		Tools      []any `json:"tools"`
		ToolChoice any   `json:"tool_choice"`
	}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionJSON(map[string]any{"role": "assistant", "content": "Hello there."}))
	})

	reply, err := gw.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", reply.Text)
	assert.False(t, reply.HasToolCalls())
	// no tools advertised means no tools field on the wire
	assert.Empty(t, gotReq.Tools)
	assert.Nil(t, gotReq.ToolChoice)
}

func TestOpenAIGateway_ToolCallReply(t *testing.T) {
	var gotReq struct {
		Tools      []any `json:"tools"`
		ToolChoice any   `json:"tool_choice"`
	}
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(completionJSON(map[string]any{
			"role":    "assistant",
			"content": "",
			"tool_calls": []any{map[string]any{
				"id":   "call_1",
				"type": "function",
				"function": map[string]any{
					"name":      "add_task",
					"arguments": `{"title":"buy milk"}`,
				},
			}},
		}))
	})

	reply, err := gw.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "add buy milk"}},
		Tools: []ToolSchema{{
			Name:        "add_task",
			Description: "Create a task",
			Parameters:  map[string]any{"type": "object"},
		}},
		ToolChoice: ToolChoiceAuto,
	})
	require.NoError(t, err)
	require.True(t, reply.HasToolCalls())
	assert.Equal(t, "add_task", reply.ToolCalls[0].Name)
	assert.Equal(t, `{"title":"buy milk"}`, reply.ToolCalls[0].Arguments)
	assert.Len(t, gotReq.Tools, 1)
	assert.Equal(t, "auto", gotReq.ToolChoice)
}

func TestOpenAIGateway_ErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		status int
		want   error
	}{
		{"quota", http.StatusTooManyRequests, ErrQuota},
		{"provider internal", http.StatusInternalServerError, ErrInternal},
		{"bad gateway", http.StatusBadGateway, ErrInternal},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(`{"error":{"message":"nope","type":"server_error"}}`))
			})
			_, err := gw.Complete(context.Background(), Request{
				Messages: []Message{{Role: "user", Content: "hi"}},
			})
			assert.ErrorIs(t, err, tc.want)
			assert.False(t, gw.IsHealthy())
		})
	}
}

func TestOpenAIGateway_EmptyChoices(t *testing.T) {
	gw := newTestGateway(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"chatcmpl-test","object":"chat.completion","choices":[]}`))
	})
	_, err := gw.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	assert.ErrorIs(t, err, ErrInvalidReply)
}

func TestOpenAIGateway_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close() // nothing listens here anymore

	gw := NewOpenAIGateway("test-credential", "gpt-4o-mini", url+"/v1")
	_, err := gw.Complete(context.Background(), Request{
		Messages: []Message{{Role: "user", Content: "hi"}},
	})
	assert.ErrorIs(t, err, ErrTransport)
}

func TestTokenCounter_Count(t *testing.T) {
	c := NewTokenCounter("gpt-4o-mini")

	short := c.Count([]Message{{Role: "user", Content: "hi"}})
	long := c.Count([]Message{{Role: "user", Content: "this is a considerably longer message about groceries"}})
	assert.Greater(t, short, 0)
	assert.Greater(t, long, short)

	withTool := c.Count([]Message{{
		Role:      "assistant",
		ToolCalls: []ToolCall{{Name: "add_task", Arguments: `{"title":"x"}`}},
	}})
	assert.Greater(t, withTool, 4)
}
