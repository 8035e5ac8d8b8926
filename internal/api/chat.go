package api

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/taskhive/taskhive-backend/internal/api/respond"
	"github.com/taskhive/taskhive-backend/internal/auth"
	"github.com/taskhive/taskhive-backend/internal/services"
)

// ChatHandler is the HTTP transport of the chat pipeline.
type ChatHandler struct {
	svc *services.ChatService
	log zerolog.Logger
}

func NewChatHandler(svc *services.ChatService, log zerolog.Logger) *ChatHandler {
	return &ChatHandler{svc: svc, log: log}
}

// chatResponse is the wire shape of a successful turn. Tool calls surface as
// names only; their payloads stay server-side.
type chatResponse struct {
	ConversationID int64    `json:"conversation_id"`
	Response       string   `json:"response"`
	ToolCalls      []string `json:"tool_calls"`
	Status         string   `json:"status"`
}

// HandleChat POST /api/chat/
func (h *ChatHandler) HandleChat(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserFromContext(r.Context())
	if !ok {
		respond.WriteError(w, http.StatusUnauthorized, "missing user identity")
		return
	}

	var req struct {
		Message        string `json:"message"`
		ConversationID int64  `json:"conversation_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	res, err := h.svc.HandleChat(r.Context(), userID, req.ConversationID, req.Message)
	if err != nil {
		h.log.Warn().Err(err).
			Int64("user_id", userID).
			Int64("conversation_id", req.ConversationID).
			Msg("chat turn failed")
		writeDomainError(w, err)
		return
	}

	names := make([]string, 0, len(res.ToolCallsPerformed))
	for _, tc := range res.ToolCallsPerformed {
		names = append(names, tc.Tool)
	}
	respond.WriteJSON(w, http.StatusOK, chatResponse{
		ConversationID: res.ConversationID,
		Response:       res.ResponseText,
		ToolCalls:      names,
		Status:         "success",
	})
}
