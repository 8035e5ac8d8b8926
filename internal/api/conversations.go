package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/taskhive/taskhive-backend/internal/api/respond"
	"github.com/taskhive/taskhive-backend/internal/auth"
	"github.com/taskhive/taskhive-backend/internal/services"
)

// ConversationHandler serves transcript reads and deletes.
type ConversationHandler struct {
	svc *services.ConversationService
}

func NewConversationHandler(svc *services.ConversationService) *ConversationHandler {
	return &ConversationHandler{svc: svc}
}

// List GET /api/conversations/
func (h *ConversationHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	list, err := h.svc.List(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"conversations": list, "count": len(list)})
}

// Get handles GET /api/conversations/{id} and returns conversation metadata
// plus the full visible transcript.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	conv, err := h.svc.Get(r.Context(), userID, convID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	msgs, err := h.svc.Messages(r.Context(), userID, convID, 0, 0)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{
		"conversation": conv,
		"messages":     msgs,
	})
}

// Messages GET /api/conversations/{id}/messages?skip&limit
func (h *ConversationHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	skip := queryInt(r, "skip", 0)
	limit := queryInt(r, "limit", 0)
	if skip < 0 || limit < 0 {
		respond.WriteBadRequest(w, "skip and limit must be non-negative")
		return
	}

	msgs, err := h.svc.Messages(r.Context(), userID, convID, skip, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"messages": msgs, "count": len(msgs)})
}

// Delete DELETE /api/conversations/{id}
func (h *ConversationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	convID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, convID); err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"deleted": convID})
}

// pathID parses the {name} path variable as a positive integer id.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)[name], 10, 64)
	if err != nil || id <= 0 {
		respond.WriteBadRequest(w, "invalid id")
		return 0, false
	}
	return id, true
}

func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return v
}
