package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/taskhive/taskhive-backend/internal/api/respond"
	"github.com/taskhive/taskhive-backend/internal/auth"
	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/services"
)

// TaskHandler is the REST transport over the task service. It shares scope
// and semantics with the chat tools; both funnel into the same service.
type TaskHandler struct {
	svc *services.TaskService
}

func NewTaskHandler(svc *services.TaskService) *TaskHandler {
	return &TaskHandler{svc: svc}
}

type taskRequest struct {
	Title              *string    `json:"title"`
	Description        *string    `json:"description"`
	Completed          *bool      `json:"completed"`
	Priority           *string    `json:"priority"`
	DueDate            *time.Time `json:"due_date"`
	IsRecurring        *bool      `json:"is_recurring"`
	RecurrencePattern  *string    `json:"recurrence_pattern"`
	RecurrenceInterval *int       `json:"recurrence_interval"`
	TagIDs             []int64    `json:"tag_ids"`
}

// Create POST /api/tasks/
func (h *TaskHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	task := &model.Task{UserID: userID, TagIDs: req.TagIDs}
	if req.Title != nil {
		task.Title = *req.Title
	}
	task.Description = req.Description
	task.DueDate = req.DueDate
	if req.Priority != nil {
		task.Priority = model.Priority(*req.Priority)
	}
	if req.IsRecurring != nil {
		task.IsRecurring = *req.IsRecurring
	}
	if req.RecurrencePattern != nil {
		p := model.RecurrencePattern(*req.RecurrencePattern)
		task.RecurrencePattern = &p
	}
	if req.RecurrenceInterval != nil {
		task.RecurrenceInterval = *req.RecurrenceInterval
	}

	created, err := h.svc.Create(r.Context(), task)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, created)
}

// List GET /api/tasks/
func (h *TaskHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())

	f, err := filterFromQuery(r)
	if err != nil {
		respond.WriteBadRequest(w, err.Error())
		return
	}
	list, err := h.svc.List(r.Context(), userID, f)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"tasks": list, "count": len(list)})
}

// Overdue GET /api/tasks/overdue
func (h *TaskHandler) Overdue(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	overdue := true
	list, err := h.svc.List(r.Context(), userID, model.TaskFilter{
		IsOverdue: &overdue,
		SortBy:    "due_date",
		SortOrder: "asc",
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"tasks": list, "count": len(list)})
}

// Statistics GET /api/tasks/statistics
func (h *TaskHandler) Statistics(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	stats, err := h.svc.Stats(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, stats)
}

// Get GET /api/tasks/{id}
func (h *TaskHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.svc.Get(r.Context(), userID, taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

// Update PATCH /api/tasks/{id}
func (h *TaskHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}

	var req taskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}

	u := model.TaskUpdate{
		Title:              req.Title,
		Description:        req.Description,
		Completed:          req.Completed,
		DueDate:            req.DueDate,
		IsRecurring:        req.IsRecurring,
		RecurrenceInterval: req.RecurrenceInterval,
		TagIDs:             req.TagIDs,
	}
	if req.Priority != nil {
		p := model.Priority(*req.Priority)
		u.Priority = &p
	}
	if req.RecurrencePattern != nil {
		p := model.RecurrencePattern(*req.RecurrencePattern)
		u.RecurrencePattern = &p
	}

	updated, err := h.svc.Update(r.Context(), userID, taskID, u)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, updated)
}

// Complete POST /api/tasks/{id}/complete
func (h *TaskHandler) Complete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	task, err := h.svc.Complete(r.Context(), userID, taskID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, task)
}

// Delete DELETE /api/tasks/{id}
func (h *TaskHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserFromContext(r.Context())
	taskID, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(r.Context(), userID, taskID); err != nil {
		writeDomainError(w, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, map[string]any{"deleted": taskID})
}

func filterFromQuery(r *http.Request) (model.TaskFilter, error) {
	q := r.URL.Query()
	f := model.TaskFilter{
		Status:    q.Get("status"),
		Search:    q.Get("search"),
		SortBy:    q.Get("sort_by"),
		SortOrder: q.Get("sort_order"),
	}
	if v := q.Get("priority"); v != "" {
		p := model.Priority(v)
		f.Priority = &p
	}
	for name, dst := range map[string]**bool{
		"recurring":    &f.IsRecurring,
		"has_due_date": &f.HasDueDate,
		"overdue":      &f.IsOverdue,
	} {
		if raw := q.Get(name); raw != "" {
			b, err := strconv.ParseBool(raw)
			if err != nil {
				return f, err
			}
			*dst = &b
		}
	}
	if raw := q.Get("tag_ids"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
			if err != nil {
				return f, err
			}
			f.TagIDs = append(f.TagIDs, id)
		}
	}
	return f, nil
}
