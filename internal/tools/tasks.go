package tools

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/taskhive/taskhive-backend/internal/model"
)

// TaskAPI is the slice of the task service the tools need. Defined here so
// the dependency points from tools to the domain, not the other way around.
type TaskAPI interface {
	Create(ctx context.Context, task *model.Task) (*model.Task, error)
	List(ctx context.Context, userID int64, f model.TaskFilter) ([]*model.Task, error)
	Update(ctx context.Context, userID, taskID int64, u model.TaskUpdate) (*model.Task, error)
	Complete(ctx context.Context, userID, taskID int64) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID int64) error
	SetPriority(ctx context.Context, userID, taskID int64, p model.Priority) (*model.Task, error)
}

// NewRegistry builds the chat tool set backed by the given task service.
func NewRegistry(tasks TaskAPI) *Registry {
	r := newEmptyRegistry()

	r.Register(&Tool{
		Name:        "add_task",
		Description: "Create a new task for the user. Use when the user asks to add, create, or remember something to do.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"title": map[string]any{
					"type":        "string",
					"description": "Short imperative title of the task",
				},
				"description": map[string]any{
					"type":        "string",
					"description": "Optional longer details",
				},
				"priority": map[string]any{
					"type":        "string",
					"description": "Task priority",
					"enum":        []string{"low", "medium", "high", "urgent"},
				},
				"due_date": map[string]any{
					"type":        "string",
					"description": "Due date, ISO 8601 (YYYY-MM-DD or full timestamp)",
				},
				"recurrence_pattern": map[string]any{
					"type":        "string",
					"description": "Repeat pattern for recurring tasks",
					"enum":        []string{"daily", "weekly", "monthly"},
				},
				"recurrence_interval": map[string]any{
					"type":        "integer",
					"description": "Repeat every N pattern units (default 1)",
				},
				"is_recurring": map[string]any{
					"type":        "boolean",
					"description": "Whether the task repeats; requires recurrence_pattern",
				},
				"tag_ids": map[string]any{
					"type":        "array",
					"description": "IDs of existing tags to attach to the task",
					"items":       map[string]any{"type": "integer"},
				},
			},
			"required": []string{"title"},
		},
		Handler: func(ctx context.Context, userID int64, args map[string]any) (any, error) {
			task := &model.Task{
				UserID: userID,
				Title:  args["title"].(string),
			}
			if v, ok := args["description"].(string); ok {
				task.Description = &v
			}
			if v, ok := args["priority"].(string); ok {
				task.Priority = model.Priority(v)
			}
			if v, ok := args["due_date"].(string); ok {
				due, err := parseDate(v)
				if err != nil {
					return nil, err
				}
				task.DueDate = &due
			}
			if v, ok := args["recurrence_pattern"].(string); ok {
				p := model.RecurrencePattern(v)
				task.RecurrencePattern = &p
				task.IsRecurring = true
			}
			if v, ok := args["recurrence_interval"].(int64); ok {
				task.RecurrenceInterval = int(v)
			}
			if v, ok := args["is_recurring"].(bool); ok {
				task.IsRecurring = v
			}
			task.TagIDs = idList(args["tag_ids"])
			return tasks.Create(ctx, task)
		},
	})

	r.Register(&Tool{
		Name:        "list_tasks",
		Description: "List the user's tasks, optionally filtered. Use before answering questions about what is on the list or what is due.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"status": map[string]any{
					"type":        "string",
					"description": "Filter by completion state",
					"enum":        []string{"all", "active", "completed"},
				},
				"priority": map[string]any{
					"type": "string",
					"enum": []string{"low", "medium", "high", "urgent"},
				},
				"overdue_only": map[string]any{
					"type":        "boolean",
					"description": "Only tasks past their due date",
				},
				"has_due_date": map[string]any{
					"type":        "boolean",
					"description": "Only tasks with (true) or without (false) a due date",
				},
				"tag_ids": map[string]any{
					"type":        "array",
					"description": "Only tasks carrying at least one of these tag IDs",
					"items":       map[string]any{"type": "integer"},
				},
				"search": map[string]any{
					"type":        "string",
					"description": "Substring to match in title or description",
				},
				"sort_by": map[string]any{
					"type": "string",
					"enum": []string{"created_at", "due_date", "priority", "title"},
				},
				"sort_order": map[string]any{
					"type": "string",
					"enum": []string{"asc", "desc"},
				},
			},
		},
		Handler: func(ctx context.Context, userID int64, args map[string]any) (any, error) {
			var f model.TaskFilter
			if v, ok := args["status"].(string); ok && v != "all" {
				f.Status = v
			}
			if v, ok := args["priority"].(string); ok {
				p := model.Priority(v)
				f.Priority = &p
			}
			if v, ok := args["overdue_only"].(bool); ok && v {
				f.IsOverdue = &v
			}
			if v, ok := args["has_due_date"].(bool); ok {
				f.HasDueDate = &v
			}
			f.TagIDs = idList(args["tag_ids"])
			if v, ok := args["search"].(string); ok {
				f.Search = v
			}
			if v, ok := args["sort_by"].(string); ok {
				f.SortBy = v
			}
			if v, ok := args["sort_order"].(string); ok {
				f.SortOrder = v
			}
			list, err := tasks.List(ctx, userID, f)
			if err != nil {
				return nil, err
			}
			return map[string]any{"count": len(list), "tasks": list}, nil
		},
	})

	r.Register(&Tool{
		Name:        "complete_task",
		Description: "Mark a task as completed. For recurring tasks this also schedules the next occurrence.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "integer",
					"description": "ID of the task to complete",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, userID int64, args map[string]any) (any, error) {
			return tasks.Complete(ctx, userID, args["task_id"].(int64))
		},
	})

	r.Register(&Tool{
		Name:        "update_task",
		Description: "Update fields of an existing task. Only the provided fields change.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "integer",
					"description": "ID of the task to update",
				},
				"title":       map[string]any{"type": "string"},
				"description": map[string]any{"type": "string"},
				"priority": map[string]any{
					"type": "string",
					"enum": []string{"low", "medium", "high", "urgent"},
				},
				"due_date": map[string]any{
					"type":        "string",
					"description": "New due date, ISO 8601",
				},
				"completed": map[string]any{"type": "boolean"},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, userID int64, args map[string]any) (any, error) {
			var u model.TaskUpdate
			if v, ok := args["title"].(string); ok {
				u.Title = &v
			}
			if v, ok := args["description"].(string); ok {
				u.Description = &v
			}
			if v, ok := args["priority"].(string); ok {
				p := model.Priority(v)
				u.Priority = &p
			}
			if v, ok := args["due_date"].(string); ok {
				due, err := parseDate(v)
				if err != nil {
					return nil, err
				}
				u.DueDate = &due
			}
			if v, ok := args["completed"].(bool); ok {
				u.Completed = &v
			}
			return tasks.Update(ctx, userID, args["task_id"].(int64), u)
		},
	})

	r.Register(&Tool{
		Name:        "delete_task",
		Description: "Delete a task permanently.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "integer",
					"description": "ID of the task to delete",
				},
			},
			"required": []string{"task_id"},
		},
		Handler: func(ctx context.Context, userID int64, args map[string]any) (any, error) {
			taskID := args["task_id"].(int64)
			if err := tasks.Delete(ctx, userID, taskID); err != nil {
				return nil, err
			}
			return map[string]any{"deleted": taskID}, nil
		},
	})

	r.Register(&Tool{
		Name:        "set_priority",
		Description: "Change the priority of a task.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task_id": map[string]any{
					"type":        "integer",
					"description": "ID of the task",
				},
				"priority": map[string]any{
					"type": "string",
					"enum": []string{"low", "medium", "high", "urgent"},
				},
			},
			"required": []string{"task_id", "priority"},
		},
		Handler: func(ctx context.Context, userID int64, args map[string]any) (any, error) {
			return tasks.SetPriority(ctx, userID, args["task_id"].(int64),
				model.Priority(args["priority"].(string)))
		},
	})

	return r
}

func errorResult(tool string, err error) Result {
	switch {
	case errors.Is(err, model.ErrNotFound):
		return Result{Tool: tool, Code: CodeNotFound, Message: "no such task"}
	case errors.Is(err, model.ErrValidation):
		return Result{Tool: tool, Code: CodeInvalidArgument, Message: err.Error()}
	default:
		return Result{Tool: tool, Code: CodeInternal, Message: "operation failed"}
	}
}

// idList unpacks a validated integer-array argument; absent arguments yield
// nil.
func idList(raw any) []int64 {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]int64, 0, len(items))
	for _, it := range items {
		if id, ok := it.(int64); ok {
			out = append(out, id)
		}
	}
	return out
}

func parseDate(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: cannot parse date %q", model.ErrValidation, s)
}
