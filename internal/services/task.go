package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/taskhive/taskhive-backend/internal/events"
	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
)

// TaskService orchestrates task use cases: validation, recurrence scheduling
// and event emission on top of the store.
type TaskService struct {
	store store.Store
	bus   *events.Bus
	log   zerolog.Logger
}

// NewTaskService builds the task service. bus may be nil when no event
// webhook is configured.
func NewTaskService(s store.Store, bus *events.Bus, log zerolog.Logger) *TaskService {
	return &TaskService{store: s, bus: bus, log: log}
}

const maxTitleLen = 500

func (s *TaskService) Create(ctx context.Context, task *model.Task) (*model.Task, error) {
	task.Title = strings.TrimSpace(task.Title)
	if task.Title == "" {
		return nil, fmt.Errorf("%w: title is required", model.ErrValidation)
	}
	if len(task.Title) > maxTitleLen {
		return nil, fmt.Errorf("%w: title exceeds %d characters", model.ErrValidation, maxTitleLen)
	}
	if task.Priority != "" && !task.Priority.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %q", model.ErrValidation, task.Priority)
	}
	if task.RecurrencePattern != nil {
		if !task.RecurrencePattern.Valid() {
			return nil, fmt.Errorf("%w: invalid recurrence pattern %q", model.ErrValidation, *task.RecurrencePattern)
		}
		task.IsRecurring = true
	} else if task.IsRecurring {
		return nil, fmt.Errorf("%w: recurring task needs a recurrence pattern", model.ErrValidation)
	}
	if task.IsRecurring && task.DueDate != nil {
		next := NextOccurrence(*task.DueDate, *task.RecurrencePattern, task.RecurrenceInterval)
		task.NextOccurrence = &next
	}

	created, err := s.store.Tasks().Create(ctx, task)
	if err != nil {
		return nil, err
	}
	s.publish(events.TaskCreated, created)
	return created, nil
}

func (s *TaskService) Get(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	return s.store.Tasks().GetByID(ctx, userID, taskID)
}

func (s *TaskService) List(ctx context.Context, userID int64, f model.TaskFilter) ([]*model.Task, error) {
	if f.Priority != nil && !f.Priority.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %q", model.ErrValidation, *f.Priority)
	}
	return s.store.Tasks().List(ctx, userID, f)
}

func (s *TaskService) Update(ctx context.Context, userID, taskID int64, u model.TaskUpdate) (*model.Task, error) {
	if u.Title != nil {
		trimmed := strings.TrimSpace(*u.Title)
		if trimmed == "" {
			return nil, fmt.Errorf("%w: title cannot be empty", model.ErrValidation)
		}
		u.Title = &trimmed
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %q", model.ErrValidation, *u.Priority)
	}
	if u.RecurrencePattern != nil && !u.RecurrencePattern.Valid() {
		return nil, fmt.Errorf("%w: invalid recurrence pattern %q", model.ErrValidation, *u.RecurrencePattern)
	}

	updated, err := s.store.Tasks().Update(ctx, userID, taskID, u)
	if err != nil {
		return nil, err
	}
	s.publish(events.TaskUpdated, updated)
	return updated, nil
}

// Complete marks a task done. Completing an already-completed task is a
// no-op. For recurring tasks the next instance is created with the due date
// advanced by the recurrence pattern.
func (s *TaskService) Complete(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	task, err := s.store.Tasks().GetByID(ctx, userID, taskID)
	if err != nil {
		return nil, err
	}
	if task.Completed {
		return task, nil
	}

	yes := true
	completed, err := s.store.Tasks().Update(ctx, userID, taskID, model.TaskUpdate{Completed: &yes})
	if err != nil {
		return nil, err
	}
	s.publish(events.TaskCompleted, completed)

	if task.IsRecurring && task.RecurrencePattern != nil {
		if _, err := s.scheduleNext(ctx, task); err != nil {
			// the completion itself succeeded; scheduling is reported but
			// not rolled back
			s.log.Error().Err(err).
				Int64("task_id", task.ID).
				Msg("failed to schedule next occurrence of recurring task")
		}
	}
	return completed, nil
}

func (s *TaskService) scheduleNext(ctx context.Context, task *model.Task) (*model.Task, error) {
	base := time.Now().UTC()
	if task.DueDate != nil {
		base = *task.DueDate
	}
	due := NextOccurrence(base, *task.RecurrencePattern, task.RecurrenceInterval)

	next := &model.Task{
		UserID:             task.UserID,
		Title:              task.Title,
		Description:        task.Description,
		Priority:           task.Priority,
		DueDate:            &due,
		IsRecurring:        true,
		RecurrencePattern:  task.RecurrencePattern,
		RecurrenceInterval: task.RecurrenceInterval,
		ParentTaskID:       &task.ID,
		TagIDs:             task.TagIDs,
	}
	created, err := s.store.Tasks().Create(ctx, next)
	if err != nil {
		return nil, err
	}
	s.publish(events.RecurringScheduled, created)
	return created, nil
}

func (s *TaskService) Delete(ctx context.Context, userID, taskID int64) error {
	if err := s.store.Tasks().Delete(ctx, userID, taskID); err != nil {
		return err
	}
	s.publish(events.TaskDeleted, map[string]int64{"id": taskID, "user_id": userID})
	return nil
}

func (s *TaskService) SetPriority(ctx context.Context, userID, taskID int64, p model.Priority) (*model.Task, error) {
	if !p.Valid() {
		return nil, fmt.Errorf("%w: invalid priority %q", model.ErrValidation, p)
	}
	return s.Update(ctx, userID, taskID, model.TaskUpdate{Priority: &p})
}

func (s *TaskService) SetTags(ctx context.Context, userID, taskID int64, tagIDs []int64) (*model.Task, error) {
	if err := s.store.Tasks().SetTags(ctx, userID, taskID, tagIDs); err != nil {
		return nil, err
	}
	return s.store.Tasks().GetByID(ctx, userID, taskID)
}

func (s *TaskService) Stats(ctx context.Context, userID int64) (*model.TaskStats, error) {
	return s.store.Tasks().Stats(ctx, userID)
}

func (s *TaskService) publish(eventType string, payload any) {
	if s.bus == nil {
		return
	}
	ev := events.Event{Type: eventType, Payload: payload}
	if task, ok := payload.(*model.Task); ok {
		ev.UserID = task.UserID
	}
	s.bus.Publish(ev)
}

// NextOccurrence advances a due date by one recurrence step. Monthly
// recurrence clamps the day of month to 28 so every month has a valid slot.
func NextOccurrence(from time.Time, pattern model.RecurrencePattern, interval int) time.Time {
	if interval <= 0 {
		interval = 1
	}
	switch pattern {
	case model.RecurDaily:
		return from.AddDate(0, 0, interval)
	case model.RecurWeekly:
		return from.AddDate(0, 0, 7*interval)
	case model.RecurMonthly:
		day := from.Day()
		if day > 28 {
			day = 28
		}
		base := time.Date(from.Year(), from.Month(), day,
			from.Hour(), from.Minute(), from.Second(), 0, from.Location())
		return base.AddDate(0, interval, 0)
	default:
		return from.AddDate(0, 0, interval)
	}
}
