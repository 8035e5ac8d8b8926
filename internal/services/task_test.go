package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-backend/internal/events"
	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
	"github.com/taskhive/taskhive-backend/internal/store/sqlite"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.New(filepath.Join(t.TempDir(), "taskhive.db"))
	require.NoError(t, err)
	return s
}

func newTestUser(t *testing.T, s store.Store, email string) int64 {
	t.Helper()
	u, err := s.Users().Create(context.Background(), &model.User{Email: email})
	require.NoError(t, err)
	return u.ID
}

func TestNextOccurrence(t *testing.T) {
	from := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
		NextOccurrence(from, model.RecurDaily, 1))
	assert.Equal(t, time.Date(2026, 3, 13, 9, 0, 0, 0, time.UTC),
		NextOccurrence(from, model.RecurDaily, 3))
	assert.Equal(t, time.Date(2026, 3, 24, 9, 0, 0, 0, time.UTC),
		NextOccurrence(from, model.RecurWeekly, 2))
	assert.Equal(t, time.Date(2026, 4, 10, 9, 0, 0, 0, time.UTC),
		NextOccurrence(from, model.RecurMonthly, 1))

	// months shorter than the source day: the day clamps to 28
	jan31 := time.Date(2026, 1, 31, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, 2, 28, 12, 0, 0, 0, time.UTC),
		NextOccurrence(jan31, model.RecurMonthly, 1))

	// non-positive interval behaves as 1
	assert.Equal(t, time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
		NextOccurrence(from, model.RecurDaily, 0))
}

func TestTaskService_CreateValidation(t *testing.T) {
	svc := NewTaskService(newTestStore(t), nil, zerolog.Nop())
	ctx := context.Background()

	_, err := svc.Create(ctx, &model.Task{UserID: 1, Title: "   "})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Create(ctx, &model.Task{UserID: 1, Title: "x", Priority: "asap"})
	assert.ErrorIs(t, err, model.ErrValidation)

	bad := model.RecurrencePattern("fortnightly")
	_, err = svc.Create(ctx, &model.Task{UserID: 1, Title: "x", RecurrencePattern: &bad})
	assert.ErrorIs(t, err, model.ErrValidation)

	_, err = svc.Create(ctx, &model.Task{UserID: 1, Title: "x", IsRecurring: true})
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestTaskService_CreateRecurringSetsNextOccurrence(t *testing.T) {
	s := newTestStore(t)
	userID := newTestUser(t, s, "recur@example.com")
	svc := NewTaskService(s, nil, zerolog.Nop())

	due := time.Date(2026, 9, 7, 0, 0, 0, 0, time.UTC)
	weekly := model.RecurWeekly
	created, err := svc.Create(context.Background(), &model.Task{
		UserID:            userID,
		Title:             "Water plants",
		DueDate:           &due,
		RecurrencePattern: &weekly,
	})
	require.NoError(t, err)
	assert.True(t, created.IsRecurring)
	require.NotNil(t, created.NextOccurrence)
	assert.Equal(t, due.AddDate(0, 0, 7), *created.NextOccurrence)
}

func TestTaskService_CompleteRecurringSchedulesNext(t *testing.T) {
	s := newTestStore(t)
	userID := newTestUser(t, s, "complete@example.com")
	bus := events.NewBus(16, zerolog.Nop())
	svc := NewTaskService(s, bus, zerolog.Nop())
	ctx := context.Background()

	due := time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC)
	daily := model.RecurDaily
	task, err := svc.Create(ctx, &model.Task{
		UserID:            userID,
		Title:             "Stretch",
		DueDate:           &due,
		RecurrencePattern: &daily,
	})
	require.NoError(t, err)

	completed, err := svc.Complete(ctx, userID, task.ID)
	require.NoError(t, err)
	assert.True(t, completed.Completed)

	// a fresh instance exists with the due date advanced one day
	list, err := svc.List(ctx, userID, model.TaskFilter{Status: "active"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	next := list[0]
	assert.Equal(t, "Stretch", next.Title)
	require.NotNil(t, next.ParentTaskID)
	assert.Equal(t, task.ID, *next.ParentTaskID)
	require.NotNil(t, next.DueDate)
	assert.True(t, next.DueDate.Equal(due.AddDate(0, 0, 1)))

	// created, completed, created-next
	assert.Len(t, bus.Events(), 3)
}

func TestTaskService_CompleteIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	userID := newTestUser(t, s, "idem@example.com")
	svc := NewTaskService(s, nil, zerolog.Nop())
	ctx := context.Background()

	task, err := svc.Create(ctx, &model.Task{UserID: userID, Title: "once"})
	require.NoError(t, err)

	_, err = svc.Complete(ctx, userID, task.ID)
	require.NoError(t, err)
	again, err := svc.Complete(ctx, userID, task.ID)
	require.NoError(t, err)
	assert.True(t, again.Completed)

	list, err := svc.List(ctx, userID, model.TaskFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestTaskService_SetPriority(t *testing.T) {
	s := newTestStore(t)
	userID := newTestUser(t, s, "prio@example.com")
	svc := NewTaskService(s, nil, zerolog.Nop())
	ctx := context.Background()

	task, err := svc.Create(ctx, &model.Task{UserID: userID, Title: "later"})
	require.NoError(t, err)

	updated, err := svc.SetPriority(ctx, userID, task.ID, model.PriorityUrgent)
	require.NoError(t, err)
	assert.Equal(t, model.PriorityUrgent, updated.Priority)

	_, err = svc.SetPriority(ctx, userID, task.ID, "whenever")
	assert.ErrorIs(t, err, model.ErrValidation)
}
