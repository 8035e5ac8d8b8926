// Package storetest holds a driver-agnostic compliance suite for store.Store
// implementations. Both the sqlite and postgres adapters run it.
package storetest

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
)

// Factory returns a fresh, empty store for one subtest.
type Factory func(t *testing.T) store.Store

// Run executes the full compliance suite against the given factory.
func Run(t *testing.T, factory Factory) {
	t.Run("Users", func(t *testing.T) { testUsers(t, factory(t)) })
	t.Run("Tokens", func(t *testing.T) { testTokens(t, factory(t)) })
	t.Run("Tags", func(t *testing.T) { testTags(t, factory(t)) })
	t.Run("TaskCRUD", func(t *testing.T) { testTaskCRUD(t, factory(t)) })
	t.Run("TaskFilters", func(t *testing.T) { testTaskFilters(t, factory(t)) })
	t.Run("TaskTags", func(t *testing.T) { testTaskTags(t, factory(t)) })
	t.Run("TaskStats", func(t *testing.T) { testTaskStats(t, factory(t)) })
	t.Run("Isolation", func(t *testing.T) { testIsolation(t, factory(t)) })
	t.Run("Conversations", func(t *testing.T) { testConversations(t, factory(t)) })
	t.Run("CommitTurn", func(t *testing.T) { testCommitTurn(t, factory(t)) })
}

func mustUser(t *testing.T, s store.Store, email string) *model.User {
	t.Helper()
	u, err := s.Users().Create(context.Background(), &model.User{Email: email})
	require.NoError(t, err)
	return u
}

func mustTask(t *testing.T, s store.Store, userID int64, title string, mut func(*model.Task)) *model.Task {
	t.Helper()
	task := &model.Task{UserID: userID, Title: title}
	if mut != nil {
		mut(task)
	}
	created, err := s.Tasks().Create(context.Background(), task)
	require.NoError(t, err)
	return created
}

func testUsers(t *testing.T, s store.Store) {
	ctx := context.Background()

	u := mustUser(t, s, "ada@example.com")
	assert.NotZero(t, u.ID)
	assert.False(t, u.CreatedAt.IsZero())

	got, err := s.Users().Get(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", got.Email)

	byEmail, err := s.Users().GetByEmail(ctx, "ada@example.com")
	require.NoError(t, err)
	assert.Equal(t, u.ID, byEmail.ID)

	_, err = s.Users().Get(ctx, 999999)
	assert.ErrorIs(t, err, model.ErrNotFound)

	_, err = s.Users().Create(ctx, &model.User{Email: "ada@example.com"})
	assert.ErrorIs(t, err, model.ErrConflict)
}

func testTokens(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "tok@example.com")

	_, err := s.Tokens().Create(ctx, &model.APIToken{Token: "th_live", UserID: u.ID, Name: "cli"})
	require.NoError(t, err)

	got, err := s.Tokens().Get(ctx, "th_live")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.UserID)

	_, err = s.Tokens().Get(ctx, "th_unknown")
	assert.ErrorIs(t, err, model.ErrNotFound)

	past := time.Now().UTC().Add(-time.Hour)
	_, err = s.Tokens().Create(ctx, &model.APIToken{Token: "th_expired", UserID: u.ID, ExpiresAt: &past})
	require.NoError(t, err)
	_, err = s.Tokens().Get(ctx, "th_expired")
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testTags(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "tags@example.com")

	work, err := s.Tags().Create(ctx, &model.Tag{UserID: u.ID, Name: "work"})
	require.NoError(t, err)
	_, err = s.Tags().Create(ctx, &model.Tag{UserID: u.ID, Name: "home"})
	require.NoError(t, err)

	_, err = s.Tags().Create(ctx, &model.Tag{UserID: u.ID, Name: "work"})
	assert.ErrorIs(t, err, model.ErrConflict)

	// same name under a different user is fine
	other := mustUser(t, s, "tags2@example.com")
	_, err = s.Tags().Create(ctx, &model.Tag{UserID: other.ID, Name: "work"})
	require.NoError(t, err)

	list, err := s.Tags().List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "home", list[0].Name) // sorted by name

	require.NoError(t, s.Tags().Delete(ctx, u.ID, work.ID))
	assert.ErrorIs(t, s.Tags().Delete(ctx, u.ID, work.ID), model.ErrNotFound)
}

func testTaskCRUD(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "crud@example.com")

	due := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Second)
	desc := "write the quarterly report"
	created := mustTask(t, s, u.ID, "Report", func(task *model.Task) {
		task.Description = &desc
		task.Priority = model.PriorityHigh
		task.DueDate = &due
	})
	assert.NotZero(t, created.ID)
	assert.Equal(t, model.PriorityHigh, created.Priority)

	// priority defaults to medium when unset
	plain := mustTask(t, s, u.ID, "Plain", nil)
	assert.Equal(t, model.PriorityMedium, plain.Priority)

	got, err := s.Tasks().GetByID(ctx, u.ID, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Report", got.Title)
	require.NotNil(t, got.Description)
	assert.Equal(t, desc, *got.Description)
	require.NotNil(t, got.DueDate)
	assert.True(t, got.DueDate.Equal(due))

	newTitle := "Report v2"
	completed := true
	updated, err := s.Tasks().Update(ctx, u.ID, created.ID, model.TaskUpdate{
		Title:     &newTitle,
		Completed: &completed,
	})
	require.NoError(t, err)
	assert.Equal(t, "Report v2", updated.Title)
	assert.True(t, updated.Completed)
	// untouched fields survive a partial update
	require.NotNil(t, updated.Description)
	assert.Equal(t, desc, *updated.Description)

	_, err = s.Tasks().Update(ctx, u.ID, 424242, model.TaskUpdate{Title: &newTitle})
	assert.ErrorIs(t, err, model.ErrNotFound)

	require.NoError(t, s.Tasks().Delete(ctx, u.ID, created.ID))
	assert.ErrorIs(t, s.Tasks().Delete(ctx, u.ID, created.ID), model.ErrNotFound)
	_, err = s.Tasks().GetByID(ctx, u.ID, created.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testTaskFilters(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "filters@example.com")

	past := time.Now().UTC().Add(-24 * time.Hour)
	future := time.Now().UTC().Add(24 * time.Hour)

	mustTask(t, s, u.ID, "Pay rent", func(task *model.Task) {
		task.Priority = model.PriorityUrgent
		task.DueDate = &past
	})
	mustTask(t, s, u.ID, "Buy groceries", func(task *model.Task) {
		task.Priority = model.PriorityLow
		task.DueDate = &future
	})
	done := mustTask(t, s, u.ID, "Call dentist", nil)
	yes := true
	_, err := s.Tasks().Update(ctx, u.ID, done.ID, model.TaskUpdate{Completed: &yes})
	require.NoError(t, err)

	titles := func(f model.TaskFilter) []string {
		list, err := s.Tasks().List(ctx, u.ID, f)
		require.NoError(t, err)
		out := make([]string, 0, len(list))
		for _, task := range list {
			out = append(out, task.Title)
		}
		return out
	}

	assert.Len(t, titles(model.TaskFilter{}), 3)
	assert.Equal(t, []string{"Call dentist"}, titles(model.TaskFilter{Status: "completed"}))
	assert.Len(t, titles(model.TaskFilter{Status: "active"}), 2)

	urgent := model.PriorityUrgent
	assert.Equal(t, []string{"Pay rent"}, titles(model.TaskFilter{Priority: &urgent}))

	overdue := true
	assert.Equal(t, []string{"Pay rent"}, titles(model.TaskFilter{IsOverdue: &overdue}))

	hasDue := true
	assert.Len(t, titles(model.TaskFilter{HasDueDate: &hasDue}), 2)
	noDue := false
	assert.Equal(t, []string{"Call dentist"}, titles(model.TaskFilter{HasDueDate: &noDue}))

	assert.Equal(t, []string{"Buy groceries"}, titles(model.TaskFilter{Search: "grocer"}))

	byPriority := titles(model.TaskFilter{SortBy: "priority", SortOrder: "desc"})
	require.Len(t, byPriority, 3)
	assert.Equal(t, "Pay rent", byPriority[0]) // urgent ranks first

	byDue := titles(model.TaskFilter{SortBy: "due_date", SortOrder: "asc", Status: "active"})
	assert.Equal(t, []string{"Pay rent", "Buy groceries"}, byDue)
}

func testTaskTags(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "tasktags@example.com")

	work, err := s.Tags().Create(ctx, &model.Tag{UserID: u.ID, Name: "work"})
	require.NoError(t, err)
	home, err := s.Tags().Create(ctx, &model.Tag{UserID: u.ID, Name: "home"})
	require.NoError(t, err)

	task := mustTask(t, s, u.ID, "Tagged", func(task *model.Task) {
		task.TagIDs = []int64{work.ID}
	})
	got, err := s.Tasks().GetByID(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, []int64{work.ID}, got.TagIDs)

	require.NoError(t, s.Tasks().SetTags(ctx, u.ID, task.ID, []int64{work.ID, home.ID}))
	got, err = s.Tasks().GetByID(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Len(t, got.TagIDs, 2)

	// filtering by tag
	list, err := s.Tasks().List(ctx, u.ID, model.TaskFilter{TagIDs: []int64{home.ID}})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)

	// tag filter combined with other predicates binds every argument to the
	// right clause
	list, err = s.Tasks().List(ctx, u.ID, model.TaskFilter{
		Status: "active",
		Search: "Tagged",
		TagIDs: []int64{work.ID, home.ID},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, task.ID, list[0].ID)

	// a tag filter never widens the scope past the calling user
	other := mustUser(t, s, "tasktags2@example.com")
	otherList, err := s.Tasks().List(ctx, other.ID, model.TaskFilter{TagIDs: []int64{home.ID}})
	require.NoError(t, err)
	assert.Empty(t, otherList)

	// foreign tags are skipped, not attached
	foreign, err := s.Tags().Create(ctx, &model.Tag{UserID: other.ID, Name: "theirs"})
	require.NoError(t, err)
	require.NoError(t, s.Tasks().SetTags(ctx, u.ID, task.ID, []int64{foreign.ID}))
	got, err = s.Tasks().GetByID(ctx, u.ID, task.ID)
	require.NoError(t, err)
	assert.Empty(t, got.TagIDs)

	assert.ErrorIs(t, s.Tasks().SetTags(ctx, u.ID, 98765, nil), model.ErrNotFound)
}

func testTaskStats(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "stats@example.com")

	past := time.Now().UTC().Add(-time.Hour)
	mustTask(t, s, u.ID, "a", func(task *model.Task) { task.Priority = model.PriorityUrgent; task.DueDate = &past })
	mustTask(t, s, u.ID, "b", nil)
	done := mustTask(t, s, u.ID, "c", nil)
	yes := true
	_, err := s.Tasks().Update(ctx, u.ID, done.ID, model.TaskUpdate{Completed: &yes})
	require.NoError(t, err)

	stats, err := s.Tasks().Stats(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, stats.Completed)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.Overdue)
	assert.Equal(t, 1, stats.ByPriority[model.PriorityUrgent])
	assert.Equal(t, 2, stats.ByPriority[model.PriorityMedium])
}

func testIsolation(t *testing.T, s store.Store) {
	ctx := context.Background()
	alice := mustUser(t, s, "alice@example.com")
	bob := mustUser(t, s, "bob@example.com")

	task := mustTask(t, s, alice.ID, "Alice's task", nil)

	_, err := s.Tasks().GetByID(ctx, bob.ID, task.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)

	title := "hijacked"
	_, err = s.Tasks().Update(ctx, bob.ID, task.ID, model.TaskUpdate{Title: &title})
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, s.Tasks().Delete(ctx, bob.ID, task.ID), model.ErrNotFound)

	// the task is untouched
	got, err := s.Tasks().GetByID(ctx, alice.ID, task.ID)
	require.NoError(t, err)
	assert.Equal(t, "Alice's task", got.Title)

	conv, err := s.Conversations().CommitTurn(ctx, alice.ID, 0, "hi", "hello")
	require.NoError(t, err)
	_, err = s.Conversations().Get(ctx, bob.ID, conv.ID)
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = s.Conversations().Messages(ctx, bob.ID, conv.ID, 0, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)
	assert.ErrorIs(t, s.Conversations().Delete(ctx, bob.ID, conv.ID), model.ErrNotFound)
}

func testConversations(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "conv@example.com")

	conv, err := s.Conversations().CommitTurn(ctx, u.ID, 0, "add a task to buy milk", "Done, I added it.")
	require.NoError(t, err)
	require.NotZero(t, conv.ID)

	_, err = s.Conversations().CommitTurn(ctx, u.ID, conv.ID, "what's on my list?", "Just buying milk.")
	require.NoError(t, err)

	list, err := s.Conversations().List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, 4, list[0].MessageCount)
	assert.Equal(t, "Just buying milk.", list[0].Preview)

	long := strings.Repeat("x", 80)
	conv2, err := s.Conversations().CommitTurn(ctx, u.ID, 0, "hello", long)
	require.NoError(t, err)

	list, err = s.Conversations().List(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	// most recently updated first
	assert.Equal(t, conv2.ID, list[0].ID)
	assert.Equal(t, strings.Repeat("x", 50)+"...", list[0].Preview)

	msgs, err := s.Conversations().Messages(ctx, u.ID, conv.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, model.RoleUser, msgs[0].Role)
	assert.Equal(t, model.RoleAssistant, msgs[1].Role)
	assert.Equal(t, "add a task to buy milk", msgs[0].Content)
	assert.Equal(t, "Just buying milk.", msgs[3].Content)

	page, err := s.Conversations().Messages(ctx, u.ID, conv.ID, 1, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, msgs[1].ID, page[0].ID)

	require.NoError(t, s.Conversations().Delete(ctx, u.ID, conv.ID))
	assert.ErrorIs(t, s.Conversations().Delete(ctx, u.ID, conv.ID), model.ErrNotFound)
	_, err = s.Conversations().Messages(ctx, u.ID, conv.ID, 0, 0)
	assert.ErrorIs(t, err, model.ErrNotFound)
}

func testCommitTurn(t *testing.T, s store.Store) {
	ctx := context.Background()
	u := mustUser(t, s, "turns@example.com")

	// unknown conversation id leaves no trace
	_, err := s.Conversations().CommitTurn(ctx, u.ID, 31337, "hi", "hello")
	assert.ErrorIs(t, err, model.ErrNotFound)
	list, err := s.Conversations().List(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, list)

	conv, err := s.Conversations().CommitTurn(ctx, u.ID, 0, "first", "reply")
	require.NoError(t, err)

	got, err := s.Conversations().Get(ctx, u.ID, conv.ID)
	require.NoError(t, err)
	assert.False(t, got.UpdatedAt.Before(got.CreatedAt))

	// every accepted turn appends exactly two messages
	for i := 0; i < 3; i++ {
		_, err := s.Conversations().CommitTurn(ctx, u.ID, conv.ID, "q", "a")
		require.NoError(t, err)
	}
	msgs, err := s.Conversations().Messages(ctx, u.ID, conv.ID, 0, 0)
	require.NoError(t, err)
	require.Len(t, msgs, 8)
	for i, m := range msgs {
		if i%2 == 0 {
			assert.Equal(t, model.RoleUser, m.Role)
		} else {
			assert.Equal(t, model.RoleAssistant, m.Role)
		}
	}
}
