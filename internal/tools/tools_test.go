package tools

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskhive/taskhive-backend/internal/llm"
	"github.com/taskhive/taskhive-backend/internal/model"
)

type fakeTaskAPI struct {
	created   *model.Task
	completed int64
	deleted   int64
	filter    model.TaskFilter
	listReply []*model.Task
	err       error
}

func (f *fakeTaskAPI) Create(_ context.Context, task *model.Task) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.created = task
	out := *task
	out.ID = 101
	return &out, nil
}

func (f *fakeTaskAPI) List(_ context.Context, _ int64, filter model.TaskFilter) ([]*model.Task, error) {
	f.filter = filter
	return f.listReply, f.err
}

func (f *fakeTaskAPI) Update(_ context.Context, _, taskID int64, _ model.TaskUpdate) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Task{ID: taskID}, nil
}

func (f *fakeTaskAPI) Complete(_ context.Context, _, taskID int64) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.completed = taskID
	return &model.Task{ID: taskID, Completed: true}, nil
}

func (f *fakeTaskAPI) Delete(_ context.Context, _, taskID int64) error {
	if f.err != nil {
		return f.err
	}
	f.deleted = taskID
	return nil
}

func (f *fakeTaskAPI) SetPriority(_ context.Context, _, taskID int64, p model.Priority) (*model.Task, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Task{ID: taskID, Priority: p}, nil
}

func dispatch(r *Registry, name, args string) Result {
	return r.Dispatch(context.Background(), 1, llm.ToolCall{ID: "call_1", Name: name, Arguments: args})
}

func TestRegistry_Schemas(t *testing.T) {
	r := NewRegistry(&fakeTaskAPI{})
	schemas := r.Schemas()
	require.Len(t, schemas, 6)
	// sorted by name for a stable prompt
	assert.Equal(t, "add_task", schemas[0].Name)
	assert.Equal(t, "update_task", schemas[5].Name)
}

func TestDispatch_UnknownTool(t *testing.T) {
	r := NewRegistry(&fakeTaskAPI{})
	res := dispatch(r, "launch_rocket", `{}`)
	assert.Equal(t, CodeUnknownTool, res.Code)
}

func TestDispatch_MalformedArguments(t *testing.T) {
	r := NewRegistry(&fakeTaskAPI{})
	res := dispatch(r, "add_task", `not json`)
	assert.Equal(t, CodeInvalidArgument, res.Code)
}

func TestDispatch_MissingRequired(t *testing.T) {
	r := NewRegistry(&fakeTaskAPI{})
	res := dispatch(r, "add_task", `{"description":"no title here"}`)
	assert.Equal(t, CodeInvalidArgument, res.Code)
	assert.Contains(t, res.Message, "title")
}

func TestDispatch_EnumViolation(t *testing.T) {
	r := NewRegistry(&fakeTaskAPI{})
	res := dispatch(r, "add_task", `{"title":"x","priority":"asap"}`)
	assert.Equal(t, CodeInvalidArgument, res.Code)
}

func TestDispatch_BadDate(t *testing.T) {
	r := NewRegistry(&fakeTaskAPI{})
	res := dispatch(r, "add_task", `{"title":"x","due_date":"next tuesday"}`)
	assert.Equal(t, CodeInvalidArgument, res.Code)
}

func TestDispatch_AddTask(t *testing.T) {
	api := &fakeTaskAPI{}
	r := NewRegistry(api)

	res := dispatch(r, "add_task",
		`{"title":"Buy milk","priority":"high","due_date":"2026-09-03","recurrence_pattern":"weekly","ignored_extra":"x"}`)
	require.Equal(t, CodeOK, res.Code)

	require.NotNil(t, api.created)
	assert.Equal(t, "Buy milk", api.created.Title)
	assert.Equal(t, model.PriorityHigh, api.created.Priority)
	assert.True(t, api.created.IsRecurring)
	require.NotNil(t, api.created.DueDate)
	assert.Equal(t, time.Date(2026, 9, 3, 0, 0, 0, 0, time.UTC), *api.created.DueDate)

	task, ok := res.Data.(*model.Task)
	require.True(t, ok)
	assert.Equal(t, int64(101), task.ID)
}

func TestDispatch_AddTask_TagsAndRecurring(t *testing.T) {
	api := &fakeTaskAPI{}
	r := NewRegistry(api)

	res := dispatch(r, "add_task",
		`{"title":"Water plants","is_recurring":true,"recurrence_pattern":"daily","tag_ids":[3,5]}`)
	require.Equal(t, CodeOK, res.Code)

	require.NotNil(t, api.created)
	assert.True(t, api.created.IsRecurring)
	assert.Equal(t, []int64{3, 5}, api.created.TagIDs)

	res = dispatch(r, "add_task", `{"title":"x","tag_ids":["work"]}`)
	assert.Equal(t, CodeInvalidArgument, res.Code)
}

func TestDispatch_ListTasks(t *testing.T) {
	api := &fakeTaskAPI{listReply: []*model.Task{{ID: 1, Title: "a"}, {ID: 2, Title: "b"}}}
	r := NewRegistry(api)

	res := dispatch(r, "list_tasks", `{"status":"active","overdue_only":true,"sort_by":"due_date","sort_order":"asc"}`)
	require.Equal(t, CodeOK, res.Code)

	assert.Equal(t, "active", api.filter.Status)
	require.NotNil(t, api.filter.IsOverdue)
	assert.True(t, *api.filter.IsOverdue)
	assert.Equal(t, "due_date", api.filter.SortBy)

	data := res.Data.(map[string]any)
	assert.Equal(t, 2, data["count"])
}

func TestDispatch_ListTasks_TagAndDueDateFilters(t *testing.T) {
	api := &fakeTaskAPI{}
	r := NewRegistry(api)

	res := dispatch(r, "list_tasks", `{"has_due_date":false,"tag_ids":[4]}`)
	require.Equal(t, CodeOK, res.Code)

	require.NotNil(t, api.filter.HasDueDate)
	assert.False(t, *api.filter.HasDueDate)
	assert.Equal(t, []int64{4}, api.filter.TagIDs)
}

func TestDispatch_CompleteTask_CoercesID(t *testing.T) {
	api := &fakeTaskAPI{}
	r := NewRegistry(api)

	// JSON numbers arrive as float64; the registry coerces to int64
	res := dispatch(r, "complete_task", `{"task_id":7}`)
	require.Equal(t, CodeOK, res.Code)
	assert.Equal(t, int64(7), api.completed)

	res = dispatch(r, "complete_task", `{"task_id":7.5}`)
	assert.Equal(t, CodeInvalidArgument, res.Code)

	res = dispatch(r, "complete_task", `{"task_id":"seven"}`)
	assert.Equal(t, CodeInvalidArgument, res.Code)
}

func TestDispatch_ErrorMapping(t *testing.T) {
	api := &fakeTaskAPI{err: model.ErrNotFound}
	r := NewRegistry(api)
	res := dispatch(r, "delete_task", `{"task_id":99}`)
	assert.Equal(t, CodeNotFound, res.Code)

	api.err = errors.New("disk on fire")
	res = dispatch(r, "delete_task", `{"task_id":99}`)
	assert.Equal(t, CodeInternal, res.Code)
	// internal details never leak into model-visible output
	assert.NotContains(t, res.JSON(), "disk")
}

func TestResult_JSON(t *testing.T) {
	res := Result{Tool: "add_task", Code: CodeOK, Data: map[string]any{"id": 1}}
	assert.JSONEq(t, `{"tool":"add_task","code":"ok","data":{"id":1}}`, res.JSON())
}
