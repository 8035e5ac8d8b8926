package model

import "time"

// Priority levels accepted for tasks.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid reports whether p is one of the accepted priority literals.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// RecurrencePattern describes how a recurring task repeats.
type RecurrencePattern string

const (
	RecurDaily   RecurrencePattern = "daily"
	RecurWeekly  RecurrencePattern = "weekly"
	RecurMonthly RecurrencePattern = "monthly"
)

// Valid reports whether r is one of the accepted recurrence literals.
func (r RecurrencePattern) Valid() bool {
	switch r {
	case RecurDaily, RecurWeekly, RecurMonthly:
		return true
	}
	return false
}

// Message roles. Only user and assistant messages are ever persisted;
// the tool role exists in-memory during a chat turn.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// User represents an account in the system.
type User struct {
	ID          int64      `json:"id"`
	Email       string     `json:"email"`
	DisplayName *string    `json:"displayName,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	LastSeenAt  *time.Time `json:"lastSeenAt,omitempty"`
}

// APIToken maps an opaque bearer credential to a user.
type APIToken struct {
	Token     string     `json:"-"`
	UserID    int64      `json:"userId"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
}

// Task is a user-owned todo item.
type Task struct {
	ID                 int64              `json:"id"`
	UserID             int64              `json:"user_id"`
	Title              string             `json:"title"`
	Description        *string            `json:"description,omitempty"`
	Completed          bool               `json:"completed"`
	Priority           Priority           `json:"priority"`
	DueDate            *time.Time         `json:"due_date,omitempty"`
	IsRecurring        bool               `json:"is_recurring"`
	RecurrencePattern  *RecurrencePattern `json:"recurrence_pattern,omitempty"`
	RecurrenceInterval int                `json:"recurrence_interval"`
	ParentTaskID       *int64             `json:"parent_task_id,omitempty"`
	NextOccurrence     *time.Time         `json:"next_occurrence,omitempty"`
	TagIDs             []int64            `json:"tag_ids,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	UpdatedAt          time.Time          `json:"updated_at"`
}

// Overdue reports whether the task has a due date in the past and is not done.
func (t *Task) Overdue(now time.Time) bool {
	return t.DueDate != nil && t.DueDate.Before(now) && !t.Completed
}

// Tag is a per-user label attachable to tasks.
type Tag struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	Name      string    `json:"name"`
	Color     *string   `json:"color,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// TaskFilter captures the filters accepted by task listing, both over REST
// and through the list_tasks tool.
type TaskFilter struct {
	Status      string // "", all, active/pending, completed
	Priority    *Priority
	IsRecurring *bool
	HasDueDate  *bool
	IsOverdue   *bool
	TagIDs      []int64
	Search      string
	SortBy      string // created_at, due_date, priority, title
	SortOrder   string // asc, desc
}

// TaskUpdate is a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title              *string
	Description        *string
	Completed          *bool
	Priority           *Priority
	DueDate            *time.Time
	IsRecurring        *bool
	RecurrencePattern  *RecurrencePattern
	RecurrenceInterval *int
	TagIDs             []int64 // non-nil replaces the tag set
}

// TaskStats summarizes a user's tasks.
type TaskStats struct {
	Total      int              `json:"total"`
	Completed  int              `json:"completed"`
	Pending    int              `json:"pending"`
	Overdue    int              `json:"overdue"`
	ByPriority map[Priority]int `json:"by_priority"`
}

// Conversation groups the visible chat transcript of one user.
type Conversation struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConversationSummary is the listing shape: counts and a preview instead of
// the full transcript.
type ConversationSummary struct {
	ID           int64     `json:"id"`
	UserID       int64     `json:"user_id"`
	MessageCount int       `json:"message_count"`
	Preview      string    `json:"preview"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one visible transcript entry (role user or assistant).
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	UserID         int64     `json:"user_id"`
	Role           string    `json:"role"`
	Content        string    `json:"content"`
	CreatedAt      time.Time `json:"created_at"`
}
