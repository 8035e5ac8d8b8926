package store

import (
	"context"

	"github.com/taskhive/taskhive-backend/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (postgres, sqlite).
type Store interface {
	Users() Users
	Tokens() Tokens
	Tags() Tags
	Tasks() Tasks
	Conversations() Conversations
}

type Users interface {
	Create(ctx context.Context, u *model.User) (*model.User, error)
	Get(ctx context.Context, userID int64) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
}

type Tokens interface {
	Create(ctx context.Context, t *model.APIToken) (*model.APIToken, error)
	// Get resolves an opaque bearer credential. Expired or unknown tokens
	// return model.ErrNotFound.
	Get(ctx context.Context, token string) (*model.APIToken, error)
}

type Tags interface {
	Create(ctx context.Context, t *model.Tag) (*model.Tag, error)
	Get(ctx context.Context, userID, tagID int64) (*model.Tag, error)
	List(ctx context.Context, userID int64) ([]*model.Tag, error)
	Delete(ctx context.Context, userID, tagID int64) error
}

type Tasks interface {
	Create(ctx context.Context, t *model.Task) (*model.Task, error)
	// GetByID returns model.ErrNotFound when the task does not exist or is
	// owned by another user; the two cases are indistinguishable to callers.
	GetByID(ctx context.Context, userID, taskID int64) (*model.Task, error)
	List(ctx context.Context, userID int64, f model.TaskFilter) ([]*model.Task, error)
	Update(ctx context.Context, userID, taskID int64, u model.TaskUpdate) (*model.Task, error)
	Delete(ctx context.Context, userID, taskID int64) error
	SetTags(ctx context.Context, userID, taskID int64, tagIDs []int64) error
	Stats(ctx context.Context, userID int64) (*model.TaskStats, error)
}

type Conversations interface {
	Get(ctx context.Context, userID, conversationID int64) (*model.Conversation, error)
	List(ctx context.Context, userID int64) ([]*model.ConversationSummary, error)
	// Delete removes the conversation and its messages. Returns
	// model.ErrNotFound when the conversation is absent or foreign-owned,
	// which makes delete idempotent after the first success.
	Delete(ctx context.Context, userID, conversationID int64) error
	// Messages returns the visible transcript in created_at order. skip/limit
	// of 0 means no offset / no cap.
	Messages(ctx context.Context, userID, conversationID int64, skip, limit int) ([]*model.Message, error)
	// CommitTurn atomically persists one accepted chat turn: the user message
	// followed by the assistant message, bumping updated_at. conversationID 0
	// creates a fresh conversation inside the same transaction; a non-zero id
	// is ownership-checked and yields model.ErrNotFound on mismatch. Either
	// both messages are persisted or neither.
	CommitTurn(ctx context.Context, userID, conversationID int64, userText, assistantText string) (*model.Conversation, error)
}
