package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
)

// New opens a SQLite database, ensures the schema and returns a store.Store.
func New(path string) (store.Store, error) {
	db, err := Open(path)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB constructs a SQLite store backed by an existing connection.
func NewWithDB(db *sql.DB) store.Store { return &sqliteStore{db: db} }

type sqliteStore struct{ db *sql.DB }

func (s *sqliteStore) Users() store.Users                 { return &users{db: s.db} }
func (s *sqliteStore) Tokens() store.Tokens               { return &tokens{db: s.db} }
func (s *sqliteStore) Tags() store.Tags                   { return &tags{db: s.db} }
func (s *sqliteStore) Tasks() store.Tasks                 { return &tasks{db: s.db} }
func (s *sqliteStore) Conversations() store.Conversations { return &conversations{db: s.db} }

// HealthPing implements health.Pinger.
func (s *sqliteStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	now := time.Now().UTC()
	res, err := u.db.ExecContext(ctx,
		`INSERT INTO users (email, display_name, created_at) VALUES (?,?,?)`,
		m.Email, m.DisplayName, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *m
	out.ID = id
	out.CreatedAt = now
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID int64) (*model.User, error) {
	row := u.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at, last_seen_at FROM users WHERE id=?`, userID)
	return scanUser(row)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at, last_seen_at FROM users WHERE email=?`, email)
	return scanUser(row)
}

func scanUser(row *sql.Row) (*model.User, error) {
	var out model.User
	if err := row.Scan(&out.ID, &out.Email, &out.DisplayName, &out.CreatedAt, &out.LastSeenAt); err != nil {
		return nil, mapNoRows(err)
	}
	return &out, nil
}

// --- Tokens ---

type tokens struct{ db *sql.DB }

func (t *tokens) Create(ctx context.Context, m *model.APIToken) (*model.APIToken, error) {
	now := time.Now().UTC()
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token, user_id, name, created_at, expires_at) VALUES (?,?,?,?,?)`,
		m.Token, m.UserID, m.Name, now, m.ExpiresAt)
	if err != nil {
		return nil, err
	}
	out := *m
	out.CreatedAt = now
	return &out, nil
}

func (t *tokens) Get(ctx context.Context, token string) (*model.APIToken, error) {
	row := t.db.QueryRowContext(ctx, `
        SELECT token, user_id, name, created_at, expires_at
        FROM api_tokens WHERE token=? AND (expires_at IS NULL OR expires_at > ?)`,
		token, time.Now().UTC())
	var out model.APIToken
	if err := row.Scan(&out.Token, &out.UserID, &out.Name, &out.CreatedAt, &out.ExpiresAt); err != nil {
		return nil, mapNoRows(err)
	}
	return &out, nil
}

// --- Tags ---

type tags struct{ db *sql.DB }

func (t *tags) Create(ctx context.Context, m *model.Tag) (*model.Tag, error) {
	now := time.Now().UTC()
	res, err := t.db.ExecContext(ctx,
		`INSERT INTO tags (user_id, name, color, created_at) VALUES (?,?,?,?)`,
		m.UserID, m.Name, m.Color, now)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	out := *m
	out.ID = id
	out.CreatedAt = now
	return &out, nil
}

func (t *tags) Get(ctx context.Context, userID, tagID int64) (*model.Tag, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color, created_at FROM tags WHERE user_id=? AND id=?`, userID, tagID)
	var out model.Tag
	if err := row.Scan(&out.ID, &out.UserID, &out.Name, &out.Color, &out.CreatedAt); err != nil {
		return nil, mapNoRows(err)
	}
	return &out, nil
}

func (t *tags) List(ctx context.Context, userID int64) ([]*model.Tag, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, user_id, name, color, created_at FROM tags WHERE user_id=? ORDER BY name`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var res []*model.Tag
	for rows.Next() {
		var tg model.Tag
		if err := rows.Scan(&tg.ID, &tg.UserID, &tg.Name, &tg.Color, &tg.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &tg)
	}
	return res, rows.Err()
}

func (t *tags) Delete(ctx context.Context, userID, tagID int64) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tags WHERE user_id=? AND id=?`, userID, tagID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// --- Tasks ---

type tasks struct{ db *sql.DB }

func (t *tasks) Create(ctx context.Context, m *model.Task) (*model.Task, error) {
	now := time.Now().UTC()
	priority := m.Priority
	if priority == "" {
		priority = model.PriorityMedium
	}
	interval := m.RecurrenceInterval
	if interval <= 0 {
		interval = 1
	}
	var pattern *string
	if m.RecurrencePattern != nil {
		p := string(*m.RecurrencePattern)
		pattern = &p
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, `
        INSERT INTO tasks (user_id, title, description, completed, priority, due_date,
                           is_recurring, recurrence_pattern, recurrence_interval,
                           parent_task_id, next_occurrence, created_at, updated_at)
        VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		m.UserID, m.Title, m.Description, m.Completed, string(priority), m.DueDate,
		m.IsRecurring, pattern, interval, m.ParentTaskID, m.NextOccurrence, now, now)
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}

	if len(m.TagIDs) > 0 {
		if err := replaceTagsTx(ctx, tx, m.UserID, id, m.TagIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}

	out := *m
	out.ID = id
	out.Priority = priority
	out.RecurrenceInterval = interval
	out.CreatedAt = now
	out.UpdatedAt = now
	return &out, nil
}

const taskColumns = `id, user_id, title, description, completed, priority, due_date,
    is_recurring, recurrence_pattern, recurrence_interval, parent_task_id, next_occurrence,
    created_at, updated_at`

func (t *tasks) GetByID(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id=? AND id=?`, userID, taskID)
	task, err := scanTask(row.Scan)
	if err != nil {
		return nil, err
	}
	task.TagIDs, err = taskTagIDs(ctx, t.db, taskID)
	if err != nil {
		return nil, err
	}
	return task, nil
}

func (t *tasks) List(ctx context.Context, userID int64, f model.TaskFilter) ([]*model.Task, error) {
	var (
		where = []string{"t.user_id = ?"}
		args  = []any{userID}
	)

	switch f.Status {
	case "completed":
		where = append(where, "t.completed = 1")
	case "active", "pending":
		where = append(where, "t.completed = 0")
	}
	if f.Priority != nil {
		where = append(where, "t.priority = ?")
		args = append(args, string(*f.Priority))
	}
	if f.IsRecurring != nil {
		where = append(where, "t.is_recurring = ?")
		args = append(args, *f.IsRecurring)
	}
	if f.HasDueDate != nil {
		if *f.HasDueDate {
			where = append(where, "t.due_date IS NOT NULL")
		} else {
			where = append(where, "t.due_date IS NULL")
		}
	}
	if f.IsOverdue != nil && *f.IsOverdue {
		where = append(where, "t.due_date IS NOT NULL AND t.due_date < ? AND t.completed = 0")
		args = append(args, time.Now().UTC())
	}
	if f.Search != "" {
		where = append(where, "(t.title LIKE ? OR t.description LIKE ?)")
		like := "%" + f.Search + "%"
		args = append(args, like, like)
	}
	if len(f.TagIDs) > 0 {
		where = append(where, `t.id IN (SELECT task_id FROM task_tags WHERE tag_id IN (`+placeholders(len(f.TagIDs))+`))`)
		for _, id := range f.TagIDs {
			args = append(args, id)
		}
	}

	query := `SELECT ` + prefixColumns("t") + ` FROM tasks t WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY ` + taskOrderClause(f)

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*model.Task
	for rows.Next() {
		task, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, task)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := attachTagIDs(ctx, t.db, res); err != nil {
		return nil, err
	}
	return res, nil
}

func taskOrderClause(f model.TaskFilter) string {
	dir := "DESC"
	if strings.EqualFold(f.SortOrder, "asc") {
		dir = "ASC"
	}
	switch f.SortBy {
	case "due_date":
		return "t.due_date " + dir + ", t.id " + dir
	case "title":
		return "t.title " + dir + ", t.id " + dir
	case "priority":
		// rank urgent first regardless of collation order
		return `CASE t.priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END ` + dir + ", t.id " + dir
	default:
		return "t.created_at " + dir + ", t.id " + dir
	}
}

func (t *tasks) Update(ctx context.Context, userID, taskID int64, u model.TaskUpdate) (*model.Task, error) {
	var (
		sets = []string{"updated_at = ?"}
		args = []any{time.Now().UTC()}
	)
	if u.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *u.Title)
	}
	if u.Description != nil {
		sets = append(sets, "description = ?")
		args = append(args, *u.Description)
	}
	if u.Completed != nil {
		sets = append(sets, "completed = ?")
		args = append(args, *u.Completed)
	}
	if u.Priority != nil {
		sets = append(sets, "priority = ?")
		args = append(args, string(*u.Priority))
	}
	if u.DueDate != nil {
		sets = append(sets, "due_date = ?")
		args = append(args, *u.DueDate)
	}
	if u.IsRecurring != nil {
		sets = append(sets, "is_recurring = ?")
		args = append(args, *u.IsRecurring)
	}
	if u.RecurrencePattern != nil {
		sets = append(sets, "recurrence_pattern = ?")
		args = append(args, string(*u.RecurrencePattern))
	}
	if u.RecurrenceInterval != nil {
		sets = append(sets, "recurrence_interval = ?")
		args = append(args, *u.RecurrenceInterval)
	}
	args = append(args, userID, taskID)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE user_id=? AND id=?`, args...)
	if err != nil {
		return nil, err
	}
	if err := requireAffected(res); err != nil {
		return nil, err
	}
	if u.TagIDs != nil {
		if err := replaceTagsTx(ctx, tx, userID, taskID, u.TagIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return t.GetByID(ctx, userID, taskID)
}

func (t *tasks) Delete(ctx context.Context, userID, taskID int64) error {
	res, err := t.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id=? AND id=?`, userID, taskID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (t *tasks) SetTags(ctx context.Context, userID, taskID int64, tagIDs []int64) error {
	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	var owner int64
	if err := tx.QueryRowContext(ctx, `SELECT user_id FROM tasks WHERE user_id=? AND id=?`, userID, taskID).Scan(&owner); err != nil {
		return mapNoRows(err)
	}
	if err := replaceTagsTx(ctx, tx, userID, taskID, tagIDs); err != nil {
		return err
	}
	return tx.Commit()
}

func (t *tasks) Stats(ctx context.Context, userID int64) (*model.TaskStats, error) {
	stats := &model.TaskStats{ByPriority: map[model.Priority]int{}}
	row := t.db.QueryRowContext(ctx, `
        SELECT COUNT(*),
               COALESCE(SUM(completed), 0),
               COALESCE(SUM(CASE WHEN due_date IS NOT NULL AND due_date < ? AND completed = 0 THEN 1 ELSE 0 END), 0)
        FROM tasks WHERE user_id=?`, time.Now().UTC(), userID)
	if err := row.Scan(&stats.Total, &stats.Completed, &stats.Overdue); err != nil {
		return nil, err
	}
	stats.Pending = stats.Total - stats.Completed

	rows, err := t.db.QueryContext(ctx,
		`SELECT priority, COUNT(*) FROM tasks WHERE user_id=? GROUP BY priority`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var p string
		var n int
		if err := rows.Scan(&p, &n); err != nil {
			return nil, err
		}
		stats.ByPriority[model.Priority(p)] = n
	}
	return stats, rows.Err()
}

// replaceTagsTx replaces the task's tag set. Tags owned by another user are
// silently skipped; ownership of the tag set follows the tag rows themselves.
func replaceTagsTx(ctx context.Context, tx *sql.Tx, userID, taskID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id=?`, taskID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		var owner int64
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM tags WHERE id=?`, tagID).Scan(&owner)
		if errors.Is(err, sql.ErrNoRows) {
			continue
		}
		if err != nil {
			return err
		}
		if owner != userID {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO task_tags (task_id, tag_id) VALUES (?,?)`, taskID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func taskTagIDs(ctx context.Context, db *sql.DB, taskID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx, `SELECT tag_id FROM task_tags WHERE task_id=? ORDER BY tag_id`, taskID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func attachTagIDs(ctx context.Context, db *sql.DB, ts []*model.Task) error {
	if len(ts) == 0 {
		return nil
	}
	byID := make(map[int64]*model.Task, len(ts))
	args := make([]any, 0, len(ts))
	for _, task := range ts {
		byID[task.ID] = task
		args = append(args, task.ID)
	}
	rows, err := db.QueryContext(ctx,
		`SELECT task_id, tag_id FROM task_tags WHERE task_id IN (`+placeholders(len(ts))+`) ORDER BY tag_id`, args...)
	if err != nil {
		return err
	}
	defer func() { _ = rows.Close() }()
	for rows.Next() {
		var taskID, tagID int64
		if err := rows.Scan(&taskID, &tagID); err != nil {
			return err
		}
		if task, ok := byID[taskID]; ok {
			task.TagIDs = append(task.TagIDs, tagID)
		}
	}
	return rows.Err()
}

type scanFunc func(dest ...any) error

func scanTask(scan scanFunc) (*model.Task, error) {
	var (
		out     model.Task
		pattern *string
	)
	if err := scan(&out.ID, &out.UserID, &out.Title, &out.Description, &out.Completed,
		&out.Priority, &out.DueDate, &out.IsRecurring, &pattern, &out.RecurrenceInterval,
		&out.ParentTaskID, &out.NextOccurrence, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, mapNoRows(err)
	}
	if pattern != nil {
		p := model.RecurrencePattern(*pattern)
		out.RecurrencePattern = &p
	}
	return &out, nil
}

// --- Conversations ---

type conversations struct{ db *sql.DB }

func (c *conversations) Get(ctx context.Context, userID, conversationID int64) (*model.Conversation, error) {
	row := c.db.QueryRowContext(ctx,
		`SELECT id, user_id, created_at, updated_at FROM conversations WHERE user_id=? AND id=?`,
		userID, conversationID)
	var out model.Conversation
	if err := row.Scan(&out.ID, &out.UserID, &out.CreatedAt, &out.UpdatedAt); err != nil {
		return nil, mapNoRows(err)
	}
	return &out, nil
}

func (c *conversations) List(ctx context.Context, userID int64) ([]*model.ConversationSummary, error) {
	rows, err := c.db.QueryContext(ctx, `
        SELECT c.id, c.user_id, c.created_at, c.updated_at,
               (SELECT COUNT(*) FROM messages m WHERE m.conversation_id = c.id),
               COALESCE((SELECT m.content FROM messages m WHERE m.conversation_id = c.id
                         ORDER BY m.created_at DESC, m.id DESC LIMIT 1), '')
        FROM conversations c WHERE c.user_id=? ORDER BY c.updated_at DESC, c.id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*model.ConversationSummary
	for rows.Next() {
		var s model.ConversationSummary
		if err := rows.Scan(&s.ID, &s.UserID, &s.CreatedAt, &s.UpdatedAt, &s.MessageCount, &s.Preview); err != nil {
			return nil, err
		}
		s.Preview = truncatePreview(s.Preview)
		res = append(res, &s)
	}
	return res, rows.Err()
}

func (c *conversations) Delete(ctx context.Context, userID, conversationID int64) error {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id=? AND id=?`, userID, conversationID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	// messages cascade via FK, but delete explicitly in case foreign keys are off
	if _, err := tx.ExecContext(ctx, `DELETE FROM messages WHERE conversation_id=?`, conversationID); err != nil {
		return err
	}
	return tx.Commit()
}

func (c *conversations) Messages(ctx context.Context, userID, conversationID int64, skip, limit int) ([]*model.Message, error) {
	if _, err := c.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = -1 // SQLite: no cap
	}
	rows, err := c.db.QueryContext(ctx, `
        SELECT id, conversation_id, user_id, role, content, created_at
        FROM messages WHERE conversation_id=?
        ORDER BY created_at ASC, id ASC LIMIT ? OFFSET ?`, conversationID, limit, skip)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var res []*model.Message
	for rows.Next() {
		var m model.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.UserID, &m.Role, &m.Content, &m.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, &m)
	}
	return res, rows.Err()
}

func (c *conversations) CommitTurn(ctx context.Context, userID, conversationID int64, userText, assistantText string) (*model.Conversation, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	conv := model.Conversation{ID: conversationID, UserID: userID, UpdatedAt: now}

	if conversationID == 0 {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO conversations (user_id, created_at, updated_at) VALUES (?,?,?)`,
			userID, now, now)
		if err != nil {
			return nil, err
		}
		conv.ID, err = res.LastInsertId()
		if err != nil {
			return nil, err
		}
		conv.CreatedAt = now
	} else {
		row := tx.QueryRowContext(ctx,
			`SELECT created_at FROM conversations WHERE user_id=? AND id=?`, userID, conversationID)
		if err := row.Scan(&conv.CreatedAt); err != nil {
			return nil, mapNoRows(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at=? WHERE id=?`, now, conversationID); err != nil {
			return nil, err
		}
	}

	// user message strictly precedes the assistant message in stored order;
	// identical timestamps are fine, the autoincrement id is the tiebreak.
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content, created_at) VALUES (?,?,?,?,?)`,
		conv.ID, userID, model.RoleUser, userText, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content, created_at) VALUES (?,?,?,?,?)`,
		conv.ID, userID, model.RoleAssistant, assistantText, now); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &conv, nil
}

// --- helpers ---

func mapNoRows(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return model.ErrNotFound
	}
	return err
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}

func prefixColumns(alias string) string {
	cols := strings.Split(taskColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

const previewRunes = 50

func truncatePreview(s string) string {
	if s == "" {
		return "No messages"
	}
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
