package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/taskhive/taskhive-backend/internal/model"
	"github.com/taskhive/taskhive-backend/internal/store"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies
// connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens a connection, ensures the schema and returns a store.Store.
func New(dsn string) (store.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	if err := EnsureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return NewWithDB(db), nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return &pgStore{db: db} }

type pgStore struct{ db *sql.DB }

func (s *pgStore) Users() store.Users                 { return &users{db: s.db} }
func (s *pgStore) Tokens() store.Tokens               { return &tokens{db: s.db} }
func (s *pgStore) Tags() store.Tags                   { return &tags{db: s.db} }
func (s *pgStore) Tasks() store.Tasks                 { return &tasks{db: s.db} }
func (s *pgStore) Conversations() store.Conversations { return &conversations{db: s.db} }

// HealthPing implements health.Pinger.
func (s *pgStore) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates core tables if they do not exist. Production rollouts
// run migrations out of band; this keeps fresh databases usable.
func EnsureSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            email TEXT NOT NULL UNIQUE,
            display_name TEXT,
            created_at TIMESTAMPTZ NOT NULL,
            last_seen_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS api_tokens (
            token TEXT PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            name TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL,
            expires_at TIMESTAMPTZ
        );`,
		`CREATE TABLE IF NOT EXISTS tags (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            color TEXT,
            created_at TIMESTAMPTZ NOT NULL,
            UNIQUE(user_id, name)
        );`,
		`CREATE TABLE IF NOT EXISTS tasks (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            title TEXT NOT NULL,
            description TEXT,
            completed BOOLEAN NOT NULL DEFAULT FALSE,
            priority TEXT NOT NULL DEFAULT 'medium',
            due_date TIMESTAMPTZ,
            is_recurring BOOLEAN NOT NULL DEFAULT FALSE,
            recurrence_pattern TEXT,
            recurrence_interval INTEGER NOT NULL DEFAULT 1,
            parent_task_id BIGINT,
            next_occurrence TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS tasks_user_idx ON tasks(user_id);`,
		`CREATE TABLE IF NOT EXISTS task_tags (
            task_id BIGINT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
            tag_id BIGINT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
            PRIMARY KEY(task_id, tag_id)
        );`,
		`CREATE TABLE IF NOT EXISTS conversations (
            id BIGSERIAL PRIMARY KEY,
            user_id BIGINT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
            created_at TIMESTAMPTZ NOT NULL,
            updated_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            conversation_id BIGINT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL,
            role TEXT NOT NULL,
            content TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL
        );`,
		`CREATE INDEX IF NOT EXISTS messages_conversation_idx ON messages(conversation_id, created_at);`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// --- Users ---

type users struct{ db *sql.DB }

func (u *users) Create(ctx context.Context, m *model.User) (*model.User, error) {
	now := time.Now().UTC()
	out := *m
	out.CreatedAt = now
	row := u.db.QueryRowContext(ctx,
		`INSERT INTO users (email, display_name, created_at) VALUES ($1,$2,$3) RETURNING id`,
		m.Email, m.DisplayName, now)
	if err := row.Scan(&out.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	return &out, nil
}

func (u *users) Get(ctx context.Context, userID int64) (*model.User, error) {
	row := u.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at, last_seen_at FROM users WHERE id=$1`, userID)
	return scanUser(row)
}

func (u *users) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := u.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, created_at, last_seen_at FROM users WHERE email=$1`, email)
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
	if _, err := t.db.ExecContext(ctx,
		`INSERT INTO api_tokens (token, user_id, name, created_at, expires_at) VALUES ($1,$2,$3,$4,$5)`,
		m.Token, m.UserID, m.Name, now, m.ExpiresAt); err != nil {
		return nil, err
	}
	out := *m
	out.CreatedAt = now
	return &out, nil
}

func (t *tokens) Get(ctx context.Context, token string) (*model.APIToken, error) {
	row := t.db.QueryRowContext(ctx, `
        SELECT token, user_id, name, created_at, expires_at
        FROM api_tokens WHERE token=$1 AND (expires_at IS NULL OR expires_at > NOW())`, token)
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
	out := *m
	out.CreatedAt = now
	row := t.db.QueryRowContext(ctx,
		`INSERT INTO tags (user_id, name, color, created_at) VALUES ($1,$2,$3,$4) RETURNING id`,
		m.UserID, m.Name, m.Color, now)
	if err := row.Scan(&out.ID); err != nil {
		if isUniqueViolation(err) {
			return nil, model.ErrConflict
		}
		return nil, err
	}
	return &out, nil
}

func (t *tags) Get(ctx context.Context, userID, tagID int64) (*model.Tag, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT id, user_id, name, color, created_at FROM tags WHERE user_id=$1 AND id=$2`, userID, tagID)
	var out model.Tag
	if err := row.Scan(&out.ID, &out.UserID, &out.Name, &out.Color, &out.CreatedAt); err != nil {
		return nil, mapNoRows(err)
	}
	return &out, nil
}

func (t *tags) List(ctx context.Context, userID int64) ([]*model.Tag, error) {
	rows, err := t.db.QueryContext(ctx,
		`SELECT id, user_id, name, color, created_at FROM tags WHERE user_id=$1 ORDER BY name`, userID)
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
	res, err := t.db.ExecContext(ctx, `DELETE FROM tags WHERE user_id=$1 AND id=$2`, userID, tagID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// --- Tasks ---

type tasks struct{ db *sql.DB }

const taskColumns = `id, user_id, title, description, completed, priority, due_date,
    is_recurring, recurrence_pattern, recurrence_interval, parent_task_id, next_occurrence,
    created_at, updated_at`

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

	out := *m
	out.Priority = priority
	out.RecurrenceInterval = interval
	out.CreatedAt = now
	out.UpdatedAt = now
	row := tx.QueryRowContext(ctx, `
        INSERT INTO tasks (user_id, title, description, completed, priority, due_date,
                           is_recurring, recurrence_pattern, recurrence_interval,
                           parent_task_id, next_occurrence, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        RETURNING id`,
		m.UserID, m.Title, m.Description, m.Completed, string(priority), m.DueDate,
		m.IsRecurring, pattern, interval, m.ParentTaskID, m.NextOccurrence, now, now)
	if err := row.Scan(&out.ID); err != nil {
		return nil, err
	}

	if len(m.TagIDs) > 0 {
		if err := replaceTagsTx(ctx, tx, m.UserID, out.ID, m.TagIDs); err != nil {
			return nil, err
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &out, nil
}

func (t *tasks) GetByID(ctx context.Context, userID, taskID int64) (*model.Task, error) {
	row := t.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE user_id=$1 AND id=$2`, userID, taskID)
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
		where = []string{}
		args  = []any{userID}
	)
	where = append(where, "t.user_id = $1")
	next := func() string { return fmt.Sprintf("$%d", len(args)+1) }

	switch f.Status {
	case "completed":
		where = append(where, "t.completed")
	case "active", "pending":
		where = append(where, "NOT t.completed")
	}
	if f.Priority != nil {
		where = append(where, "t.priority = "+next())
		args = append(args, string(*f.Priority))
	}
	if f.IsRecurring != nil {
		where = append(where, "t.is_recurring = "+next())
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
		where = append(where, "t.due_date IS NOT NULL AND t.due_date < NOW() AND NOT t.completed")
	}
	if f.Search != "" {
		p := next()
		where = append(where, "(t.title ILIKE "+p+" OR t.description ILIKE "+p+")")
		args = append(args, "%"+f.Search+"%")
	}

	query := `SELECT DISTINCT ` + prefixColumns("t") + ` FROM tasks t`
	if len(f.TagIDs) > 0 {
		query += ` JOIN task_tags tt ON tt.task_id = t.id AND tt.tag_id = ANY(` + next() + `)`
		ids := make([]int64, len(f.TagIDs))
		copy(ids, f.TagIDs)
		args = append(args, ids)
	}
	query += ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY ` + taskOrderClause(f)

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
	for _, task := range res {
		task.TagIDs, err = taskTagIDs(ctx, t.db, task.ID)
		if err != nil {
			return nil, err
		}
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
		return "t.due_date " + dir + " NULLS LAST, t.id " + dir
	case "title":
		return "t.title " + dir + ", t.id " + dir
	case "priority":
		return `CASE t.priority WHEN 'urgent' THEN 4 WHEN 'high' THEN 3 WHEN 'medium' THEN 2 ELSE 1 END ` + dir + ", t.id " + dir
	default:
		return "t.created_at " + dir + ", t.id " + dir
	}
}

func (t *tasks) Update(ctx context.Context, userID, taskID int64, u model.TaskUpdate) (*model.Task, error) {
	var (
		sets = []string{"updated_at = $1"}
		args = []any{time.Now().UTC()}
	)
	add := func(col string, v any) {
		sets = append(sets, fmt.Sprintf("%s = $%d", col, len(args)+1))
		args = append(args, v)
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Description != nil {
		add("description", *u.Description)
	}
	if u.Completed != nil {
		add("completed", *u.Completed)
	}
	if u.Priority != nil {
		add("priority", string(*u.Priority))
	}
	if u.DueDate != nil {
		add("due_date", *u.DueDate)
	}
	if u.IsRecurring != nil {
		add("is_recurring", *u.IsRecurring)
	}
	if u.RecurrencePattern != nil {
		add("recurrence_pattern", string(*u.RecurrencePattern))
	}
	if u.RecurrenceInterval != nil {
		add("recurrence_interval", *u.RecurrenceInterval)
	}
	args = append(args, userID, taskID)

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx, fmt.Sprintf(
		`UPDATE tasks SET %s WHERE user_id=$%d AND id=$%d`,
		strings.Join(sets, ", "), len(args)-1, len(args)), args...)
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
	res, err := t.db.ExecContext(ctx, `DELETE FROM tasks WHERE user_id=$1 AND id=$2`, userID, taskID)
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
	if err := tx.QueryRowContext(ctx,
		`SELECT user_id FROM tasks WHERE user_id=$1 AND id=$2`, userID, taskID).Scan(&owner); err != nil {
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
               COUNT(*) FILTER (WHERE completed),
               COUNT(*) FILTER (WHERE due_date IS NOT NULL AND due_date < NOW() AND NOT completed)
        FROM tasks WHERE user_id=$1`, userID)
	if err := row.Scan(&stats.Total, &stats.Completed, &stats.Overdue); err != nil {
		return nil, err
	}
	stats.Pending = stats.Total - stats.Completed

	rows, err := t.db.QueryContext(ctx,
		`SELECT priority, COUNT(*) FROM tasks WHERE user_id=$1 GROUP BY priority`, userID)
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

func replaceTagsTx(ctx context.Context, tx *sql.Tx, userID, taskID int64, tagIDs []int64) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM task_tags WHERE task_id=$1`, taskID); err != nil {
		return err
	}
	for _, tagID := range tagIDs {
		var owner int64
		err := tx.QueryRowContext(ctx, `SELECT user_id FROM tags WHERE id=$1`, tagID).Scan(&owner)
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
			`INSERT INTO task_tags (task_id, tag_id) VALUES ($1,$2) ON CONFLICT DO NOTHING`,
			taskID, tagID); err != nil {
			return err
		}
	}
	return nil
}

func taskTagIDs(ctx context.Context, db *sql.DB, taskID int64) ([]int64, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT tag_id FROM task_tags WHERE task_id=$1 ORDER BY tag_id`, taskID)
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
		`SELECT id, user_id, created_at, updated_at FROM conversations WHERE user_id=$1 AND id=$2`,
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
        FROM conversations c WHERE c.user_id=$1 ORDER BY c.updated_at DESC, c.id DESC`, userID)
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
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM conversations WHERE user_id=$1 AND id=$2`, userID, conversationID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (c *conversations) Messages(ctx context.Context, userID, conversationID int64, skip, limit int) ([]*model.Message, error) {
	if _, err := c.Get(ctx, userID, conversationID); err != nil {
		return nil, err
	}
	query := `SELECT id, conversation_id, user_id, role, content, created_at
        FROM messages WHERE conversation_id=$1
        ORDER BY created_at ASC, id ASC OFFSET $2`
	args := []any{conversationID, skip}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}
	rows, err := c.db.QueryContext(ctx, query, args...)
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
		row := tx.QueryRowContext(ctx,
			`INSERT INTO conversations (user_id, created_at, updated_at) VALUES ($1,$2,$3) RETURNING id`,
			userID, now, now)
		if err := row.Scan(&conv.ID); err != nil {
			return nil, err
		}
		conv.CreatedAt = now
	} else {
		row := tx.QueryRowContext(ctx,
			`SELECT created_at FROM conversations WHERE user_id=$1 AND id=$2`, userID, conversationID)
		if err := row.Scan(&conv.CreatedAt); err != nil {
			return nil, mapNoRows(err)
		}
		if _, err := tx.ExecContext(ctx,
			`UPDATE conversations SET updated_at=$1 WHERE id=$2`, now, conversationID); err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content, created_at) VALUES ($1,$2,$3,$4,$5)`,
		conv.ID, userID, model.RoleUser, userText, now); err != nil {
		return nil, err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO messages (conversation_id, user_id, role, content, created_at) VALUES ($1,$2,$3,$4,$5)`,
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
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
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
