package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/appless/helpdesk/internal/model"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys.
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// InsertTask persists a new task and returns its store-assigned ID.
// The department is normalized on the way in: the fixed-enum invariant
// holds regardless of what the extractor produced.
func (s *SQLiteStore) InsertTask(ctx context.Context, t model.Task) (int64, error) {
	if t.CreatedAt.IsZero() {
		t.CreatedAt = time.Now().UTC()
	}
	t.AssignedDept = model.NormalizeDepartment(string(t.AssignedDept))
	t.Priority = model.NormalizePriority(string(t.Priority))
	t.Status = model.NormalizeStatus(string(t.Status))

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (
			project_type, owner_email, assigned_dept,
			time_required, priority, status, summary, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ProjectType, t.OwnerEmail, string(t.AssignedDept),
		t.TimeRequired, string(t.Priority), string(t.Status),
		t.Summary, t.CreatedAt.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("inserting task: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading inserted task id: %w", err)
	}
	return id, nil
}

// GetTaskByID retrieves a single task by its ID.
func (s *SQLiteStore) GetTaskByID(ctx context.Context, id int64) (*model.Task, error) {
	var t model.Task
	err := s.db.GetContext(ctx, &t, "SELECT * FROM tasks WHERE id = ?", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting task %d: %w", id, err)
	}
	return &t, nil
}

// GetTasks retrieves tasks matching the provided filter, newest first.
func (s *SQLiteStore) GetTasks(ctx context.Context, f TaskFilter) ([]model.Task, error) {
	var conditions []string
	var args []interface{}

	if f.Department != "" {
		conditions = append(conditions, "LOWER(assigned_dept) = ?")
		args = append(args, strings.ToLower(f.Department))
	}
	if f.OwnerQuery != "" {
		conditions = append(conditions, "LOWER(owner_email) LIKE ?")
		args = append(args, "%"+strings.ToLower(f.OwnerQuery)+"%")
	}
	if f.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, f.Status)
	}

	query := "SELECT * FROM tasks"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	var tasks []model.Task
	if err := s.db.SelectContext(ctx, &tasks, query, args...); err != nil {
		return nil, fmt.Errorf("querying tasks: %w", err)
	}
	return tasks, nil
}

// UpdateTaskStatus sets the task's status in a single row-scoped
// UPDATE, which SQLite serializes against concurrent writers.
func (s *SQLiteStore) UpdateTaskStatus(ctx context.Context, id int64, status model.Status) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE tasks SET status = ? WHERE id = ?", string(status), id,
	)
	if err != nil {
		return fmt.Errorf("updating status of task %d: %w", id, err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking status update of task %d: %w", id, err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// InsertUpdate appends a journal entry. Entries are immutable once
// written; there is no update or delete path.
func (s *SQLiteStore) InsertUpdate(ctx context.Context, u model.Update) error {
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_updates (id, task_id, message, author, update_type, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		u.ID, u.TaskID, u.Message, u.Author, string(u.Type), u.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("inserting update for task %d: %w", u.TaskID, err)
	}
	return nil
}

// GetUpdatesForTask returns a task's journal in creation order.
func (s *SQLiteStore) GetUpdatesForTask(ctx context.Context, taskID int64) ([]model.Update, error) {
	var updates []model.Update
	err := s.db.SelectContext(ctx, &updates,
		"SELECT * FROM task_updates WHERE task_id = ? ORDER BY created_at ASC, id ASC", taskID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying updates for task %d: %w", taskID, err)
	}
	return updates, nil
}

// GetUpdatesForTasks returns the journals for a set of tasks keyed by
// task ID, each in creation order.
func (s *SQLiteStore) GetUpdatesForTasks(ctx context.Context, taskIDs []int64) (map[int64][]model.Update, error) {
	result := make(map[int64][]model.Update)
	if len(taskIDs) == 0 {
		return result, nil
	}

	query, args, err := sqlx.In(
		"SELECT * FROM task_updates WHERE task_id IN (?) ORDER BY created_at ASC, id ASC", taskIDs,
	)
	if err != nil {
		return nil, fmt.Errorf("building updates query: %w", err)
	}

	var updates []model.Update
	if err := s.db.SelectContext(ctx, &updates, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("querying updates: %w", err)
	}

	for _, u := range updates {
		result[u.TaskID] = append(result[u.TaskID], u)
	}
	return result, nil
}
