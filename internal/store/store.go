package store

import (
	"context"
	"errors"

	"github.com/appless/helpdesk/internal/model"
)

// ErrNotFound is returned when a task lookup matches no row.
var ErrNotFound = errors.New("task not found")

// TaskFilter controls filtering for task queries. Zero-value fields
// are ignored.
type TaskFilter struct {
	// Department filters on the assigned department (case-insensitive).
	Department string

	// OwnerQuery filters on a substring of the owner email
	// (case-insensitive), matching the sender-lookup surface.
	OwnerQuery string

	Status string
	Limit  int
}

// Store is the persistence boundary the pipeline consumes. All
// operations are atomic at the row level; SQLite's single-writer model
// serializes concurrent status updates to the same task.
type Store interface {
	// InsertTask persists a new task and returns its assigned ID.
	InsertTask(ctx context.Context, t model.Task) (int64, error)

	// GetTaskByID returns the task or ErrNotFound.
	GetTaskByID(ctx context.Context, id int64) (*model.Task, error)

	// GetTasks returns tasks matching the filter, newest first.
	GetTasks(ctx context.Context, f TaskFilter) ([]model.Task, error)

	// UpdateTaskStatus sets the task's status. Returns ErrNotFound
	// when the task does not exist.
	UpdateTaskStatus(ctx context.Context, id int64, status model.Status) error

	// InsertUpdate appends an immutable journal entry to a task.
	InsertUpdate(ctx context.Context, u model.Update) error

	// GetUpdatesForTask returns a task's journal in creation order.
	GetUpdatesForTask(ctx context.Context, taskID int64) ([]model.Update, error)

	// GetUpdatesForTasks returns the journals for a set of tasks,
	// each in creation order.
	GetUpdatesForTasks(ctx context.Context, taskIDs []int64) (map[int64][]model.Update, error)
}
