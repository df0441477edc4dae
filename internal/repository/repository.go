// Package repository provides the persistent task store for the
// steelcut-optimizer service.
package repository

import (
	"context"
	"time"

	"github.com/steelcut-optimizer/pkg/model"
)

// TaskRepository defines the interface for optimization task persistence.
// It is the only cross-invocation shared state: all updates are
// last-writer-wins on a single row, guarded by status so that terminal
// states stay immutable.
type TaskRepository interface {
	// Create persists a new pending task row.
	Create(ctx context.Context, task *model.Task) error

	// GetByTaskID retrieves a task by its task id.
	GetByTaskID(ctx context.Context, taskID string) (*model.Task, error)

	// List returns the most recent tasks, newest first. A non-empty status
	// filters the result.
	List(ctx context.Context, limit int, status model.TaskStatus) ([]*model.Task, error)

	// MarkRunning transitions a pending task to running.
	MarkRunning(ctx context.Context, taskID string, message string) error

	// UpdateProgress updates progress and message of a running task.
	// Progress monotonicity is enforced by the worker, not by the store.
	UpdateProgress(ctx context.Context, taskID string, progress int, message string) error

	// Complete writes the result and transitions a running task to completed
	// with progress 100.
	Complete(ctx context.Context, taskID string, result *model.OptimizationResult, executionMS int64) error

	// Fail transitions a pending or running task to failed.
	Fail(ctx context.Context, taskID string, errMsg string, executionMS int64) error

	// Cancel transitions a pending or running task to cancelled and returns
	// the updated row. Cancelling a terminal task is an error.
	Cancel(ctx context.Context, taskID string, message string) (*model.Task, error)

	// DeleteExpired removes terminal task rows whose last update is older
	// than the given instant. Non-terminal tasks are never deleted.
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)

	// CountByStatus returns the number of tasks per status.
	CountByStatus(ctx context.Context) (map[model.TaskStatus]int64, error)
}
