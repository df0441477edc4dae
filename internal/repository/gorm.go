package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/steelcut-optimizer/pkg/errors"
	"github.com/steelcut-optimizer/pkg/model"
)

// terminalStatuses are the statuses a task can never leave.
var terminalStatuses = []string{
	string(model.TaskStatusCompleted),
	string(model.TaskStatusFailed),
	string(model.TaskStatusCancelled),
}

// GormTaskRepository implements TaskRepository using GORM.
type GormTaskRepository struct {
	db *gorm.DB
}

// NewGormTaskRepository creates a new GormTaskRepository.
func NewGormTaskRepository(db *gorm.DB) *GormTaskRepository {
	return &GormTaskRepository{db: db}
}

// Create persists a new pending task row.
func (r *GormTaskRepository) Create(ctx context.Context, task *model.Task) error {
	record, err := FromModel(task)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "failed to encode task", err)
	}

	if err := r.db.WithContext(ctx).Create(record).Error; err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to create task", err)
	}
	return nil
}

// GetByTaskID retrieves a task by its task id.
func (r *GormTaskRepository) GetByTaskID(ctx context.Context, taskID string) (*model.Task, error) {
	var record OptimizationTask

	err := r.db.WithContext(ctx).Where("task_id = ?", taskID).First(&record).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Wrap(apperrors.CodeNotFound, "task not found: "+taskID, err)
		}
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to get task", err)
	}

	return record.ToModel(), nil
}

// List returns the most recent tasks, newest first.
func (r *GormTaskRepository) List(ctx context.Context, limit int, status model.TaskStatus) ([]*model.Task, error) {
	if limit <= 0 {
		limit = 20
	}

	query := r.db.WithContext(ctx).Model(&OptimizationTask{})
	if status != "" {
		query = query.Where("status = ?", string(status))
	}

	var records []OptimizationTask
	err := query.Order("created_at DESC").Limit(limit).Find(&records).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to list tasks", err)
	}

	tasks := make([]*model.Task, len(records))
	for i := range records {
		tasks[i] = records[i].ToModel()
	}
	return tasks, nil
}

// MarkRunning transitions a pending task to running.
func (r *GormTaskRepository) MarkRunning(ctx context.Context, taskID string, message string) error {
	result := r.db.WithContext(ctx).
		Model(&OptimizationTask{}).
		Where("task_id = ? AND status = ?", taskID, string(model.TaskStatusPending)).
		Updates(map[string]interface{}{
			"status":     string(model.TaskStatusRunning),
			"message":    message,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to mark task running", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeNotFound, "task not pending: "+taskID)
	}
	return nil
}

// UpdateProgress updates progress and message of a running task. Progress 100
// is reserved for completion, so running progress is capped at 99.
func (r *GormTaskRepository) UpdateProgress(ctx context.Context, taskID string, progress int, message string) error {
	if progress > 99 {
		progress = 99
	}
	if progress < 0 {
		progress = 0
	}

	result := r.db.WithContext(ctx).
		Model(&OptimizationTask{}).
		Where("task_id = ? AND status = ?", taskID, string(model.TaskStatusRunning)).
		Updates(map[string]interface{}{
			"progress":   progress,
			"message":    message,
			"updated_at": time.Now(),
		})

	if result.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to update progress", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeNotFound, "task not running: "+taskID)
	}
	return nil
}

// Complete writes the result and transitions a running task to completed.
func (r *GormTaskRepository) Complete(ctx context.Context, taskID string, result *model.OptimizationResult, executionMS int64) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeInternal, "failed to encode result", err)
	}

	res := r.db.WithContext(ctx).
		Model(&OptimizationTask{}).
		Where("task_id = ? AND status = ?", taskID, string(model.TaskStatusRunning)).
		Updates(map[string]interface{}{
			"status":         string(model.TaskStatusCompleted),
			"progress":       100,
			"message":        "optimization completed",
			"result":         JSONField(resultJSON),
			"execution_time": executionMS,
			"updated_at":     time.Now(),
		})

	if res.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to complete task", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeNotFound, "task not running: "+taskID)
	}
	return nil
}

// Fail transitions a pending or running task to failed. A pending task fails
// directly when constraint validation rejects the job before planning.
func (r *GormTaskRepository) Fail(ctx context.Context, taskID string, errMsg string, executionMS int64) error {
	res := r.db.WithContext(ctx).
		Model(&OptimizationTask{}).
		Where("task_id = ? AND status IN ?", taskID,
			[]string{string(model.TaskStatusPending), string(model.TaskStatusRunning)}).
		Updates(map[string]interface{}{
			"status":         string(model.TaskStatusFailed),
			"message":        "optimization failed",
			"error":          errMsg,
			"execution_time": executionMS,
			"updated_at":     time.Now(),
		})

	if res.Error != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to mark task failed", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperrors.New(apperrors.CodeNotFound, "task not active: "+taskID)
	}
	return nil
}

// Cancel transitions a pending or running task to cancelled.
func (r *GormTaskRepository) Cancel(ctx context.Context, taskID string, message string) (*model.Task, error) {
	var record OptimizationTask

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("task_id = ?", taskID).
			First(&record).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperrors.Wrap(apperrors.CodeNotFound, "task not found: "+taskID, err)
			}
			return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to lock task", err)
		}

		if model.TaskStatus(record.Status).IsTerminal() {
			return apperrors.New(apperrors.CodeInvalidInput,
				"task is already "+record.Status+" and cannot be cancelled")
		}

		now := time.Now()
		record.Status = string(model.TaskStatusCancelled)
		record.Message = message
		record.ExecutionTime = now.Sub(record.CreatedAt).Milliseconds()
		record.UpdatedAt = now

		return tx.Model(&OptimizationTask{}).
			Where("task_id = ?", taskID).
			Updates(map[string]interface{}{
				"status":         record.Status,
				"message":        record.Message,
				"execution_time": record.ExecutionTime,
				"updated_at":     record.UpdatedAt,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	return record.ToModel(), nil
}

// DeleteExpired removes terminal task rows last updated before the given
// instant. Non-terminal rows are preserved regardless of age.
func (r *GormTaskRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("status IN ? AND updated_at < ?", terminalStatuses, before).
		Delete(&OptimizationTask{})

	if res.Error != nil {
		return 0, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to delete expired tasks", res.Error)
	}
	return res.RowsAffected, nil
}

// CountByStatus returns the number of tasks per status.
func (r *GormTaskRepository) CountByStatus(ctx context.Context) (map[model.TaskStatus]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}

	var rows []statusCount
	err := r.db.WithContext(ctx).
		Model(&OptimizationTask{}).
		Select("status, COUNT(*) as count").
		Group("status").
		Find(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeDatabaseError, "failed to count tasks", err)
	}

	counts := make(map[model.TaskStatus]int64, len(rows))
	for _, row := range rows {
		counts[model.TaskStatus(row.Status)] = row.Count
	}
	return counts, nil
}
