package repository

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/steelcut-optimizer/pkg/model"
)

// setupSQLMock wires GORM's mysql dialector onto a sqlmock connection so the
// SQL the repository emits can be asserted without a live server.
func setupSQLMock(t *testing.T) (*GormTaskRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(mysql.New(mysql.Config{
		Conn:                      db,
		SkipInitializeWithVersion: true,
	}), &gorm.Config{
		Logger:                 logger.Default.LogMode(logger.Silent),
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)

	return NewGormTaskRepository(gormDB), mock
}

func TestGormTaskRepository_SQLMock_GetByTaskID(t *testing.T) {
	repo, mock := setupSQLMock(t)

	rows := sqlmock.NewRows([]string{
		"id", "task_id", "status", "progress", "message",
		"input", "result", "error", "execution_time", "created_at", "updated_at",
	}).AddRow(
		int64(1), "task_1_000001", "running", 40, "planning groups",
		nil, nil, "", int64(0), time.Now(), time.Now(),
	)

	mock.ExpectQuery("SELECT \\* FROM `optimization_task` WHERE task_id = \\?").
		WithArgs("task_1_000001", 1).
		WillReturnRows(rows)

	task, err := repo.GetByTaskID(context.Background(), "task_1_000001")
	require.NoError(t, err)
	assert.Equal(t, "task_1_000001", task.TaskID)
	assert.Equal(t, model.TaskStatusRunning, task.Status)
	assert.Equal(t, 40, task.Progress)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTaskRepository_SQLMock_MarkRunningGuardsStatus(t *testing.T) {
	repo, mock := setupSQLMock(t)

	mock.ExpectExec("UPDATE `optimization_task` SET").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), "task_1_000001", "pending").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.MarkRunning(context.Background(), "task_1_000001", "started")
	require.Error(t, err, "zero rows affected means the task was not pending")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormTaskRepository_SQLMock_DeleteExpired(t *testing.T) {
	repo, mock := setupSQLMock(t)

	mock.ExpectExec("DELETE FROM `optimization_task` WHERE status IN").
		WithArgs("completed", "failed", "cancelled", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	deleted, err := repo.DeleteExpired(context.Background(), time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(3), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}
