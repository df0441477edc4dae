// Package mock provides testify mocks for the service's collaborator
// interfaces.
package mock

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/steelcut-optimizer/pkg/model"
)

// MockTaskRepository is a mock implementation of the TaskRepository interface.
type MockTaskRepository struct {
	mock.Mock
}

// Create mocks the Create method.
func (m *MockTaskRepository) Create(ctx context.Context, task *model.Task) error {
	args := m.Called(ctx, task)
	return args.Error(0)
}

// GetByTaskID mocks the GetByTaskID method.
func (m *MockTaskRepository) GetByTaskID(ctx context.Context, taskID string) (*model.Task, error) {
	args := m.Called(ctx, taskID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

// List mocks the List method.
func (m *MockTaskRepository) List(ctx context.Context, limit int, status model.TaskStatus) ([]*model.Task, error) {
	args := m.Called(ctx, limit, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Task), args.Error(1)
}

// MarkRunning mocks the MarkRunning method.
func (m *MockTaskRepository) MarkRunning(ctx context.Context, taskID string, message string) error {
	args := m.Called(ctx, taskID, message)
	return args.Error(0)
}

// UpdateProgress mocks the UpdateProgress method.
func (m *MockTaskRepository) UpdateProgress(ctx context.Context, taskID string, progress int, message string) error {
	args := m.Called(ctx, taskID, progress, message)
	return args.Error(0)
}

// Complete mocks the Complete method.
func (m *MockTaskRepository) Complete(ctx context.Context, taskID string, result *model.OptimizationResult, executionMS int64) error {
	args := m.Called(ctx, taskID, result, executionMS)
	return args.Error(0)
}

// Fail mocks the Fail method.
func (m *MockTaskRepository) Fail(ctx context.Context, taskID string, errMsg string, executionMS int64) error {
	args := m.Called(ctx, taskID, errMsg, executionMS)
	return args.Error(0)
}

// Cancel mocks the Cancel method.
func (m *MockTaskRepository) Cancel(ctx context.Context, taskID string, message string) (*model.Task, error) {
	args := m.Called(ctx, taskID, message)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Task), args.Error(1)
}

// DeleteExpired mocks the DeleteExpired method.
func (m *MockTaskRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

// CountByStatus mocks the CountByStatus method.
func (m *MockTaskRepository) CountByStatus(ctx context.Context) (map[model.TaskStatus]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[model.TaskStatus]int64), args.Error(1)
}
