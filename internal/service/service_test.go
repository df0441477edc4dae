package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/steelcut-optimizer/internal/mock"
	"github.com/steelcut-optimizer/internal/repository"
	"github.com/steelcut-optimizer/pkg/config"
	apperrors "github.com/steelcut-optimizer/pkg/errors"
	"github.com/steelcut-optimizer/pkg/model"
	"github.com/steelcut-optimizer/pkg/utils"
)

func testConfig() *config.Config {
	return &config.Config{
		Optimizer: config.OptimizerConfig{
			WasteThreshold:     model.DefaultWasteThreshold,
			TargetLossRate:     model.DefaultTargetLossRate,
			TimeLimit:          model.DefaultTimeLimit,
			MaxWeldingSegments: model.DefaultMaxWeldingSegments,
			WeldCostMM:         50,
			WeldBenefitFloorMM: 50,
			PostPassIterations: 10,
		},
		Database: config.DatabaseConfig{URL: "sqlite://:memory:"},
	}
}

// newTestService wires the service onto an in-memory sqlite task store.
func newTestService(t *testing.T) (*Service, repository.TaskRepository) {
	t.Helper()

	db, err := repository.NewGormDB(&config.DatabaseConfig{URL: "sqlite://:memory:"})
	require.NoError(t, err)
	repos := repository.NewRepositories(db)
	t.Cleanup(func() { repos.Close() })

	svc := NewWithDeps(testConfig(), utils.NewNullLogger(), repos.Task, nil)
	return svc, repos.Task
}

func waitForTerminal(t *testing.T, svc *Service, taskID string) *model.Task {
	t.Helper()

	var task *model.Task
	require.Eventually(t, func() bool {
		var err error
		task, err = svc.GetTask(context.Background(), taskID)
		if err != nil {
			return false
		}
		return task.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond, "task did not reach a terminal state")
	return task
}

func TestService_SubmitAndComplete(t *testing.T) {
	svc, _ := newTestService(t)

	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 6000, Quantity: 2, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{
			{ID: "m1", Name: "12m", Length: 12000},
		},
		Constraints: model.Constraints{
			WasteThreshold:     100,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	}

	taskID, err := svc.SubmitOptimization(context.Background(), req)
	require.NoError(t, err)
	assert.Regexp(t, `^task_\d+_\d{6}$`, taskID)

	task := waitForTerminal(t, svc, taskID)
	require.Equal(t, model.TaskStatusCompleted, task.Status)
	assert.Equal(t, 100, task.Progress)
	assert.GreaterOrEqual(t, task.ExecutionTime, int64(0))

	result := task.Result
	require.NotNil(t, result)
	require.Contains(t, result.Solutions, "HRB400_314")
	assert.Equal(t, 1, result.TotalModuleUsed)
	assert.InDelta(t, 0.0, result.TotalLossRate, 0.0001)
	assert.InDelta(t, 100.0, result.UtilizationRate, 0.0001)
	assert.Zero(t, result.TotalWaste)
	assert.Empty(t, result.UnmetDemands)
	assert.True(t, result.ProcessingStatus.RemaindersFinalized)
}

func TestService_SubmitRejectsEmptyInput(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.SubmitOptimization(context.Background(), &model.OptimizeRequest{
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))

	_, err = svc.SubmitOptimization(context.Background(), &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{{ID: "d1", Length: 6000, Quantity: 1, CrossSection: 314}},
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.CodeInvalidInput, apperrors.GetErrorCode(err))
}

func TestService_InfeasibleWeldingFailsTask(t *testing.T) {
	svc, _ := newTestService(t)

	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 15000, Quantity: 1, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{
			{ID: "m1", Length: 6000},
			{ID: "m2", Length: 9000},
			{ID: "m3", Length: 12000},
		},
		Constraints: model.Constraints{
			WasteThreshold:     500,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	}

	taskID, err := svc.SubmitOptimization(context.Background(), req)
	require.NoError(t, err)

	task := waitForTerminal(t, svc, taskID)
	assert.Equal(t, model.TaskStatusFailed, task.Status)
	assert.NotEmpty(t, task.Error)
	assert.Nil(t, task.Result, "no plans are constructed for an invalid job")
}

func TestService_WeldingJobCompletes(t *testing.T) {
	svc, _ := newTestService(t)

	req := &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 15000, Quantity: 1, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{
			{ID: "m1", Length: 6000},
			{ID: "m2", Length: 9000},
			{ID: "m3", Length: 12000},
		},
		Constraints: model.Constraints{
			WasteThreshold:     500,
			TimeLimit:          60000,
			MaxWeldingSegments: 2,
		},
	}

	taskID, err := svc.SubmitOptimization(context.Background(), req)
	require.NoError(t, err)

	task := waitForTerminal(t, svc, taskID)
	require.Equal(t, model.TaskStatusCompleted, task.Status)
	require.NotNil(t, task.Result)
	assert.Empty(t, task.Result.UnmetDemands)
}

func TestService_ArchivesCompletedResult(t *testing.T) {
	db, err := repository.NewGormDB(&config.DatabaseConfig{URL: "sqlite://:memory:"})
	require.NoError(t, err)
	repos := repository.NewRepositories(db)
	t.Cleanup(func() { repos.Close() })

	store := &mock.MockStorage{}
	store.On("Upload", testifymock.Anything, testifymock.MatchedBy(func(key string) bool {
		return strings.HasSuffix(key, "/result.json.gz")
	}), testifymock.Anything).Return(nil).Once()
	store.On("GetURL", testifymock.AnythingOfType("string")).Return("https://archive.example/task").Once()

	svc := NewWithDeps(testConfig(), utils.NewNullLogger(), repos.Task, store)

	taskID, err := svc.SubmitOptimization(context.Background(), &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 6000, Quantity: 2, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints: model.Constraints{
			WasteThreshold:     100,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	})
	require.NoError(t, err)

	task := waitForTerminal(t, svc, taskID)
	require.Equal(t, model.TaskStatusCompleted, task.Status)

	// The archive upload happens after the terminal write; wait for the worker.
	svc.workers.Wait()
	store.AssertExpectations(t)
}

func TestService_CancelTask(t *testing.T) {
	svc, tasks := newTestService(t)
	ctx := context.Background()

	pending := model.NewTask(&model.OptimizeRequest{})
	require.NoError(t, tasks.Create(ctx, pending))

	cancelled, err := svc.CancelTask(ctx, pending.TaskID)
	require.NoError(t, err)
	assert.Equal(t, model.TaskStatusCancelled, cancelled.Status)
	assert.Equal(t, "cancelled by user", cancelled.Message)
	assert.GreaterOrEqual(t, cancelled.ExecutionTime, int64(0))

	// Terminal states are immutable: a second cancel is rejected.
	_, err = svc.CancelTask(ctx, pending.TaskID)
	require.Error(t, err)

	_, err = svc.CancelTask(ctx, "task_0_000000")
	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_ValidateConstraints(t *testing.T) {
	svc, _ := newTestService(t)

	result, err := svc.ValidateConstraints(context.Background(), &model.OptimizeRequest{
		DesignSteels: []model.DesignSteel{
			{ID: "d1", Length: 15000, Quantity: 1, CrossSection: 314, Specification: "HRB400"},
		},
		ModuleSteels: []model.ModuleSteel{{ID: "m1", Length: 12000}},
		Constraints: model.Constraints{
			WasteThreshold:     500,
			TimeLimit:          60000,
			MaxWeldingSegments: 1,
		},
	})
	require.NoError(t, err)
	assert.False(t, result.IsValid)
	require.Len(t, result.Suggestions, 2)
}

func TestService_GetStats(t *testing.T) {
	repo := &mock.MockTaskRepository{}
	svc := NewWithDeps(testConfig(), utils.NewNullLogger(), repo, nil)

	repo.On("CountByStatus", testifymock.Anything).Return(map[model.TaskStatus]int64{
		model.TaskStatusPending:   1,
		model.TaskStatusRunning:   2,
		model.TaskStatusCompleted: 5,
		model.TaskStatusFailed:    3,
		model.TaskStatusCancelled: 1,
	}, nil)

	stats, err := svc.GetStats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.TotalOptimizations)
	assert.Equal(t, int64(3), stats.ActiveTasks)
	assert.Equal(t, int64(5), stats.CompletedTasks)
	assert.Equal(t, int64(3), stats.FailedTasks)
	repo.AssertExpectations(t)
}

func TestService_OpportunisticCleanup(t *testing.T) {
	repo := &mock.MockTaskRepository{}
	svc := NewWithDeps(testConfig(), utils.NewNullLogger(), repo, nil)

	repo.On("DeleteExpired", testifymock.Anything, testifymock.AnythingOfType("time.Time")).
		Return(int64(2), nil).Once()
	repo.On("GetByTaskID", testifymock.Anything, "task_1_000001").
		Return(nil, apperrors.ErrNotFound).Twice()

	// First read triggers cleanup; the second within the interval does not.
	_, _ = svc.GetTask(context.Background(), "task_1_000001")
	_, _ = svc.GetTask(context.Background(), "task_1_000001")

	repo.AssertExpectations(t)
}
