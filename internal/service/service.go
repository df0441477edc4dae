// Package service implements the asynchronous task supervisor that exposes
// the optimization engine as a submit / poll / result service.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/steelcut-optimizer/internal/optimizer"
	"github.com/steelcut-optimizer/internal/repository"
	"github.com/steelcut-optimizer/internal/storage"
	"github.com/steelcut-optimizer/pkg/config"
	apperrors "github.com/steelcut-optimizer/pkg/errors"
	"github.com/steelcut-optimizer/pkg/model"
	"github.com/steelcut-optimizer/pkg/utils"
)

// taskExpiry is how long terminal task rows are retained.
const taskExpiry = 24 * time.Hour

// cleanupInterval bounds how often opportunistic cleanup runs on read paths.
const cleanupInterval = time.Minute

// Stats aggregates task counters for the /stats endpoint.
type Stats struct {
	TotalOptimizations int64 `json:"totalOptimizations"`
	ActiveTasks        int64 `json:"activeTasks"`
	CompletedTasks     int64 `json:"completedTasks"`
	FailedTasks        int64 `json:"failedTasks"`
}

// Service supervises optimization tasks: it persists the pending row, runs
// the engine in a background worker decoupled from the request path, reports
// progress, and writes the terminal state.
type Service struct {
	cfg      *config.Config
	logger   utils.Logger
	clock    utils.Clock
	repos    *repository.Repositories
	tasks    repository.TaskRepository
	archiver *storage.ResultArchiver

	mu      sync.Mutex
	running map[string]context.CancelFunc

	cleanupMu   sync.Mutex
	lastCleanup time.Time

	workers sync.WaitGroup
}

// New creates a Service. Initialize must be called before use.
func New(cfg *config.Config, logger utils.Logger) *Service {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Service{
		cfg:     cfg,
		logger:  logger,
		clock:   utils.NewRealClock(),
		running: make(map[string]context.CancelFunc),
	}
}

// NewWithDeps creates a fully wired Service from explicit collaborators.
func NewWithDeps(cfg *config.Config, logger utils.Logger, tasks repository.TaskRepository, store storage.Storage) *Service {
	s := New(cfg, logger)
	s.tasks = tasks
	s.archiver = storage.NewResultArchiver(store)
	return s
}

// Initialize connects the task store and the result archive.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("connecting task store (%s)", s.cfg.Database.URL)

	gormDB, err := repository.NewGormDB(&s.cfg.Database)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeDatabaseError, "failed to initialize task store", err)
	}
	s.repos = repository.NewRepositories(gormDB)
	s.tasks = s.repos.Task

	store, err := storage.NewStorage(&s.cfg.Storage)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStorageError, "failed to initialize result archive", err)
	}
	s.archiver = storage.NewResultArchiver(store)
	if store != nil {
		s.logger.Info("result archive enabled (%s)", s.cfg.Storage.Type)
	}

	return nil
}

// Close waits for in-flight workers and releases the task store.
func (s *Service) Close() error {
	s.workers.Wait()
	if s.repos != nil {
		return s.repos.Close()
	}
	return nil
}

// HealthCheck verifies the task store connection.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repos != nil {
		return s.repos.HealthCheck(ctx)
	}
	return nil
}

// SubmitOptimization persists a pending task and triggers the optimizer
// worker. It returns as soon as the row is written; the engine runs on a
// background goroutine not bound to the request lifetime.
func (s *Service) SubmitOptimization(ctx context.Context, req *model.OptimizeRequest) (string, error) {
	if req == nil {
		return "", apperrors.New(apperrors.CodeInvalidInput, "request body is required")
	}
	if len(req.DesignSteels) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidInput, "designSteels must not be empty")
	}
	if len(req.ModuleSteels) == 0 {
		return "", apperrors.New(apperrors.CodeInvalidInput, "moduleSteels must not be empty")
	}
	s.applyConstraintDefaults(&req.Constraints)

	task := model.NewTask(req)
	if err := s.tasks.Create(ctx, task); err != nil {
		return "", err
	}
	s.logger.Info("task %s created with %d design and %d module steels",
		task.TaskID, len(req.DesignSteels), len(req.ModuleSteels))

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		s.runTask(task.TaskID, task.CreatedAt, req)
	}()

	return task.TaskID, nil
}

// runTask is the worker entrypoint for one task.
func (s *Service) runTask(taskID string, createdAt time.Time, req *model.OptimizeRequest) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s.mu.Lock()
	s.running[taskID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.running, taskID)
		s.mu.Unlock()
	}()

	logger := s.logger.WithField("task", taskID)

	// Constraint violations fail the task straight from pending, without a
	// running phase.
	if v := optimizer.ValidateConstraints(req.DesignSteels, req.ModuleSteels, req.Constraints); !v.IsValid {
		msg := apperrors.GetErrorMessage(apperrors.ErrInvalidConstraints)
		for _, violation := range v.Violations {
			msg += "; " + violation.Message
		}
		logger.Error("constraint validation failed: %d violation(s)", len(v.Violations))
		if failErr := s.tasks.Fail(ctx, taskID, msg, s.clock.Since(createdAt).Milliseconds()); failErr != nil {
			logger.Error("failed to record task failure: %v", failErr)
		}
		return
	}

	if err := s.tasks.MarkRunning(ctx, taskID, "optimization started"); err != nil {
		// Most likely cancelled between submission and pickup.
		logger.Warn("task not started: %v", err)
		return
	}

	reporter := s.newProgressReporter(ctx, taskID, logger)
	engine := optimizer.NewEngine(optimizer.EngineOptions{
		WeldCostMM:         s.cfg.Optimizer.WeldCostMM,
		WeldBenefitFloorMM: s.cfg.Optimizer.WeldBenefitFloorMM,
		PostPassIterations: s.cfg.Optimizer.PostPassIterations,
		MaxParallelGroups:  s.cfg.Optimizer.MaxParallelGroups,
		Progress:           reporter,
	}, logger)

	result, err := engine.Optimize(ctx, req)
	execMS := s.clock.Since(createdAt).Milliseconds()

	if ctx.Err() != nil || apperrors.IsCancelled(err) {
		// The row was already moved to cancelled; write nothing more.
		logger.Info("worker observed cancellation, dropping results")
		return
	}

	if err != nil {
		msg := apperrors.GetErrorMessage(err)
		if apperrors.IsInvalidConstraints(err) && result != nil && result.ConstraintValidation != nil {
			for _, v := range result.ConstraintValidation.Violations {
				msg += "; " + v.Message
			}
		}
		logger.Error("optimization failed after %d ms: %v", execMS, err)
		if failErr := s.tasks.Fail(context.Background(), taskID, msg, execMS); failErr != nil {
			logger.Error("failed to record task failure: %v", failErr)
		}
		return
	}

	if err := s.tasks.Complete(context.Background(), taskID, result, execMS); err != nil {
		// The final result write is not best-effort.
		logger.Error("failed to record task result: %v", err)
		if failErr := s.tasks.Fail(context.Background(), taskID, "failed to persist result: "+err.Error(), execMS); failErr != nil {
			logger.Error("failed to record task failure: %v", failErr)
		}
		return
	}
	logger.Info("task completed in %d ms, loss rate %.4f%%", execMS, result.TotalLossRate)

	if s.archiver.Enabled() {
		if url, err := s.archiver.Archive(context.Background(), taskID, result); err != nil {
			logger.Warn("result archive failed: %v", err)
		} else {
			logger.Info("result archived to %s", url)
		}
	}
}

// newProgressReporter maps engine group completion onto the 10-99 progress
// band, debounces store writes and keeps them monotonically non-decreasing.
// Store failures retry once; progress reporting is best-effort.
func (s *Service) newProgressReporter(ctx context.Context, taskID string, logger utils.Logger) func(completed, total int) {
	var mu sync.Mutex
	last := 0
	lastWrite := time.Time{}

	return func(completed, total int) {
		progress := 10
		if total > 0 {
			progress = 10 + completed*89/total
		}

		mu.Lock()
		defer mu.Unlock()
		if progress <= last {
			return
		}
		now := s.clock.Now()
		if completed < total && now.Sub(lastWrite) < 200*time.Millisecond && last >= 10 {
			return
		}
		last = progress
		lastWrite = now

		message := fmt.Sprintf("planned %d of %d groups", completed, total)
		if completed == 0 {
			message = "constraints validated"
		}
		if err := s.tasks.UpdateProgress(ctx, taskID, progress, message); err != nil {
			if err = s.tasks.UpdateProgress(ctx, taskID, progress, message); err != nil {
				logger.Warn("progress update dropped: %v", err)
			}
		}
	}
}

// GetTask returns the current task row.
func (s *Service) GetTask(ctx context.Context, taskID string) (*model.Task, error) {
	s.maybeCleanup(ctx)
	return s.tasks.GetByTaskID(ctx, taskID)
}

// ListTasks returns the most recent tasks, newest first.
func (s *Service) ListTasks(ctx context.Context, limit int, status model.TaskStatus) ([]*model.Task, error) {
	s.maybeCleanup(ctx)
	return s.tasks.List(ctx, limit, status)
}

// CancelTask cancels a pending or running task. The transition is written
// first so pollers observe it immediately; the in-flight worker is then
// signalled and must not write results once the cancel is observed.
func (s *Service) CancelTask(ctx context.Context, taskID string) (*model.Task, error) {
	task, err := s.tasks.Cancel(ctx, taskID, "cancelled by user")
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	cancel, ok := s.running[taskID]
	s.mu.Unlock()
	if ok {
		cancel()
	}

	s.logger.Info("task %s cancelled", taskID)
	return task, nil
}

// ValidateConstraints runs the constraint validator without planning.
func (s *Service) ValidateConstraints(ctx context.Context, req *model.OptimizeRequest) (*model.ValidationResult, error) {
	if req == nil {
		return nil, apperrors.New(apperrors.CodeInvalidInput, "request body is required")
	}
	s.applyConstraintDefaults(&req.Constraints)
	return optimizer.ValidateConstraints(req.DesignSteels, req.ModuleSteels, req.Constraints), nil
}

// GetStats aggregates task counters.
func (s *Service) GetStats(ctx context.Context) (*Stats, error) {
	counts, err := s.tasks.CountByStatus(ctx)
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ActiveTasks:    counts[model.TaskStatusPending] + counts[model.TaskStatusRunning],
		CompletedTasks: counts[model.TaskStatusCompleted],
		FailedTasks:    counts[model.TaskStatusFailed],
	}
	for _, c := range counts {
		stats.TotalOptimizations += c
	}
	return stats, nil
}

// CleanupExpired deletes terminal task rows older than the retention window.
func (s *Service) CleanupExpired(ctx context.Context) (int64, error) {
	return s.tasks.DeleteExpired(ctx, s.clock.Now().Add(-taskExpiry))
}

// maybeCleanup runs expired-task cleanup opportunistically on read paths,
// at most once per cleanupInterval. Errors never fail the read.
func (s *Service) maybeCleanup(ctx context.Context) {
	s.cleanupMu.Lock()
	due := s.clock.Now().Sub(s.lastCleanup) >= cleanupInterval
	if due {
		s.lastCleanup = s.clock.Now()
	}
	s.cleanupMu.Unlock()
	if !due {
		return
	}

	if deleted, err := s.CleanupExpired(ctx); err != nil {
		s.logger.Warn("expired task cleanup failed: %v", err)
	} else if deleted > 0 {
		s.logger.Info("removed %d expired task(s)", deleted)
	}
}

// applyConstraintDefaults fills unset constraint fields from the configured
// engine defaults.
func (s *Service) applyConstraintDefaults(c *model.Constraints) {
	defaults := s.cfg.DefaultConstraints()
	if c.WasteThreshold <= 0 {
		c.WasteThreshold = defaults.WasteThreshold
	}
	if c.TargetLossRate <= 0 {
		c.TargetLossRate = defaults.TargetLossRate
	}
	if c.TimeLimit <= 0 {
		c.TimeLimit = defaults.TimeLimit
	}
	if c.MaxWeldingSegments < 1 {
		c.MaxWeldingSegments = defaults.MaxWeldingSegments
	}
}
