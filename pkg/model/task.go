package model

import (
	"fmt"
	"math/rand"
	"time"
)

// TaskStatus represents the status of an optimization task.
type TaskStatus string

const (
	TaskStatusPending   TaskStatus = "pending"
	TaskStatusRunning   TaskStatus = "running"
	TaskStatusCompleted TaskStatus = "completed"
	TaskStatusFailed    TaskStatus = "failed"
	TaskStatusCancelled TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is final. Terminal states are immutable.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed || s == TaskStatusCancelled
}

// OptimizeRequest is the input snapshot an optimization task owns.
type OptimizeRequest struct {
	DesignSteels []DesignSteel `json:"designSteels"`
	ModuleSteels []ModuleSteel `json:"moduleSteels"`
	Constraints  Constraints   `json:"constraints"`
}

// Task is the supervisor's row for one optimization job.
type Task struct {
	TaskID        string              `json:"taskId"`
	Status        TaskStatus          `json:"status"`
	Progress      int                 `json:"progress"`
	Message       string              `json:"message,omitempty"`
	Input         *OptimizeRequest    `json:"input,omitempty"`
	Result        *OptimizationResult `json:"results,omitempty"`
	Error         string              `json:"error,omitempty"`
	ExecutionTime int64               `json:"executionTime,omitempty"`
	CreatedAt     time.Time           `json:"createdAt"`
	UpdatedAt     time.Time           `json:"updatedAt"`
}

// NewTask creates a pending task owning the given input snapshot.
func NewTask(input *OptimizeRequest) *Task {
	now := time.Now()
	return &Task{
		TaskID:    NewTaskID(),
		Status:    TaskStatusPending,
		Progress:  0,
		Message:   "task created",
		Input:     input,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// NewTaskID returns an id shaped task_<epoch_ms>_<6-digit-random>.
func NewTaskID() string {
	return fmt.Sprintf("task_%d_%06d", time.Now().UnixMilli(), rand.Intn(1000000))
}
