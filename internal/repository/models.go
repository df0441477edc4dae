package repository

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"

	"github.com/steelcut-optimizer/pkg/model"
)

// OptimizationTask represents the optimization_task table.
type OptimizationTask struct {
	ID            int64     `gorm:"column:id;primaryKey;autoIncrement"`
	TaskID        string    `gorm:"column:task_id;type:varchar(64);uniqueIndex"`
	Status        string    `gorm:"column:status;type:varchar(16);index"`
	Progress      int       `gorm:"column:progress"`
	Message       string    `gorm:"column:message;type:text"`
	Input         JSONField `gorm:"column:input;type:json"`
	Result        JSONField `gorm:"column:result;type:json"`
	Error         string    `gorm:"column:error;type:text"`
	ExecutionTime int64     `gorm:"column:execution_time"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

// TableName returns the table name for OptimizationTask.
func (OptimizationTask) TableName() string {
	return "optimization_task"
}

// ToModel converts OptimizationTask to model.Task.
func (t *OptimizationTask) ToModel() *model.Task {
	task := &model.Task{
		TaskID:        t.TaskID,
		Status:        model.TaskStatus(t.Status),
		Progress:      t.Progress,
		Message:       t.Message,
		Error:         t.Error,
		ExecutionTime: t.ExecutionTime,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}

	if t.Input != nil {
		input := &model.OptimizeRequest{}
		if err := json.Unmarshal(t.Input, input); err == nil {
			task.Input = input
		}
	}
	if t.Result != nil {
		result := &model.OptimizationResult{}
		if err := json.Unmarshal(t.Result, result); err == nil {
			task.Result = result
		}
	}

	return task
}

// FromModel converts model.Task to an OptimizationTask record.
func FromModel(task *model.Task) (*OptimizationTask, error) {
	record := &OptimizationTask{
		TaskID:        task.TaskID,
		Status:        string(task.Status),
		Progress:      task.Progress,
		Message:       task.Message,
		Error:         task.Error,
		ExecutionTime: task.ExecutionTime,
		CreatedAt:     task.CreatedAt,
		UpdatedAt:     task.UpdatedAt,
	}

	if task.Input != nil {
		data, err := json.Marshal(task.Input)
		if err != nil {
			return nil, err
		}
		record.Input = data
	}
	if task.Result != nil {
		data, err := json.Marshal(task.Result)
		if err != nil {
			return nil, err
		}
		record.Result = data
	}

	return record, nil
}

// JSONField is a custom type for handling JSON columns in GORM.
type JSONField []byte

// Value implements driver.Valuer interface.
func (j JSONField) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return []byte(j), nil
}

// Scan implements sql.Scanner interface.
func (j *JSONField) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	switch v := value.(type) {
	case []byte:
		*j = append((*j)[0:0], v...)
		return nil
	case string:
		*j = []byte(v)
		return nil
	default:
		return errors.New("unsupported type for JSONField")
	}
}

// MarshalJSON implements json.Marshaler interface.
func (j JSONField) MarshalJSON() ([]byte, error) {
	if j == nil {
		return []byte("null"), nil
	}
	return j, nil
}

// UnmarshalJSON implements json.Unmarshaler interface.
func (j *JSONField) UnmarshalJSON(data []byte) error {
	if data == nil || string(data) == "null" {
		*j = nil
		return nil
	}
	*j = append((*j)[0:0], data...)
	return nil
}
