package storage

import (
	"bytes"
	"context"
	"fmt"

	"github.com/steelcut-optimizer/pkg/model"
	"github.com/steelcut-optimizer/pkg/writer"
)

// ResultArchiver writes completed optimization results to a storage backend
// as gzipped JSON. A nil backend disables archiving.
type ResultArchiver struct {
	store Storage
}

// NewResultArchiver creates a ResultArchiver over the given backend.
func NewResultArchiver(store Storage) *ResultArchiver {
	return &ResultArchiver{store: store}
}

// Enabled reports whether a backend is configured.
func (a *ResultArchiver) Enabled() bool {
	return a != nil && a.store != nil
}

// ArchiveKey returns the storage key for a task's result archive.
func ArchiveKey(taskID string) string {
	return taskID + "/result.json.gz"
}

// Archive uploads the result for the given task. Callers treat failures as
// best-effort: an archive error never fails the task.
func (a *ResultArchiver) Archive(ctx context.Context, taskID string, result *model.OptimizationResult) (string, error) {
	if !a.Enabled() {
		return "", nil
	}

	var buf bytes.Buffer
	gz := writer.NewGzipWriter[*model.OptimizationResult]()
	if err := gz.Write(result, &buf); err != nil {
		return "", fmt.Errorf("failed to encode result archive: %w", err)
	}

	key := ArchiveKey(taskID)
	if err := a.store.Upload(ctx, key, &buf); err != nil {
		return "", fmt.Errorf("failed to upload result archive: %w", err)
	}

	return a.store.GetURL(key), nil
}
