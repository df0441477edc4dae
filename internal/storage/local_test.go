package storage

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalStorage(t *testing.T) {
	t.Run("CreatesBaseDirectory", func(t *testing.T) {
		basePath := filepath.Join(t.TempDir(), "archive")

		store, err := NewLocalStorage(basePath)
		require.NoError(t, err)
		require.NotNil(t, store)

		info, err := os.Stat(basePath)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("EmptyPathDefaults", func(t *testing.T) {
		origDir, err := os.Getwd()
		require.NoError(t, err)
		defer os.Chdir(origDir)
		require.NoError(t, os.Chdir(t.TempDir()))

		store, err := NewLocalStorage("")
		require.NoError(t, err)
		assert.Equal(t, "./archive", store.GetBasePath())
	})
}

func TestLocalStorage_RoundTrip(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	key := "task_1_000001/result.json.gz"
	payload := []byte(`{"totalLossRate":1.2345}`)

	require.NoError(t, store.Upload(ctx, key, bytes.NewReader(payload)))

	exists, err := store.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, exists)

	rc, err := store.Download(ctx, key)
	require.NoError(t, err)
	defer rc.Close()
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, payload, data)

	assert.Equal(t, filepath.Join(store.GetBasePath(), key), store.GetURL(key))

	require.NoError(t, store.Delete(ctx, key))
	exists, err = store.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestLocalStorage_DownloadMissing(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	_, err = store.Download(context.Background(), "no/such/key")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "archive not found")
}

func TestLocalStorage_DeleteMissingIsNoop(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	assert.NoError(t, store.Delete(context.Background(), "no/such/key"))
}

func TestLocalStorage_CancelledContext(t *testing.T) {
	store, err := NewLocalStorage(t.TempDir())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, store.Upload(ctx, "k", bytes.NewReader(nil)))
	_, err = store.Download(ctx, "k")
	assert.Error(t, err)
	assert.Error(t, store.Delete(ctx, "k"))
	_, err = store.Exists(ctx, "k")
	assert.Error(t, err)
}
