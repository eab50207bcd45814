package iostore

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitStore(t *testing.T) {
	initOnce = sync.Once{}  // Reset for test
	closeOnce = sync.Once{} // Reset for test

	require.NoError(t, InitStore(context.Background(), Options{Backend: schema.NoneBackend}))
	require.NoError(t, InitStore(context.Background(), Options{Backend: schema.NoneBackend}))

	store := Manager.GetHistoryStore()
	require.NotNil(t, store)
	require.NoError(t, store.Append(context.Background(), "api", testRecord("c1", 0, 10)))

	CloseStore()
	CloseStore()
}

func TestNewHistoryStore(t *testing.T) {
	ctx := context.Background()

	t.Run("file backend", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "data.json")
		store, err := NewHistoryStore(ctx, Options{Backend: schema.FileBackend, FilePath: path, RetryAttempts: 2})
		require.NoError(t, err)
		require.NoError(t, store.Append(ctx, "api", testRecord("c1", 0, 10)))
		_, err = os.Stat(path)
		assert.NoError(t, err)
	})

	t.Run("sqlite backend", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "history.db")
		store, err := NewHistoryStore(ctx, Options{Backend: schema.SQLiteBackend, ConnStr: path})
		require.NoError(t, err)
		defer func() { _ = store.Close() }()
		status, err := store.GetStatus(ctx)
		require.NoError(t, err)
		assert.Equal(t, path, status.Location)
	})

	t.Run("unsupported backend", func(t *testing.T) {
		_, err := NewHistoryStore(ctx, Options{Backend: "redis"})
		assert.Error(t, err)
	})
}

func TestClearHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.json")
	require.NoError(t, os.WriteFile(path, []byte("{}"), 0o644))

	require.NoError(t, ClearHistory(schema.FileBackend, path, ""))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// Clearing twice is fine.
	require.NoError(t, ClearHistory(schema.FileBackend, path, ""))
	require.NoError(t, ClearHistory(schema.NoneBackend, "", ""))
	assert.Error(t, ClearHistory("redis", "", ""))
}
