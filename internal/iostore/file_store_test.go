package iostore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newFileStore(t *testing.T, name string) *FileHistoryStore {
	t.Helper()
	store, err := NewFileHistoryStore(filepath.Join(t.TempDir(), name), "https://example.com/repo", DefaultStaleLockAfter, nil)
	require.NoError(t, err)
	return store
}

func TestFileHistoryStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t, "data.json")

	records, err := store.Load(ctx, "api")
	require.NoError(t, err)
	assert.NotNil(t, records)
	assert.Empty(t, records)

	// Append order wins over commit timestamps.
	require.NoError(t, store.Append(ctx, "api", testRecord("c1", 5, 10)))
	require.NoError(t, store.Append(ctx, "api", testRecord("c2", 1, 11)))
	require.NoError(t, store.Append(ctx, "api", testRecord("c3", 3, 12)))
	require.NoError(t, store.Append(ctx, "db", testRecord("c1", 0, 5)))

	records, err = store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2", "c3"}, hashes(records))

	suites, err := store.Suites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "db"}, suites)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.Equal(t, "https://example.com/repo", doc["repoUrl"])
	assert.Contains(t, doc, "lastUpdate")
	assert.Contains(t, doc, "entries")
}

func TestFileHistoryStore_Rejections(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t, "data.json")
	require.NoError(t, store.Append(ctx, "api", testRecord("c1", 0, 10)))

	t.Run("duplicate commit", func(t *testing.T) {
		err := store.Append(ctx, "api", testRecord("c1", 1, 99))
		require.ErrorIs(t, err, schema.ErrDuplicateCommit)

		records, err := store.Load(ctx, "api")
		require.NoError(t, err)
		require.Len(t, records, 1)
		assert.Equal(t, 10.0, records[0].Benches[0].Value)
	})

	t.Run("invalid record", func(t *testing.T) {
		rec := testRecord("c2", 1, 10)
		rec.Tool = "gradle"
		err := store.Append(ctx, "api", rec)
		assert.True(t, schema.IsValidationError(err))
		assert.ErrorIs(t, err, schema.ErrUnknownTool)

		records, err := store.Load(ctx, "api")
		require.NoError(t, err)
		assert.Len(t, records, 1)
	})

	t.Run("empty suite", func(t *testing.T) {
		err := store.Append(ctx, "", testRecord("c3", 1, 10))
		assert.ErrorIs(t, err, schema.ErrEmptySuite)
	})
}

func TestFileHistoryStore_Replace(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t, "data.json")
	for i := range 3 {
		require.NoError(t, store.Append(ctx, "api", testRecord(seqHash(i), i, float64(10+i))))
	}

	require.NoError(t, store.Replace(ctx, "api", testRecord(seqHash(1), 9, 42)))
	records, err := store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"c000", "c001", "c002"}, hashes(records))
	assert.Equal(t, 42.0, records[1].Benches[0].Value)

	err = store.Replace(ctx, "api", testRecord("missing", 0, 1))
	assert.ErrorIs(t, err, schema.ErrCommitNotFound)
}

func TestFileHistoryStore_Prune(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t, "data.json")
	for i := range 5 {
		require.NoError(t, store.Append(ctx, "api", testRecord(seqHash(i), i, 10)))
	}

	n, err := store.Prune(ctx, "api", schema.RetentionPolicy{Version: 1, MaxRuns: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	records, err := store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"c002", "c003", "c004"}, hashes(records))

	n, err = store.Prune(ctx, "api", schema.RetentionPolicy{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestFileHistoryStore_JSPrefix(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t, "data.js")
	require.NoError(t, store.Append(ctx, "api", testRecord("c1", 0, 10)))

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(data), jsPrefix))

	require.NoError(t, store.Append(ctx, "api", testRecord("c2", 1, 11)))
	records, err := store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, hashes(records))
}

func TestFileHistoryStore_CorruptDocumentIsNeverOverwritten(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t, "data.json")
	garbage := []byte(`{"entries": {"api": [`)
	require.NoError(t, os.WriteFile(store.Path(), garbage, 0o644))

	_, err := store.Load(ctx, "api")
	require.ErrorIs(t, err, schema.ErrCorruptStore)
	assert.True(t, schema.IsStoreIOError(err))

	err = store.Append(ctx, "api", testRecord("c1", 0, 10))
	require.ErrorIs(t, err, schema.ErrCorruptStore)

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Equal(t, garbage, data)
}

func TestFileHistoryStore_MalformedEntriesSurviveRewrite(t *testing.T) {
	ctx := context.Background()
	store := newFileStore(t, "data.json")
	good, err := json.Marshal(testRecord("c1", 0, 10))
	require.NoError(t, err)
	doc := `{"lastUpdate": 1, "repoUrl": "", "entries": {"api": [` + string(good) + `, {"commit": 5, "benches": "oops"}]}}`
	require.NoError(t, os.WriteFile(store.Path(), []byte(doc), 0o644))

	require.NoError(t, store.Append(ctx, "api", testRecord("c2", 1, 11)))

	records, err := store.Load(ctx, "api")
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.NoError(t, records[0].Validate())
	assert.Error(t, records[1].DecodeError())
	assert.Equal(t, "c2", records[2].Hash())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"benches": "oops"`)
}

func TestFileHistoryStore_Locking(t *testing.T) {
	ctx := context.Background()

	t.Run("held lock is a write conflict", func(t *testing.T) {
		store := newFileStore(t, "data.json")
		require.NoError(t, os.WriteFile(store.Path()+".lock", []byte("1 now\n"), 0o644))

		err := store.Append(ctx, "api", testRecord("c1", 0, 10))
		require.ErrorIs(t, err, schema.ErrConcurrentWrite)
		_, statErr := os.Stat(store.Path() + ".lock")
		assert.NoError(t, statErr, "a foreign lock must not be removed")
	})

	t.Run("stale lock is reclaimed", func(t *testing.T) {
		store := newFileStore(t, "data.json")
		lockPath := store.Path() + ".lock"
		require.NoError(t, os.WriteFile(lockPath, []byte("1 long ago\n"), 0o644))
		old := time.Now().Add(-time.Hour)
		require.NoError(t, os.Chtimes(lockPath, old, old))

		require.NoError(t, store.Append(ctx, "api", testRecord("c1", 0, 10)))
		_, statErr := os.Stat(lockPath)
		assert.True(t, os.IsNotExist(statErr), "lock must be released after the write")
	})
}

func TestFileHistoryStore_TimedOutAppendLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	inner := newFileStore(t, "data.json")
	calls := 0
	inner.now = func() time.Time {
		calls++
		if calls == 2 { // stamping the document, with the lock held
			time.Sleep(200 * time.Millisecond)
		}
		return time.Now()
	}
	store := withResilience(inner, 50*time.Millisecond, contract.DefaultRetryAttempts, nil)

	err := store.Append(ctx, "api", testRecord("c1", 0, 10))
	require.ErrorIs(t, err, schema.ErrStoreTimeout)
	assert.NoFileExists(t, inner.Path()+".lock")
	assert.NoFileExists(t, inner.Path())
	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(inner.Path()), ".data.json.tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	// The next run is not blocked by the failed one.
	require.NoError(t, store.Append(ctx, "api", testRecord("c2", 1, 10)))
	records, err := inner.Load(ctx, "api")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "c2", records[0].Hash())
}

func TestFileHistoryStore_ConcurrentWriters(t *testing.T) {
	tests := []struct {
		name      string
		writers   int
		perWriter int
		attempts  int
	}{
		{"two CI runs with default retries", 2, 1, contract.DefaultRetryAttempts},
		{"three writers with default retries", 3, 2, contract.DefaultRetryAttempts},
		{"heavy contention", 4, 5, 100},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			path := filepath.Join(t.TempDir(), "data.json")

			var wg sync.WaitGroup
			errs := make(chan error, tt.writers*tt.perWriter)
			for w := range tt.writers {
				inner, err := NewFileHistoryStore(path, "", DefaultStaleLockAfter, nil)
				require.NoError(t, err)
				store := withResilience(inner, contract.DefaultIOTimeout, tt.attempts, nil)
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := range tt.perWriter {
						errs <- store.Append(ctx, "api", testRecord(seqHash(w*tt.perWriter+i), i, 10))
					}
				}()
			}
			wg.Wait()
			close(errs)
			for err := range errs {
				require.NoError(t, err)
			}

			reader, err := NewFileHistoryStore(path, "", DefaultStaleLockAfter, nil)
			require.NoError(t, err)
			records, err := reader.Load(ctx, "api")
			require.NoError(t, err)
			assert.Len(t, records, tt.writers*tt.perWriter)

			seen := map[string]bool{}
			for _, r := range records {
				assert.False(t, seen[r.Hash()], "duplicate %s", r.Hash())
				seen[r.Hash()] = true
			}
		})
	}
}

func TestNewFileHistoryStore_Errors(t *testing.T) {
	_, err := NewFileHistoryStore("", "", 0, nil)
	assert.Error(t, err)

	_, err = NewFileHistoryStore(filepath.Join(t.TempDir(), "missing", "data.json"), "", 0, nil)
	assert.Error(t, err)
}
