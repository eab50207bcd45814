package iostore

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/huangsam/benchtrail/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSQLiteStore(t *testing.T) *SQLHistoryStore {
	t.Helper()
	store, err := NewSQLHistoryStore(context.Background(), schema.SQLiteBackend, ":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestSQLHistoryStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	records, err := store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Empty(t, records)

	require.NoError(t, store.Append(ctx, "api", testRecord("c1", 5, 10)))
	require.NoError(t, store.Append(ctx, "api", testRecord("c2", 1, 11)))
	require.NoError(t, store.Append(ctx, "db", testRecord("c1", 0, 12)))

	records, err = store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, hashes(records))
	assert.Equal(t, 11.0, records[1].Benches[0].Value)

	err = store.Append(ctx, "api", testRecord("c1", 7, 99))
	assert.ErrorIs(t, err, schema.ErrDuplicateCommit)

	suites, err := store.Suites(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"api", "db"}, suites)
}

func TestSQLHistoryStore_ReplaceAndPrune(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	for i := range 4 {
		require.NoError(t, store.Append(ctx, "api", testRecord(seqHash(i), i, float64(i))))
	}

	require.NoError(t, store.Replace(ctx, "api", testRecord(seqHash(0), 0, 50)))
	assert.ErrorIs(t, store.Replace(ctx, "api", testRecord("missing", 0, 1)), schema.ErrCommitNotFound)

	n, err := store.Prune(ctx, "api", schema.RetentionPolicy{Version: 1, MaxRuns: 2})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	records, err := store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"c002", "c003"}, hashes(records))

	// Sequence numbers keep growing after a prune.
	require.NoError(t, store.Append(ctx, "api", testRecord("c9", 9, 1)))
	records, err = store.Load(ctx, "api")
	require.NoError(t, err)
	assert.Equal(t, []string{"c002", "c003", "c9"}, hashes(records))
}

func TestSQLHistoryStore_MalformedPayload(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	require.NoError(t, store.Append(ctx, "api", testRecord("c1", 0, 10)))
	_, err := store.db.ExecContext(ctx,
		store.q(`INSERT INTO %s (suite, seq, commit_hash, run_date, tool, payload) VALUES (?, ?, ?, ?, ?, ?)`),
		"api", 2, "broken", 1, "go", "{not json")
	require.NoError(t, err)

	records, err := store.Load(ctx, "api")
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Error(t, records[1].DecodeError())

	status, err := store.GetStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", status.Backend)
	require.Len(t, status.Suites, 1)
	assert.Equal(t, 2, status.Suites[0].Records)
	assert.Equal(t, 1, status.Suites[0].Malformed)
}

func TestSQLHistoryStore_UniqueViolationIsDetected(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)
	require.NoError(t, store.Append(ctx, "api", testRecord("c1", 0, 10)))

	_, err := store.db.ExecContext(ctx,
		store.q(`INSERT INTO %s (suite, seq, commit_hash, run_date, tool, payload) VALUES (?, ?, ?, ?, ?, ?)`),
		"api", 1, "other", 1, "go", "{}")
	require.Error(t, err)
	assert.True(t, isUniqueViolation(err))

	wrapped := store.wrap("append", "api", err)
	assert.ErrorIs(t, wrapped, schema.ErrConcurrentWrite)
}

func TestSQLHelpers(t *testing.T) {
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b = $2", rebind("SELECT * FROM t WHERE a = ? AND b = ?", schema.PostgreSQLBackend))
	assert.Equal(t, "a = ?", rebind("a = ?", schema.MySQLBackend))
	assert.Equal(t, "`benchmark_history`", quoteTableName(historyTable, schema.MySQLBackend))
	assert.Equal(t, `"benchmark_history"`, quoteTableName(historyTable, schema.SQLiteBackend))
	assert.Error(t, validateTableName("bad;name"))

	_, err := driverFor(schema.FileBackend)
	assert.Error(t, err)

	assert.Equal(t, "db.example.com:3306/bench", describeLocation(schema.MySQLBackend, "user:secret@tcp(db.example.com:3306)/bench"))
	assert.Equal(t, "localhost:5432/bench", describeLocation(schema.PostgreSQLBackend, "host=localhost port=5432 user=u password=secret dbname=bench"))
}

func TestMigrateHistory_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	var out bytes.Buffer

	require.NoError(t, MigrateHistory(schema.SQLiteBackend, path, -1, &out))
	assert.Contains(t, out.String(), "Successfully migrated")

	out.Reset()
	require.NoError(t, MigrateHistory(schema.SQLiteBackend, path, -1, &out))
	assert.Contains(t, out.String(), "No migration needed")

	store, err := NewSQLHistoryStore(context.Background(), schema.SQLiteBackend, path, nil)
	require.NoError(t, err)
	require.NoError(t, store.Append(context.Background(), "api", testRecord("c1", 0, 10)))
	require.NoError(t, store.Close())

	out.Reset()
	require.NoError(t, MigrateHistory(schema.SQLiteBackend, path, 1, &out))
	assert.Contains(t, out.String(), "to version 1")

	assert.Error(t, MigrateHistory(schema.FileBackend, path, -1, &out))
}
