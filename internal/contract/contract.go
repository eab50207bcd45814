// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/benchtrail/schema"
)

// GitClient defines the Git operations needed to identify the commit under test.
// This allows the reporting logic to be tested without needing a real git executable.
type GitClient interface {
	// Run executes a git command and returns its output.
	Run(ctx context.Context, repoPath string, args ...string) ([]byte, error)

	// GetRepoHash returns the current HEAD commit hash of the repository.
	GetRepoHash(ctx context.Context, repoPath string) (string, error)

	// GetCommitIdentity returns author, committer, timestamp and subject of a reference.
	GetCommitIdentity(ctx context.Context, repoPath string, ref string) (schema.CommitIdentity, error)
}

// HistoryStore is the append-only, ordered collection of records per suite.
type HistoryStore interface {
	// Load returns the suite's records in append order. Unknown suites yield an empty slice.
	Load(ctx context.Context, suite string) ([]schema.Record, error)

	// Append validates the record and places it at the tail of the suite.
	Append(ctx context.Context, suite string, rec schema.Record) error

	// Replace overwrites the record of an already stored commit in place.
	Replace(ctx context.Context, suite string, rec schema.Record) error

	// Prune applies the retention policy destructively and returns the new length.
	Prune(ctx context.Context, suite string, policy schema.RetentionPolicy) (int, error)

	// Suites returns the stored suite names in sorted order.
	Suites(ctx context.Context) ([]string, error)

	// GetStatus returns status information about the store.
	GetStatus(ctx context.Context) (schema.HistoryStatus, error)

	// Close releases the underlying resources.
	Close() error
}

// StoreManager hands out the configured history store.
// This allows the persistence layer to be mocked for testing.
type StoreManager interface {
	GetHistoryStore() HistoryStore
}

// RunParser turns raw benchmark output into named sample sets.
type RunParser interface {
	Parse(raw []byte) ([]schema.RawBenchmark, error)
}

// ResultWriter renders command results in the configured output format.
type ResultWriter interface {
	WriteReport(report schema.Report, cfg *Config, duration time.Duration) error
	WriteHistory(suite string, records []schema.Record, cfg *Config) error
	WriteStatus(status schema.HistoryStatus, cfg *Config) error
	WriteMetricsFile(path string, report schema.Report) error
}
