package iostore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	"github.com/sirupsen/logrus"
)

// Global Manager instance for main logic.
var (
	Manager   = &HistoryStoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// Options selects and tunes a history backend.
type Options struct {
	Backend        schema.StoreBackend
	ConnStr        string // SQL backends
	FilePath       string // file backend
	RepoURL        string
	IOTimeout      time.Duration
	RetryAttempts  int
	StaleLockAfter time.Duration
	Logger         logrus.FieldLogger
}

// OptionsFromConfig derives store options from the validated configuration.
func OptionsFromConfig(cfg *contract.Config, log logrus.FieldLogger) Options {
	return Options{
		Backend:        cfg.HistoryBackend,
		ConnStr:        cfg.HistoryDBConnect,
		FilePath:       cfg.HistoryFile,
		RepoURL:        cfg.RepoURL,
		IOTimeout:      cfg.IOTimeout,
		RetryAttempts:  cfg.RetryAttempts,
		StaleLockAfter: DefaultStaleLockAfter,
		Logger:         log,
	}
}

// NewHistoryStore opens the backend named by opts and wraps it with the
// I/O deadline and conflict retry policy.
func NewHistoryStore(ctx context.Context, opts Options) (contract.HistoryStore, error) {
	var (
		inner contract.HistoryStore
		err   error
	)
	switch opts.Backend {
	case schema.FileBackend, "":
		inner, err = NewFileHistoryStore(opts.FilePath, opts.RepoURL, opts.StaleLockAfter, opts.Logger)
	case schema.SQLiteBackend, schema.MySQLBackend, schema.PostgreSQLBackend:
		openCtx := ctx
		if opts.IOTimeout > 0 {
			var cancel context.CancelFunc
			openCtx, cancel = context.WithTimeout(ctx, opts.IOTimeout)
			defer cancel()
		}
		inner, err = NewSQLHistoryStore(openCtx, opts.Backend, opts.ConnStr, opts.Logger)
	case schema.NoneBackend:
		inner = NewMemoryHistoryStore()
	default:
		return nil, fmt.Errorf("unsupported history backend: %s. Must be file, sqlite, mysql, postgresql, or none", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return withResilience(inner, opts.IOTimeout, opts.RetryAttempts, opts.Logger), nil
}

// InitStore initializes the global manager with the configured history store.
func InitStore(ctx context.Context, opts Options) error {
	var initErr error
	initOnce.Do(func() {
		store, err := NewHistoryStore(ctx, opts)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize history store: %w", err)
			return
		}
		Manager.Lock()
		Manager.history = store
		Manager.Unlock()
	})
	return initErr
}

// CloseStore should be called on application shutdown.
func CloseStore() {
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.history != nil {
			_ = Manager.history.Close()
		}
	})
}

// ClearHistory removes all stored history of a backend.
// For the file backend and SQLite, it deletes the file.
// For MySQL/PostgreSQL, it drops the table.
func ClearHistory(backend schema.StoreBackend, path, connStr string) error {
	switch backend {
	case schema.FileBackend, schema.SQLiteBackend:
		target := path
		if backend == schema.SQLiteBackend {
			target = connStr
			if target == "" {
				target = contract.GetHistoryDBFilePath()
			}
		}
		if target == "" {
			return errors.New("history path cannot be empty")
		}
		if err := os.Remove(target); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to remove history file %s: %w", target, err)
		}
		return nil
	case schema.MySQLBackend, schema.PostgreSQLBackend:
		return clearSQLTable(backend, connStr, historyTable)
	case schema.NoneBackend:
		return nil
	default:
		return fmt.Errorf("unsupported history backend for clearing: %s", backend)
	}
}

// clearSQLTable connects to the SQL database and drops the table if it exists.
func clearSQLTable(backend schema.StoreBackend, connStr, tableName string) error {
	driverName, err := driverFor(backend)
	if err != nil {
		return err
	}
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s database: %w", backend, err)
	}
	defer func() { _ = db.Close() }()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping %s database: %w", backend, err)
	}
	query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(tableName, backend))
	if _, err := db.Exec(query); err != nil {
		return fmt.Errorf("failed to drop table %s: %w", tableName, err)
	}
	return nil
}
