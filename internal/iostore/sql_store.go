package iostore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql" // MySQL driver
	"github.com/huangsam/benchtrail/internal/contract"
	"github.com/huangsam/benchtrail/schema"
	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite" // SQLite driver
)

// SQLHistoryStore keeps records in one table keyed by (suite, seq).
type SQLHistoryStore struct {
	db        *sql.DB
	tableName string
	backend   schema.StoreBackend
	location  string
	log       logrus.FieldLogger
	now       func() time.Time
}

var _ contract.HistoryStore = &SQLHistoryStore{} // Compile-time check

// NewSQLHistoryStore opens the database, verifies the connection and creates the table.
func NewSQLHistoryStore(ctx context.Context, backend schema.StoreBackend, connStr string, log logrus.FieldLogger) (*SQLHistoryStore, error) {
	if err := validateTableName(historyTable); err != nil {
		return nil, err
	}
	driverName, err := driverFor(backend)
	if err != nil {
		return nil, err
	}

	if backend == schema.SQLiteBackend && connStr == "" {
		connStr = contract.GetHistoryDBFilePath()
	}
	db, err := sql.Open(driverName, connStr)
	if err != nil {
		switch backend {
		case schema.MySQLBackend:
			return nil, fmt.Errorf("failed to open MySQL history: %w. Check connection format: user:password@tcp(host:port)/dbname", err)
		case schema.PostgreSQLBackend:
			return nil, fmt.Errorf("failed to open PostgreSQL history: %w. Check connection format: host=localhost port=5432 user=postgres dbname=mydb", err)
		default:
			return nil, fmt.Errorf("failed to open SQLite history at %q: %w. Ensure the directory is writable", connStr, err)
		}
	}
	if backend == schema.SQLiteBackend {
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to %s database. Check that the server is running and connection parameters are valid: %w", backend, err)
	}
	if backend == schema.SQLiteBackend {
		if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout = 5000"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to configure SQLite busy timeout: %w", err)
		}
	}
	if _, err := db.ExecContext(ctx, getCreateTableQuery(historyTable, backend)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create table %s: %w", historyTable, err)
	}

	if log == nil {
		log = contract.DiscardLogger()
	}
	return &SQLHistoryStore{
		db:        db,
		tableName: historyTable,
		backend:   backend,
		location:  describeLocation(backend, connStr),
		log:       log.WithFields(logrus.Fields{"component": "store", "backend": backend}),
		now:       time.Now,
	}, nil
}

func (s *SQLHistoryStore) q(format string) string {
	return rebind(fmt.Sprintf(format, quoteTableName(s.tableName, s.backend)), s.backend)
}

// Load implements the HistoryStore interface.
func (s *SQLHistoryStore) Load(ctx context.Context, suite string) ([]schema.Record, error) {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return nil, err
	}
	rows, err := s.loadRows(ctx, s.db, suite)
	if err != nil {
		return nil, &schema.StoreIOError{Op: "load", Suite: suite, Err: err}
	}
	records := make([]schema.Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record)
	}
	return records, nil
}

// Append implements the HistoryStore interface.
func (s *SQLHistoryStore) Append(ctx context.Context, suite string, rec schema.Record) error {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return &schema.ValidationError{Field: "record", Err: err}
	}

	return s.inTx(ctx, "append", suite, func(tx *sql.Tx) error {
		var existing int
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM %s WHERE suite = ? AND commit_hash = ?`), suite, rec.Hash()).Scan(&existing); err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("%w: %s", schema.ErrDuplicateCommit, rec.Hash())
		}

		var maxSeq int64
		if err := tx.QueryRowContext(ctx, s.q(`SELECT COALESCE(MAX(seq), 0) FROM %s WHERE suite = ?`), suite).Scan(&maxSeq); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx,
			s.q(`INSERT INTO %s (suite, seq, commit_hash, run_date, tool, payload) VALUES (?, ?, ?, ?, ?, ?)`),
			suite, maxSeq+1, rec.Hash(), rec.Date, string(rec.Tool), string(payload))
		return err
	})
}

// Replace implements the HistoryStore interface.
func (s *SQLHistoryStore) Replace(ctx context.Context, suite string, rec schema.Record) error {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return err
	}
	if err := rec.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return &schema.ValidationError{Field: "record", Err: err}
	}

	return s.inTx(ctx, "replace", suite, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			s.q(`UPDATE %s SET run_date = ?, tool = ?, payload = ? WHERE suite = ? AND commit_hash = ?`),
			rec.Date, string(rec.Tool), string(payload), suite, rec.Hash())
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			// MySQL reports 0 affected rows when the new values equal the old ones.
			var existing int
			if err := tx.QueryRowContext(ctx, s.q(`SELECT COUNT(*) FROM %s WHERE suite = ? AND commit_hash = ?`), suite, rec.Hash()).Scan(&existing); err != nil {
				return err
			}
			if existing == 0 {
				return fmt.Errorf("%w: %s", schema.ErrCommitNotFound, rec.Hash())
			}
		}
		return nil
	})
}

// Prune implements the HistoryStore interface.
func (s *SQLHistoryStore) Prune(ctx context.Context, suite string, policy schema.RetentionPolicy) (int, error) {
	if err := contract.ValidateSuiteName(suite); err != nil {
		return 0, err
	}
	kept := 0
	err := s.inTx(ctx, "prune", suite, func(tx *sql.Tx) error {
		rows, err := s.loadRows(ctx, tx, suite)
		if err != nil {
			return err
		}
		records := make([]schema.Record, len(rows))
		for i, row := range rows {
			records[i] = row.record
		}
		mask := policy.Keep(records, s.now())
		kept = 0
		for i, keep := range mask {
			if keep {
				kept++
				continue
			}
			if _, err := tx.ExecContext(ctx, s.q(`DELETE FROM %s WHERE suite = ? AND seq = ?`), suite, rows[i].seq); err != nil {
				return err
			}
		}
		return nil
	})
	return kept, err
}

// Suites implements the HistoryStore interface.
func (s *SQLHistoryStore) Suites(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, s.q(`SELECT DISTINCT suite FROM %s ORDER BY suite`))
	if err != nil {
		return nil, &schema.StoreIOError{Op: "list suites", Err: err}
	}
	defer func() { _ = rows.Close() }()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &schema.StoreIOError{Op: "list suites", Err: err}
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, &schema.StoreIOError{Op: "list suites", Err: err}
	}
	return names, nil
}

// GetStatus implements the HistoryStore interface.
func (s *SQLHistoryStore) GetStatus(ctx context.Context) (schema.HistoryStatus, error) {
	status := schema.HistoryStatus{
		Backend:   string(s.backend),
		Location:  s.location,
		Connected: s.db != nil,
	}
	if s.db == nil {
		return status, nil
	}
	names, err := s.Suites(ctx)
	if err != nil {
		return status, err
	}
	for _, name := range names {
		records, err := s.Load(ctx, name)
		if err != nil {
			return status, err
		}
		status.Suites = append(status.Suites, summarizeSuite(name, records))
	}
	return status, nil
}

// Close closes the underlying DB connection.
func (s *SQLHistoryStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

type storedRow struct {
	seq    int64
	record schema.Record
}

// loadRows reads a suite in append order. Payloads that are not JSON become malformed records.
func (s *SQLHistoryStore) loadRows(ctx context.Context, db queryer, suite string) ([]storedRow, error) {
	rows, err := db.QueryContext(ctx, s.q(`SELECT seq, payload FROM %s WHERE suite = ? ORDER BY seq`), suite)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	out := []storedRow{}
	for rows.Next() {
		var row storedRow
		var payload string
		if err := rows.Scan(&row.seq, &payload); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(payload), &row.record); err != nil {
			row.record = schema.MalformedRecord([]byte(payload), err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// inTx runs fn in a transaction. Key collisions and lock contention become ErrConcurrentWrite.
func (s *SQLHistoryStore) inTx(ctx context.Context, op, suite string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.wrap(op, suite, err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return s.wrap(op, suite, err)
	}
	if err := tx.Commit(); err != nil {
		return s.wrap(op, suite, err)
	}
	s.log.WithFields(logrus.Fields{"op": op, "suite": suite}).Debug("history written")
	return nil
}

func (s *SQLHistoryStore) wrap(op, suite string, err error) error {
	switch {
	case errors.Is(err, schema.ErrDuplicateCommit), errors.Is(err, schema.ErrCommitNotFound):
		return err
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return err
	case isUniqueViolation(err), isBusy(err):
		return &schema.StoreIOError{Op: op, Suite: suite, Err: fmt.Errorf("%w: %v", schema.ErrConcurrentWrite, err)}
	default:
		return &schema.StoreIOError{Op: op, Suite: suite, Err: err}
	}
}
