package iostore

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/huangsam/benchtrail/schema"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// historyTable is the name of the table holding benchmark records.
const historyTable = "benchmark_history"

var tableNameRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// validateTableName rejects names that would need escaping.
func validateTableName(name string) error {
	if !tableNameRe.MatchString(name) {
		return fmt.Errorf("invalid table name %q", name)
	}
	return nil
}

// quoteTableName quotes a validated identifier for the backend.
func quoteTableName(name string, backend schema.StoreBackend) string {
	if backend == schema.MySQLBackend {
		return "`" + name + "`"
	}
	return `"` + name + `"`
}

// driverFor returns the database/sql driver name of a SQL backend.
func driverFor(backend schema.StoreBackend) (string, error) {
	switch backend {
	case schema.SQLiteBackend:
		return "sqlite", nil
	case schema.MySQLBackend:
		return "mysql", nil
	case schema.PostgreSQLBackend:
		return "pgx", nil
	default:
		return "", fmt.Errorf("unsupported SQL backend: %s", backend)
	}
}

// rebind rewrites '?' placeholders into '$n' for PostgreSQL.
func rebind(query string, backend schema.StoreBackend) string {
	if backend != schema.PostgreSQLBackend {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// getCreateTableQuery returns the CREATE TABLE query for the given backend.
// It mirrors migration 000001 so a fresh database works without `history migrate`.
func getCreateTableQuery(tableName string, backend schema.StoreBackend) string {
	quoted := quoteTableName(tableName, backend)
	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				suite VARCHAR(191) NOT NULL,
				seq BIGINT NOT NULL,
				commit_hash VARCHAR(191) NOT NULL,
				run_date BIGINT NOT NULL,
				tool VARCHAR(64) NOT NULL,
				payload LONGTEXT NOT NULL,
				PRIMARY KEY (suite, seq),
				UNIQUE KEY uq_history_commit (suite, commit_hash)
			);
		`, quoted)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				suite TEXT NOT NULL,
				seq BIGINT NOT NULL,
				commit_hash TEXT NOT NULL,
				run_date BIGINT NOT NULL,
				tool TEXT NOT NULL,
				payload TEXT NOT NULL,
				PRIMARY KEY (suite, seq),
				CONSTRAINT uq_history_commit UNIQUE (suite, commit_hash)
			);
		`, quoted)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				suite TEXT NOT NULL,
				seq INTEGER NOT NULL,
				commit_hash TEXT NOT NULL,
				run_date INTEGER NOT NULL,
				tool TEXT NOT NULL,
				payload TEXT NOT NULL,
				PRIMARY KEY (suite, seq),
				UNIQUE (suite, commit_hash)
			);
		`, quoted)
	}
}

// isUniqueViolation reports whether err is a primary or unique key collision.
func isUniqueViolation(err error) bool {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1062
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isBusy reports whether another connection holds a conflicting lock.
func isBusy(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code() & 0xff
		return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
	}
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return myErr.Number == 1213 || myErr.Number == 1205 // deadlock, lock wait timeout
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "40001" || pgErr.Code == "40P01"
	}
	return false
}

// describeLocation renders where the store lives without leaking credentials.
func describeLocation(backend schema.StoreBackend, connStr string) string {
	switch backend {
	case schema.MySQLBackend:
		cfg, err := mysql.ParseDSN(connStr)
		if err != nil {
			return "mysql"
		}
		return cfg.Addr + "/" + cfg.DBName
	case schema.PostgreSQLBackend:
		cfg, err := pgx.ParseConfig(connStr)
		if err != nil {
			return "postgresql"
		}
		return fmt.Sprintf("%s:%d/%s", cfg.Host, cfg.Port, cfg.Database)
	default:
		return connStr
	}
}
