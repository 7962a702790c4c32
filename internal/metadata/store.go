package metadata

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	_ "modernc.org/sqlite"

	"clipshelf/internal/config"
	"clipshelf/internal/services"
)

// ErrDuplicateUUID reports an insert whose uuid is already catalogued.
var ErrDuplicateUUID = errors.New("clip uuid already exists")

// Store manages clip metadata backed by SQLite or PostgreSQL.
type Store struct {
	db      *sql.DB
	dialect dialect
	target  string
}

type dialect struct {
	name             string
	driver           string
	schema           string
	tableExistsQuery string
	positional       bool
}

var (
	sqliteDialect = dialect{
		name:             config.DriverSQLite,
		driver:           "sqlite",
		schema:           sqliteSchemaSQL,
		tableExistsQuery: "SELECT COUNT(1) FROM sqlite_master WHERE type = 'table' AND name = ?",
	}
	postgresDialect = dialect{
		name:             config.DriverPostgres,
		driver:           "postgres",
		schema:           postgresSchemaSQL,
		tableExistsQuery: "SELECT COUNT(1) FROM information_schema.tables WHERE table_schema = current_schema() AND table_name = $1",
		positional:       true,
	}
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *Store) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, s.rebind(query), args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// queryRowWithRetry runs a single-row statement, typically one with a
// RETURNING clause, and scans it with fn under the busy retry policy.
func (s *Store) queryRowWithRetry(ctx context.Context, fn func(*sql.Row) error, query string, args ...any) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		return fn(s.db.QueryRowContext(ctx, s.rebind(query), args...))
	})
}

// rebind converts '?' placeholders to '$n' for PostgreSQL.
func (s *Store) rebind(query string) string {
	if !s.dialect.positional || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Open connects to the configured metadata database and prepares its schema.
func Open(cfg *config.Config) (*Store, error) {
	if cfg == nil {
		return nil, errors.New("metadata: config is nil")
	}
	switch cfg.Metadata.Driver {
	case config.DriverPostgres:
		return OpenPostgres(cfg.Metadata.DSN, cfg.Metadata.MaxOpenConns)
	case config.DriverSQLite, "":
		if err := cfg.EnsureDirectories(); err != nil {
			return nil, fmt.Errorf("ensure directories: %w", err)
		}
		return OpenSQLite(cfg.Metadata.DSN, cfg.Metadata.MaxOpenConns)
	default:
		return nil, fmt.Errorf("metadata: unsupported driver %q", cfg.Metadata.Driver)
	}
}

// OpenSQLite opens or creates a SQLite database at path.
func OpenSQLite(path string, maxOpenConns int) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("metadata: sqlite path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, services.Wrap(services.ErrStoreUnavailable, "metadata", "open", "create database directory", err)
	}
	// pragmas ride on the DSN so every pooled connection gets them
	pragmas := []string{
		"journal_mode(WAL)",
		"foreign_keys(1)",
		"busy_timeout(5000)",
	}
	query := make([]string, 0, len(pragmas))
	for _, pragma := range pragmas {
		query = append(query, "_pragma="+pragma)
	}
	dsn := "file:" + path + "?" + strings.Join(query, "&")

	db, err := sql.Open(sqliteDialect.driver, dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrStoreUnavailable, "metadata", "open", "open sqlite db", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
	}

	return finishOpen(db, sqliteDialect, filepath.Clean(path))
}

// OpenPostgres connects to a PostgreSQL server using a lib/pq DSN.
func OpenPostgres(dsn string, maxOpenConns int) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("metadata: postgres dsn is empty")
	}
	db, err := sql.Open(postgresDialect.driver, dsn)
	if err != nil {
		return nil, services.Wrap(services.ErrStoreUnavailable, "metadata", "open", "open postgres db", err)
	}
	if maxOpenConns > 0 {
		db.SetMaxOpenConns(maxOpenConns)
		db.SetMaxIdleConns(maxOpenConns)
	}
	return finishOpen(db, postgresDialect, redactDSN(dsn))
}

func finishOpen(db *sql.DB, d dialect, target string) (*Store, error) {
	store := &Store{db: db, dialect: d, target: target}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, services.Wrap(services.ErrStoreUnavailable, "metadata", "open", "ping "+d.name, err)
	}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// redactDSN strips credentials from a postgres URL for display.
func redactDSN(dsn string) string {
	if at := strings.LastIndex(dsn, "@"); at >= 0 {
		if scheme := strings.Index(dsn, "://"); scheme >= 0 && scheme < at {
			return dsn[:scheme+3] + "***" + dsn[at:]
		}
	}
	return dsn
}

// Driver names the database dialect in use.
func (s *Store) Driver() string {
	return s.dialect.name
}

// Target describes the database location with credentials removed.
func (s *Store) Target() string {
	return s.target
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ensureContext(ctx)); err != nil {
		return services.Wrap(services.ErrStoreUnavailable, "metadata", "ping", "database unreachable", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
