package metadata

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"satpipe/internal/artifact"
	"satpipe/internal/config"
)

//go:embed schema/*.sql
var schemaFS embed.FS

// schemaVersion is bumped whenever a schema file changes incompatibly.
const schemaVersion = 1

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Options configures a Store independently of the TOML configuration.
type Options struct {
	Driver          string
	DSN             string
	Path            string
	QueryTimeout    time.Duration
	VerifyMultihash bool
	Artifacts       artifact.Store
}

// Store is the metadata store client.
type Store struct {
	db           *sql.DB
	dialect      dialect
	artifacts    artifact.Store
	verify       bool
	queryTimeout time.Duration
	now          func() time.Time
}

// Open connects to the store described by cfg, creating the schema when the
// database is new. The artifact backend is built from cfg.Artifacts.
func Open(ctx context.Context, cfg *config.Config) (*Store, error) {
	artifacts, err := artifact.New(cfg.Artifacts)
	if err != nil {
		return nil, err
	}
	return New(ctx, Options{
		Driver:          cfg.Store.Driver,
		DSN:             cfg.Store.DSN,
		Path:            cfg.Store.Path,
		QueryTimeout:    time.Duration(cfg.Store.QueryTimeout) * time.Second,
		VerifyMultihash: cfg.Store.VerifyMultihash,
		Artifacts:       artifacts,
	})
}

// New connects using explicit options.
func New(ctx context.Context, opts Options) (*Store, error) {
	ctx = ensureContext(ctx)
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.Artifacts == nil {
		return nil, errors.New("metadata store requires an artifact store")
	}

	dsn := opts.DSN
	if d.name == config.DriverSQLite {
		if opts.Path == "" {
			return nil, errors.New("sqlite store requires a database path")
		}
		dsn = sqliteDSN(opts.Path)
	}

	db, err := sql.Open(d.driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", d.name, err)
	}

	store := &Store{
		db:           db,
		dialect:      d,
		artifacts:    opts.Artifacts,
		verify:       opts.VerifyMultihash,
		queryTimeout: opts.QueryTimeout,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// sqliteDSN applies pragmas per connection so every pooled connection waits
// on locks instead of failing immediately.
func sqliteDSN(path string) string {
	pragmas := []string{
		"_pragma=journal_mode(WAL)",
		"_pragma=foreign_keys(1)",
		"_pragma=busy_timeout(5000)",
	}
	return path + "?" + strings.Join(pragmas, "&")
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver names the SQL dialect in use.
func (s *Store) Driver() string { return s.dialect.name }

// Artifacts exposes the artifact backend for diagnostics.
func (s *Store) Artifacts() artifact.Store { return s.artifacts }

// Ping verifies both the database and the artifact backend are reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping %s store: %w", s.dialect.name, err)
	}
	return s.artifacts.Ping(ctx)
}

func (s *Store) initSchema(ctx context.Context) error {
	raw, err := schemaFS.ReadFile(s.dialect.schemaFile)
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}
	for _, stmt := range strings.Split(string(raw), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if err := s.execWithoutResultRetry(ctx, stmt); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version").Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if err := s.execWithoutResultRetry(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	case err != nil:
		return fmt.Errorf("read schema version: %w", err)
	case version != schemaVersion:
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = ensureContext(ctx)
	if s.queryTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.queryTimeout)
}

func (s *Store) retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !s.dialect.busyErr(lastErr) || attempt == busyRetryAttempts-1 {
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
	query = s.dialect.rebind(query)
	var (
		res     sql.Result
		execErr error
	)
	if err := s.retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Store) execWithoutResultRetry(ctx context.Context, query string, args ...any) error {
	_, err := s.execWithRetry(ctx, query, args...)
	return err
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.dialect.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}
