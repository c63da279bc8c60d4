package observe

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	_ "modernc.org/sqlite"

	"github.com/xfhg/intercept/pkg/config"
)

// SQLiteConfig configures SQLiteState.
type SQLiteConfig struct {
	// Driver is "sqlite" (modernc, pure Go) or "sqlite3" (mattn, cgo).
	// Default: "sqlite"
	Driver string

	// Path is the database file.
	Path string

	// BusyTimeout is how long a locked database is retried.
	// Default: 5s
	BusyTimeout time.Duration
}

// SQLiteState persists observe state in a SQLite database so that
// deduplication survives restarts.
type SQLiteState struct {
	db     *sql.DB
	cfg    SQLiteConfig
	logger *slog.Logger
}

// NewSQLiteState opens or creates the state database at cfg.Path.
func NewSQLiteState(cfg SQLiteConfig, logger *slog.Logger) (*SQLiteState, error) {
	if cfg.Driver == "" {
		cfg.Driver = config.StateSQLite
	}
	if cfg.Path == "" {
		cfg.Path = config.DefaultStatePath
	}
	if cfg.BusyTimeout <= 0 {
		cfg.BusyTimeout = config.DefaultStateBusyTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "observe.state", "driver", cfg.Driver)

	db, err := sql.Open(cfg.Driver, cfg.Path)
	if err != nil {
		return nil, &StateError{Backend: cfg.Driver, Op: "open", Err: err}
	}
	// SQLite only supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	s := &SQLiteState{db: db, cfg: cfg, logger: logger}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("observe state opened", "path", cfg.Path)
	return s, nil
}

func (s *SQLiteState) initialize() error {
	if _, err := s.db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return s.fail("enable_wal", err)
	}
	if _, err := s.db.Exec(fmt.Sprintf("PRAGMA busy_timeout=%d;", s.cfg.BusyTimeout.Milliseconds())); err != nil {
		return s.fail("set_busy_timeout", err)
	}
	if _, err := s.db.Exec(schema); err != nil {
		return s.fail("create_schema", err)
	}
	if _, err := s.db.Exec(insertSchemaVersion, SchemaVersion); err != nil {
		return s.fail("insert_schema_version", err)
	}

	var version int
	if err := s.db.QueryRow(getSchemaVersion).Scan(&version); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return s.fail("get_schema_version", err)
	}
	if version != SchemaVersion {
		return s.fail("schema_version_mismatch", fmt.Errorf("expected schema version %d, got %d", SchemaVersion, version))
	}
	return nil
}

// Load implements State.
func (s *SQLiteState) Load(ctx context.Context) (map[Key]Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries)
	if err != nil {
		return nil, s.fail("load", err)
	}
	defer rows.Close()

	entries := make(map[Key]Entry)
	for rows.Next() {
		var (
			k           Key
			e           Entry
			first, last int64
		)
		if err := rows.Scan(&k.RuleID, &k.Location, &e.Fingerprint, &first, &last); err != nil {
			return nil, s.fail("scan", err)
		}
		e.FirstSeen = time.Unix(0, first).UTC()
		e.LastSeen = time.Unix(0, last).UTC()
		entries[k] = e
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail("load", err)
	}
	return entries, nil
}

// Save implements State. The previous state is replaced in one transaction.
func (s *SQLiteState) Save(ctx context.Context, entries map[Key]Entry) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.fail("begin", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, deleteEntries); err != nil {
		return s.fail("delete", err)
	}

	stmt, err := tx.PrepareContext(ctx, insertEntry)
	if err != nil {
		return s.fail("prepare", err)
	}
	defer stmt.Close()

	for k, e := range entries {
		if _, err := stmt.ExecContext(ctx, k.RuleID, k.Location, e.Fingerprint, e.FirstSeen.UnixNano(), e.LastSeen.UnixNano()); err != nil {
			return s.fail("insert", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return s.fail("commit", err)
	}
	s.logger.Debug("observe state saved", "entries", len(entries))
	return nil
}

// Close implements State.
func (s *SQLiteState) Close() error {
	return s.db.Close()
}

// Name implements State.
func (s *SQLiteState) Name() string {
	return s.cfg.Driver
}

func (s *SQLiteState) fail(op string, err error) error {
	return &StateError{Backend: s.cfg.Driver, Op: op, Err: err}
}
