// Package sqlstore persists the ledger key space in a single SQL table. It
// speaks to PostgreSQL through lib/pq and to SQLite through modernc.org/sqlite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"ecoprado/internal/storage"
	txcontext "ecoprado/pkg/platform/tx"
	"ecoprado/pkg/platform/sentinel"
)

// Dialect selects placeholder syntax, column types and isolation.
type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

func (d Dialect) schema() string {
	valueType := "BYTEA"
	if d == SQLite {
		valueType = "BLOB"
	}
	return `CREATE TABLE IF NOT EXISTS ledger_entries (
	namespace TEXT NOT NULL,
	key TEXT NOT NULL,
	value ` + valueType + ` NOT NULL,
	PRIMARY KEY (namespace, key)
)`
}

// txOptions: Postgres runs SERIALIZABLE so counter read-increment-write
// sequences cannot interleave. SQLite serializes writers on its own.
func (d Dialect) txOptions() *sql.TxOptions {
	if d == Postgres {
		return &sql.TxOptions{Isolation: sql.LevelSerializable}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for Postgres.
func (d Dialect) rebind(query string) string {
	if d != Postgres {
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

const (
	getQuery    = `SELECT value FROM ledger_entries WHERE namespace = ? AND key = ?`
	hasQuery    = `SELECT 1 FROM ledger_entries WHERE namespace = ? AND key = ?`
	upsertQuery = `INSERT INTO ledger_entries (namespace, key, value) VALUES (?, ?, ?)
		ON CONFLICT (namespace, key) DO UPDATE SET value = EXCLUDED.value`
)

// Store is a SQL-backed storage.Store and storage.Tx.
type Store struct {
	db      *sql.DB
	dialect Dialect
	timeout time.Duration
	tx      *sql.Tx // set on the store handed to RunInTx callbacks
}

// Option configures a Store.
type Option func(*Store)

// WithTxTimeout overrides storage.DefaultTxTimeout.
func WithTxTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.timeout = d
	}
}

// New wraps an open database. Call Migrate before first use.
func New(db *sql.DB, dialect Dialect, opts ...Option) *Store {
	s := &Store{db: db, dialect: dialect}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// OpenPostgres connects through lib/pq and applies the schema.
func OpenPostgres(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("postgres dsn is required")
	}
	connector, err := pq.NewConnector(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	db := sql.OpenDB(connector)
	return open(ctx, db, Postgres, opts...)
}

// OpenSQLite opens a SQLite database file (or ":memory:") and applies the schema.
// A single connection keeps in-memory databases shared and writers serialized.
func OpenSQLite(ctx context.Context, path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_txlock=immediate"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	return open(ctx, db, SQLite, opts...)
}

func open(ctx context.Context, db *sql.DB, dialect Dialect, opts ...Option) (*Store, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s db: %w", dialect, err)
	}
	s := New(db, dialect, opts...)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Migrate creates the ledger_entries table if missing.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.dialect.schema()); err != nil {
		return fmt.Errorf("migrate %s: %w", s.dialect, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

func (s *Store) querier(ctx context.Context) txcontext.Querier {
	if s.tx != nil {
		return s.tx
	}
	return txcontext.QuerierFrom(ctx, s.db)
}

func (s *Store) Get(ctx context.Context, ns storage.Namespace, key string) ([]byte, error) {
	var value []byte
	err := s.querier(ctx).QueryRowContext(ctx, s.dialect.rebind(getQuery), string(ns), key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, s.translate(fmt.Errorf("get %s/%s: %w", ns, key, err))
	}
	return value, nil
}

func (s *Store) Set(ctx context.Context, ns storage.Namespace, key string, value []byte) error {
	if _, err := s.querier(ctx).ExecContext(ctx, s.dialect.rebind(upsertQuery), string(ns), key, value); err != nil {
		return s.translate(fmt.Errorf("set %s/%s: %w", ns, key, err))
	}
	return nil
}

func (s *Store) Has(ctx context.Context, ns storage.Namespace, key string) (bool, error) {
	var one int
	err := s.querier(ctx).QueryRowContext(ctx, s.dialect.rebind(hasQuery), string(ns), key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.translate(fmt.Errorf("has %s/%s: %w", ns, key, err))
	}
	return true, nil
}

// RunInTx opens a database transaction, or joins one already carried on ctx
// (see pkg/platform/tx), and commits only when fn succeeds.
func (s *Store) RunInTx(ctx context.Context, fn func(store storage.Store) error) error {
	if tx, ok := txcontext.From(ctx); ok {
		return fn(&Store{db: s.db, dialect: s.dialect, tx: tx})
	}

	ctx, cancel, err := storage.BeginContext(ctx, s.timeout)
	if err != nil {
		return err
	}
	defer cancel()

	tx, err := s.db.BeginTx(ctx, s.dialect.txOptions())
	if err != nil {
		return s.translate(fmt.Errorf("begin tx: %w", err))
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(&Store{db: s.db, dialect: s.dialect, tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return s.translate(fmt.Errorf("commit tx: %w", err))
	}
	return nil
}

// translate maps serialization failures and lock contention to ErrConflict.
func (s *Store) translate(err error) error {
	if isConflict(err) {
		return fmt.Errorf("%w: %w", sentinel.ErrConflict, err)
	}
	return err
}

func isConflict(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
	}
	return false
}

var (
	_ storage.Store = (*Store)(nil)
	_ storage.Tx    = (*Store)(nil)
)
