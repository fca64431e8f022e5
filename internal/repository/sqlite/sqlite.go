// Package sqlite implements the repository interfaces using SQLite as the storage backend.
//
// WHY SQLITE?
// SQLite is an embedded database: it lives inside your Go binary as a single file.
// No separate database server to install, configure, or manage. One PromptCraft
// instance serves one database file, which is exactly SQLite's sweet spot.
//
// WHY modernc.org/sqlite INSTEAD OF github.com/mattn/go-sqlite3?
// mattn/go-sqlite3 uses CGo, which means you need a C compiler installed and
// cross-compilation becomes painful. modernc.org/sqlite is a pure Go translation
// of the SQLite C code, so no C compiler is needed.
//
// SCHEMA:
// Tables are created by the versioned migrations in migrations/*.sql, embedded
// into the binary and applied by golang-migrate every time New opens a database.
//
//	users         the credential store (email UNIQUE, password nullable)
//	sessions      server-side login sessions
//	chat_history  one row per chat turn, ordered by (user_id, seq)
package sqlite

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlitemigrate "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB wraps a sql.DB connection pool and provides repository methods.
//
// Users, Sessions and Transcripts return thin views over the same pool, one
// per repository interface, so each interface can keep natural method names
// (Create, GetByID, Delete) without colliding.
type DB struct {
	conn *sql.DB
}

// New creates a new SQLite database connection and runs migrations.
//
// dbPath examples:
//   - "data/promptcraft.db" → file-based database (persistent)
//   - ":memory:"            → in-memory database (tests)
//
// IN-MEMORY AND THE CONNECTION POOL:
// Every new connection to ":memory:" opens a brand-new empty database. The pool
// is therefore pinned to a single connection in that case, otherwise a query on a
// second connection would not see the migrated tables.
//
// PER-CONNECTION PRAGMAS:
// busy_timeout and foreign_keys are connection settings, not database settings.
// A PRAGMA run through conn.Exec reaches only whichever pooled connection served
// it, so both go into the DSN and modernc.org/sqlite applies them to every new
// connection. _txlock=immediate makes write transactions take the write lock at
// BEGIN, where busy_timeout can wait for it, instead of failing on upgrade.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dsn(dbPath))
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}
	if dbPath == ":memory:" {
		conn.SetMaxOpenConns(1)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL lets readers proceed while a write is in flight. Unlike the pragmas
	// above, journal_mode is stored in the database file itself.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	db := &DB{conn: conn}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// busyTimeout is how long a connection waits for another writer's lock.
const busyTimeout = 5 * time.Second

// dsn appends the per-connection settings to dbPath.
func dsn(dbPath string) string {
	q := url.Values{}
	q.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeout.Milliseconds()))
	// Foreign keys are OFF by default in SQLite (for backwards compatibility).
	q.Add("_pragma", "foreign_keys(1)")
	q.Set("_txlock", "immediate")
	return dbPath + "?" + q.Encode()
}

// Close closes the database connection pool.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Ping verifies the database is reachable. Used by the health check.
func (db *DB) Ping() error {
	return db.conn.Ping()
}

// Users returns the UserRepository view of the database.
func (db *DB) Users() *UserDB { return &UserDB{conn: db.conn} }

// Sessions returns the SessionRepository view of the database.
func (db *DB) Sessions() *SessionDB { return &SessionDB{conn: db.conn} }

// Transcripts returns the TranscriptStore view of the database.
func (db *DB) Transcripts() *TranscriptDB { return &TranscriptDB{conn: db.conn} }

// migrate applies every pending migration from migrationsFS.
//
// The migrate instance is not closed: with a driver built by
// WithInstance, m.Close() would close db.conn as well.
func (db *DB) migrate() error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	driver, err := sqlitemigrate.WithInstance(db.conn, &sqlitemigrate.Config{})
	if err != nil {
		return fmt.Errorf("creating migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("creating migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("applying migrations: %w", err)
	}

	return nil
}
