// Package sqlite implements the repository interfaces on SQLite via the
// pure-Go modernc.org/sqlite driver (no CGo, cross-compiles cleanly).
//
// One DB owns the connection pool; the per-entity stores (Sits, Users,
// Relationships) share it and each implement one repository interface,
// compile-time checked in the per-entity files.
package sqlite

import (
	"database/sql"
	"fmt"

	// Registers the "sqlite" driver with database/sql.
	_ "modernc.org/sqlite"
)

// DB wraps a sql.DB connection pool and hands out the entity stores.
type DB struct {
	conn *sql.DB

	Sits          *SitStore
	Users         *UserStore
	Relationships *RelationshipStore
}

// New opens (or creates) the database at dbPath and runs migrations.
// Use ":memory:" in tests for an isolated throwaway database.
func New(dbPath string) (*DB, error) {
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening database: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: pinging database: %w", err)
	}

	// WAL allows concurrent reads while a write is in flight — the bulk
	// privacy-flag update must not block journal page reads entirely.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: setting WAL mode: %w", err)
	}

	if _, err := conn.Exec("PRAGMA foreign_keys=ON"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: enabling foreign keys: %w", err)
	}

	db := &DB{
		conn:          conn,
		Sits:          &SitStore{conn: conn},
		Users:         &UserStore{conn: conn},
		Relationships: &RelationshipStore{conn: conn},
	}

	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("sqlite: running migrations: %w", err)
	}

	return db, nil
}

// Close closes the connection pool. Call it on server shutdown so the WAL
// is flushed and the file lock released.
func (db *DB) Close() error {
	return db.conn.Close()
}

// migrate creates the schema. All statements are idempotent, so this is
// safe to run on every start.
func (db *DB) migrate() error {
	_, err := db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			username        TEXT NOT NULL COLLATE NOCASE UNIQUE,
			email           TEXT NOT NULL DEFAULT '',
			password_hash   TEXT NOT NULL DEFAULT '',
			github_id       INTEGER NOT NULL DEFAULT 0,
			first_name      TEXT NOT NULL DEFAULT '',
			last_name       TEXT NOT NULL DEFAULT '',
			city            TEXT NOT NULL DEFAULT '',
			country         TEXT NOT NULL DEFAULT '',
			privacy_setting TEXT NOT NULL DEFAULT 'public',
			created_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at      DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE UNIQUE INDEX IF NOT EXISTS idx_users_github_id
			ON users(github_id) WHERE github_id != 0;
	`)
	if err != nil {
		return fmt.Errorf("creating users table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS sits (
			id         TEXT PRIMARY KEY,
			user_id    TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			s_type     INTEGER NOT NULL DEFAULT 0,
			duration   INTEGER NOT NULL DEFAULT 0,
			title      TEXT NOT NULL DEFAULT '',
			body       TEXT NOT NULL DEFAULT '',
			private    INTEGER NOT NULL DEFAULT 0,
			views      INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		);
		CREATE INDEX IF NOT EXISTS idx_sits_user_created
			ON sits(user_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_sits_user_private
			ON sits(user_id, private);
	`)
	if err != nil {
		return fmt.Errorf("creating sits table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS relationships (
			follower_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			followed_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			created_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
			PRIMARY KEY (follower_id, followed_id)
		);
		CREATE INDEX IF NOT EXISTS idx_relationships_followed
			ON relationships(followed_id);
	`)
	if err != nil {
		return fmt.Errorf("creating relationships table: %w", err)
	}

	_, err = db.conn.Exec(`
		CREATE TABLE IF NOT EXISTS authorised_users (
			user_id            TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			authorised_user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, authorised_user_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("creating authorised_users table: %w", err)
	}

	return nil
}
