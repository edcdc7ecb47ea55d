// Package db is the SQLite record store behind every workflow.
//
// Records are stored one table per entity. List-valued fields (assignee ids,
// subtasks, tags, metadata) are JSON columns; timestamps are unix
// milliseconds. All reads and writes go through Queries, which runs either
// on the shared connection or inside a transaction opened with DB.Tx.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a conditional write matched no row because
	// the record changed since it was read.
	ErrConflict = errors.New("record changed concurrently")
	// ErrDuplicate wraps UNIQUE constraint violations.
	ErrDuplicate = errors.New("duplicate record")
)

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Queries holds every store operation. It is bound either to the pooled
// connection or to a single transaction.
type Queries struct {
	q querier
}

type DB struct {
	*Queries
	conn *sql.DB
}

// Open creates dataDir if needed and opens coast.db inside it.
func Open(dataDir string) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return OpenPath(filepath.Join(dataDir, "coast.db"))
}

func OpenPath(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=journal_mode(wal)&_pragma=foreign_keys(on)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// SQLite has a single writer; one connection avoids SQLITE_BUSY under load.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connect db: %w", err)
	}
	if err := migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &DB{Queries: &Queries{q: conn}, conn: conn}, nil
}

func (db *DB) Close() error {
	if db == nil || db.conn == nil {
		return nil
	}
	return db.conn.Close()
}

func (db *DB) Ping(ctx context.Context) error {
	return db.conn.PingContext(ctx)
}

// Tx runs fn inside a transaction. fn must only use the Queries it is given;
// the pool has one connection, so touching db.Queries inside fn blocks.
func (db *DB) Tx(ctx context.Context, fn func(q *Queries) error) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(&Queries{q: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// NewID returns a time-sortable record identifier.
func NewID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func migrate(conn *sql.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL UNIQUE,
			name TEXT NOT NULL DEFAULT '',
			role TEXT NOT NULL DEFAULT 'member' CHECK(role IN ('admin','member')),
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS magic_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			email TEXT NOT NULL,
			token TEXT NOT NULL UNIQUE,
			status TEXT NOT NULL DEFAULT 'pending',
			used INTEGER NOT NULL DEFAULT 0,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			token TEXT NOT NULL UNIQUE,
			expires_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			slug TEXT NOT NULL UNIQUE,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'active' CHECK(status IN ('active','on_hold','completed','archived')),
			color TEXT NOT NULL DEFAULT '',
			member_ids TEXT NOT NULL DEFAULT '[]',
			created_by TEXT NOT NULL DEFAULT '',
			deadline INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS daily_boards (
			id TEXT PRIMARY KEY,
			date TEXT NOT NULL UNIQUE,
			created_by TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS custom_boards (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			owner_id TEXT NOT NULL,
			member_ids TEXT NOT NULL DEFAULT '[]',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'todo' CHECK(status IN ('todo','in_progress','in_review','done')),
			priority TEXT NOT NULL DEFAULT 'medium' CHECK(priority IN ('low','medium','high','urgent')),
			project_id TEXT NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
			assignee_ids TEXT NOT NULL DEFAULT '[]',
			assigner_id TEXT NOT NULL DEFAULT '',
			visibility TEXT NOT NULL DEFAULT 'general' CHECK(visibility IN ('general','private')),
			deadline INTEGER,
			start_date INTEGER,
			subtasks TEXT NOT NULL DEFAULT '[]',
			total_time_spent INTEGER NOT NULL DEFAULT 0,
			daily_board_id TEXT REFERENCES daily_boards(id) ON DELETE SET NULL,
			custom_board_id TEXT REFERENCES custom_boards(id) ON DELETE SET NULL,
			version INTEGER NOT NULL DEFAULT 1,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_project ON tasks(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_daily_board ON tasks(daily_board_id)`,
		`CREATE INDEX IF NOT EXISTS idx_tasks_custom_board ON tasks(custom_board_id)`,
		`CREATE TABLE IF NOT EXISTS notifications (
			id TEXT PRIMARY KEY,
			recipient_id TEXT NOT NULL,
			type TEXT NOT NULL,
			title TEXT NOT NULL,
			message TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			read INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_notifications_recipient ON notifications(recipient_id, read)`,
		`CREATE TABLE IF NOT EXISTS activities (
			id TEXT PRIMARY KEY,
			actor_id TEXT NOT NULL,
			project_id TEXT NOT NULL DEFAULT '',
			action TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			metadata TEXT NOT NULL DEFAULT '{}',
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_project ON activities(project_id)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_created ON activities(created_at)`,
		`CREATE TABLE IF NOT EXISTS time_logs (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			task_id TEXT NOT NULL REFERENCES tasks(id) ON DELETE CASCADE,
			project_id TEXT NOT NULL DEFAULT '',
			start_time INTEGER NOT NULL,
			end_time INTEGER,
			duration INTEGER NOT NULL DEFAULT 0,
			manual INTEGER NOT NULL DEFAULT 0,
			note TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		// At most one running timer per (user, task).
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_time_logs_open ON time_logs(user_id, task_id) WHERE end_time IS NULL`,
		`CREATE INDEX IF NOT EXISTS idx_time_logs_task ON time_logs(task_id)`,
		`CREATE TABLE IF NOT EXISTS sticky_notes (
			id TEXT PRIMARY KEY,
			owner_id TEXT NOT NULL,
			content TEXT NOT NULL DEFAULT '',
			color TEXT NOT NULL DEFAULT '',
			x REAL NOT NULL DEFAULT 0,
			y REAL NOT NULL DEFAULT 0,
			width REAL NOT NULL DEFAULT 200,
			height REAL NOT NULL DEFAULT 200,
			z_index INTEGER NOT NULL DEFAULT 0,
			pinned INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS pipeline_stages (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			position INTEGER NOT NULL DEFAULT 0,
			color TEXT NOT NULL DEFAULT '',
			is_won INTEGER NOT NULL DEFAULT 0,
			is_lost INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS prospects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			company TEXT NOT NULL DEFAULT '',
			email TEXT NOT NULL DEFAULT '',
			phone TEXT NOT NULL DEFAULT '',
			website TEXT NOT NULL DEFAULT '',
			stage_id TEXT NOT NULL REFERENCES pipeline_stages(id),
			value INTEGER NOT NULL DEFAULT 0,
			notes TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			owner_id TEXT NOT NULL,
			last_contacted_at INTEGER,
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_prospects_stage ON prospects(stage_id)`,
		`CREATE TABLE IF NOT EXISTS email_templates (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			subject TEXT NOT NULL,
			body TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT '',
			created_by TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS automations (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			trigger_kind TEXT NOT NULL DEFAULT 'stage_entered',
			stage_id TEXT NOT NULL,
			action TEXT NOT NULL CHECK(action IN ('send_email','create_task','notify_owner')),
			template_id TEXT NOT NULL DEFAULT '',
			task_title TEXT NOT NULL DEFAULT '',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_by TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS invitations (
			id TEXT PRIMARY KEY,
			email TEXT NOT NULL,
			role TEXT NOT NULL DEFAULT 'member',
			token TEXT NOT NULL UNIQUE,
			invited_by TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','accepted','revoked')),
			expires_at INTEGER NOT NULL,
			created_at INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS outbox (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL CHECK(kind IN ('notification','activity')),
			payload TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending' CHECK(status IN ('pending','delivered')),
			attempts INTEGER NOT NULL DEFAULT 0,
			last_error TEXT NOT NULL DEFAULT '',
			created_at INTEGER NOT NULL,
			delivered_at INTEGER
		)`,
		`CREATE INDEX IF NOT EXISTS idx_outbox_pending ON outbox(status, created_at)`,
	}

	for _, m := range migrations {
		if _, err := conn.Exec(m); err != nil {
			return fmt.Errorf("exec migration: %w", err)
		}
	}
	return nil
}
