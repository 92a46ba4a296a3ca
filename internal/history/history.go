package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// DB is the append-only journal of lifecycle operations, kept separate from
// the registry so losing it never affects package state.
type DB struct {
	write *sql.DB
	read  *sql.DB
	path  string
}

// Event is one recorded lifecycle operation
type Event struct {
	ID        int64
	Operation string
	PackageID string
	Name      string
	Timestamp time.Time
	Success   bool
	Detail    string
}

// Operation names recorded in the journal
const (
	OpInstall   = "install"
	OpDeinstall = "deinstall"
	OpBackup    = "backup"
	OpReinstall = "reinstall"
)

// New opens the journal database, creating the schema if needed
func New(ctx context.Context, dbPath string) (*DB, error) {
	connStr := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbPath)

	// Write pool: MUST be 1 connection only
	write, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	write.SetMaxOpenConns(1)
	write.SetMaxIdleConns(1)
	write.SetConnMaxIdleTime(time.Minute)

	read, err := sql.Open("sqlite", connStr)
	if err != nil {
		write.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}
	read.SetMaxOpenConns(4)
	read.SetMaxIdleConns(2)
	read.SetConnMaxIdleTime(time.Minute)

	db := &DB{write: write, read: read, path: dbPath}

	if err := db.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	return db, nil
}

// Close closes both database connections
func (db *DB) Close() error {
	writeErr := db.write.Close()
	readErr := db.read.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

func (db *DB) initSchema(ctx context.Context) error {
	schema := `
CREATE TABLE IF NOT EXISTS events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation TEXT NOT NULL,
    package_id TEXT NOT NULL,
    name TEXT,
    timestamp DATETIME DEFAULT CURRENT_TIMESTAMP,
    success INTEGER NOT NULL,
    detail TEXT
);

CREATE INDEX IF NOT EXISTS idx_events_package ON events(package_id);
CREATE INDEX IF NOT EXISTS idx_events_time ON events(timestamp);
	`

	if _, err := db.write.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// Record appends one event to the journal
func (db *DB) Record(ctx context.Context, ev Event) error {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	query := `
INSERT INTO events (operation, package_id, name, timestamp, success, detail)
VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := db.write.ExecContext(ctx, query,
		ev.Operation,
		ev.PackageID,
		ev.Name,
		ev.Timestamp,
		ev.Success,
		ev.Detail,
	)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}

	return nil
}

// List returns the most recent events, newest first. A limit of 0 means all.
func (db *DB) List(ctx context.Context, limit int) ([]Event, error) {
	query := `
SELECT id, operation, package_id, name, timestamp, success, detail
FROM events ORDER BY timestamp DESC, id DESC
	`
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := db.read.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var ev Event
		if err := rows.Scan(&ev.ID, &ev.Operation, &ev.PackageID, &ev.Name, &ev.Timestamp, &ev.Success, &ev.Detail); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return events, nil
}
