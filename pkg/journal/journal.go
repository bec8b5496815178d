// Package journal provides an append-only SQLite journal of migration
// activity: step completions, checkpoint executions, rollbacks. The
// journal is an audit trail, not the source of truth; the state snapshot
// in pkg/state is.
package journal

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	// SQLite driver
	_ "modernc.org/sqlite"

	"github.com/openmigrate/openmigrate/pkg/engine"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store implements engine.Journal backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open opens (creating if necessary) the journal database at path and
// applies schema migrations.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("journal path is required")
	}

	dsn := fmt.Sprintf("%s?_foreign_keys=on&_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal database: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping journal database: %w", err)
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies the embedded schema migrations.
func (s *Store) migrate() error {
	sourceDriver, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	driver, err := sqlite3.WithInstance(s.db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", sourceDriver, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("failed to apply journal migrations: %w", err)
	}
	return nil
}

// Append records one journal entry.
func (s *Store) Append(ctx context.Context, entry *engine.JournalEntry) error {
	query := `
		INSERT INTO entries (migration_id, step, kind, message, details, timestamp)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	var details *string
	if len(entry.Details) > 0 {
		d := string(entry.Details)
		details = &d
	}

	_, err := s.db.ExecContext(ctx, query,
		entry.MigrationID,
		string(entry.Step),
		entry.Kind,
		entry.Message,
		details,
		entry.Timestamp.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("failed to append journal entry: %w", err)
	}
	return nil
}

// Recent returns the newest entries for a migration, newest first.
func (s *Store) Recent(ctx context.Context, migrationID string, limit int) ([]engine.JournalEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT migration_id, step, kind, message, details, timestamp
		FROM entries
		WHERE migration_id = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := s.db.QueryContext(ctx, query, migrationID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query journal entries: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []engine.JournalEntry
	for rows.Next() {
		var (
			entry   engine.JournalEntry
			step    string
			details *string
			stamp   string
		)
		if err := rows.Scan(&entry.MigrationID, &step, &entry.Kind, &entry.Message, &details, &stamp); err != nil {
			return nil, fmt.Errorf("failed to scan journal entry: %w", err)
		}
		entry.Step = engine.MigrationStep(step)
		if details != nil {
			entry.Details = []byte(*details)
		}
		if t, err := time.Parse(time.RFC3339Nano, stamp); err == nil {
			entry.Timestamp = t
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating journal entries: %w", err)
	}
	return entries, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}
