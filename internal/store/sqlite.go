package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements FlagCache using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

// Overrides returns all stored flag overrides keyed by message id.
func (s *SQLiteStore) Overrides(ctx context.Context) (map[string]FlagOverride, error) {
	var rows []FlagOverride
	err := s.db.SelectContext(
		ctx, &rows,
		"SELECT message_id, read, starred FROM message_flags",
	)
	if err != nil {
		return nil, fmt.Errorf("loading flag overrides: %w", err)
	}

	overrides := make(map[string]FlagOverride, len(rows))
	for _, r := range rows {
		overrides[r.MessageID] = r
	}
	return overrides, nil
}

// SetRead records the read flag for a message, creating the override
// row if needed.
func (s *SQLiteStore) SetRead(ctx context.Context, messageID string, read bool) error {
	const query = `
		INSERT INTO message_flags (message_id, read, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(message_id) DO UPDATE SET
			read = excluded.read,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := s.db.ExecContext(ctx, query, messageID, boolToInt(read)); err != nil {
		return fmt.Errorf("storing read flag for %s: %w", messageID, err)
	}
	return nil
}

// SetStarred records the starred flag for a message, creating the
// override row if needed.
func (s *SQLiteStore) SetStarred(ctx context.Context, messageID string, starred bool) error {
	const query = `
		INSERT INTO message_flags (message_id, starred, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(message_id) DO UPDATE SET
			starred = excluded.starred,
			updated_at = CURRENT_TIMESTAMP`

	if _, err := s.db.ExecContext(ctx, query, messageID, boolToInt(starred)); err != nil {
		return fmt.Errorf("storing starred flag for %s: %w", messageID, err)
	}
	return nil
}

// Prune drops overrides for messages no longer present on the server.
func (s *SQLiteStore) Prune(ctx context.Context, keep []string) error {
	if len(keep) == 0 {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM message_flags"); err != nil {
			return fmt.Errorf("pruning flag overrides: %w", err)
		}
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(keep)), ",")
	query := "DELETE FROM message_flags WHERE message_id NOT IN (" + placeholders + ")"

	args := make([]interface{}, len(keep))
	for i, id := range keep {
		args[i] = id
	}

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("pruning flag overrides: %w", err)
	}
	return nil
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
