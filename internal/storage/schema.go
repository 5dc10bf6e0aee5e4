package storage

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Masterminds/semver/v3"
)

const (
	// CurrentSchemaVersion tracks the database schema version
	CurrentSchemaVersion = "1.0.0"

	// SongsTable holds one row per stored recording
	SongsTable = "songs"
	// FingerprintsTable holds one row per (hash, song, offset) triple
	FingerprintsTable = "fingerprints"

	// Shared field names. Every query template below is built from
	// these; engine-specific stores must not re-derive them.
	FieldSongID        = "song_id"
	FieldSongName      = "song_name"
	FieldFingerprinted = "fingerprinted"
	FieldFileSHA1      = "file_sha1"
	FieldHash          = "hash"
	FieldOffset        = `"offset"` // quoted: OFFSET is an SQL keyword
)

// Migration represents a database schema migration
type Migration struct {
	Version string
	Up      string
	Down    string
}

// AllMigrations contains all database migrations in order
var AllMigrations = []Migration{
	{
		Version: "1.0.0",
		Up:      migrationV1Up,
		Down:    migrationV1Down,
	},
}

var migrationV1Up = fmt.Sprintf(`
-- Schema version tracking
CREATE TABLE IF NOT EXISTS schema_version (
    version TEXT PRIMARY KEY,
    applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Songs table
CREATE TABLE IF NOT EXISTS %[1]s (
    %[3]s INTEGER PRIMARY KEY AUTOINCREMENT,
    %[4]s TEXT NOT NULL,
    %[5]s INTEGER NOT NULL DEFAULT 0,
    %[6]s BLOB NOT NULL UNIQUE,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

-- Fingerprints table
CREATE TABLE IF NOT EXISTS %[2]s (
    %[7]s BLOB NOT NULL,
    %[3]s INTEGER NOT NULL,
    %[8]s INTEGER NOT NULL,
    UNIQUE (%[7]s, %[3]s, %[8]s),
    FOREIGN KEY (%[3]s) REFERENCES %[1]s(%[3]s) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_fingerprints_hash ON %[2]s(%[7]s);
CREATE INDEX IF NOT EXISTS idx_fingerprints_song ON %[2]s(%[3]s);
CREATE INDEX IF NOT EXISTS idx_songs_name ON %[1]s(%[4]s);
`,
	SongsTable, FingerprintsTable,
	FieldSongID, FieldSongName, FieldFingerprinted, FieldFileSHA1,
	FieldHash, FieldOffset)

var migrationV1Down = fmt.Sprintf(`
-- Drop all tables in reverse order of dependencies
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS %s;
DROP TABLE IF EXISTS schema_version;
`, FingerprintsTable, SongsTable)

// ApplyMigrations runs all pending migrations
func ApplyMigrations(ctx context.Context, db *sql.DB) error {
	// Check if schema_version table exists
	var tableName string
	err := db.QueryRowContext(ctx, "SELECT name FROM sqlite_master WHERE type='table' AND name='schema_version'").Scan(&tableName)

	// Parse current version (default to 0.0.0 if no migrations applied or table doesn't exist)
	var currentVersion *semver.Version
	if err == sql.ErrNoRows {
		currentVersion = semver.MustParse("0.0.0")
	} else if err != nil {
		return fmt.Errorf("failed to check schema_version table: %w", err)
	} else {
		var currentVersionStr string
		err = db.QueryRowContext(ctx, "SELECT version FROM schema_version ORDER BY applied_at DESC LIMIT 1").Scan(&currentVersionStr)
		if err == sql.ErrNoRows || currentVersionStr == "" {
			currentVersion = semver.MustParse("0.0.0")
		} else if err != nil {
			return fmt.Errorf("failed to read schema_version: %w", err)
		} else {
			currentVersion, err = semver.NewVersion(currentVersionStr)
			if err != nil {
				return fmt.Errorf("invalid current schema version %s: %w", currentVersionStr, err)
			}
		}
	}

	// Run migrations in order
	for _, migration := range AllMigrations {
		migrationVersion, err := semver.NewVersion(migration.Version)
		if err != nil {
			return fmt.Errorf("invalid migration version %s: %w", migration.Version, err)
		}

		if !currentVersion.LessThan(migrationVersion) {
			continue // Already applied
		}

		if _, err = db.ExecContext(ctx, migration.Up); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Version, err)
		}

		if _, err = db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", migration.Version); err != nil {
			return fmt.Errorf("failed to record migration %s: %w", migration.Version, err)
		}

		currentVersion = migrationVersion
	}

	return nil
}

// dropAll executes every migration's Down script in reverse order,
// destroying all stored data.
func dropAll(ctx context.Context, db *sql.DB) error {
	for i := len(AllMigrations) - 1; i >= 0; i-- {
		if _, err := db.ExecContext(ctx, AllMigrations[i].Down); err != nil {
			return fmt.Errorf("failed to drop schema %s: %w", AllMigrations[i].Version, err)
		}
	}
	return nil
}
