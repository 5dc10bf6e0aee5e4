package storage

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/kholbrook1303/dejavu/pkg/types"
)

// DefaultMaxQueryParams is the default cap on bound parameters per
// statement. SQLite's historical SQLITE_MAX_VARIABLE_NUMBER is 999;
// staying under it keeps chunked queries safe on every build.
const DefaultMaxQueryParams = 999

// Named query templates, built once from the shared schema constants.
var (
	insertSongSQL = fmt.Sprintf(
		`INSERT INTO %s (%s, %s, created_at) VALUES (?, ?, ?)`,
		SongsTable, FieldSongName, FieldFileSHA1)

	selectSongByIDSQL = fmt.Sprintf(
		`SELECT %[2]s, %[3]s, %[4]s, %[5]s, created_at FROM %[1]s WHERE %[2]s = ?`,
		SongsTable, FieldSongID, FieldSongName, FieldFileSHA1, FieldFingerprinted)

	selectSongByNameSQL = fmt.Sprintf(
		`SELECT %[2]s, %[3]s, %[4]s, %[5]s, created_at FROM %[1]s WHERE %[3]s = ? ORDER BY %[2]s LIMIT 1`,
		SongsTable, FieldSongID, FieldSongName, FieldFileSHA1, FieldFingerprinted)

	setFingerprintedSQL = fmt.Sprintf(
		`UPDATE %s SET %s = 1 WHERE %s = ?`,
		SongsTable, FieldFingerprinted, FieldSongID)

	deleteUnfingerprintedSQL = fmt.Sprintf(
		`DELETE FROM %s WHERE %s = 0`,
		SongsTable, FieldFingerprinted)

	// %s is the multi-row VALUES list, sized per batch
	insertFingerprintsSQL = fmt.Sprintf(
		`INSERT OR IGNORE INTO %s (%s, %s, %s) VALUES %%s`,
		FingerprintsTable, FieldHash, FieldSongID, FieldOffset)

	// %s is the IN placeholder list, sized per chunk
	selectMatchesSQL = fmt.Sprintf(
		`SELECT %[2]s, %[3]s, %[4]s FROM %[1]s WHERE %[2]s IN (%%s)`,
		FingerprintsTable, FieldHash, FieldSongID, FieldOffset)

	// %s is the IN placeholder list, sized per chunk
	deleteSongsSQL = fmt.Sprintf(
		`DELETE FROM %s WHERE %s IN (%%s)`,
		SongsTable, FieldSongID)

	countFingerprintedSQL = fmt.Sprintf(
		`SELECT COUNT(DISTINCT %s) FROM %s WHERE %s = 1`,
		FieldSongID, SongsTable, FieldFingerprinted)

	countFingerprintsSQL = fmt.Sprintf(
		`SELECT COUNT(*) FROM %s`, FingerprintsTable)
)

// SQLiteStore implements the FingerprintStore interface using SQLite
type SQLiteStore struct {
	db *sql.DB

	// Upper bound on bound parameters per statement; controls both
	// IN-clause chunking and multi-row insert sizing.
	maxQueryParams int
}

// Option configures a SQLiteStore
type Option func(*SQLiteStore)

// WithMaxQueryParams overrides the per-statement parameter budget.
// Values below one fall back to the default.
func WithMaxQueryParams(n int) Option {
	return func(s *SQLiteStore) {
		if n > 0 {
			s.maxQueryParams = n
		}
	}
}

// openDatabase opens a SQLite database with appropriate settings
func openDatabase(dbPath string) (*sql.DB, error) {
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, err
	}

	// Single writer; SQLite serializes writes anyway and a lone
	// connection keeps :memory: databases coherent across calls.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}

	return db, nil
}

// NewSQLiteStore opens (creating if needed) the database at dbPath,
// applies migrations, and purges songs left unfingerprinted by a
// previous crashed ingestion. Safe to call on every process start.
func NewSQLiteStore(dbPath string, opts ...Option) (*SQLiteStore, error) {
	db, err := openDatabase(dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &SQLiteStore{db: db, maxQueryParams: DefaultMaxQueryParams}
	for _, opt := range opts {
		opt(s)
	}

	if err := s.Setup(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return s, nil
}

// Setup idempotently applies pending migrations and deletes every
// song still marked unfingerprinted, cascading to its fingerprints.
// An unfingerprinted song is a partial ingestion that must not
// survive a restart.
func (s *SQLiteStore) Setup(ctx context.Context) error {
	if err := ApplyMigrations(ctx, s.db); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, deleteUnfingerprintedSQL); err != nil {
		return fmt.Errorf("failed to purge unfingerprinted songs: %w", err)
	}
	return nil
}

// Empty destroys both tables and recreates them blank. Irreversible.
func (s *SQLiteStore) Empty(ctx context.Context) error {
	if err := dropAll(ctx, s.db); err != nil {
		return err
	}
	return s.Setup(ctx)
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// isUniqueViolation reports whether err is a UNIQUE constraint
// failure. Both drivers expose their own error types, but the
// message text is shared SQLite behavior.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// Song operations

// InsertSong creates a new song row with fingerprinted=0 and returns
// its assigned ID. Returns ErrSongExists when a song with the same
// content digest is already stored.
func (s *SQLiteStore) InsertSong(ctx context.Context, name string, fileSHA1 []byte) (int64, error) {
	result, err := s.db.ExecContext(ctx, insertSongSQL, name, fileSHA1, time.Now())
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("content hash %x: %w", fileSHA1, ErrSongExists)
		}
		return 0, fmt.Errorf("failed to insert song: %w", err)
	}
	return result.LastInsertId()
}

// SetSongFingerprinted marks a song's ingestion complete, exempting
// it from the startup purge.
func (s *SQLiteStore) SetSongFingerprinted(ctx context.Context, songID int64) error {
	result, err := s.db.ExecContext(ctx, setFingerprintedSQL, songID)
	if err != nil {
		return fmt.Errorf("failed to mark song %d fingerprinted: %w", songID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("song %d: %w", songID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) scanSong(row *sql.Row) (*Song, error) {
	var song Song
	var fingerprinted int
	var createdAt sql.NullTime
	err := row.Scan(&song.ID, &song.Name, &song.FileSHA1, &fingerprinted, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	song.Fingerprinted = fingerprinted != 0
	if createdAt.Valid {
		song.CreatedAt = createdAt.Time
	}
	return &song, nil
}

// GetSongByID returns the song with the given ID, or ErrNotFound.
func (s *SQLiteStore) GetSongByID(ctx context.Context, songID int64) (*Song, error) {
	return s.scanSong(s.db.QueryRowContext(ctx, selectSongByIDSQL, songID))
}

// GetSongByName returns the lowest-ID song with the given name, or
// ErrNotFound. Names are not unique.
func (s *SQLiteStore) GetSongByName(ctx context.Context, name string) (*Song, error) {
	return s.scanSong(s.db.QueryRowContext(ctx, selectSongByNameSQL, name))
}

// DeleteSongsByID deletes the given songs and, via cascade, their
// fingerprints. Returns the number of songs deleted. Unknown IDs are
// ignored.
func (s *SQLiteStore) DeleteSongsByID(ctx context.Context, songIDs []int64) (int, error) {
	deleted := 0
	for chunk := range slices.Chunk(songIDs, s.maxQueryParams) {
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, len(chunk))
		for i, id := range chunk {
			placeholders[i] = "?"
			args[i] = id
		}

		query := fmt.Sprintf(deleteSongsSQL, strings.Join(placeholders, ","))
		result, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return deleted, fmt.Errorf("failed to delete songs: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return deleted, err
		}
		deleted += int(n)
	}
	return deleted, nil
}

// Fingerprint operations

// InsertHashes bulk-appends fingerprints for a song in a single
// transaction: either every new row is visible afterwards or none
// is. Triples already stored (or repeated within pairs) are silently
// ignored, so the call is idempotent under retry. A songID that was
// never returned by InsertSong fails the whole call with a foreign
// key error.
func (s *SQLiteStore) InsertHashes(ctx context.Context, songID int64, pairs []types.HashOffset) error {
	if len(pairs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Three parameters per row; size each statement to the budget.
	rowsPerStmt := s.maxQueryParams / 3
	if rowsPerStmt < 1 {
		rowsPerStmt = 1
	}

	for chunk := range slices.Chunk(pairs, rowsPerStmt) {
		placeholders := make([]string, len(chunk))
		args := make([]interface{}, 0, len(chunk)*3)
		for i, p := range chunk {
			placeholders[i] = "(?, ?, ?)"
			args = append(args, []byte(p.Hash), songID, p.Offset)
		}

		query := fmt.Sprintf(insertFingerprintsSQL, strings.Join(placeholders, ","))
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to insert fingerprints for song %d: %w", songID, err)
		}
	}

	return tx.Commit()
}

// Matches streams every stored fingerprint whose hash appears in the
// query batch, as (song ID, stored offset - query offset) pairs. The
// result is a lazy one-pass sequence; downstream voting can aggregate
// without the full hit list ever being materialized here.
//
// Query hashes are deduplicated first; when the batch repeats a hash
// with different offsets the last occurrence wins. The deduplicated
// set is then queried in chunks bounded by the parameter budget, so
// arbitrarily large batches never exceed the engine's per-statement
// parameter limit. Chunks are visited in insertion order; row order
// within a chunk is whatever the engine returns.
func (s *SQLiteStore) Matches(ctx context.Context, pairs []types.HashOffset) iter.Seq2[types.Match, error] {
	return func(yield func(types.Match, error) bool) {
		if len(pairs) == 0 {
			return
		}

		queryOffsets := make(map[string]int, len(pairs))
		hashes := make([]types.Hash, 0, len(pairs))
		for _, p := range pairs {
			if _, seen := queryOffsets[p.Hash.Key()]; !seen {
				hashes = append(hashes, p.Hash)
			}
			queryOffsets[p.Hash.Key()] = p.Offset
		}

		for chunk := range slices.Chunk(hashes, s.maxQueryParams) {
			if err := ctx.Err(); err != nil {
				yield(types.Match{}, err)
				return
			}
			if !s.yieldChunkMatches(ctx, chunk, queryOffsets, yield) {
				return
			}
		}
	}
}

// yieldChunkMatches runs the IN query for one hash chunk and feeds
// rows to yield. Returns false when iteration should stop, either
// because the consumer broke out or an error was yielded.
func (s *SQLiteStore) yieldChunkMatches(ctx context.Context, chunk []types.Hash, queryOffsets map[string]int, yield func(types.Match, error) bool) bool {
	placeholders := make([]string, len(chunk))
	args := make([]interface{}, len(chunk))
	for i, h := range chunk {
		placeholders[i] = "?"
		args[i] = []byte(h)
	}

	query := fmt.Sprintf(selectMatchesSQL, strings.Join(placeholders, ","))
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		yield(types.Match{}, fmt.Errorf("failed to query matches: %w", err))
		return false
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var hash []byte
		var songID int64
		var offset int
		if err := rows.Scan(&hash, &songID, &offset); err != nil {
			yield(types.Match{}, fmt.Errorf("failed to scan match: %w", err))
			return false
		}
		match := types.Match{
			SongID:      songID,
			OffsetDelta: offset - queryOffsets[string(hash)],
		}
		if !yield(match, nil) {
			return false
		}
	}
	if err := rows.Err(); err != nil {
		yield(types.Match{}, fmt.Errorf("failed reading matches: %w", err))
		return false
	}
	return true
}

// Status operations

// CountFingerprintedSongs returns the number of songs with completed
// ingestion.
func (s *SQLiteStore) CountFingerprintedSongs(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countFingerprintedSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count songs: %w", err)
	}
	return n, nil
}

// CountFingerprints returns the total number of stored fingerprints.
func (s *SQLiteStore) CountFingerprints(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, countFingerprintsSQL).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count fingerprints: %w", err)
	}
	return n, nil
}
