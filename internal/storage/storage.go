package storage

import (
	"context"
	"errors"
	"iter"
	"time"

	"github.com/kholbrook1303/dejavu/pkg/types"
)

var (
	// ErrNotFound is returned when a requested song doesn't exist
	ErrNotFound = errors.New("not found")
	// ErrSongExists is returned when inserting a song whose content
	// hash is already stored
	ErrSongExists = errors.New("song already exists")
)

// FingerprintStore defines the interface for persisting and querying
// acoustic fingerprints
type FingerprintStore interface {
	// Lifecycle operations
	Setup(ctx context.Context) error
	Empty(ctx context.Context) error

	// Song operations
	InsertSong(ctx context.Context, name string, fileSHA1 []byte) (int64, error)
	SetSongFingerprinted(ctx context.Context, songID int64) error
	GetSongByID(ctx context.Context, songID int64) (*Song, error)
	GetSongByName(ctx context.Context, name string) (*Song, error)
	DeleteSongsByID(ctx context.Context, songIDs []int64) (deletedCount int, err error)

	// Fingerprint operations
	InsertHashes(ctx context.Context, songID int64, pairs []types.HashOffset) error
	Matches(ctx context.Context, pairs []types.HashOffset) iter.Seq2[types.Match, error]

	// Status operations
	CountFingerprintedSongs(ctx context.Context) (int, error)
	CountFingerprints(ctx context.Context) (int, error)

	// Database operations
	Close() error
}

// Song represents a stored recording
type Song struct {
	ID            int64
	Name          string
	FileSHA1      []byte // Content-identity digest of the source audio
	Fingerprinted bool
	CreatedAt     time.Time
}
