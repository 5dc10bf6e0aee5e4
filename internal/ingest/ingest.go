package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kholbrook1303/dejavu/internal/storage"
	"github.com/kholbrook1303/dejavu/pkg/types"
)

// Fingerprinter produces (hash, offset) pairs for a decoded audio
// source along with its content digest and display name. Implemented
// by the signal-processing pipeline, which lives outside this module.
type Fingerprinter interface {
	Fingerprint(ctx context.Context, source string) (name string, fileSHA1 []byte, pairs []types.HashOffset, err error)
}

// Ingester coordinates the ingestion pipeline for one recording:
// register song -> insert hash batches -> mark fingerprinted
type Ingester struct {
	store storage.FingerprintStore

	// Worker pool configuration
	workers   int
	batchSize int
}

// Config contains configuration for the ingester
type Config struct {
	Workers   int // Number of concurrent insert workers (default: runtime.NumCPU())
	BatchSize int // Number of pairs per InsertHashes call (default: 10000)
}

// Statistics contains statistics about an ingestion operation
type Statistics struct {
	SongID       int64
	Fingerprints int
	Batches      int
	Duration     time.Duration
}

// New creates a new Ingester instance
func New(store storage.FingerprintStore, config *Config) *Ingester {
	ing := &Ingester{
		store:     store,
		workers:   runtime.NumCPU(),
		batchSize: 10000,
	}
	if config != nil {
		if config.Workers > 0 {
			ing.workers = config.Workers
		}
		if config.BatchSize > 0 {
			ing.batchSize = config.BatchSize
		}
	}
	return ing
}

// IngestSource fingerprints a source via fp and stores the result.
func (ing *Ingester) IngestSource(ctx context.Context, fp Fingerprinter, source string) (*Statistics, error) {
	name, fileSHA1, pairs, err := fp.Fingerprint(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to fingerprint %s: %w", source, err)
	}
	return ing.Ingest(ctx, name, fileSHA1, pairs)
}

// Ingest registers a song and stores its fingerprints, inserting hash
// batches concurrently. Each batch commits in its own transaction; on
// any failure the song is left unfingerprinted, so the next store
// startup purges the partial ingestion.
//
// Returns storage.ErrSongExists unchanged when the same source audio
// was already ingested, letting callers dedup on content.
func (ing *Ingester) Ingest(ctx context.Context, name string, fileSHA1 []byte, pairs []types.HashOffset) (*Statistics, error) {
	startTime := time.Now()

	songID, err := ing.store.InsertSong(ctx, name, fileSHA1)
	if err != nil {
		if errors.Is(err, storage.ErrSongExists) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to register song %q: %w", name, err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ing.workers)

	batches := 0
	for i := 0; i < len(pairs); i += ing.batchSize {
		end := i + ing.batchSize
		if end > len(pairs) {
			end = len(pairs)
		}
		batch := pairs[i:end]
		batches++

		g.Go(func() error {
			return ing.store.InsertHashes(gctx, songID, batch)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to insert fingerprints for song %q: %w", name, err)
	}

	if err := ing.store.SetSongFingerprinted(ctx, songID); err != nil {
		return nil, err
	}

	return &Statistics{
		SongID:       songID,
		Fingerprints: len(pairs),
		Batches:      batches,
		Duration:     time.Since(startTime),
	}, nil
}
