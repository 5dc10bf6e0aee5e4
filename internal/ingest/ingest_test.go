package ingest

import (
	"context"
	"crypto/sha1"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholbrook1303/dejavu/internal/storage"
	"github.com/kholbrook1303/dejavu/pkg/types"
)

func setupStore(t *testing.T) *storage.SQLiteStore {
	t.Helper()
	store, err := storage.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func makePairs(n int) []types.HashOffset {
	pairs := make([]types.HashOffset, n)
	for i := range pairs {
		sum := sha1.Sum([]byte{byte(i), byte(i >> 8)})
		pairs[i] = types.HashOffset{Hash: types.Hash(sum[:10]), Offset: i}
	}
	return pairs
}

func TestIngest(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	// Small batches force multiple concurrent InsertHashes calls
	ing := New(store, &Config{Workers: 4, BatchSize: 16})
	digest := sha1.Sum([]byte("source-audio"))

	stats, err := ing.Ingest(ctx, "test-song", digest[:], makePairs(100))
	require.NoError(t, err)
	assert.Equal(t, 100, stats.Fingerprints)
	assert.Equal(t, 7, stats.Batches)

	song, err := store.GetSongByID(ctx, stats.SongID)
	require.NoError(t, err)
	assert.True(t, song.Fingerprinted)

	count, err := store.CountFingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 100, count)
}

func TestIngest_DuplicateContent(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ing := New(store, nil)
	digest := sha1.Sum([]byte("same-audio"))

	_, err := ing.Ingest(ctx, "first", digest[:], makePairs(5))
	require.NoError(t, err)

	_, err = ing.Ingest(ctx, "second", digest[:], makePairs(5))
	assert.ErrorIs(t, err, storage.ErrSongExists)
}

func TestIngest_Retry(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	ing := New(store, &Config{BatchSize: 8})
	digest := sha1.Sum([]byte("retried-audio"))
	pairs := makePairs(20)

	// A partial ingestion: song registered, some hashes in, never sealed
	songID, err := store.InsertSong(ctx, "partial", digest[:])
	require.NoError(t, err)
	require.NoError(t, store.InsertHashes(ctx, songID, pairs[:10]))

	// Purge reclaims it, after which the same audio ingests cleanly
	require.NoError(t, store.Setup(ctx))

	stats, err := ing.Ingest(ctx, "partial", digest[:], pairs)
	require.NoError(t, err)

	count, err := store.CountFingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 20, count)

	song, err := store.GetSongByID(ctx, stats.SongID)
	require.NoError(t, err)
	assert.True(t, song.Fingerprinted)
}

type stubFingerprinter struct {
	name  string
	sha1  []byte
	pairs []types.HashOffset
	err   error
}

func (s *stubFingerprinter) Fingerprint(_ context.Context, _ string) (string, []byte, []types.HashOffset, error) {
	return s.name, s.sha1, s.pairs, s.err
}

func TestIngestSource(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	digest := sha1.Sum([]byte("piped-audio"))
	fp := &stubFingerprinter{name: "piped", sha1: digest[:], pairs: makePairs(12)}

	ing := New(store, nil)
	stats, err := ing.IngestSource(ctx, fp, "/tmp/audio.wav")
	require.NoError(t, err)
	assert.Equal(t, 12, stats.Fingerprints)

	song, err := store.GetSongByName(ctx, "piped")
	require.NoError(t, err)
	assert.True(t, song.Fingerprinted)
}

func TestIngestSource_FingerprinterError(t *testing.T) {
	store := setupStore(t)

	fpErr := errors.New("decode failed")
	fp := &stubFingerprinter{err: fpErr}

	ing := New(store, nil)
	_, err := ing.IngestSource(context.Background(), fp, "/tmp/broken.mp3")
	assert.ErrorIs(t, err, fpErr)
}
