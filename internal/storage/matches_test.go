package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kholbrook1303/dejavu/pkg/types"
)

func collectMatches(t *testing.T, store *SQLiteStore, pairs []types.HashOffset) []types.Match {
	t.Helper()
	var matches []types.Match
	for match, err := range store.Matches(context.Background(), pairs) {
		require.NoError(t, err)
		matches = append(matches, match)
	}
	return matches
}

func TestMatches_Completeness(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	id, err := store.InsertSong(ctx, "song", fileDigest("song"))
	require.NoError(t, err)
	hash := types.MustParseHash("8743B52063CD84097A65")
	require.NoError(t, store.InsertHashes(ctx, id,
		[]types.HashOffset{{Hash: hash, Offset: 42}}))
	require.NoError(t, store.SetSongFingerprinted(ctx, id))

	// A hash stored at offset o queried at offset q yields delta o-q
	matches := collectMatches(t, store,
		[]types.HashOffset{{Hash: hash, Offset: 30}})
	require.Len(t, matches, 1)
	assert.Equal(t, types.Match{SongID: id, OffsetDelta: 12}, matches[0])
}

func TestMatches_ExampleScenario(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	id, err := store.InsertSong(ctx, "recording-a", fileDigest("a"))
	require.NoError(t, err)
	require.NoError(t, store.InsertHashes(ctx, id, []types.HashOffset{
		{Hash: types.MustParseHash("AA"), Offset: 10},
		{Hash: types.MustParseHash("BB"), Offset: 20},
	}))
	require.NoError(t, store.SetSongFingerprinted(ctx, id))

	// 0xAA matches with delta 10-3=7; 0xCC is not stored
	matches := collectMatches(t, store, []types.HashOffset{
		{Hash: types.MustParseHash("AA"), Offset: 3},
		{Hash: types.MustParseHash("CC"), Offset: 5},
	})
	require.Len(t, matches, 1)
	assert.Equal(t, types.Match{SongID: id, OffsetDelta: 7}, matches[0])
}

func TestMatches_NegativeDelta(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	id, err := store.InsertSong(ctx, "song", fileDigest("song"))
	require.NoError(t, err)
	hash := types.MustParseHash("AABB")
	require.NoError(t, store.InsertHashes(ctx, id,
		[]types.HashOffset{{Hash: hash, Offset: 5}}))

	// Query offset past the stored one; deltas may go negative
	matches := collectMatches(t, store,
		[]types.HashOffset{{Hash: hash, Offset: 9}})
	require.Len(t, matches, 1)
	assert.Equal(t, -4, matches[0].OffsetDelta)
}

func TestMatches_MultipleSongsShareHash(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	hash := types.MustParseHash("DEADBEEF0011")

	id1, err := store.InsertSong(ctx, "one", fileDigest("one"))
	require.NoError(t, err)
	require.NoError(t, store.InsertHashes(ctx, id1,
		[]types.HashOffset{{Hash: hash, Offset: 100}}))

	id2, err := store.InsertSong(ctx, "two", fileDigest("two"))
	require.NoError(t, err)
	require.NoError(t, store.InsertHashes(ctx, id2,
		[]types.HashOffset{{Hash: hash, Offset: 250}}))

	matches := collectMatches(t, store,
		[]types.HashOffset{{Hash: hash, Offset: 50}})
	require.Len(t, matches, 2)
	assert.ElementsMatch(t, []types.Match{
		{SongID: id1, OffsetDelta: 50},
		{SongID: id2, OffsetDelta: 200},
	}, matches)
}

func TestMatches_ChunkingTransparency(t *testing.T) {
	ctx := context.Background()

	storedHexes := []string{"AA01", "BB02", "CC03", "DD04", "EE05"}
	storedOffsets := []int{10, 20, 30, 40, 50}
	queryOffsets := []int{1, 2, 3, 4, 5}

	ingest := func(t *testing.T, store *SQLiteStore) {
		id, err := store.InsertSong(ctx, "song", fileDigest("song"))
		require.NoError(t, err)
		require.NoError(t, store.InsertHashes(ctx, id,
			pairsFor(t, storedHexes, storedOffsets)))
		require.NoError(t, store.SetSongFingerprinted(ctx, id))
	}

	// Reference: budget far above the query size, a single chunk
	reference := setupTestDB(t)
	ingest(t, reference)
	want := collectMatches(t, reference, pairsFor(t, storedHexes, queryOffsets))
	require.Len(t, want, 5)

	// Budget of 2 forces three chunks for five hashes; the result
	// set must be identical
	chunked := setupTestDB(t, WithMaxQueryParams(2))
	ingest(t, chunked)
	got := collectMatches(t, chunked, pairsFor(t, storedHexes, queryOffsets))
	assert.ElementsMatch(t, want, got)
}

func TestMatches_DedupKeepsLastOffset(t *testing.T) {
	store := setupTestDB(t)
	ctx := context.Background()

	id, err := store.InsertSong(ctx, "song", fileDigest("song"))
	require.NoError(t, err)
	hash := types.MustParseHash("ABCD")
	require.NoError(t, store.InsertHashes(ctx, id,
		[]types.HashOffset{{Hash: hash, Offset: 100}}))

	// Repeated query hash: last offset wins, and the hash is queried once
	matches := collectMatches(t, store, []types.HashOffset{
		{Hash: hash, Offset: 10},
		{Hash: hash, Offset: 25},
	})
	require.Len(t, matches, 1)
	assert.Equal(t, 75, matches[0].OffsetDelta)
}

func TestMatches_EmptyQuery(t *testing.T) {
	store := setupTestDB(t)
	matches := collectMatches(t, store, nil)
	assert.Empty(t, matches)
}

func TestMatches_EarlyBreak(t *testing.T) {
	store := setupTestDB(t, WithMaxQueryParams(2))
	ctx := context.Background()

	id, err := store.InsertSong(ctx, "song", fileDigest("song"))
	require.NoError(t, err)
	pairs := pairsFor(t,
		[]string{"AA01", "BB02", "CC03", "DD04"},
		[]int{1, 2, 3, 4})
	require.NoError(t, store.InsertHashes(ctx, id, pairs))

	// Abandoning the sequence mid-way must not leak or error
	seen := 0
	for _, err := range store.Matches(ctx, pairs) {
		require.NoError(t, err)
		seen++
		if seen == 2 {
			break
		}
	}
	assert.Equal(t, 2, seen)

	// The store remains usable afterwards
	count, err := store.CountFingerprints(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestMatches_CanceledContext(t *testing.T) {
	store := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	pairs := []types.HashOffset{{Hash: types.MustParseHash("AA"), Offset: 0}}
	var lastErr error
	for _, err := range store.Matches(ctx, pairs) {
		lastErr = err
	}
	assert.Error(t, lastErr)
}
