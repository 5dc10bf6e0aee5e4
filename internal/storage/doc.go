// Package storage provides SQLite-based persistence for acoustic
// fingerprints.
//
// The storage layer manages:
//   - Song metadata (name, content digest, ingestion state)
//   - Fingerprint rows keyed by (hash, song, offset)
//   - The chunked batch query behind match lookups
//
// # Database Schema
//
// Tables:
//   - songs: one row per recording; file_sha1 is UNIQUE so the same
//     source audio cannot be ingested twice
//   - fingerprints: (hash, song_id, offset) with a uniqueness
//     constraint on the triple and ON DELETE CASCADE to songs
//
// Schema changes are versioned migrations applied through a
// schema_version table.
//
// # Ingestion Lifecycle
//
// A song starts unfingerprinted, accumulates hash batches through
// InsertHashes, and is sealed with SetSongFingerprinted. Songs still
// unfingerprinted when the store is opened are leftovers from a
// crashed ingestion and are purged, cascade included:
//
//	store, err := storage.NewSQLiteStore("dejavu.db")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer store.Close()
//
//	songID, err := store.InsertSong(ctx, "Siren Song", fileSHA1)
//	if err := store.InsertHashes(ctx, songID, pairs); err != nil {
//	    return err
//	}
//	if err := store.SetSongFingerprinted(ctx, songID); err != nil {
//	    return err
//	}
//
// # Matching
//
// Matches answers "which stored songs share any of these hashes, and
// at what offset delta" for a whole query batch at once:
//
//	for match, err := range store.Matches(ctx, queryPairs) {
//	    if err != nil {
//	        return err
//	    }
//	    votes[match.SongID][match.OffsetDelta]++
//	}
//
// The batch is deduplicated and split into IN-clause chunks capped by
// the per-statement parameter budget (default 999), so query size is
// unbounded from the caller's perspective. Hits stream lazily; the
// voting step downstream decides what constitutes a match.
//
// # Build Tags
//
// The storage package supports two build configurations:
//
// CGO Build (cgosqlite tag):
//
//   - Uses github.com/mattn/go-sqlite3 driver
//
//   - Requires a C compiler
//
//     CGO_ENABLED=1 go build -tags "cgosqlite"
//
// Pure Go Build (default):
//
//   - Uses modernc.org/sqlite driver
//
//   - No C compiler needed
//
//     CGO_ENABLED=0 go build
package storage
