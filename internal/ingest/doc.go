// Package ingest coordinates fingerprint ingestion: it registers a
// recording, streams its (hash, offset) pairs into storage in
// concurrent batches, and seals the recording by marking it
// fingerprinted.
//
// The batch boundary matters for crash safety: every InsertHashes
// call commits atomically, and the fingerprinted flag flips only
// after all batches land. A process killed mid-ingestion leaves an
// unfingerprinted song that the storage layer purges at the next
// startup, so a retry can re-ingest the same audio cleanly.
package ingest
