// Package types provides shared type definitions for the dejavu
// fingerprint store.
//
// This package defines the domain types exchanged between the
// fingerprint-generation pipeline, the storage layer, and the
// matching/voting consumer: opaque binary hashes, (hash, offset)
// pairs, and (song, offset delta) match results.
//
// # Hash Encoding
//
// Fingerprint hashes travel as hex strings outside the store and as
// raw bytes inside it. Conversion happens exactly once at the
// boundary:
//
//	h, err := types.ParseHash("8743B52063CD84097A65D1633F5C74F5")
//	...
//	h.String() // uppercase hex, round-trips through ParseHash
//
// Comparing raw bytes avoids the hex case-sensitivity bugs that come
// from comparing string forms produced by different components.
package types
