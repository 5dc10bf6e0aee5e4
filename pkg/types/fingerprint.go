package types

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hash is a fixed-size opaque binary acoustic hash. The store never
// interprets its contents; equality is byte equality.
type Hash []byte

// ParseHash decodes a hex-encoded hash. Case-insensitive; the binary
// form is canonical, so "8743b5" and "8743B5" parse to equal hashes.
func ParseHash(s string) (Hash, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hash %q: %w", s, err)
	}
	if len(b) == 0 {
		return nil, fmt.Errorf("empty hash")
	}
	return Hash(b), nil
}

// MustParseHash is ParseHash for hard-coded hashes; panics on error.
func MustParseHash(s string) Hash {
	h, err := ParseHash(s)
	if err != nil {
		panic(err)
	}
	return h
}

// String returns the uppercase hex form of the hash.
func (h Hash) String() string {
	return strings.ToUpper(hex.EncodeToString(h))
}

// Key returns the hash as a map key.
func (h Hash) Key() string {
	return string(h)
}

// HashOffset pairs an acoustic hash with the position (frame index)
// at which it occurs within its source audio.
type HashOffset struct {
	Hash   Hash
	Offset int
}

// Match is one stored fingerprint hit for a query batch. OffsetDelta
// is the stored offset minus the query offset for the shared hash; a
// delta that repeats across many matches indicates true alignment,
// while hash-collision noise scatters.
type Match struct {
	SongID      int64
	OffsetDelta int
}
