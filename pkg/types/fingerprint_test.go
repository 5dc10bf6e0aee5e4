package types

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseHash(t *testing.T) {
	h, err := ParseHash("8743b52063cd84097a65")
	require.NoError(t, err)
	assert.Len(t, []byte(h), 10)

	// Case never reaches the binary form
	upper, err := ParseHash("8743B52063CD84097A65")
	require.NoError(t, err)
	assert.Equal(t, h, upper)
	assert.Equal(t, h.Key(), upper.Key())
}

func TestParseHash_Invalid(t *testing.T) {
	_, err := ParseHash("not-hex")
	assert.Error(t, err)

	_, err = ParseHash("abc") // odd length
	assert.Error(t, err)

	_, err = ParseHash("")
	assert.Error(t, err)
}

func TestHashString_RoundTrip(t *testing.T) {
	h := MustParseHash("deadbeef0042")
	assert.Equal(t, "DEADBEEF0042", h.String())

	again, err := ParseHash(h.String())
	require.NoError(t, err)
	assert.Equal(t, h, again)
}

func TestMustParseHash_Panics(t *testing.T) {
	assert.Panics(t, func() { MustParseHash("zz") })
}
