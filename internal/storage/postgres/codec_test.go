package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLegsAndPathCodec(t *testing.T) {
	trade := straddle("p_20240102_0001", "p", "2024-01-02")

	legs, err := encodeLegs(trade.Legs)
	require.NoError(t, err)
	assert.Contains(t, string(legs), `"expiry":"2024-02-01"`)

	decodedLegs, err := decodeLegs(legs)
	require.NoError(t, err)
	assert.Equal(t, trade.Legs, decodedLegs)

	path, err := encodePath(trade.Path)
	require.NoError(t, err)

	decodedPath, err := decodePath(path)
	require.NoError(t, err)
	assert.Equal(t, trade.Path, decodedPath)
}

func TestDecodePath_Empty(t *testing.T) {
	path, err := decodePath([]byte("[]"))
	require.NoError(t, err)
	assert.Nil(t, path)
}
