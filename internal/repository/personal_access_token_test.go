package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitPlainToken(t *testing.T) {
	id, secret := SplitPlainToken(" 42|abc ")
	require.NotNil(t, id)
	assert.Equal(t, int64(42), *id)
	assert.Equal(t, "abc", secret)

	id, secret = SplitPlainToken("plain")
	assert.Nil(t, id)
	assert.Equal(t, "plain", secret)

	id, secret = SplitPlainToken("x|abc")
	assert.Nil(t, id)
	assert.Equal(t, "x|abc", secret)
}

func TestHashToken(t *testing.T) {
	// sha256("abc")
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", HashToken("abc"))
	assert.True(t, tokenMatches(HashToken("abc"), HashToken("abc")))
	assert.False(t, tokenMatches(HashToken("abc"), HashToken("abd")))
}
