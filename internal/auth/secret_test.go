package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/obstaclehub/records-api/internal/dependencies/random"
)

func TestSecretShapes(t *testing.T) {
	rnd := random.New()

	id := newStateID(rnd)
	require.Len(t, string(id), 20)
	code := newCode(rnd)
	require.Len(t, string(code), 10)
	token := NewToken(rnd)
	require.Len(t, string(token), 256)

	for _, s := range []string{string(id), string(code), string(token)} {
		for _, r := range s {
			assert.True(t, strings.ContainsRune(alphanumeric, r), "unexpected rune %q", r)
		}
	}
}

func TestParseStateID(t *testing.T) {
	_, err := ParseStateID("tooshort")
	require.Error(t, err)

	id, err := ParseStateID("A1b2C3d4E5f6G7h8I9j0")
	require.NoError(t, err)
	assert.Equal(t, StateID("A1b2C3d4E5f6G7h8I9j0"), id)
}

func TestHashCode(t *testing.T) {
	h1 := hashCode("code123456", "A1b2C3d4E5f6G7h8I9j0")
	h2 := hashCode("code123456", "A1b2C3d4E5f6G7h8I9j0")
	assert.True(t, h1.equal(h2))

	// Same code under a different attempt must hash differently.
	h3 := hashCode("code123456", "Z9y8X7w6V5u4T3s2R1q0")
	assert.False(t, h1.equal(h3))

	h4 := hashCode("other12345", "A1b2C3d4E5f6G7h8I9j0")
	assert.False(t, h1.equal(h4))
}
