package auth

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateKeyUnique(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
	assert.NotEmpty(t, a)
}

func TestHashAndVerifyRoundTrip(t *testing.T) {
	h := NewHasher(4) // low cost for fast tests
	key, err := GenerateKey()
	require.NoError(t, err)

	hash, err := h.Hash(key)
	require.NoError(t, err)

	require.NoError(t, h.Verify(hash, key))
}

func TestVerifyRejectsMutatedKey(t *testing.T) {
	h := NewHasher(4)
	key, err := GenerateKey()
	require.NoError(t, err)
	hash, err := h.Hash(key)
	require.NoError(t, err)

	mutated := key[:len(key)-1] + "x"
	if mutated == key {
		mutated = key[:len(key)-1] + "y"
	}

	assert.ErrorIs(t, h.Verify(hash, mutated), ErrKeyMismatch)
}
