package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateHash(t *testing.T) {
	phc, err := GenerateHash("correct horse battery staple")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(phc, "$argon2id$v=19$"))
	assert.Len(t, strings.Split(phc, "$"), 6)

	// Salts are random, so hashing twice never repeats
	phc2, err := GenerateHash("correct horse battery staple")
	require.NoError(t, err)
	assert.NotEqual(t, phc, phc2)
}

func TestVerifyPassword(t *testing.T) {
	phc, err := GenerateHash("s3cret")
	require.NoError(t, err)

	t.Run("correct password", func(t *testing.T) {
		assert.True(t, VerifyPassword("s3cret", phc))
	})

	t.Run("wrong password", func(t *testing.T) {
		assert.False(t, VerifyPassword("s3cret!", phc))
		assert.False(t, VerifyPassword("", phc))
	})

	t.Run("malformed hashes never match", func(t *testing.T) {
		malformed := []string{
			"",
			"plaintext",
			"$argon2i$v=19$m=65536,t=3,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=18$m=65536,t=3,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=0,t=0,p=0$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=65536,t=3,p=4$!!!$aGFzaA",
			"$argon2id$v=19$m=65536,t=3,p=4$c2FsdA$",
			"$argon2id$v=19$m=65536,t=3,p=4$c2FsdA",
		}
		for _, h := range malformed {
			assert.False(t, VerifyPassword("s3cret", h), "hash %q should not verify", h)
		}
	})
}

func TestParsePHCRoundTrip(t *testing.T) {
	phc, err := GenerateHash("x")
	require.NoError(t, err)

	p, err := parsePHC(phc)
	require.NoError(t, err)
	assert.Equal(t, uint32(65536), p.memory)
	assert.Equal(t, uint32(3), p.time)
	assert.Equal(t, uint8(4), p.threads)
	assert.Len(t, p.salt, 16)
	assert.Len(t, p.hash, 32)
}
