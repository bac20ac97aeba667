package auth_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/spec-kit/task-service/internal/auth"
)

func TestHash(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	t.Run("produces argon2id PHC string", func(t *testing.T) {
		hash, err := hasher.Hash("password123")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=65536,t=1,p=4$"))
	})

	t.Run("same secret produces different hashes", func(t *testing.T) {
		hash1, err := hasher.Hash("samepassword")
		require.NoError(t, err)
		hash2, err := hasher.Hash("samepassword")
		require.NoError(t, err)

		assert.NotEqual(t, hash1, hash2)
		assert.True(t, hasher.Verify("samepassword", hash1))
		assert.True(t, hasher.Verify("samepassword", hash2))
	})

	t.Run("rejects empty secret", func(t *testing.T) {
		_, err := hasher.Hash("")
		assert.ErrorIs(t, err, auth.ErrInvalidInput)
	})
}

func TestVerify(t *testing.T) {
	hasher := auth.NewArgon2idHasher()
	hash, err := hasher.Hash("correctpassword")
	require.NoError(t, err)

	t.Run("correct secret verifies", func(t *testing.T) {
		assert.True(t, hasher.Verify("correctpassword", hash))
	})

	t.Run("different secret fails", func(t *testing.T) {
		assert.False(t, hasher.Verify("wrongpassword", hash))
	})

	t.Run("malformed hashes fail without error", func(t *testing.T) {
		for _, bad := range []string{
			"",
			"not-a-valid-hash",
			"$argon2i$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
			"$argon2id$vXX$m=65536,t=1,p=4$c2FsdA$aGFzaA",
			"$argon2id$v=19$m=65536,t=1,p=4$!!!$aGFzaA",
			"$argon2id$v=19$m=65536,t=1,p=0$c2FsdA$aGFzaA",
		} {
			assert.False(t, hasher.Verify("password", bad), bad)
		}
	})

	t.Run("legacy bcrypt hash verifies", func(t *testing.T) {
		legacy, err := bcrypt.GenerateFromPassword([]byte("oldpassword"), bcrypt.MinCost)
		require.NoError(t, err)

		assert.True(t, hasher.Verify("oldpassword", string(legacy)))
		assert.False(t, hasher.Verify("newpassword", string(legacy)))
	})
}

func TestNeedsRehash(t *testing.T) {
	hasher := auth.NewArgon2idHasher()

	current, err := hasher.Hash("password")
	require.NoError(t, err)
	legacy, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.MinCost)
	require.NoError(t, err)

	assert.False(t, hasher.NeedsRehash(current))
	assert.True(t, hasher.NeedsRehash(string(legacy)))
	assert.True(t, hasher.NeedsRehash("$argon2id$v=19$m=4096,t=3,p=1$c2FsdHNhbHQ$aGFzaGhhc2hoYXNoaGFzaA"))
}
