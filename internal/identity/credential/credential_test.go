// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Oryen Contributors

package credential_test

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oryen/oryen/internal/identity/credential"
	"github.com/oryen/oryen/pkg/errutil"
)

func TestHash(t *testing.T) {
	h := credential.NewHasher(credential.FastParams)

	t.Run("phc format", func(t *testing.T) {
		hash, err := h.Hash("Abcd123!")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(hash, "$argon2id$v=19$m=1024,t=1,p=1$"))
	})

	t.Run("salted", func(t *testing.T) {
		a, err := h.Hash("same")
		require.NoError(t, err)
		b, err := h.Hash("same")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("rejects empty", func(t *testing.T) {
		_, err := h.Hash("")
		errutil.AssertErrorCode(t, err, "CREDENTIAL_EMPTY_PASSWORD")
	})
}

func TestVerify(t *testing.T) {
	h := credential.NewHasher(credential.FastParams)
	hash, err := h.Hash("Abcd123!")
	require.NoError(t, err)

	ok, err := h.Verify("Abcd123!", hash)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = h.Verify("abcd123!", hash)
	require.NoError(t, err)
	assert.False(t, ok)

	t.Run("parameters come from the hash", func(t *testing.T) {
		other := credential.NewHasher(credential.DefaultParams)
		ok, err := other.Verify("Abcd123!", hash)
		require.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("dummy hash never matches", func(t *testing.T) {
		ok, err := h.Verify("", credential.DummyHash)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	for _, bad := range []string{
		"",
		"plaintext",
		"$bcrypt$v=19$m=1024,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=x$m=1024,t=1,p=1$AAAA$AAAA",
		"$argon2id$v=19$m=1024,t=1,p=0$AAAAAAAAAAAAAAAAAAAAAA$AAAA",
		"$argon2id$v=19$m=1024,t=1,p=1$!!!$AAAA",
		"$argon2id$v=19$m=1024,t=1,p=1$AAAAAAAAAAAAAAAAAAAAAA$",
	} {
		_, err := h.Verify("x", bad)
		errutil.AssertErrorCode(t, err, "CREDENTIAL_INVALID_HASH")
	}
}

func TestTokens(t *testing.T) {
	token, hash, err := credential.GenerateToken()
	require.NoError(t, err)
	assert.Len(t, token, credential.TokenBytes*2)
	assert.Len(t, hash, 64)
	assert.Equal(t, hash, credential.HashToken(token))
	assert.True(t, credential.VerifyToken(token, hash))
	assert.False(t, credential.VerifyToken(token+"0", hash))
	assert.False(t, credential.VerifyToken("", hash))

	other, _, err := credential.GenerateToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)
}
