// AngelaMos | 2026
// security_test.go

package core

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$argon2id$"))

	valid, newHash, err := VerifyPasswordWithRehash(
		"correct horse battery staple", hash,
	)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, newHash, "current-parameter hash needs no rehash")

	valid, _, err = VerifyPasswordWithRehash("wrong password", hash)
	require.NoError(t, err)
	assert.False(t, valid)
}

func TestVerifyPasswordWithRehashUpgradesStaleParameters(t *testing.T) {
	// A hash carrying lower cost settings than the current ones.
	stale := "$argon2id$v=19$m=32768,t=1,p=2$" +
		"c29tZXNhbHRzb21lc2FsdA$" +
		"aGFzaGhhc2hoYXNoaGFzaGhhc2hoYXNoaGFzaGhhc2g"

	assert.True(t, needsRehash(stale))

	// A wrong password against stale parameters must not trigger a rehash.
	valid, newHash, err := VerifyPasswordWithRehash("nope", stale)
	require.NoError(t, err)
	assert.False(t, valid)
	assert.Empty(t, newHash)
}

func TestVerifyPasswordTimingSafeWithMissingHash(t *testing.T) {
	for _, hash := range []*string{nil, new(string)} {
		valid, newHash, err := VerifyPasswordTimingSafe("anything", hash)
		require.NoError(t, err)
		assert.False(t, valid)
		assert.Empty(t, newHash)
	}
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	cases := map[string]string{
		"not enough parts":      "$argon2id$v=19$bad",
		"wrong algorithm":       "$bcrypt$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"unparseable version":   "$argon2id$version$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		"undecodable salt":      "$argon2id$v=19$m=65536,t=1,p=4$!!$aGFzaA",
		"undecodable hash body": "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$!!",
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			_, _, err := VerifyPasswordWithRehash("pw", encoded)
			assert.Error(t, err)
			assert.True(t, needsRehash(encoded))
		})
	}
}

func TestRefreshTokenHashing(t *testing.T) {
	token, err := GenerateRefreshToken()
	require.NoError(t, err)
	require.NotEmpty(t, token)

	other, err := GenerateRefreshToken()
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	hash := HashToken(token)
	assert.Len(t, hash, 64)
	assert.True(t, CompareTokenHash(token, hash))
	assert.False(t, CompareTokenHash(other, hash))
}
