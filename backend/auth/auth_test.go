package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	signed, err := tokens.Issue("u-1", RoleVolunteer)
	require.NoError(t, err)

	id, err := tokens.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "u-1", id.Id)
	assert.Equal(t, RoleVolunteer, id.Role)
}

func TestParseRejects(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	signed, err := tokens.Issue("u-1", RoleUser)
	require.NoError(t, err)

	other := NewTokens("other-secret", time.Hour)
	_, err = other.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired := NewTokens("test-secret", time.Hour)
	expired.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	old, err := expired.Issue("u-1", RoleUser)
	require.NoError(t, err)
	_, err = tokens.Parse(old)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = tokens.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsUnknownRole(t *testing.T) {
	tokens := NewTokens("test-secret", time.Hour)
	signed, err := tokens.Issue("u-1", Role("superuser"))
	require.NoError(t, err)
	_, err = tokens.Parse(signed)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("secret1")
	require.NoError(t, err)
	assert.True(t, CheckPassword(hash, "secret1"))
	assert.False(t, CheckPassword(hash, "secret2"))
}

func TestResetToken(t *testing.T) {
	plain, digest, err := NewResetToken()
	require.NoError(t, err)
	assert.Len(t, plain, 64)
	assert.Len(t, digest, 64)
	assert.NotEqual(t, plain, digest)
	assert.Equal(t, digest, HashResetToken(plain))

	plain2, _, err := NewResetToken()
	require.NoError(t, err)
	assert.NotEqual(t, plain, plain2)
}
