package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTM() *TokenManager {
	return NewTokenManager("access-secret", "refresh-secret", "wallet-test", time.Minute, time.Hour)
}

func TestGeneratePair(t *testing.T) {
	tm := newTM()
	access, refresh, exp, err := tm.GeneratePair("u-1", RoleAdmin)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), exp, 2*time.Second)

	c, err := tm.ParseAccess(access)
	require.NoError(t, err)
	assert.Equal(t, "u-1", c.UserID)
	assert.Equal(t, RoleAdmin, c.Role)

	_, err = tm.ParseAccess(refresh)
	assert.ErrorIs(t, err, ErrInvalidToken)

	c, isRefresh, err := tm.ParseAny(refresh)
	require.NoError(t, err)
	assert.True(t, isRefresh)
	assert.Equal(t, "u-1", c.UserID)
}

func TestRejectsForeignTokens(t *testing.T) {
	access, _, _, err := newTM().GeneratePair("u-1", RoleUser)
	require.NoError(t, err)

	other := NewTokenManager("other", "other-r", "wallet-test", time.Minute, time.Hour)
	_, err = other.ParseAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	wrongIssuer := NewTokenManager("access-secret", "refresh-secret", "someone-else", time.Minute, time.Hour)
	_, err = wrongIssuer.ParseAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, _, err = newTM().ParseAny("not.a.token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredToken(t *testing.T) {
	tm := NewTokenManager("a", "r", "wallet-test", -time.Minute, time.Hour)
	access, _, _, err := tm.GeneratePair("u-1", RoleUser)
	require.NoError(t, err)
	_, err = tm.ParseAccess(access)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
