package jwt

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager("test-secret", "chatrelay-test", 15*time.Minute, 7*24*time.Hour)
}

func TestManager_GenerateTokenPair(t *testing.T) {
	manager := testManager()

	tokens, err := manager.GenerateTokenPair("alice@example.com")
	require.NoError(t, err)

	assert.NotEmpty(t, tokens.AccessToken)
	assert.NotEmpty(t, tokens.RefreshToken)
	assert.Equal(t, int64(15*60), tokens.ExpiresIn) // 15 minutes in seconds
}

func TestManager_ValidateToken(t *testing.T) {
	manager := testManager()

	tokens, err := manager.GenerateTokenPair("alice@example.com")
	require.NoError(t, err)

	claims, err := manager.ValidateToken(tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Identity)
	assert.Equal(t, "chatrelay-test", claims.Issuer)
}

func TestManager_ValidateToken_Invalid(t *testing.T) {
	manager := testManager()

	_, err := manager.ValidateToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)

	// 用不同密钥签出的令牌无效
	other := NewManager("other-secret", "chatrelay-test", 15*time.Minute, time.Hour)
	tokens, err := other.GenerateTokenPair("alice@example.com")
	require.NoError(t, err)

	_, err = manager.ValidateToken(tokens.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestManager_ValidateToken_Expired(t *testing.T) {
	manager := NewManager("test-secret", "chatrelay-test", -time.Minute, time.Hour)

	tokens, err := manager.GenerateTokenPair("alice@example.com")
	require.NoError(t, err)

	_, err = manager.ValidateToken(tokens.AccessToken)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestManager_RefreshAccessToken(t *testing.T) {
	manager := testManager()

	tokens, err := manager.GenerateTokenPair("alice@example.com")
	require.NoError(t, err)

	accessToken, err := manager.RefreshAccessToken(tokens.RefreshToken)
	require.NoError(t, err)

	claims, err := manager.ValidateToken(accessToken)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", claims.Identity)
}
