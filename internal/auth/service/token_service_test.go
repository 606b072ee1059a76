package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	autherror "github.com/maxjeffwell/microservices-platform/internal/errors"
)

func TestNewTokenService(t *testing.T) {
	ts := NewTokenService("access-secret-key", "issuer", "audience", 10080)

	assert.NotNil(t, ts)
	assert.Equal(t, "access-secret-key", ts.AccessTokenSecret)
	assert.Equal(t, "issuer", ts.Issuer)
	assert.Equal(t, "audience", ts.Audience)
	assert.Equal(t, 10080*time.Minute, ts.AccessTokenExpiry)
}

func TestTokenService_Generate(t *testing.T) {
	ts := NewTokenService("test-access-secret-key-123", "test-issuer", "test-audience", 15)

	beforeGenerate := time.Now()
	accessToken, expiryTime, err := ts.Generate("user-123", "test@example.com")
	afterGenerate := time.Now()

	require.NoError(t, err)
	assert.NotEmpty(t, accessToken)

	expectedExpiry := beforeGenerate.Add(ts.AccessTokenExpiry)
	assert.True(t, expiryTime.After(expectedExpiry.Add(-time.Second)))
	assert.True(t, expiryTime.Before(afterGenerate.Add(ts.AccessTokenExpiry).Add(time.Second)))

	claims := &JWTCustomClaims{}
	parsed, err := jwt.ParseWithClaims(accessToken, claims, func(token *jwt.Token) (interface{}, error) {
		return []byte(ts.AccessTokenSecret), nil
	})
	require.NoError(t, err)
	assert.True(t, parsed.Valid)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)
	assert.Equal(t, jwt.ClaimStrings{"test-audience"}, claims.Audience)
}

func TestTokenService_VerifyAccessToken_Roundtrip(t *testing.T) {
	ts := NewTokenService("test-access-secret", "test-issuer", "test-audience", 15)

	accessToken, _, err := ts.Generate("user-123", "test@example.com")
	require.NoError(t, err)

	claims, err := ts.VerifyAccessToken(accessToken)

	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "test@example.com", claims.Email)
}

func TestTokenService_VerifyAccessToken_Expired(t *testing.T) {
	// Negative expiry mints a token that is already expired.
	ts := NewTokenService("test-access-secret", "test-issuer", "test-audience", -1)

	accessToken, _, err := ts.Generate("user-123", "test@example.com")
	require.NoError(t, err)

	claims, err := ts.VerifyAccessToken(accessToken)

	assert.Equal(t, autherror.ErrAccessTokenExpired, err)
	assert.Nil(t, claims)
}

func TestTokenService_VerifyAccessToken_Invalid(t *testing.T) {
	ts := NewTokenService("test-access-secret", "test-issuer", "test-audience", 15)

	tests := []struct {
		name  string
		token func(t *testing.T) string
	}{
		{
			name: "garbage token",
			token: func(t *testing.T) string {
				return "not-a-jwt"
			},
		},
		{
			name: "wrong secret",
			token: func(t *testing.T) string {
				other := NewTokenService("different-secret", "test-issuer", "test-audience", 15)
				token, _, err := other.Generate("user-123", "test@example.com")
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "wrong issuer",
			token: func(t *testing.T) string {
				other := NewTokenService("test-access-secret", "rogue-issuer", "test-audience", 15)
				token, _, err := other.Generate("user-123", "test@example.com")
				require.NoError(t, err)
				return token
			},
		},
		{
			name: "wrong audience",
			token: func(t *testing.T) string {
				other := NewTokenService("test-access-secret", "test-issuer", "rogue-audience", 15)
				token, _, err := other.Generate("user-123", "test@example.com")
				require.NoError(t, err)
				return token
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims, err := ts.VerifyAccessToken(tt.token(t))

			assert.Equal(t, autherror.ErrAccessTokenInvalid, err)
			assert.Nil(t, claims)
		})
	}
}

func TestTokenService_NewOpaqueToken(t *testing.T) {
	ts := NewTokenService("secret", "issuer", "audience", 15)

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		token, err := ts.NewOpaqueToken()

		require.NoError(t, err)
		// 32 random bytes hex-encoded
		assert.Len(t, token, 64)
		assert.False(t, seen[token], "opaque tokens must not repeat")
		seen[token] = true
	}
}
