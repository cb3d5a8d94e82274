package jwt

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-admin-secret-key-for-testing-purposes"

func TestGenerateAccessToken(t *testing.T) {
	service := NewService(testSecret, time.Hour)

	token, err := service.GenerateAccessToken("owner@lessons.test", []string{RoleAdmin})
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "owner@lessons.test", claims.Email)
	assert.Equal(t, "owner@lessons.test", claims.Subject)
	assert.True(t, claims.HasRole(RoleAdmin))
	assert.False(t, claims.HasRole("student"))
	assert.NotEmpty(t, claims.ID)
}

func TestValidateAccessToken(t *testing.T) {
	service := NewService(testSecret, time.Hour)

	t.Run("Wrong secret", func(t *testing.T) {
		other := NewService("another-secret", time.Hour)
		token, err := other.GenerateAccessToken("owner@lessons.test", []string{RoleAdmin})
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
	})

	t.Run("Expired", func(t *testing.T) {
		expired := NewService(testSecret, -time.Minute)
		token, err := expired.GenerateAccessToken("owner@lessons.test", []string{RoleAdmin})
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(token)
		assert.Error(t, err)
		assert.True(t, IsExpired(err))
	})

	t.Run("Unexpected signing method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Email: "x@y.z"})
		tokenString, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(tokenString)
		assert.Error(t, err)
	})

	t.Run("Wrong issuer", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
			Email: "owner@lessons.test",
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		tokenString, err := token.SignedString([]byte(testSecret))
		require.NoError(t, err)

		_, err = service.ValidateAccessToken(tokenString)
		assert.Error(t, err)
	})

	t.Run("Garbage", func(t *testing.T) {
		_, err := service.ValidateAccessToken("not-a-token")
		assert.Error(t, err)
	})
}

func TestTokenExpiry(t *testing.T) {
	service := NewService(testSecret, 30*time.Minute)

	token, err := service.GenerateAccessToken("owner@lessons.test", []string{RoleAdmin})
	require.NoError(t, err)

	claims, err := service.ValidateAccessToken(token)
	require.NoError(t, err)
	require.NotNil(t, claims.ExpiresAt)
	assert.WithinDuration(t, time.Now().Add(30*time.Minute), claims.ExpiresAt.Time, 5*time.Second)
	assert.Equal(t, 30*time.Minute, service.Expiry())
}
