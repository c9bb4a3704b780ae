package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestJWTService_RoundTrip(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig(testSecret))

	token, exp, err := svc.GenerateAccessToken(Subject{
		UserID:       "clerk-1",
		Email:        "clerk@example.com",
		Roles:        []string{"raw_clerk"},
		WarehouseIDs: []string{"0190a0b4-0000-7000-8000-000000000001"},
	})
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(12*time.Hour), exp, time.Minute)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "clerk-1", user.UserID)
	assert.Equal(t, "clerk@example.com", user.Email)
	assert.Equal(t, []string{"raw_clerk"}, user.Roles)
	assert.Equal(t, []string{"0190a0b4-0000-7000-8000-000000000001"}, user.WarehouseIDs)
	assert.False(t, user.IsAdmin)
}

func TestJWTService_AdminRoleSetsFlag(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig(testSecret))

	token, _, err := svc.GenerateAccessToken(Subject{UserID: "root", Roles: []string{RoleAdmin}})
	require.NoError(t, err)

	user, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.True(t, user.IsAdmin)
}

func TestJWTService_Rejects(t *testing.T) {
	svc := NewJWTService(DefaultJWTConfig(testSecret))

	t.Run("empty user", func(t *testing.T) {
		_, _, err := svc.GenerateAccessToken(Subject{})
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(DefaultJWTConfig("ffffffffffffffffffffffffffffffff"))
		token, _, err := other.GenerateAccessToken(Subject{UserID: "u"})
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("expired", func(t *testing.T) {
		cfg := DefaultJWTConfig(testSecret)
		cfg.AccessTokenTTL = -time.Minute
		token, _, err := NewJWTService(cfg).GenerateAccessToken(Subject{UserID: "u"})
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("foreign issuer", func(t *testing.T) {
		cfg := DefaultJWTConfig(testSecret)
		cfg.Issuer = "someone-else"
		token, _, err := NewJWTService(cfg).GenerateAccessToken(Subject{UserID: "u"})
		require.NoError(t, err)
		_, err = svc.ValidateToken(token)
		assert.Error(t, err)
	})

	t.Run("none algorithm", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "u"})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)
		_, err = svc.ValidateToken(signed)
		assert.Error(t, err)
	})
}
