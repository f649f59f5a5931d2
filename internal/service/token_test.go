package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenMintAndParse(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	signed, err := m.Mint("D1", "+639171234567")
	require.NoError(t, err)
	require.NotEmpty(t, signed)

	uid, phoneNumber, err := m.Parse(signed)
	require.NoError(t, err)
	assert.Equal(t, "D1", uid)
	assert.Equal(t, "+639171234567", phoneNumber)
}

func TestTokenClaims(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)

	signed, err := m.Mint("D1", "+639171234567")
	require.NoError(t, err)

	parsed, err := jwt.Parse(signed, func(t *jwt.Token) (interface{}, error) {
		return []byte("test-secret"), nil
	})
	require.NoError(t, err)

	claims, ok := parsed.Claims.(jwt.MapClaims)
	require.True(t, ok)
	assert.Equal(t, "driver", claims["role"])
	assert.Equal(t, "D1", claims["sub"])

	exp, ok := claims["exp"].(float64)
	require.True(t, ok)
	assert.InDelta(t, time.Now().Add(time.Hour).Unix(), int64(exp), 5)
}

func TestTokenParseRejectsWrongSecret(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	other := NewTokenManager("other-secret", time.Hour)

	signed, err := m.Mint("D1", "+639171234567")
	require.NoError(t, err)

	_, _, err = other.Parse(signed)
	assert.Error(t, err)
}

func TestTokenParseRejectsExpired(t *testing.T) {
	m := NewTokenManager("test-secret", -time.Minute)

	signed, err := m.Mint("D1", "+639171234567")
	require.NoError(t, err)

	_, _, err = m.Parse(signed)
	assert.Error(t, err)
}

func TestTokenParseRejectsGarbage(t *testing.T) {
	m := NewTokenManager("test-secret", time.Hour)
	_, _, err := m.Parse("not-a-token")
	assert.Error(t, err)
}
