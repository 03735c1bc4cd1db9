package engine

import (
	"testing"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/require"
)

func TestMintTokenParsesWithSecret(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	token, err := mintToken(secret)
	require.NoError(t, err)

	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	})
	require.NoError(t, err)
	require.True(t, parsed.Valid)

	got, ok := parsed.Claims.(*claims)
	require.True(t, ok)
	require.NotZero(t, got.IssuedAt)
}

func TestMintTokenRejectsWrongSecret(t *testing.T) {
	token, err := mintToken([]byte("secret-a"))
	require.NoError(t, err)

	_, err = jwt.ParseWithClaims(token, &claims{}, func(*jwt.Token) (interface{}, error) {
		return []byte("secret-b"), nil
	})
	require.Error(t, err)
}
