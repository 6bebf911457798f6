package utils

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashAndVerifyPassword(t *testing.T) {
	hash, err := HashPassword("hunter22")
	require.NoError(t, err)
	require.Contains(t, hash, ":")

	require.NoError(t, VerifyPassword("hunter22", hash))
	require.Error(t, VerifyPassword("hunter23", hash))
}

func TestHashPasswordSaltsEveryCall(t *testing.T) {
	first, err := HashPassword("same password")
	require.NoError(t, err)
	second, err := HashPassword("same password")
	require.NoError(t, err)

	require.NotEqual(t, first, second)
	require.NoError(t, VerifyPassword("same password", first))
	require.NoError(t, VerifyPassword("same password", second))
}

func TestVerifyPasswordRejectsMalformedHash(t *testing.T) {
	require.Error(t, VerifyPassword("anything", "no-separator"))
}

func TestGenerateSaltLength(t *testing.T) {
	salt, err := GenerateSalt(16)
	require.NoError(t, err)
	require.NotEmpty(t, salt)
	require.False(t, strings.Contains(salt, ":"))
}
