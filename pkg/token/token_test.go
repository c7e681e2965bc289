package token

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestDeviceToken_RoundTrip(t *testing.T) {
	require.NoError(t, Init("test-secret", time.Hour))

	signed, expiresAt, err := GenerateDeviceToken("device-1")
	require.NoError(t, err)
	require.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	did, err := ValidateDeviceToken(signed)
	require.NoError(t, err)
	require.Equal(t, "device-1", did)
}

func TestValidateDeviceToken_Rejects(t *testing.T) {
	require.NoError(t, Init("test-secret", time.Hour))

	_, err := ValidateDeviceToken("not-a-token")
	require.Error(t, err)

	other, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		IdentityKey: "device-1",
		"exp":       time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = ValidateDeviceToken(other)
	require.Error(t, err)

	expired, err := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, jwtv5.MapClaims{
		IdentityKey: "device-1",
		"exp":       time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	_, err = ValidateDeviceToken(expired)
	require.Error(t, err)
}

func TestWriteDeviceToken(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "device.token")
	require.NoError(t, WriteDeviceToken(path, "abc"))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "abc", strings.TrimSpace(string(b)))

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
