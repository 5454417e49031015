package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGenToken(t *testing.T) {
	a, err := genToken(32)
	require.NoError(t, err)
	require.Len(t, a, 64)

	b, err := genToken(32)
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}

func TestRefreshDigest(t *testing.T) {
	digest := hashRefreshToken("some-token")
	require.Len(t, digest, 64)
	require.NotEqual(t, "some-token", digest)

	require.True(t, refreshDigestEqual("some-token", digest))
	require.False(t, refreshDigestEqual("other-token", digest))
	require.False(t, refreshDigestEqual("some-token", hashRefreshToken("other-token")))
}

func TestAccessTokenRoundTrip(t *testing.T) {
	secret := []byte("test-secret")

	token, err := createAccessToken(secret, "u42", time.Minute)
	require.NoError(t, err)

	userID, err := parseAccessToken(secret, token)
	require.NoError(t, err)
	require.Equal(t, "u42", userID)
}

func TestParseAccessTokenRejections(t *testing.T) {
	secret := []byte("test-secret")

	token, err := createAccessToken(secret, "u42", time.Minute)
	require.NoError(t, err)

	_, err = parseAccessToken([]byte("wrong-secret"), token)
	require.Error(t, err)

	_, err = parseAccessToken(secret, "not.a.jwt")
	require.Error(t, err)

	_, err = parseAccessToken(secret, token+"x")
	require.Error(t, err)

	expired, err := createAccessToken(secret, "u42", -time.Minute)
	require.NoError(t, err)
	_, err = parseAccessToken(secret, expired)
	require.Error(t, err)
}
