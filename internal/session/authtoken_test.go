package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/session"
)

func TestVerifyAcceptsValidToken(t *testing.T) {
	secret := []byte("hmac-test-secret")
	challenge, err := session.NewChallenge()
	require.NoError(t, err)

	token, err := session.MintForTest(secret, challenge, time.Minute)
	require.NoError(t, err)

	v := session.NewHMACVerifier(secret)
	assert.NoError(t, v.Verify(token, challenge))
}

func TestVerifyRejectsWrongChallenge(t *testing.T) {
	secret := []byte("hmac-test-secret")
	challenge, err := session.NewChallenge()
	require.NoError(t, err)
	other, err := session.NewChallenge()
	require.NoError(t, err)

	token, err := session.MintForTest(secret, challenge, time.Minute)
	require.NoError(t, err)

	v := session.NewHMACVerifier(secret)
	assert.Error(t, v.Verify(token, other))
}

func TestVerifyRejectsExpiredToken(t *testing.T) {
	secret := []byte("hmac-test-secret")
	challenge, err := session.NewChallenge()
	require.NoError(t, err)

	token, err := session.MintForTest(secret, challenge, -time.Minute)
	require.NoError(t, err)

	v := session.NewHMACVerifier(secret)
	assert.Error(t, v.Verify(token, challenge))
}
