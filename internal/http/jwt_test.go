package http

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLinkSignerRoundTrip(t *testing.T) {
	signer := NewLinkSigner("secret", time.Minute)

	token, err := signer.Sign("claims/abc123")
	require.NoError(t, err)

	key, err := signer.Verify(token)
	require.NoError(t, err)
	require.Equal(t, "claims/abc123", key)
}

func TestLinkSignerRejectsExpired(t *testing.T) {
	signer := NewLinkSigner("secret", time.Nanosecond)

	token, err := signer.Sign("claims/abc123")
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)
	_, err = signer.Verify(token)
	require.Error(t, err)
}

func TestLinkSignerRejectsForeignSignature(t *testing.T) {
	token, err := NewLinkSigner("secret-a", time.Minute).Sign("claims/abc123")
	require.NoError(t, err)

	_, err = NewLinkSigner("secret-b", time.Minute).Verify(token)
	require.Error(t, err)
}
