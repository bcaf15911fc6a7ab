package discord

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newKey(t *testing.T) (ed25519.PublicKey, ed25519.PrivateKey) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return pub, priv
}

func sign(priv ed25519.PrivateKey, timestamp string, body []byte) string {
	return hex.EncodeToString(ed25519.Sign(priv, append([]byte(timestamp), body...)))
}

func TestParsePublicKey(t *testing.T) {
	pub, _ := newKey(t)
	got, err := ParsePublicKey(hex.EncodeToString(pub))
	require.NoError(t, err)
	assert.Equal(t, pub, got)

	_, err = ParsePublicKey("zz")
	assert.Error(t, err)
	_, err = ParsePublicKey("abcd")
	assert.Error(t, err)
}

func TestVerify(t *testing.T) {
	pub, priv := newKey(t)
	body := []byte(`{"type":1}`)
	sig := sign(priv, "1700000000", body)

	assert.NoError(t, Verify(pub, sig, "1700000000", body))
	assert.ErrorIs(t, Verify(pub, sig, "1700000001", body), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(pub, sig, "1700000000", []byte(`{"type":2}`)), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(pub, "not-hex", "1700000000", body), ErrInvalidSignature)
	assert.ErrorIs(t, Verify(pub, sig, "", body), ErrInvalidSignature)
}
