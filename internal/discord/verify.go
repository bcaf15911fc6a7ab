package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrInvalidSignature means the request was not signed by Discord.
var ErrInvalidSignature = errors.New("invalid request signature")

// ParsePublicKey decodes the application's hex encoded public key.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode public key: %w", err)
	}
	if len(b) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("public key must be %d bytes, got %d", ed25519.PublicKeySize, len(b))
	}
	return ed25519.PublicKey(b), nil
}

// Verify checks the X-Signature-Ed25519 header over timestamp+body.
func Verify(key ed25519.PublicKey, signature, timestamp string, body []byte) error {
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize || timestamp == "" {
		return ErrInvalidSignature
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	if !ed25519.Verify(key, msg, sig) {
		return ErrInvalidSignature
	}
	return nil
}
