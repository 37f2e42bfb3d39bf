package discord

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
)

// Placeholder values that ship in example env files. Booting with one of
// these means every forged request would be accepted, so refuse outright.
var placeholderKeys = map[string]struct{}{
	"your_public_key_here":    {},
	"changeme":                {},
	"replace_me":              {},
	"discord_public_key_here": {},
}

// Verifier checks Ed25519 signatures on inbound interaction requests.
type Verifier struct {
	key ed25519.PublicKey
}

// NewVerifier decodes the hex-encoded public key from configuration.
// A missing, placeholder, or malformed key is a deployment defect and
// returns an error rather than a verifier that silently rejects (or worse,
// accepts) everything.
func NewVerifier(hexKey string) (*Verifier, error) {
	trimmed := strings.TrimSpace(hexKey)
	if trimmed == "" {
		return nil, errors.New("discord: public key not configured")
	}
	if _, bad := placeholderKeys[strings.ToLower(trimmed)]; bad {
		return nil, errors.New("discord: public key is a placeholder value")
	}
	raw, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("discord: decode public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("discord: public key must be %d bytes, got %d", ed25519.PublicKeySize, len(raw))
	}
	return &Verifier{key: ed25519.PublicKey(raw)}, nil
}

// Verify reports whether signature (hex) is a valid Ed25519 signature over
// timestamp || body. Any decode failure counts as an invalid signature.
func (v *Verifier) Verify(signature, timestamp string, body []byte) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil || len(sig) != ed25519.SignatureSize {
		return false
	}
	msg := make([]byte, 0, len(timestamp)+len(body))
	msg = append(msg, timestamp...)
	msg = append(msg, body...)
	return ed25519.Verify(v.key, msg, sig)
}
