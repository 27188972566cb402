package accounts

import (
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// ErrInvalidKey is returned for keys that do not decode to a valid ed25519 key.
var ErrInvalidKey = errors.New("invalid key")

// KeyPair is a base58-encoded ed25519 key pair.
type KeyPair struct {
	PublicKey  string `json:"public_key"`
	PrivateKey string `json:"private_key"` // 64-byte seed||public form
}

// GenerateKey creates a fresh key pair.
func GenerateKey() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, fmt.Errorf("generate key: %w", err)
	}
	return KeyPair{
		PublicKey:  base58.Encode(pub),
		PrivateKey: base58.Encode(priv),
	}, nil
}

// ParsePublicKey decodes a base58 public key and checks it is a curve point.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if !isOnCurve(raw) {
		return nil, fmt.Errorf("%w: not an ed25519 point", ErrInvalidKey)
	}
	return ed25519.PublicKey(raw), nil
}

// ParsePrivateKey decodes a base58 private key.
func ParsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("%w: private key is %d bytes", ErrInvalidKey, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

// Sign signs msg and returns the base58 signature.
func Sign(priv ed25519.PrivateKey, msg []byte) string {
	return base58.Encode(ed25519.Sign(priv, msg))
}

// Verify checks a base58 signature of msg.
func Verify(pub ed25519.PublicKey, msg []byte, sig string) bool {
	raw, err := base58.Decode(sig)
	if err != nil || len(raw) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, msg, raw)
}

func isOnCurve(point []byte) bool {
	if len(point) != 32 {
		return false
	}
	_, err := new(edwards25519.Point).SetBytes(point)
	return err == nil
}
