// Package digest provides the fixed-width 256-bit digest used by the mining puzzle.
package digest

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/minio/sha256-simd"
	"github.com/mr-tron/base58"
	"golang.org/x/crypto/sha3"
)

// Size is the digest width in bytes.
const Size = 32

// Supported hasher names.
const (
	SHA256   = "sha256"
	SHA3_256 = "sha3-256"
)

// ErrUnknownHasher is returned by New for an unsupported algorithm name.
var ErrUnknownHasher = errors.New("unknown digest algorithm")

// Digest is a 256-bit digest, big-endian when read as an integer.
type Digest [Size]byte

// Zero is the digest a freshly created token chains its first puzzle from.
var Zero Digest

// Hasher computes a Digest over an arbitrary byte sequence.
type Hasher interface {
	Sum(data []byte) Digest
	Name() string
}

type sha256Hasher struct{}

func (sha256Hasher) Sum(data []byte) Digest { return Digest(sha256.Sum256(data)) }
func (sha256Hasher) Name() string           { return SHA256 }

type sha3Hasher struct{}

func (sha3Hasher) Sum(data []byte) Digest { return Digest(sha3.Sum256(data)) }
func (sha3Hasher) Name() string           { return SHA3_256 }

// Default returns the SHA-256 hasher.
func Default() Hasher { return sha256Hasher{} }

// New returns the hasher registered under name. An empty name selects SHA-256.
func New(name string) (Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", SHA256:
		return sha256Hasher{}, nil
	case SHA3_256, "sha3":
		return sha3Hasher{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHasher, name)
	}
}

// String returns the lowercase hex encoding (64 characters).
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Base58 returns the Bitcoin-alphabet base58 encoding.
func (d Digest) Base58() string {
	return base58.Encode(d[:])
}

// IsZero reports whether every byte of d is zero.
func (d Digest) IsZero() bool {
	return d == Zero
}

// FromBytes copies b into a Digest. b must be exactly Size bytes long.
func FromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != Size {
		return d, fmt.Errorf("digest: invalid length %d, want %d", len(b), Size)
	}
	copy(d[:], b)
	return d, nil
}

// Parse decodes a 64-character hex digest.
func Parse(s string) (Digest, error) {
	b, err := hex.DecodeString(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return Digest{}, fmt.Errorf("digest: decode hex: %w", err)
	}
	return FromBytes(b)
}

// MarshalText implements encoding.TextMarshaler.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
