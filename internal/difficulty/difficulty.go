// Package difficulty implements the proof-of-work target.
//
// A Target is a 256-bit unsigned threshold. A candidate digest, read as a
// big-endian 256-bit integer, is accepted iff it is strictly less than the
// target. A larger target is therefore easier to satisfy.
package difficulty

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/holiman/uint256"

	"powtoken/internal/digest"
)

// Per-retarget adjustment is clamped to [1/MaxAdjustment, MaxAdjustment].
const MaxAdjustment = 4

// ErrInvalidTarget is returned for zero, oversized or malformed targets.
var ErrInvalidTarget = errors.New("invalid difficulty target")

var maxTargetBig = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Target is a 256-bit proof-of-work threshold. The zero value is not a valid target.
type Target struct {
	v uint256.Int
}

// Max returns the easiest possible target, 2^256-1.
func Max() Target {
	var t Target
	t.v.SetAllOne()
	return t
}

// FromLeadingZeroBits returns the target that on average requires a digest
// with n leading zero bits: (2^256-1) >> n. n must be in [0, 255].
func FromLeadingZeroBits(n uint) (Target, error) {
	if n > 255 {
		return Target{}, fmt.Errorf("%w: %d leading zero bits", ErrInvalidTarget, n)
	}
	t := Max()
	t.v.Rsh(&t.v, n)
	return t, nil
}

// FromUint64 returns a target with the given numeric value.
func FromUint64(v uint64) (Target, error) {
	if v == 0 {
		return Target{}, fmt.Errorf("%w: zero", ErrInvalidTarget)
	}
	var t Target
	t.v.SetUint64(v)
	return t, nil
}

// FromBytes decodes a big-endian target of at most 32 bytes.
func FromBytes(b []byte) (Target, error) {
	if len(b) > digest.Size {
		return Target{}, fmt.Errorf("%w: %d bytes", ErrInvalidTarget, len(b))
	}
	var t Target
	t.v.SetBytes(b)
	if t.v.IsZero() {
		return Target{}, fmt.Errorf("%w: zero", ErrInvalidTarget)
	}
	return t, nil
}

// Parse decodes a hex target, with or without 0x prefix, of at most 64 digits.
func Parse(s string) (Target, error) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "0x")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return Target{}, fmt.Errorf("%w: %v", ErrInvalidTarget, err)
	}
	return FromBytes(b)
}

// MustParse is like Parse but panics on error. Intended for constants and tests.
func MustParse(s string) Target {
	t, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return t
}

// Digits returns the target as a fixed-length big-endian byte sequence, most
// significant first, of the same width as a digest.
func (t Target) Digits() [digest.Size]byte {
	return t.v.Bytes32()
}

// Accepts reports whether d, read as a big-endian integer, is strictly below t.
func (t Target) Accepts(d digest.Digest) bool {
	var x uint256.Int
	x.SetBytes32(d[:])
	return x.Lt(&t.v)
}

// Cmp compares two targets numerically.
func (t Target) Cmp(o Target) int {
	return t.v.Cmp(&o.v)
}

// Equal reports whether both targets hold the same value.
func (t Target) Equal(o Target) bool {
	return t.v.Eq(&o.v)
}

// IsZero reports whether t is the (invalid) zero value.
func (t Target) IsZero() bool {
	return t.v.IsZero()
}

// LeadingZeroBits is the number of leading zero bits of the 256-bit target.
func (t Target) LeadingZeroBits() int {
	return 256 - t.v.BitLen()
}

// Big returns the target as a new big.Int.
func (t Target) Big() *big.Int {
	return t.v.ToBig()
}

// Decimal returns the base-10 representation.
func (t Target) Decimal() string {
	return t.v.Dec()
}

// String returns the 64-digit zero-padded hex representation.
func (t Target) String() string {
	b := t.v.Bytes32()
	return hex.EncodeToString(b[:])
}

// MarshalText implements encoding.TextMarshaler.
func (t Target) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Target) UnmarshalText(text []byte) error {
	parsed, err := Parse(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Retarget scales t by observed/expected, the ratio between the time the last
// retarget window actually took and the time it should have taken.
//
// The result is clamped to [t/4, t*4], saturates at 2^256-1 and is never
// below 1. A non-positive observed duration counts as one millisecond.
// A non-positive expected duration leaves t unchanged.
func (t Target) Retarget(observed, expected time.Duration) Target {
	if expected <= 0 {
		return t
	}

	obsMs := observed.Milliseconds()
	if obsMs <= 0 {
		obsMs = 1
	}
	expMs := expected.Milliseconds()
	if expMs <= 0 {
		expMs = 1
	}

	old := t.v.ToBig()
	next := new(big.Int).Mul(old, big.NewInt(obsMs))
	next.Quo(next, big.NewInt(expMs))

	minTarget := new(big.Int).Quo(old, big.NewInt(MaxAdjustment))
	if minTarget.Sign() == 0 {
		minTarget = big.NewInt(1)
	}
	maxTarget := new(big.Int).Mul(old, big.NewInt(MaxAdjustment))
	if maxTarget.Cmp(maxTargetBig) > 0 {
		maxTarget = maxTargetBig
	}

	if next.Cmp(minTarget) < 0 {
		next = minTarget
	}
	if next.Cmp(maxTarget) > 0 {
		next = maxTarget
	}

	var out Target
	// next is within [1, 2^256-1] here, so FromBig cannot overflow.
	v, _ := uint256.FromBig(next)
	out.v = *v
	return out
}
