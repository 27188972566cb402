package domain

import (
	"fmt"
	"strconv"
	"strings"
)

// MaxPrecision is the largest number of decimal places a symbol may carry.
// At this precision MaxAmount still holds MaxWholeAmount whole tokens.
const MaxPrecision = 12

// MaxWholeAmount is the largest whole-token amount representable at every valid precision.
const MaxWholeAmount = MaxAmount / 1_000_000_000_000

// MaxSymbolLength is the longest symbol code accepted.
const MaxSymbolLength = 7

// Symbol identifies a token type: an uppercase code plus a fixed decimal precision.
type Symbol struct {
	Code      string // 1-7 uppercase letters, e.g. "TOK"
	Precision uint8  // decimal places of the minimal unit
}

// NewSymbol builds a symbol without validating it.
func NewSymbol(code string, precision uint8) Symbol {
	return Symbol{Code: code, Precision: precision}
}

// ParseSymbol parses "4,TOK" (precision,code).
func ParseSymbol(s string) (Symbol, error) {
	parts := strings.SplitN(strings.TrimSpace(s), ",", 2)
	if len(parts) != 2 {
		return Symbol{}, fmt.Errorf("symbol %q: want precision,CODE", s)
	}
	p, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Symbol{}, fmt.Errorf("symbol %q: precision: %w", s, err)
	}
	sym := Symbol{Code: parts[1], Precision: uint8(p)}
	if !sym.IsValid() {
		return Symbol{}, fmt.Errorf("symbol %q: invalid", s)
	}
	return sym, nil
}

// IsValid checks code charset/length and precision bound.
func (s Symbol) IsValid() bool {
	if len(s.Code) == 0 || len(s.Code) > MaxSymbolLength {
		return false
	}
	for i := 0; i < len(s.Code); i++ {
		if s.Code[i] < 'A' || s.Code[i] > 'Z' {
			return false
		}
	}
	return s.Precision <= MaxPrecision
}

// String returns "precision,CODE".
func (s Symbol) String() string {
	return fmt.Sprintf("%d,%s", s.Precision, s.Code)
}

// Scale returns 10^Precision, the number of minimal units in one whole token.
func (s Symbol) Scale() int64 {
	scale := int64(1)
	for i := uint8(0); i < s.Precision; i++ {
		scale *= 10
	}
	return scale
}

// MarshalText implements encoding.TextMarshaler.
func (s Symbol) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Symbol) UnmarshalText(text []byte) error {
	parsed, err := ParseSymbol(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}
