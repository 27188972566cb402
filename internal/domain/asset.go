package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxAmount bounds every asset amount, in minimal units: 2^62-1.
const MaxAmount = int64(1)<<62 - 1

var (
	// ErrSymbolMismatch is returned when arithmetic mixes two symbols.
	ErrSymbolMismatch = errors.New("asset symbol mismatch")

	// ErrAmountOverflow is returned when arithmetic leaves [-MaxAmount, MaxAmount].
	ErrAmountOverflow = errors.New("asset amount out of range")
)

// Asset is an amount of a symbol, expressed in minimal units.
// "100.0000 TOK" is Asset{Amount: 1000000, Symbol: {TOK, 4}}.
type Asset struct {
	Amount int64  // minimal units
	Symbol Symbol // code + precision
}

// NewAsset builds an asset from minimal units.
func NewAsset(amount int64, sym Symbol) Asset {
	return Asset{Amount: amount, Symbol: sym}
}

// WholeAsset builds an asset from a number of whole tokens.
func WholeAsset(tokens int64, sym Symbol) (Asset, error) {
	scale := sym.Scale()
	if tokens != 0 && (tokens > MaxAmount/scale || tokens < -MaxAmount/scale) {
		return Asset{}, fmt.Errorf("%w: %d %s", ErrAmountOverflow, tokens, sym.Code)
	}
	return Asset{Amount: tokens * scale, Symbol: sym}, nil
}

// ParseAsset parses "100.0000 TOK". The number of fractional digits fixes the precision.
func ParseAsset(s string) (Asset, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Asset{}, fmt.Errorf("asset %q: want \"<amount> <CODE>\"", s)
	}
	num, code := fields[0], fields[1]

	negative := strings.HasPrefix(num, "-")
	num = strings.TrimPrefix(num, "-")

	intPart, fracPart := num, ""
	if dot := strings.IndexByte(num, '.'); dot >= 0 {
		intPart, fracPart = num[:dot], num[dot+1:]
		if fracPart == "" {
			return Asset{}, fmt.Errorf("asset %q: empty fraction", s)
		}
	}
	if intPart == "" || len(fracPart) > MaxPrecision || !isDigits(intPart) || !isDigits(fracPart) {
		return Asset{}, fmt.Errorf("asset %q: malformed amount", s)
	}

	amount, err := strconv.ParseInt(intPart+fracPart, 10, 64)
	if err != nil {
		return Asset{}, fmt.Errorf("asset %q: %w", s, err)
	}
	if amount > MaxAmount {
		return Asset{}, fmt.Errorf("asset %q: %w", s, ErrAmountOverflow)
	}
	if negative {
		amount = -amount
	}

	a := Asset{Amount: amount, Symbol: Symbol{Code: code, Precision: uint8(len(fracPart))}}
	if !a.Symbol.IsValid() {
		return Asset{}, fmt.Errorf("asset %q: invalid symbol", s)
	}
	return a, nil
}

// IsValid checks the amount range and the symbol.
func (a Asset) IsValid() bool {
	return a.Amount >= -MaxAmount && a.Amount <= MaxAmount && a.Symbol.IsValid()
}

// Add returns a+b. Both must share a symbol and the sum must stay in range.
func (a Asset) Add(b Asset) (Asset, error) {
	if a.Symbol != b.Symbol {
		return Asset{}, fmt.Errorf("%w: %s vs %s", ErrSymbolMismatch, a.Symbol, b.Symbol)
	}
	sum := a.Amount + b.Amount
	if sum > MaxAmount || sum < -MaxAmount {
		return Asset{}, ErrAmountOverflow
	}
	return Asset{Amount: sum, Symbol: a.Symbol}, nil
}

// Sub returns a-b. Both must share a symbol and the difference must stay in range.
func (a Asset) Sub(b Asset) (Asset, error) {
	return a.Add(Asset{Amount: -b.Amount, Symbol: b.Symbol})
}

// String formats the asset as "100.0000 TOK".
func (a Asset) String() string {
	amount := a.Amount
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}
	if a.Symbol.Precision == 0 {
		return fmt.Sprintf("%s%d %s", sign, amount, a.Symbol.Code)
	}
	scale := a.Symbol.Scale()
	return fmt.Sprintf("%s%d.%0*d %s", sign, amount/scale, int(a.Symbol.Precision), amount%scale, a.Symbol.Code)
}

// MarshalText implements encoding.TextMarshaler. The zero Asset encodes as "".
func (a Asset) MarshalText() ([]byte, error) {
	if a == (Asset{}) {
		return []byte{}, nil
	}
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Asset) UnmarshalText(text []byte) error {
	if strings.TrimSpace(string(text)) == "" {
		*a = Asset{}
		return nil
	}
	parsed, err := ParseAsset(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

func isDigits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
