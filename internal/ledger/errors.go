package ledger

import "errors"

// Action rejections. Every one aborts the action with no state change.
var (
	// ErrInvalidSymbol is returned when a symbol code or precision is malformed.
	ErrInvalidSymbol = errors.New("invalid symbol")

	// ErrInvalidAmount is returned for non-positive, out-of-range or precision-mismatched quantities.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrMemoTooLong is returned when a memo exceeds MaxMemoBytes.
	ErrMemoTooLong = errors.New("memo too long")

	// ErrAlreadyExists is returned when creating a symbol that already has a row.
	ErrAlreadyExists = errors.New("token with symbol already exists")

	// ErrNotFound is returned when the symbol has no token row.
	ErrNotFound = errors.New("token with symbol does not exist")

	// ErrUnknownAccount is returned when a referenced account is not registered.
	ErrUnknownAccount = errors.New("unknown account")

	// ErrSupplyExceeded is returned when a mint would push supply past max supply.
	ErrSupplyExceeded = errors.New("quantity exceeds available supply")

	// ErrSymbolMismatch is returned when a quantity's symbol differs from the token's.
	ErrSymbolMismatch = errors.New("symbol mismatch")

	// ErrInvalidNonce is returned when a candidate digest is not below the target.
	ErrInvalidNonce = errors.New("invalid nonce")

	// ErrUnauthorized is returned when the caller does not control the required account.
	ErrUnauthorized = errors.New("missing authority")

	// ErrSelfTransfer is returned when from and to are the same account.
	ErrSelfTransfer = errors.New("cannot transfer to self")

	// ErrOverdrawn is returned when a debit exceeds the balance.
	ErrOverdrawn = errors.New("overdrawn balance")
)

// codes maps each rejection to a stable snake_case code for metrics and API responses.
var codes = []struct {
	err  error
	code string
}{
	{ErrInvalidSymbol, "invalid_symbol"},
	{ErrInvalidAmount, "invalid_amount"},
	{ErrMemoTooLong, "memo_too_long"},
	{ErrAlreadyExists, "already_exists"},
	{ErrNotFound, "not_found"},
	{ErrUnknownAccount, "unknown_account"},
	{ErrSupplyExceeded, "supply_exceeded"},
	{ErrSymbolMismatch, "symbol_mismatch"},
	{ErrInvalidNonce, "invalid_nonce"},
	{ErrUnauthorized, "unauthorized"},
	{ErrSelfTransfer, "self_transfer"},
	{ErrOverdrawn, "overdrawn"},
}

// Code returns the stable code of a rejection, "ok" for nil and "internal" otherwise.
func Code(err error) string {
	if err == nil {
		return "ok"
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}

// IsRejection reports whether err is one of the action rejections above.
func IsRejection(err error) bool {
	code := Code(err)
	return code != "ok" && code != "internal"
}
