package domain

// Balance is one owner's holding of one symbol.
// Corresponds to the balances table, keyed by (owner, symbol code).
// A row exists only while Amount is strictly positive.
type Balance struct {
	Owner     AccountName // PK part 1
	Amount    Asset       // PK part 2 is Amount.Symbol.Code
	UpdatedAt int64       // last mutation timestamp (ms)
}
