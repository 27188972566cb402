package domain

import (
	"powtoken/internal/difficulty"
	"powtoken/internal/digest"
)

// TokenStats is the per-symbol metadata row: supply accounting plus the
// mining chain state. Corresponds to the token_stats table, keyed by symbol code.
type TokenStats struct {
	Supply    Asset       // circulating amount, 0 <= Supply <= MaxSupply
	MaxSupply Asset       // immutable ceiling set at creation
	Issuer    AccountName // may issue directly, bypassing mining

	// Mining chain state
	Difficulty       difficulty.Target // current proof-of-work target
	BlockHeight      uint64            // accepted solutions so far
	PreviousDigest   digest.Digest     // digest of the last accepted solution
	LastRetargetTime int64             // last difficulty adjustment (ms)

	CreatedAt int64 // row creation timestamp (ms)
	UpdatedAt int64 // last mutation timestamp (ms)
}

// Code returns the symbol code the row is keyed by.
func (s *TokenStats) Code() string {
	return s.Supply.Symbol.Code
}
