package api

import (
	"powtoken/internal/domain"
)

// Action requests. Assets use the "100.0000 TOK" text form.

type createRequest struct {
	Issuer        domain.AccountName `json:"issuer" binding:"required"`
	MaximumSupply domain.Asset       `json:"maximum_supply"`
}

type issueRequest struct {
	To       domain.AccountName `json:"to" binding:"required"`
	Quantity domain.Asset       `json:"quantity"`
	Memo     string             `json:"memo"`
}

type transferRequest struct {
	From     domain.AccountName `json:"from" binding:"required"`
	To       domain.AccountName `json:"to" binding:"required"`
	Quantity domain.Asset       `json:"quantity"`
	Memo     string             `json:"memo"`
}

type mineRequest struct {
	Nonce       string             `json:"nonce" binding:"required"` // hex
	TargetToken domain.Asset       `json:"target_token"`
	Miner       domain.AccountName `json:"miner" binding:"required"`
}

type registerRequest struct {
	Name      domain.AccountName `json:"name" binding:"required"`
	PublicKey string             `json:"public_key"`
}

// Responses.

type tokenView struct {
	Symbol           string `json:"symbol"`
	Supply           string `json:"supply"`
	MaxSupply        string `json:"max_supply"`
	Issuer           string `json:"issuer"`
	Difficulty       string `json:"difficulty"`
	DifficultyBits   int    `json:"difficulty_bits"`
	BlockHeight      uint64 `json:"block_height"`
	PreviousDigest   string `json:"previous_digest"`
	LastRetargetTime int64  `json:"last_retarget_time"`
	CreatedAt        int64  `json:"created_at"`
	UpdatedAt        int64  `json:"updated_at"`
}

func newTokenView(st *domain.TokenStats) tokenView {
	return tokenView{
		Symbol:           st.Supply.Symbol.String(),
		Supply:           st.Supply.String(),
		MaxSupply:        st.MaxSupply.String(),
		Issuer:           st.Issuer.String(),
		Difficulty:       st.Difficulty.String(),
		DifficultyBits:   st.Difficulty.LeadingZeroBits(),
		BlockHeight:      st.BlockHeight,
		PreviousDigest:   st.PreviousDigest.String(),
		LastRetargetTime: st.LastRetargetTime,
		CreatedAt:        st.CreatedAt,
		UpdatedAt:        st.UpdatedAt,
	}
}

type balanceView struct {
	Owner     string `json:"owner"`
	Balance   string `json:"balance"`
	UpdatedAt int64  `json:"updated_at,omitempty"`
}

func newBalanceViews(list []*domain.Balance) []balanceView {
	out := make([]balanceView, 0, len(list))
	for _, b := range list {
		out = append(out, balanceView{Owner: b.Owner.String(), Balance: b.Amount.String(), UpdatedAt: b.UpdatedAt})
	}
	return out
}

type accountView struct {
	Name      string `json:"name"`
	PublicKey string `json:"public_key,omitempty"`
	CreatedAt int64  `json:"created_at"`
}

func newAccountView(a *domain.Account) accountView {
	return accountView{Name: a.Name.String(), PublicKey: a.PublicKey, CreatedAt: a.CreatedAt}
}

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}
