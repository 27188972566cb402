package api

import (
	"encoding/hex"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"powtoken/internal/domain"
	"powtoken/internal/notify"
)

func (s *Server) create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.ledger.Create(c.Request.Context(), req.Issuer, req.MaximumSupply); err != nil {
		abortWithError(c, err)
		return
	}
	st, err := s.ledger.Stats(c.Request.Context(), req.MaximumSupply.Symbol.Code)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newTokenView(st))
}

func (s *Server) issue(c *gin.Context) {
	var req issueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.ledger.Issue(c.Request.Context(), req.To, req.Quantity, req.Memo); err != nil {
		abortWithError(c, err)
		return
	}
	supply, err := s.ledger.Supply(c.Request.Context(), req.Quantity.Symbol.Code)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"supply": supply.String()})
}

func (s *Server) transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := s.ledger.Transfer(c.Request.Context(), req.From, req.To, req.Quantity, req.Memo); err != nil {
		abortWithError(c, err)
		return
	}
	bal, err := s.ledger.Balance(c.Request.Context(), req.From, req.Quantity.Symbol.Code)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": bal.String()})
}

func (s *Server) mine(c *gin.Context) {
	var req mineRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	nonce, err := hex.DecodeString(req.Nonce)
	if err != nil {
		badRequest(c, fmt.Errorf("nonce: %w", err))
		return
	}
	res, err := s.miner.Mine(c.Request.Context(), nonce, req.TargetToken, req.Miner)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) registerAccount(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	acc, err := s.accounts.Register(c.Request.Context(), req.Name, req.PublicKey)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusCreated, newAccountView(acc))
}

func (s *Server) getAccount(c *gin.Context) {
	acc, err := s.accounts.Get(c.Request.Context(), domain.AccountName(c.Param("name")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newAccountView(acc))
}

func (s *Server) listBalances(c *gin.Context) {
	list, err := s.ledger.Balances(c.Request.Context(), domain.AccountName(c.Param("name")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBalanceViews(list))
}

func (s *Server) getBalance(c *gin.Context) {
	owner := domain.AccountName(c.Param("name"))
	bal, err := s.ledger.Balance(c.Request.Context(), owner, c.Param("symbol"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, balanceView{Owner: owner.String(), Balance: bal.String()})
}

func (s *Server) listTokens(c *gin.Context) {
	list, err := s.ledger.Tokens(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	out := make([]tokenView, 0, len(list))
	for _, st := range list {
		out = append(out, newTokenView(st))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getToken(c *gin.Context) {
	st, err := s.ledger.Stats(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newTokenView(st))
}

func (s *Server) getSupply(c *gin.Context) {
	supply, err := s.ledger.Supply(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"supply": supply.String()})
}

func (s *Server) listHolders(c *gin.Context) {
	list, err := s.ledger.Holders(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, newBalanceViews(list))
}

func (s *Server) getWork(c *gin.Context) {
	work, err := s.miner.Work(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, work)
}

func (s *Server) tokenEvents(c *gin.Context) {
	events, err := s.ledger.Events(c.Request.Context(), c.Param("symbol"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventMessages(events))
}

func (s *Server) accountEvents(c *gin.Context) {
	events, err := s.ledger.AccountEvents(c.Request.Context(), domain.AccountName(c.Param("name")))
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, eventMessages(events))
}

func eventMessages(events []*domain.LedgerEvent) []notify.EventMessage {
	out := make([]notify.EventMessage, 0, len(events))
	for _, e := range events {
		out = append(out, notify.NewEventMessage(e))
	}
	return out
}
