// Package api exposes the ledger and the mining gate over HTTP with gin.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"powtoken/internal/accounts"
	"powtoken/internal/auth"
	"powtoken/internal/config"
	"powtoken/internal/ledger"
	"powtoken/internal/mining"
	"powtoken/internal/notify"
	"powtoken/internal/observability"
)

// Server routes HTTP requests to the engines.
type Server struct {
	ledger   *ledger.Engine
	miner    *mining.Engine
	accounts *accounts.Directory
	hub      *notify.Hub
	verifier *auth.Verifier
	authMode string
	logger   *zap.Logger
	router   *gin.Engine
}

// Options for creating Server.
type Options struct {
	// Required
	Ledger   *ledger.Engine
	Miner    *mining.Engine
	Accounts *accounts.Directory

	// Optional
	Hub      *notify.Hub    // nil disables /ws
	Verifier *auth.Verifier // required when AuthMode is config.AuthSignature
	AuthMode string         // config.AuthSignature (default) or config.AuthHeader
	Logger   *zap.Logger
}

// New creates a Server and registers its routes.
func New(opts Options) *Server {
	s := &Server{
		ledger:   opts.Ledger,
		miner:    opts.Miner,
		accounts: opts.Accounts,
		hub:      opts.Hub,
		verifier: opts.Verifier,
		authMode: opts.AuthMode,
		logger:   opts.Logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	s.logger = s.logger.Named("api")
	if s.authMode == "" {
		s.authMode = config.AuthSignature
	}
	if s.verifier == nil {
		s.verifier = auth.NewVerifier(s.accounts, 0)
	}

	r := gin.New()
	r.Use(gin.Recovery(), requestID(), requestLogger(s.logger))

	r.GET("/health", func(c *gin.Context) { c.String(http.StatusOK, "ok") })
	r.GET("/metrics", gin.WrapH(observability.Handler()))
	if s.hub != nil {
		r.GET("/ws", gin.WrapH(s.hub))
	}

	v1 := r.Group("/v1")
	v1.POST("/accounts", s.registerAccount)
	v1.GET("/accounts/:name", s.getAccount)
	v1.GET("/accounts/:name/balances", s.listBalances)
	v1.GET("/accounts/:name/balances/:symbol", s.getBalance)
	v1.GET("/accounts/:name/events", s.accountEvents)

	v1.GET("/tokens", s.listTokens)
	v1.GET("/tokens/:symbol", s.getToken)
	v1.GET("/tokens/:symbol/supply", s.getSupply)
	v1.GET("/tokens/:symbol/holders", s.listHolders)
	v1.GET("/tokens/:symbol/work", s.getWork)
	v1.GET("/tokens/:symbol/events", s.tokenEvents)

	actions := v1.Group("", s.authenticate())
	actions.POST("/create", s.create)
	actions.POST("/issue", s.issue)
	actions.POST("/transfer", s.transfer)
	actions.POST("/mine", s.mine)

	s.router = r
	return s
}

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}
