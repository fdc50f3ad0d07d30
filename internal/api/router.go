package api

import (
	"net/http" // HTTP handler type

	"github.com/gin-gonic/gin" // Gin web framework

	"account_manager/internal/ledger"     // Balance program
	"account_manager/internal/middleware" // Auth middleware
	"account_manager/internal/utils"      // Utility functions
)

// Deps holds what the routes need
type Deps struct {
	Program              *ledger.Program // Balance program
	Cache                *utils.Cache    // Read cache, nil disables caching
	JWTSecret            string          // JWT secret key
	OperatorUser         string          // Operator login name
	OperatorPasswordHash string          // Bcrypt hash of the operator password
	Metrics              http.Handler    // Prometheus handler, nil disables /metrics
}

// RegisterRoutes mounts every endpoint on r
func RegisterRoutes(r *gin.Engine, d Deps) {
	// Auth routes
	r.POST("/session/challenge", ChallengeHandler(d.JWTSecret))                                          // Challenge endpoint
	r.POST("/session", SessionHandler(d.Cache, d.JWTSecret))                                             // Wallet login endpoint
	r.POST("/operator/login", OperatorLoginHandler(d.OperatorUser, d.OperatorPasswordHash, d.JWTSecret)) // Operator login endpoint

	// Public derivation
	r.GET("/pda/:owner", DeriveHandler(d.Program)) // Derive endpoint

	// Wallet routes (protected by JWT)
	auth := middleware.JWTAuthMiddleware(d.JWTSecret)
	accountGroup := r.Group("/account")
	accountGroup.Use(auth, middleware.WalletOnlyMiddleware())
	accountGroup.GET("", GetAccountHandler(d.Program, d.Cache))                                     // Fetch endpoint
	accountGroup.POST("/deposit", DepositHandler(d.Program, d.Cache))                               // Deposit endpoint
	accountGroup.POST("/withdraw", WithdrawHandler(d.Program, d.Cache))                             // Withdraw endpoint
	accountGroup.GET("/transactions", GetTransactionHistoryHandler(d.Program, d.Cache))             // Transaction history endpoint
	r.GET("/wallet", auth, middleware.WalletOnlyMiddleware(), GetWalletHandler(d.Program, d.Cache)) // Wallet lamports endpoint

	// Admin routes (protected, operator only)
	adminGroup := r.Group("/admin")
	adminGroup.Use(auth, middleware.AdminOnlyMiddleware())
	adminGroup.POST("/airdrop", AirdropHandler(d.Program, d.Cache))             // Faucet endpoint
	adminGroup.GET("/accounts", ListAccountsHandler(d.Program, d.Cache))        // List records endpoint
	adminGroup.GET("/transactions/:wallet", ListTransactionsHandler(d.Program)) // Wallet journal endpoint

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics)) // Prometheus scrape endpoint
	}
}
