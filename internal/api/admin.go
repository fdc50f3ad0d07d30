package api

import (
	"errors"   // Error inspection
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library

	"account_manager/internal/domain"     // Storage models
	"account_manager/internal/ledger"     // Balance program
	"account_manager/internal/middleware" // Context keys
	"account_manager/internal/pubkey"     // Addresses
	"account_manager/internal/record"     // Record layout
	"account_manager/internal/runtime"    // Faucet errors
	"account_manager/internal/utils"      // Utility functions
)

// AirdropRequest funds a wallet from the faucet
type AirdropRequest struct {
	Wallet   string `json:"wallet" binding:"required"`   // Base58 wallet address
	Lamports uint64 `json:"lamports" binding:"required"` // Lamports to mint
}

// AirdropHandler mints lamports into a wallet
func AirdropHandler(prog *ledger.Program, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req AirdropRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		wallet, err := pubkey.Parse(req.Wallet) // Validate address
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		ctx := c.Request.Context()
		tx, err := prog.Bank().Airdrop(ctx, wallet, req.Lamports)
		// Overflow and program-owned targets are caller errors
		if errors.Is(err, runtime.ErrArithmeticOverflow) || errors.Is(err, runtime.ErrAirdropTarget) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		} else if err != nil {
			respondError(c, err)
			return
		}
		// Log successful airdrop
		logrus.WithFields(logrus.Fields{
			"operator":  c.GetString(middleware.KeySubject), // Operator name
			"wallet":    wallet.String(),                    // Funded wallet
			"lamports":  req.Lamports,                       // Minted amount
			"signature": tx.Signature,                       // Journal signature
		}).Info("Airdrop transaction")
		invalidate(ctx, cache, wallet) // Drop cached wallet and history
		c.JSON(http.StatusOK, gin.H{"message": "Airdrop successful", "transaction": tx})
	}
}

// ListAccountsHandler returns every record owned by the program
func ListAccountsHandler(prog *ledger.Program, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		page, pageSize, offset := pagination(c)
		// Create a cache key based on pagination parameters
		cacheKey := "admin:accounts:page=" + strconv.Itoa(page) + ":size=" + strconv.Itoa(pageSize)
		ctx := c.Request.Context()
		var cached accountsPage
		if found, err := cache.Get(ctx, cacheKey, &cached); err == nil && found {
			cached.Cached = true
			c.JSON(http.StatusOK, cached)
			return
		}
		accounts, total, err := prog.Records(ctx, offset, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := accountsPage{
			Accounts:   make([]AccountAdminResponse, 0, len(accounts)), // Decoded records
			Page:       page,                                           // Current page
			PageSize:   pageSize,                                       // Page size
			Total:      total,                                          // Total number of records
			TotalPages: totalPages(total, pageSize),                    // Total pages
		}
		// Map accounts to response format
		for _, a := range accounts {
			resp.Accounts = append(resp.Accounts, newAccountAdminResponse(a))
		}
		_ = cache.Set(ctx, cacheKey, resp) // Cache the response for future requests
		c.JSON(http.StatusOK, resp)        // Return the response
	}
}

// AccountAdminResponse represents a record account returned to the operator
type AccountAdminResponse struct {
	Address  pubkey.Pubkey  `json:"address"`          // Record address
	Lamports uint64         `json:"lamports"`         // Lamports held, reserve included
	Record   *record.Record `json:"record,omitempty"` // Decoded record, nil when undecodable
	Version  uint64         `json:"version"`          // Commit count
}

// newAccountAdminResponse decodes the record data when possible
func newAccountAdminResponse(a domain.Account) AccountAdminResponse {
	resp := AccountAdminResponse{Address: a.Address, Lamports: a.Lamports, Version: a.Version}
	if rec, err := record.Decode(a.Data); err == nil {
		resp.Record = &rec
	}
	return resp
}

// accountsPage is one page of record accounts
type accountsPage struct {
	Accounts   []AccountAdminResponse `json:"accounts"`    // List of accounts
	Page       int                    `json:"page"`        // Current page
	PageSize   int                    `json:"page_size"`   // Page size
	Total      int64                  `json:"total"`       // Total number of records
	TotalPages int                    `json:"total_pages"` // Total pages
	Cached     bool                   `json:"cached"`      // Served from cache
}

// ListTransactionsHandler returns the journal of any wallet
func ListTransactionsHandler(prog *ledger.Program) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, err := pubkey.Parse(c.Param("wallet"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		page, pageSize, offset := pagination(c)
		txs, total, err := prog.History(c.Request.Context(), wallet, offset, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, historyPage{
			Transactions: txs,                         // List of transactions
			Page:         page,                        // Current page
			PageSize:     pageSize,                    // Page size
			Total:        total,                       // Total number of transactions
			TotalPages:   totalPages(total, pageSize), // Total pages
		})
	}
}
