package api

import (
	"context"  // Context for Redis operations
	"fmt"      // Error wrapping
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library

	"account_manager/internal/domain"     // Journal entries
	"account_manager/internal/ledger"     // Balance program
	"account_manager/internal/middleware" // Context keys
	"account_manager/internal/pubkey"     // Addresses
	"account_manager/internal/utils"      // Utility functions
)

// DepositRequest represents a deposit request
type DepositRequest struct {
	Amount  uint64 `json:"amount"`  // Lamports to move into the record
	Account string `json:"account"` // Optional expected record address
}

// WithdrawRequest represents a withdraw request
type WithdrawRequest struct {
	Account string `json:"account"` // Optional expected record address
}

// Cache keys
func generationKey(w pubkey.Pubkey) string { return "gen:" + w.String() }
func viewPrefix(w pubkey.Pubkey) string { return "view:" + w.String() + ":" }

// viewKey names a cached view under the wallet's current generation. It must
// be read before the store so a write landing in between retires the key.
// ok is false when the generation is unreadable and the view must bypass the cache.
func viewKey(ctx context.Context, cache *utils.Cache, w pubkey.Pubkey, name string) (string, bool) {
	gen, err := cache.Generation(ctx, generationKey(w))
	if err != nil {
		logrus.WithField("wallet", w.String()).WithError(err).Warn("Cache generation unavailable")
		return "", false
	}
	return viewPrefix(w) + strconv.FormatInt(gen, 10) + ":" + name, true
}

// invalidate retires every cached view of a wallet after a committed write
func invalidate(ctx context.Context, cache *utils.Cache, w pubkey.Pubkey) {
	if err := cache.Bump(ctx, generationKey(w)); err != nil {
		logrus.WithField("wallet", w.String()).WithError(err).Warn("Cache invalidation failed")
	}
	if err := cache.DeletePrefix(ctx, viewPrefix(w)); err != nil {
		logrus.WithField("wallet", w.String()).WithError(err).Warn("Cache cleanup failed")
	}
}

// walletFrom returns the wallet address of the authenticated session
func walletFrom(c *gin.Context) (pubkey.Pubkey, bool) {
	subject := c.GetString(middleware.KeySubject) // Get subject from context
	w, err := pubkey.Parse(subject)
	if err != nil {
		// If not, return unauthorized
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return pubkey.Pubkey{}, false
	}
	return w, true
}

// optionalAccount parses an asserted record address, empty means none
func optionalAccount(c *gin.Context, s string) (pubkey.Pubkey, bool) {
	if s == "" {
		return pubkey.Pubkey{}, true
	}
	a, err := pubkey.Parse(s)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid account address"})
		return pubkey.Pubkey{}, false
	}
	return a, true
}

// DepositHandler moves lamports from the caller's wallet into their record
func DepositHandler(prog *ledger.Program, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, ok := walletFrom(c)
		if !ok {
			return
		}
		var req DepositRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid amount"})
			return
		}
		account, ok := optionalAccount(c, req.Account)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		receipt, err := prog.Deposit(ctx, ledger.DepositRequest{Owner: wallet, Account: account, Amount: req.Amount})
		if err != nil {
			respondError(c, err) // Mapped by error code
			return
		}
		invalidate(ctx, cache, wallet) // Drop cached account, wallet and history
		c.JSON(http.StatusOK, gin.H{"message": "Deposit successful", "receipt": receipt})
	}
}

// WithdrawHandler returns a tenth of the record balance to the caller's wallet
func WithdrawHandler(prog *ledger.Program, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, ok := walletFrom(c)
		if !ok {
			return
		}
		var req WithdrawRequest // Body is optional
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
				return
			}
		}
		account, ok := optionalAccount(c, req.Account)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		receipt, err := prog.Withdraw(ctx, ledger.WithdrawRequest{Owner: wallet, Account: account})
		if err != nil {
			respondError(c, err) // Mapped by error code
			return
		}
		invalidate(ctx, cache, wallet) // Drop cached account, wallet and history
		c.JSON(http.StatusOK, gin.H{"message": "Withdraw successful", "receipt": receipt})
	}
}

// GetAccountHandler returns the caller's record
func GetAccountHandler(prog *ledger.Program, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, ok := walletFrom(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		key, cacheable := viewKey(ctx, cache, wallet, "account")
		var lookup ledger.Lookup // Lookup to hold data
		if cacheable {
			if found, err := cache.Get(ctx, key, &lookup); err == nil && found {
				c.JSON(http.StatusOK, gin.H{"account": lookup, "cached": true}) // Return cached record
				return
			}
		}
		lookup, err := prog.Fetch(ctx, wallet) // Read through the bank
		if err != nil {
			respondError(c, err)
			return
		}
		// Return not found if the record doesn't exist
		if !lookup.Found {
			respondError(c, fmt.Errorf("%w: %s", ledger.ErrAccountNotFound, lookup.Address))
			return
		}
		if cacheable {
			_ = cache.Set(ctx, key, lookup) // Cache the record
		}
		c.JSON(http.StatusOK, gin.H{"account": lookup, "cached": false}) // Return record
	}
}

// GetWalletHandler returns the lamports held by the caller's wallet
func GetWalletHandler(prog *ledger.Program, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, ok := walletFrom(c)
		if !ok {
			return
		}
		ctx := c.Request.Context()
		key, cacheable := viewKey(ctx, cache, wallet, "wallet")
		var cached domain.Account
		if cacheable {
			if found, err := cache.Get(ctx, key, &cached); err == nil && found {
				c.JSON(http.StatusOK, gin.H{"wallet": wallet, "lamports": cached.Lamports, "cached": true})
				return
			}
		}
		acct, err := prog.Bank().Account(ctx, wallet) // Missing wallets read as empty
		if err != nil {
			respondError(c, err)
			return
		}
		if cacheable {
			_ = cache.Set(ctx, key, acct) // Cache the wallet
		}
		c.JSON(http.StatusOK, gin.H{"wallet": wallet, "lamports": acct.Lamports, "cached": false})
	}
}

// GetTransactionHistoryHandler returns the caller's journal
func GetTransactionHistoryHandler(prog *ledger.Program, cache *utils.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		wallet, ok := walletFrom(c)
		if !ok {
			return
		}
		page, pageSize, offset := pagination(c)
		ctx := c.Request.Context()
		// Redis cache key
		key, cacheable := viewKey(ctx, cache, wallet, "txhistory:page:"+strconv.Itoa(page)+":size:"+strconv.Itoa(pageSize))
		var cached historyPage
		// Try to get from cache
		if cacheable {
			if found, err := cache.Get(ctx, key, &cached); err == nil && found {
				cached.Cached = true
				c.JSON(http.StatusOK, cached)
				return
			}
		}
		txs, total, err := prog.History(ctx, wallet, offset, pageSize)
		if err != nil {
			respondError(c, err)
			return
		}
		resp := historyPage{
			Transactions: txs,                         // List of transactions
			Page:         page,                        // Current page
			PageSize:     pageSize,                    // Page size
			Total:        total,                       // Total transactions
			TotalPages:   totalPages(total, pageSize), // Total pages
		}
		if cacheable {
			_ = cache.Set(ctx, key, resp) // Cache the page
		}
		c.JSON(http.StatusOK, resp) // Return transaction history
	}
}

// historyPage is one page of journal entries
type historyPage struct {
	Transactions []domain.Transaction `json:"transactions"` // List of transactions
	Page         int                  `json:"page"`         // Current page
	PageSize     int                  `json:"page_size"`    // Page size
	Total        int64                `json:"total"`        // Total transactions
	TotalPages   int                  `json:"total_pages"`  // Total pages
	Cached       bool                 `json:"cached"`       // Served from cache
}

// DeriveHandler returns the record address of any owner
func DeriveHandler(prog *ledger.Program) gin.HandlerFunc {
	return func(c *gin.Context) {
		owner, err := pubkey.Parse(c.Param("owner"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid owner address"})
			return
		}
		addr, bump, err := prog.Derive(owner)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"owner":   owner,     // Owner wallet
			"program": prog.ID(), // Program the address is derived under
			"account": addr,      // Record address
			"bump":    bump,      // Bump seed
		})
	}
}
