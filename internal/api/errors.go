package api

import (
	"net/http" // HTTP status codes
	"strconv"  // String conversion

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library

	"account_manager/internal/ledger" // Error codes
)

// statusFor maps a ledger error code to an HTTP status
func statusFor(code string) int {
	switch code {
	case ledger.CodeAccountNotFound:
		return http.StatusNotFound // Record never initialized
	case ledger.CodeAuthorization:
		return http.StatusForbidden // Signer does not own the record
	case ledger.CodeInsufficientFunds, ledger.CodeRentReserveUnaffordable, ledger.CodeInvalidAmount,
		ledger.CodeSeedsMismatch, ledger.CodeBalanceOverflow, ledger.CodeBalanceUnderflow:
		return http.StatusBadRequest // Caller can fix the request
	case ledger.CodeConflict:
		return http.StatusConflict // Lost a race, retry
	default:
		return http.StatusInternalServerError // Inconsistent state or internal failure
	}
}

// respondError writes the error body with its stable code
func respondError(c *gin.Context, err error) {
	code := ledger.Code(err)  // Stable error code
	status := statusFor(code) // Matching HTTP status
	if status == http.StatusInternalServerError {
		logrus.WithFields(logrus.Fields{
			"path":  c.FullPath(), // Route
			"code":  code,         // Error code
			"error": err.Error(),  // Error message
		}).Error("Request failed") // Log server side failure
	}
	c.JSON(status, gin.H{"error": err.Error(), "code": code})
}

// pagination reads page and page_size the same way on every list endpoint
func pagination(c *gin.Context) (page, pageSize, offset int) {
	page = 1      // Default page number
	pageSize = 20 // Default page size
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v // Set page if valid
		}
	}
	// Check and set page size within limits
	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v // Set page size
		}
	}
	return page, pageSize, (page - 1) * pageSize
}

// totalPages rounds total up to whole pages
func totalPages(total int64, pageSize int) int {
	return (int(total) + pageSize - 1) / pageSize
}
