package api

import (
	"crypto/ed25519" // Wallet signature verification
	"net/http"       // HTTP status codes

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/google/uuid"     // Challenge nonces
	"github.com/mr-tron/base58"  // Signature encoding
	"github.com/sirupsen/logrus" // Structured logging
	"golang.org/x/crypto/bcrypt" // Password hashing

	"account_manager/internal/pubkey" // Wallet addresses
	"account_manager/internal/utils"  // Utility functions
)

// Request struct for a login challenge
type ChallengeRequest struct {
	Wallet string `json:"wallet" binding:"required"` // Base58 wallet address
}

// Request struct for a wallet session
type SessionRequest struct {
	Challenge string `json:"challenge" binding:"required"` // Challenge token from /session/challenge
	Signature string `json:"signature" binding:"required"` // Base58 ed25519 signature over the challenge
}

// Request struct for operator login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// Response struct for authentication
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

// ChallengeHandler issues a nonce the wallet must sign
func ChallengeHandler(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChallengeRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		wallet, err := pubkey.Parse(req.Wallet) // Validate address
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid wallet address"})
			return
		}
		challenge, err := utils.GenerateChallenge(wallet.String(), uuid.NewString(), jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate challenge"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"challenge": challenge, "expires_in": int(utils.ChallengeTTL.Seconds())})
	}
}

// SessionHandler exchanges a signed challenge for a wallet session token
func SessionHandler(cache *utils.Cache, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SessionRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		claims, err := utils.ParseJWT(req.Challenge, utils.PurposeChallenge, jwtSecret)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired challenge"})
			return
		}
		wallet, err := pubkey.Parse(claims.Subject) // Wallet the challenge was issued to
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired challenge"})
			return
		}
		sig, err := base58.Decode(req.Signature) // Decode signature
		if err != nil || len(sig) != ed25519.SignatureSize {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature encoding"})
			return
		}
		// The wallet address is its ed25519 public key
		if !ed25519.Verify(ed25519.PublicKey(wallet.Bytes()), []byte(req.Challenge), sig) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid signature"})
			return
		}
		// Each challenge buys one session
		first, err := cache.Once(c.Request.Context(), "challenge:"+claims.ID, utils.ChallengeTTL)
		if err != nil {
			logrus.WithError(err).Error("Failed to record challenge")
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Session store unavailable"})
			return
		}
		if !first {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Challenge already used"})
			return
		}
		token, err := utils.GenerateJWT(wallet.String(), utils.RoleWallet, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}

// OperatorLoginHandler authenticates the operator against the configured bcrypt hash
func OperatorLoginHandler(username, passwordHash, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
			return
		}
		// No hash configured means operator login is disabled
		if passwordHash == "" || req.Username != username {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		// Compare provided password with configured hash
		if err := bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		token, err := utils.GenerateJWT(username, utils.RoleOperator, jwtSecret)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token})
	}
}
