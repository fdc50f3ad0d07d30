package utils

import (
	"errors" // Sentinel errors
	"time"   // Time for token expiration

	"github.com/golang-jwt/jwt/v5" // JWT library
)

// Token purposes
const (
	PurposeSession   = "session"   // Bearer token for protected routes
	PurposeChallenge = "challenge" // Nonce a wallet must sign to log in
)

// Roles carried in session tokens
const (
	RoleWallet   = "wallet"   // A wallet holder
	RoleOperator = "operator" // The faucet operator
)

// Token lifetimes
const (
	SessionTTL   = 24 * time.Hour  // Session tokens expire in 24 hours
	ChallengeTTL = 5 * time.Minute // Challenges expire in 5 minutes
)

var ErrWrongPurpose = errors.New("token has the wrong purpose")

// JWT Claims
type Claims struct {
	Role                 string `json:"role"`    // Wallet or operator
	Purpose              string `json:"purpose"` // Session or challenge
	jwt.RegisteredClaims        // Standard JWT claims, subject holds the wallet address
}

// sign creates and signs a token with the given claims
func sign(claims Claims, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl)) // Token expiry
	claims.IssuedAt = jwt.NewNumericDate(now)           // Issued at current time

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims) // Create token with claims
	return token.SignedString([]byte(secret))                  // Sign the token with the secret
}

// GenerateJWT creates a session token for a subject and role
func GenerateJWT(subject, role, secret string) (string, error) {
	return sign(Claims{
		Role:             role,                                    // Subject role
		Purpose:          PurposeSession,                          // Usable as bearer token
		RegisteredClaims: jwt.RegisteredClaims{Subject: subject}, // Wallet or operator name
	}, SessionTTL, secret)
}

// GenerateChallenge creates a short-lived login challenge for a wallet
func GenerateChallenge(wallet, nonce, secret string) (string, error) {
	return sign(Claims{
		Purpose: PurposeChallenge, // Only accepted by the session endpoint
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: wallet, // Wallet that must sign
			ID:      nonce,  // Random nonce
		},
	}, ChallengeTTL, secret)
}

// ParseJWT parses and validates a JWT token string of the wanted purpose
func ParseJWT(tokenStr, purpose, secret string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil // Return the secret key for validation
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	// Check for parsing errors
	if err != nil {
		return nil, err // Return error if parsing fails
	}
	// Validate token and extract claims
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, jwt.ErrSignatureInvalid // Return error if token is invalid
	}
	if claims.Purpose != purpose {
		return nil, ErrWrongPurpose // A challenge is not a session and vice versa
	}
	return claims, nil
}
