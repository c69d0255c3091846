package utils

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Tokens are issued by the identity provider; this package only has to agree
// with it on the secret, issuer and claim names.
var (
	jwtMu        sync.RWMutex
	jwtSecretKey []byte
	jwtIssuer    = "bakery-ops"
)

const AccessTokenTTL = 15 * time.Minute

var ErrJWTNotConfigured = errors.New("jwt secret is not configured")

// Claims defines the JWT claims structure
type Claims struct {
	UserID          string `json:"user_id"`
	BakeryID        string `json:"bakery_id"`
	IsPlatformAdmin bool   `json:"is_platform_admin"`
	Role            string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// ConfigureJWT sets the shared HMAC secret and expected issuer.
func ConfigureJWT(secret, issuer string) {
	jwtMu.Lock()
	defer jwtMu.Unlock()
	jwtSecretKey = []byte(secret)
	if issuer != "" {
		jwtIssuer = issuer
	}
}

func jwtSettings() ([]byte, string, error) {
	jwtMu.RLock()
	defer jwtMu.RUnlock()
	if len(jwtSecretKey) == 0 {
		return nil, "", ErrJWTNotConfigured
	}
	return jwtSecretKey, jwtIssuer, nil
}

// GenerateAccessToken signs a token for the given identity. The service never
// calls it on a request path; it backs cmd/tokengen and the tests.
func GenerateAccessToken(userID, bakeryID, role string, isPlatformAdmin bool, ttl time.Duration) (string, error) {
	secret, issuer, err := jwtSettings()
	if err != nil {
		return "", err
	}
	if ttl <= 0 {
		ttl = AccessTokenTTL
	}
	now := time.Now()
	claims := &Claims{
		UserID:          userID,
		BakeryID:        bakeryID,
		IsPlatformAdmin: isPlatformAdmin,
		Role:            role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and validates a JWT token string.
// It returns the claims if the token is valid, otherwise an error.
func ValidateToken(tokenString string) (*Claims, error) {
	secret, issuer, err := jwtSettings()
	if err != nil {
		return nil, err
	}
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())

	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if !token.Valid {
		return nil, fmt.Errorf("invalid token")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("invalid token: missing user_id")
	}

	return claims, nil
}
