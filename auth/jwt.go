// Package auth verifies the session tokens issued by the identity service.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails verification.
var ErrInvalidToken = errors.New("invalid token")

const issuer = "chat_server"

// Claims carries the authenticated user id.
type Claims struct {
	UserID string `json:"userId"`
	jwt.RegisteredClaims
}

// JWTVerifier signs and verifies HS256 tokens with a shared secret.
type JWTVerifier struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewJWTVerifier returns a verifier for secret. ttl applies to issued tokens.
func NewJWTVerifier(secret string, ttl time.Duration) *JWTVerifier {
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &JWTVerifier{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue creates a token for userID.
func (v *JWTVerifier) Issue(userID string) (string, time.Time, error) {
	now := v.now()
	expires := now.Add(v.ttl)
	claims := &Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("could not sign token: %w", err)
	}
	return signed, expires, nil
}

// Verify parses tokenString and returns the user id it carries.
func (v *JWTVerifier) Verify(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	}, jwt.WithTimeFunc(v.now), jwt.WithExpirationRequired())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.UserID == "" {
		return "", ErrInvalidToken
	}
	return claims.UserID, nil
}
