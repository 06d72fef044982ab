// Package auth handles the session credential the sync core was given.
// Authentication itself is an external collaborator; this package only
// answers "is this credential still worth dialing with" and mints
// tokens for the test harness.
package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Session wraps the bearer token of the authenticated user.
type Session struct {
	Token string
}

// Usable reports whether the token still looks valid enough to open a
// live connection. The signature is verified server-side; the client
// only inspects the expiry claim to avoid a doomed handshake.
func (s Session) Usable() bool {
	if s.Token == "" {
		return false
	}
	claims := jwt.RegisteredClaims{}
	_, _, err := jwt.NewParser().ParseUnverified(s.Token, &claims)
	if err != nil {
		return false
	}
	if claims.ExpiresAt == nil {
		return true
	}
	return claims.ExpiresAt.After(time.Now())
}

// CustomClaims defines the structure of the data stored inside the JWT.
type CustomClaims struct {
	UserID string `json:"user_id"`
	Staff  bool   `json:"staff"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific user. Used by the
// demo daemon and the e2e backend; real deployments get tokens from
// the auth service.
func GenerateToken(userID string, staff bool, secret []byte, duration time.Duration) (string, error) {
	expirationTime := time.Now().Add(duration)

	claims := &CustomClaims{
		UserID: userID,
		Staff:  staff,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expirationTime),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "booking-sync",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
