// Package auth issues and verifies the HS256 tokens that bind HTTP requests
// and realtime handshakes to a user id.
package auth

import (
	"errors"
	"fmt"
	"time"

	"shelterlink/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

const (
	Issuer     = "shelterlink-service"
	DefaultTTL = 72 * time.Hour
)

var ErrInvalidToken = errors.New("invalid or expired token")

// Claims is the token payload. Subject holds the user id.
type Claims struct {
	Role models.Role `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens створює видавця і перевіряльника токенів з одним секретом.
func NewTokens(secret string, ttl time.Duration) *Tokens {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue signs a token for userID.
func (t *Tokens) Issue(userID string, role models.Role) (string, time.Time, error) {
	if !models.ValidUserID(userID) {
		return "", time.Time{}, fmt.Errorf("invalid user id %q", userID)
	}
	now := t.now().UTC()
	exp := now.Add(t.ttl)
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, issuer and expiry and returns the claims.
func (t *Tokens) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	tok, err := jwt.ParseWithClaims(raw, claims, func(tok *jwt.Token) (any, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	},
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !tok.Valid {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !models.ValidUserID(claims.Subject) {
		return nil, fmt.Errorf("%w: invalid subject %q", ErrInvalidToken, claims.Subject)
	}
	return claims, nil
}

// UserID is a shorthand for Verify(raw).Subject.
func (t *Tokens) UserID(raw string) (string, error) {
	claims, err := t.Verify(raw)
	if err != nil {
		return "", err
	}
	return claims.Subject, nil
}
