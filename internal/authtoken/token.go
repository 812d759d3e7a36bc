// Package authtoken issues and checks the bearer tokens shared between the
// livesync CLI and an agent started with a secret.
package authtoken

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
)

const (
	Issuer          = "livesync"
	DefaultTokenTTL = 12 * time.Hour

	cacheSize = 128
	cacheTTL  = 5 * time.Minute
)

var (
	ErrNoSecret     = errors.New("authtoken: secret is empty")
	ErrInvalidToken = errors.New("authtoken: invalid token")
)

// Issue signs a token for subject valid for ttl
func Issue(secret, subject string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", ErrNoSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}

	now := time.Now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		Issuer:    Issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// Verifier validates tokens and caches good ones for a few minutes
type Verifier struct {
	secret []byte
	cache  *expirable.LRU[string, *jwt.RegisteredClaims]
}

func NewVerifier(secret string) (*Verifier, error) {
	if secret == "" {
		return nil, ErrNoSecret
	}
	return &Verifier{
		secret: []byte(secret),
		cache:  expirable.NewLRU[string, *jwt.RegisteredClaims](cacheSize, nil, cacheTTL),
	}, nil
}

func (v *Verifier) Verify(tokenString string) (*jwt.RegisteredClaims, error) {
	if claims, ok := v.cache.Get(tokenString); ok && claims.ExpiresAt.After(time.Now()) {
		return claims, nil
	}

	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	v.cache.Add(tokenString, claims)
	return claims, nil
}
