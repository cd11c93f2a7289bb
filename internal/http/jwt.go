package http

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LinkSigner issues short-lived HMAC tokens that grant access to one
// evidence object. The object key travels as the token subject, so evidence
// links can be shared in chat without exposing the bucket.
type LinkSigner struct {
	secret []byte
	ttl    time.Duration
}

func NewLinkSigner(secret string, ttl time.Duration) *LinkSigner {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &LinkSigner{secret: []byte(secret), ttl: ttl}
}

func (s *LinkSigner) Sign(key string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   key,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
	})
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign evidence link: %w", err)
	}
	return signed, nil
}

// Verify returns the evidence key the token grants access to.
func (s *LinkSigner) Verify(tokenStr string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &jwt.RegisteredClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("parse evidence link: %w", err)
	}
	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || claims.Subject == "" {
		return "", fmt.Errorf("evidence link has no subject")
	}
	return claims.Subject, nil
}
