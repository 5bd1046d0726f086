// Package token decodes bearer access tokens on the client side. It never
// verifies signatures; it only reads the exp claim to decide whether a token
// is still worth presenting.
package token

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryBuffer is subtracted from a token's exp so that a token about to
// expire in flight is already treated as expired.
const ExpiryBuffer = 5 * time.Second

var (
	ErrMalformed     = errors.New("malformed token")
	ErrMissingExpiry = errors.New("token has no exp claim")
)

type Codec struct {
	now    func() time.Time
	parser *jwt.Parser
}

func NewCodec(now func() time.Time) *Codec {
	if now == nil {
		now = time.Now
	}

	return &Codec{
		now:    now,
		parser: jwt.NewParser(),
	}
}

var defaultCodec = NewCodec(time.Now)

// IsExpired reports whether tok is expired using the wall clock.
func IsExpired(tok string) bool {
	return defaultCodec.IsExpired(tok)
}

// ExpiresAt decodes the exp claim of a three-segment token.
func (c *Codec) ExpiresAt(tok string) (time.Time, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" || strings.Count(tok, ".") != 2 {
		return time.Time{}, ErrMalformed
	}

	claims := jwt.MapClaims{}
	if _, _, err := c.parser.ParseUnverified(tok, claims); err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if exp == nil {
		return time.Time{}, ErrMissingExpiry
	}

	return exp.Time, nil
}

// IsExpired fails closed: anything that cannot be decoded is expired.
func (c *Codec) IsExpired(tok string) bool {
	exp, err := c.ExpiresAt(tok)
	if err != nil {
		return true
	}

	return !c.now().Before(exp.Add(-ExpiryBuffer))
}
