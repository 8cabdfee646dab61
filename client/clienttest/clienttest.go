// Package clienttest provides helpers for testing code built on the client package:
// a deterministic clock, access-token minting and a fake token server.
package clienttest

import (
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// FakeClock is a deterministic, advanceable clock for tests.
// It satisfies client.Clock.
type FakeClock struct {
	mu      sync.Mutex
	current time.Time
}

// NewFakeClock returns a clock frozen at t
func NewFakeClock(t time.Time) *FakeClock {
	return &FakeClock{current: t}
}

// Now returns the frozen time
func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Advance moves the clock forward by d
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = c.current.Add(d)
}

// Set moves the clock to t
func (c *FakeClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// signingKey is only used to produce well-formed tokens; the client never verifies them
var signingKey = []byte("clienttest-signing-key")

// TokenOption adds claims to a minted token
type TokenOption func(jwt.MapClaims)

// WithSubject sets user_id and email
func WithSubject(id int64, email string) TokenOption {
	return func(c jwt.MapClaims) {
		c["user_id"] = id
		c["email"] = email
	}
}

// WithClaim sets an arbitrary claim
func WithClaim(key string, value any) TokenOption {
	return func(c jwt.MapClaims) {
		c[key] = value
	}
}

// MintToken returns an HS256 access token expiring at exp
func MintToken(exp time.Time, opts ...TokenOption) string {
	claims := jwt.MapClaims{
		"token_type": "access",
		"exp":        exp.Unix(),
		"iat":        exp.Add(-5 * time.Minute).Unix(),
	}
	for _, opt := range opts {
		opt(claims)
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		panic(err)
	}
	return s
}

// MintTokenIn returns a token expiring d after now
func MintTokenIn(now time.Time, d time.Duration, opts ...TokenOption) string {
	return MintToken(now.Add(d), opts...)
}

type jwtExp struct {
	Exp int64 `json:"exp"`
}

func decodeExp(token string, out *jwtExp) error {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return err
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return jwt.ErrTokenInvalidClaims
	}
	out.Exp = exp.Unix()
	return nil
}
