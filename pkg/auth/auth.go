// Package auth supplies the bearer tokens REST calls carry. A TokenSource
// abstracts where tokens come from: a fixed string, or a refresh endpoint
// consulted shortly before the current token expires.
package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/singleflight"
)

// TokenSource yields the bearer token to attach to a request. Token may
// block, for example while a refresh call is in flight.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// StaticTokenSource returns a source that always yields tok.
func StaticTokenSource(tok string) TokenSource {
	return staticSource(tok)
}

type staticSource string

func (s staticSource) Token(ctx context.Context) (string, error) {
	return string(s), nil
}

// RefreshFunc obtains a fresh token, typically by calling the server's
// refresh endpoint.
type RefreshFunc func(ctx context.Context) (string, error)

// DefaultLeeway is how close to expiry a token may get before Token
// refreshes it.
const DefaultLeeway = 30 * time.Second

// RefreshingTokenSource hands out a JWT and replaces it through a
// RefreshFunc once it is within the leeway of expiring. Concurrent
// callers share a single refresh call. Tokens that do not parse as JWTs
// are handed out unchanged, since their expiry cannot be inspected.
//
// Expiry comes from an unverified parse of the exp claim: the client only
// schedules refreshes with it, signature validation stays the server's
// job.
type RefreshingTokenSource struct {
	refresh RefreshFunc
	leeway  time.Duration

	mu      sync.Mutex
	current string

	group singleflight.Group
}

var _ TokenSource = (*RefreshingTokenSource)(nil)

// NewRefreshingTokenSource builds a source starting from initial, which
// may be empty to force a refresh on first use. A nil refresh degrades
// the source to a static one.
func NewRefreshingTokenSource(initial string, refresh RefreshFunc) *RefreshingTokenSource {
	return &RefreshingTokenSource{
		refresh: refresh,
		leeway:  DefaultLeeway,
		current: initial,
	}
}

// WithLeeway overrides the refresh leeway and returns the source for
// chaining.
func (s *RefreshingTokenSource) WithLeeway(d time.Duration) *RefreshingTokenSource {
	s.leeway = d
	return s
}

func (s *RefreshingTokenSource) Token(ctx context.Context) (string, error) {
	tok, ok := s.usable()
	if ok || s.refresh == nil {
		return tok, nil
	}

	v, err, _ := s.group.Do("refresh", func() (any, error) {
		// Whoever held the flight before us may have refreshed already.
		if tok, ok := s.usable(); ok {
			return tok, nil
		}
		tok, err := s.refresh(ctx)
		if err != nil {
			return "", err
		}
		s.mu.Lock()
		s.current = tok
		s.mu.Unlock()
		return tok, nil
	})
	if err != nil {
		return "", fmt.Errorf("refresh token: %w", err)
	}
	return v.(string), nil
}

// usable returns the current token and whether it can be handed out
// without refreshing.
func (s *RefreshingTokenSource) usable() (string, bool) {
	s.mu.Lock()
	tok := s.current
	s.mu.Unlock()

	if tok == "" {
		return "", false
	}
	exp, ok := tokenExpiry(tok)
	if !ok {
		return tok, true
	}
	return tok, time.Now().Add(s.leeway).Before(exp)
}

// tokenExpiry reads the exp claim without verifying the signature. The
// second return value is false for non-JWT tokens and JWTs without an
// expiry.
func tokenExpiry(tok string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
