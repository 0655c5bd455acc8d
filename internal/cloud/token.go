package cloud

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/dmitrijs2005/videodiary/internal/logging"
)

// tokenSafetyMargin treats a token as expired slightly early so an upload
// started near the deadline does not fail mid-flight.
const tokenSafetyMargin = 30 * time.Second

// Token is a short-lived opaque bearer token. There is no refresh token:
// expiry triggers a fresh interactive sign-in.
type Token struct {
	AccessToken string
	Expiry      time.Time
}

// Valid reports whether the token can still be sent.
func (t Token) Valid() bool {
	return t.AccessToken != "" && time.Now().Before(t.Expiry.Add(-tokenSafetyMargin))
}

// Authenticator is the capability to interactively obtain or revoke a
// bearer token.
type Authenticator interface {
	SignIn(ctx context.Context) (Token, error)
	SignOut(ctx context.Context) error
}

// TokenSource resolves "a valid token" for every outbound call: the cached
// one when still valid, otherwise a fresh interactive request.
type TokenSource struct {
	auth Authenticator
	log  logging.Logger

	mu  sync.Mutex
	tok Token
}

func NewTokenSource(auth Authenticator, log logging.Logger) *TokenSource {
	return &TokenSource{auth: auth, log: log}
}

// Token returns a valid access token, signing in interactively when the
// cached one is missing or expired.
func (s *TokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.tok.Valid() {
		return s.tok.AccessToken, nil
	}

	s.log.Info(ctx, "access token missing or expired, requesting sign-in")
	tok, err := s.auth.SignIn(ctx)
	if err != nil {
		return "", fmt.Errorf("sign-in failed: %w", err)
	}
	s.tok = tok
	return s.tok.AccessToken, nil
}

// Invalidate drops the cached token so the next call forces a sign-in.
// Called after an authorization rejection.
func (s *TokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = Token{}
}

// SignOut revokes the current token and clears the cache.
func (s *TokenSource) SignOut(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tok = Token{}
	return s.auth.SignOut(ctx)
}
