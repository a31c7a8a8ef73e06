package sdk

import (
	"fmt"
	"sync"

	"github.com/golang-jwt/jwt/v5"

	"github.com/camphub/camphub-go/kvstore"
)

// Persistent key names. Stable across reloads of the same profile.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyCSRFCache    = "csrf_token_cache"
	keySessionToken = "session_token"
)

// TokenPair holds the bearer access/refresh tokens. An empty Access means
// the actor is anonymous for bearer-protocol purposes.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// Claims encodes the JWT claims embedded into access tokens.
//
// This is a DTO matching the server's access token contract; only the expiry
// and subject identity claims are meaningful to this layer.
type Claims struct {
	UserID    string `json:"uid"`
	SessionID string `json:"sid,omitempty"`
	TokenType string `json:"typ,omitempty"`

	jwt.RegisteredClaims
}

// CredentialStore owns the bearer token pair, the cached CSRF token, and the
// ephemeral session-protocol handle. It performs no network or validation
// work. All writers in the SDK go through these setters so partial updates
// are impossible.
type CredentialStore struct {
	mu    sync.Mutex
	store kvstore.Store
}

// NewCredentialStore wraps the given persistent store.
func NewCredentialStore(store kvstore.Store) *CredentialStore {
	return &CredentialStore{store: store}
}

// Tokens returns the stored token pair. Missing entries read as empty.
func (c *CredentialStore) Tokens() TokenPair {
	c.mu.Lock()
	defer c.mu.Unlock()
	access, _ := c.store.Get(keyAccessToken)
	refresh, _ := c.store.Get(keyRefreshToken)
	return TokenPair{Access: access, Refresh: refresh}
}

// SetTokens stores a new token pair. An empty refresh token preserves the
// existing one, matching refresh responses that rotate only the access token.
func (c *CredentialStore) SetTokens(pair TokenPair) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.store.Set(keyAccessToken, pair.Access); err != nil {
		return err
	}
	if pair.Refresh == "" {
		return nil
	}
	return c.store.Set(keyRefreshToken, pair.Refresh)
}

// CSRF returns the cached CSRF token, or "" when none is cached.
func (c *CredentialStore) CSRF() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.store.Get(keyCSRFCache)
	return v
}

// SetCSRF caches a resolved CSRF token. An empty value drops the cache.
func (c *CredentialStore) SetCSRF(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" {
		return c.store.Delete(keyCSRFCache)
	}
	return c.store.Set(keyCSRFCache, token)
}

// SessionToken returns the cached ephemeral session-protocol handle.
func (c *CredentialStore) SessionToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, _ := c.store.Get(keySessionToken)
	return v
}

// SetSessionToken caches the session-protocol handle for subsequent calls.
// An empty value drops it (server signalled the session was invalidated).
func (c *CredentialStore) SetSessionToken(token string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token == "" {
		return c.store.Delete(keySessionToken)
	}
	return c.store.Set(keySessionToken, token)
}

// Clear removes the token pair, the CSRF cache, and the session handle in
// one operation. No caller can observe a state where one entry is cleared
// and another is stale.
func (c *CredentialStore) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Delete(keyAccessToken, keyRefreshToken, keyCSRFCache, keySessionToken)
}

// AccessClaims decodes the expiry and subject claims of the stored access
// token without verifying its signature. Verification is the backend's job;
// the client only needs the embedded metadata.
func (c *CredentialStore) AccessClaims() (Claims, error) {
	pair := c.Tokens()
	if pair.Access == "" {
		return Claims{}, fmt.Errorf("sdk: no access token stored")
	}
	var claims Claims
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(pair.Access, &claims); err != nil {
		return Claims{}, fmt.Errorf("sdk: decode access token: %w", err)
	}
	return claims, nil
}
