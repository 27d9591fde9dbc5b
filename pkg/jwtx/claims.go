package jwtx

import (
	"crypto/rand"
	"encoding/base64"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Default token TTL constants for the token flows this server issues.
const (
	// DefaultAccessTokenTTL is the lifetime of an MCP access token.
	DefaultAccessTokenTTL = time.Hour

	// DefaultWebAccessTTL is the lifetime of a web session access token.
	DefaultWebAccessTTL = 10 * time.Minute

	// DefaultWebRefreshTTL is the lifetime of a web session refresh token.
	DefaultWebRefreshTTL = 24 * time.Hour
)

// Claims are access-token claims. MCP tokens carry the client/scope/server
// fields; web session tokens carry only Username on top of the registered
// claims. Keep changes additive to preserve compatibility for later.
type Claims struct {
	jwt.RegisteredClaims

	// ClientID of the OAuth client the token was issued to.
	ClientID string `json:"client_id,omitempty"`

	// Scopes granted on the token, e.g. ["tasks:read", "wiki:write"].
	Scopes []string `json:"scope,omitempty"`

	// ServerIdentifier is the provided identifier of the MCP server the
	// token is scoped to. Mirrors aud for convenience.
	ServerIdentifier string `json:"server_identifier,omitempty"`

	// Resource the client asked for in the authorization request, if any.
	Resource string `json:"resource,omitempty"`

	// Version of the token claim layout.
	Version string `json:"version,omitempty"`

	// Username of the authenticated human user (web session tokens only).
	Username string `json:"username,omitempty"`
}

// NewJTI returns a URL-safe random identifier for the "jti" claim.
func NewJTI() string {
	var b [20]byte
	_, _ = rand.Read(b[:])
	return base64.RawURLEncoding.EncodeToString(b[:])
}

// ValidateIssuer checks if the issuer matches expected value.
func (c *Claims) ValidateIssuer(expected string) error {
	if expected == "" {
		return nil // nothing to enforce
	}
	if c.Issuer != expected {
		return ErrIssuer
	}
	return nil
}

// ValidateAudience checks if at least one expected audience is present.
func (c *Claims) ValidateAudience(expected []string) error {
	if len(expected) == 0 {
		return nil // nothing to enforce
	}

	for _, want := range expected {
		if slices.Contains(c.Audience, want) {
			return nil
		}
	}
	return ErrAudience
}

// ValidateExpiry ensures the token hasn't expired (exp) and isn't used
// before it is valid (nbf).
func (c *Claims) ValidateExpiry() error {
	now := time.Now().UTC()

	if c.ExpiresAt != nil && now.After(c.ExpiresAt.Time) {
		return ErrExpired
	}
	if c.NotBefore != nil && now.Before(c.NotBefore.Time) {
		return ErrNotYetValid
	}
	return nil
}
