package domain

import "time"

// TokenPair is what the token endpoint returns: the short-lived access
// token (JWT) and the opaque refresh token.
type TokenPair struct {
	AccessToken  string        `json:"access_token"`
	RefreshToken string        `json:"refresh_token"`
	TokenType    string        `json:"token_type,omitempty"` // typically "Bearer"
	ExpiresIn    time.Duration `json:"expires_in"`           // seconds until expiry
	Scope        string        `json:"scope,omitempty"`      // space-delimited
}

// RefreshTokenKind distinguishes MCP refresh tokens from web-session ones.
type RefreshTokenKind string

const (
	RefreshKindMCP RefreshTokenKind = "mcp"
	RefreshKindWeb RefreshTokenKind = "web"
)

// RefreshToken models the stored refresh token record. Only the
// fingerprint is persisted, never the plaintext token.
type RefreshToken struct {
	ID        string
	Kind      RefreshTokenKind
	SubjectID string // flow ID for MCP tokens, user ID for web tokens
	ClientID  string
	TokenHash string // deterministic fingerprint (base64url SHA-256)
	Scopes    []string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Usable reports whether the token can still be redeemed.
func (t *RefreshToken) Usable(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
