package domain

import "time"

// Token endpoint auth methods we accept at registration.
const (
	AuthMethodNone              = "none"
	AuthMethodClientSecretBasic = "client_secret_basic"
	AuthMethodClientSecretPost  = "client_secret_post"
)

// Grant types a registered client must carry.
const (
	GrantTypeAuthorizationCode = "authorization_code"
	GrantTypeRefreshToken      = "refresh_token"
	GrantTypeTokenExchange     = "urn:ietf:params:oauth:grant-type:token-exchange"
)

// Client is an OAuth client registered via RFC 7591 dynamic registration.
// Identity is immutable once issued; removal is soft-delete only.
type Client struct {
	ID                      string
	ClientID                string
	Name                    string
	SecretHash              string // argon2id PHC string, "" for public clients
	RedirectURIs            []string
	GrantTypes              []string
	TokenEndpointAuthMethod string
	Scopes                  []string
	CodeChallengeMethod     string
	RowVersion              int64
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

// IsPublic reports whether the client authenticates without a secret.
func (c *Client) IsPublic() bool {
	return c.TokenEndpointAuthMethod == AuthMethodNone
}

// AllowsRedirectURI reports whether uri is in the registered set.
func (c *Client) AllowsRedirectURI(uri string) bool {
	for _, u := range c.RedirectURIs {
		if u == uri {
			return true
		}
	}
	return false
}
