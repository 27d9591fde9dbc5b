package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
)

// DownstreamToken is the normalized result of a provider token grant.
type DownstreamToken struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    *time.Time
}

// DownstreamClient talks to one third-party OAuth provider on behalf of a
// connection. Implementations must be safe for concurrent use.
type DownstreamClient interface {
	// AuthorizeURL builds the provider's authorization URL for the given
	// connection, CSRF state, our fixed callback, and downstream scopes.
	AuthorizeURL(conn domain.Connection, state, redirectURI string, scopes []string) string

	// ExchangeCode trades an authorization code for provider tokens.
	ExchangeCode(ctx context.Context, conn domain.Connection, code, redirectURI string) (DownstreamToken, error)

	// RefreshToken trades a refresh token for a fresh access token.
	RefreshToken(ctx context.Context, conn domain.Connection, refreshToken string) (DownstreamToken, error)
}

const maxProviderResponseBytes = 1 << 20

// HTTPDownstreamClient is the production DownstreamClient: form-encoded
// POSTs against the connection's token endpoint.
type HTTPDownstreamClient struct {
	Client *http.Client
}

func NewHTTPDownstreamClient() *HTTPDownstreamClient {
	return &HTTPDownstreamClient{
		Client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *HTTPDownstreamClient) AuthorizeURL(conn domain.Connection, state, redirectURI string, scopes []string) string {
	q := url.Values{}
	q.Set("client_id", conn.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("response_type", "code")
	q.Set("state", state)
	// Providers only hand out refresh tokens with offline access and a
	// forced consent prompt.
	q.Set("access_type", "offline")
	q.Set("prompt", "consent")
	if len(scopes) > 0 {
		q.Set("scope", strings.Join(scopes, " "))
	}

	sep := "?"
	if strings.Contains(conn.AuthorizeURL, "?") {
		sep = "&"
	}
	return conn.AuthorizeURL + sep + q.Encode()
}

func (d *HTTPDownstreamClient) ExchangeCode(ctx context.Context, conn domain.Connection, code, redirectURI string) (DownstreamToken, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("client_id", conn.ClientID)
	form.Set("client_secret", conn.ClientSecret)
	return d.postTokenForm(ctx, conn.TokenURL, form)
}

func (d *HTTPDownstreamClient) RefreshToken(ctx context.Context, conn domain.Connection, refreshToken string) (DownstreamToken, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("refresh_token", refreshToken)
	form.Set("client_id", conn.ClientID)
	form.Set("client_secret", conn.ClientSecret)
	return d.postTokenForm(ctx, conn.TokenURL, form)
}

// providerTokenResponse is the wire shape most OAuth providers return
// from their token endpoint.
type providerTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

func (d *HTTPDownstreamClient) postTokenForm(ctx context.Context, tokenURL string, form url.Values) (DownstreamToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return DownstreamToken{}, fmt.Errorf("build provider token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := d.Client.Do(req)
	if err != nil {
		return DownstreamToken{}, fmt.Errorf("provider token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponseBytes))
	if err != nil {
		return DownstreamToken{}, fmt.Errorf("read provider response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return DownstreamToken{}, fmt.Errorf("provider token endpoint returned %d", resp.StatusCode)
	}

	var tr providerTokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return DownstreamToken{}, fmt.Errorf("decode provider response: %w", err)
	}
	if tr.AccessToken == "" {
		return DownstreamToken{}, fmt.Errorf("provider returned no access token")
	}

	out := DownstreamToken{
		AccessToken:  tr.AccessToken,
		RefreshToken: tr.RefreshToken,
	}
	if tr.ExpiresIn > 0 {
		exp := time.Now().Add(time.Duration(tr.ExpiresIn) * time.Second).UTC()
		out.ExpiresAt = &exp
	}
	return out, nil
}
