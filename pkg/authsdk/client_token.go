package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// AuthorizationCodeGrant redeems an authorization code with its PKCE
// verifier at the token endpoint.
func (c *SDKClient) AuthorizationCodeGrant(
	ctx context.Context,
	clientID, code, redirectURI, codeVerifier string,
) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "authorization_code")
	form.Set("client_id", clientID)
	form.Set("code", code)
	form.Set("redirect_uri", redirectURI)
	form.Set("code_verifier", codeVerifier)

	return c.postTokenForm(ctx, form)
}

// RefreshGrant exchanges a refresh token for a fresh token pair. The old
// refresh token is revoked server-side.
func (c *SDKClient) RefreshGrant(ctx context.Context, clientID, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "refresh_token")
	form.Set("client_id", clientID)
	form.Set("refresh_token", refreshToken)

	return c.postTokenForm(ctx, form)
}

// Introspect submits a token to the RFC 7662 introspection endpoint. An
// inactive result carries no claims and no failure reason.
func (c *SDKClient) Introspect(ctx context.Context, token, clientID string) (*IntrospectionResponse, error) {
	form := url.Values{}
	form.Set("token", token)
	if clientID != "" {
		form.Set("client_id", clientID)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/introspect",
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var out IntrospectionResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *SDKClient) postTokenForm(ctx context.Context, form url.Values) (*TokenResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodPost, "/api/token",
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var out TokenResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
