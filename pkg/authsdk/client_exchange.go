package authsdk

import (
	"context"
	"net/http"
	"net/url"
	"strings"
)

// SubjectTokenTypeAccessToken is the RFC 8693 token type URN this server
// accepts and issues.
const SubjectTokenTypeAccessToken = "urn:ietf:params:oauth:token-type:access_token"

// ExchangeToken trades a subject access token for a downstream provider
// token scoped to the given resource (RFC 8693).
func (c *SDKClient) ExchangeToken(
	ctx context.Context,
	serverIdentifier, subjectToken, resource string,
	scopes []string,
) (*TokenExchangeResponse, error) {
	form := url.Values{}
	form.Set("grant_type", "urn:ietf:params:oauth:grant-type:token-exchange")
	form.Set("subject_token", subjectToken)
	form.Set("subject_token_type", SubjectTokenTypeAccessToken)
	form.Set("resource", resource)
	if len(scopes) > 0 {
		form.Set("scope", strings.Join(scopes, " "))
	}

	resp, err := c.doRequest(ctx, http.MethodPost,
		"/api/token-exchange/"+url.PathEscape(serverIdentifier),
		strings.NewReader(form.Encode()),
		map[string]string{"Content-Type": "application/x-www-form-urlencoded"},
	)
	if err != nil {
		return nil, err
	}

	var out TokenExchangeResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
