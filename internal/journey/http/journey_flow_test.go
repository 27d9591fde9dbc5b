package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabservice/journeyd/pkg/authsdk"
)

// TestAuthorizationCodeFlow drives the whole PKCE dance over HTTP for a
// journey with no downstream connections: authorize, consent, token,
// introspect.
func TestAuthorizationCodeFlow(t *testing.T) {
	env := newTestEnv(t)

	server := env.seedTestServer(t, "calendar-mcp", "calendar.read", "calendar.write")
	client := env.registerTestClient(t, "Flow Client")
	env.provisionJourney(t, client.ClientID, server)

	verifier := "http-flow-verifier"
	authorizePath := "/api/auth/authorize/mcp/calendar-mcp/v1"

	var flowID string
	t.Run("authorize redirects to consent", func(t *testing.T) {
		q := url.Values{}
		q.Set("response_type", "code")
		q.Set("client_id", client.ClientID)
		q.Set("redirect_uri", "http://localhost:3000/cb")
		q.Set("scope", "calendar.read unknown.scope")
		q.Set("state", "client-state-1")
		q.Set("code_challenge", s256Challenge(verifier))
		q.Set("code_challenge_method", "S256")

		rec := env.do(t, httptest.NewRequest(http.MethodGet, authorizePath+"?"+q.Encode(), nil))
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, testConsentURL, loc.Scheme+"://"+loc.Host+loc.Path)
		flowID = loc.Query().Get("flow")
		require.NotEmpty(t, flowID)
	})

	t.Run("flow detail drops unknown scopes silently", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/flow/"+flowID, nil))
		require.Equal(t, http.StatusOK, rec.Code)
		detail := decodeBody[authsdk.FlowDetail](t, rec)
		require.Equal(t, []string{"calendar.read"}, detail.Scopes)
		require.Equal(t, "calendar-mcp", detail.ServerIdentifier)
		require.Zero(t, detail.PendingConnections)
	})

	var code string
	t.Run("consent approval returns the code", func(t *testing.T) {
		rec := env.postForm(t, authorizePath, url.Values{
			"flow_id":  {flowID},
			"approved": {"true"},
		})
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

		loc, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "client-state-1", loc.Query().Get("state"))
		code = loc.Query().Get("code")
		require.NotEmpty(t, code)
	})

	var tokens authsdk.TokenResponse
	t.Run("token endpoint redeems the code", func(t *testing.T) {
		rec := env.postForm(t, "/api/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"http://localhost:3000/cb"},
			"client_id":     {client.ClientID},
			"code_verifier": {verifier},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		require.Equal(t, "no-store", rec.Header().Get("Cache-Control"))

		tokens = decodeBody[authsdk.TokenResponse](t, rec)
		require.NotEmpty(t, tokens.AccessToken)
		require.NotEmpty(t, tokens.RefreshToken)
		require.Equal(t, "calendar.read", tokens.Scope)
	})

	t.Run("replayed code conflicts", func(t *testing.T) {
		rec := env.postForm(t, "/api/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"http://localhost:3000/cb"},
			"client_id":     {client.ClientID},
			"code_verifier": {verifier},
		})
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("introspection confirms the token", func(t *testing.T) {
		rec := env.postForm(t, "/api/introspect", url.Values{"token": {tokens.AccessToken}})
		require.Equal(t, http.StatusOK, rec.Code)
		info := decodeBody[authsdk.IntrospectionResponse](t, rec)
		require.True(t, info.Active)
		require.Equal(t, client.ClientID, info.ClientID)
		require.Equal(t, "calendar-mcp", info.ServerIdentifier)
	})

	t.Run("introspection of garbage stays quiet", func(t *testing.T) {
		rec := env.postForm(t, "/api/introspect", url.Values{"token": {"junk"}})
		require.Equal(t, http.StatusOK, rec.Code)
		require.JSONEq(t, `{"active":false}`, rec.Body.String())
	})

	t.Run("refresh grant rotates", func(t *testing.T) {
		rec := env.postForm(t, "/api/token", url.Values{
			"grant_type":    {"refresh_token"},
			"refresh_token": {tokens.RefreshToken},
			"client_id":     {client.ClientID},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		rotated := decodeBody[authsdk.TokenResponse](t, rec)
		require.NotEqual(t, tokens.RefreshToken, rotated.RefreshToken)
	})

	t.Run("unsupported grant type", func(t *testing.T) {
		rec := env.postForm(t, "/api/token", url.Values{"grant_type": {"password"}})
		require.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

// TestConsentRejectionRedirect covers the denial path: the browser goes
// back to the client with error=access_denied.
func TestConsentRejectionRedirect(t *testing.T) {
	env := newTestEnv(t)

	server := env.seedTestServer(t, "mail-mcp", "mail.send")
	client := env.registerTestClient(t, "Denied Client")
	env.provisionJourney(t, client.ClientID, server)

	q := url.Values{}
	q.Set("client_id", client.ClientID)
	q.Set("redirect_uri", "http://localhost:3000/cb")
	q.Set("scope", "mail.send")
	q.Set("state", "st-deny")
	q.Set("code_challenge", s256Challenge("deny-verifier"))
	q.Set("code_challenge_method", "S256")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/authorize/mcp/mail-mcp/v1?"+q.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	flowID := loc.Query().Get("flow")

	deny := env.postForm(t, "/api/auth/authorize/mcp/mail-mcp/v1", url.Values{
		"flow_id":  {flowID},
		"approved": {"false"},
	})
	require.Equal(t, http.StatusFound, deny.Code)
	redirect, err := url.Parse(deny.Header().Get("Location"))
	require.NoError(t, err)
	require.Equal(t, "access_denied", redirect.Query().Get("error"))
	require.Equal(t, "st-deny", redirect.Query().Get("state"))
}

// TestDownstreamJourneyOverHTTP covers the chained journey: consent
// redirects to the provider, the provider's callback resumes the journey
// and finally yields the MCP code, and token exchange serves the stored
// provider token.
func TestDownstreamJourneyOverHTTP(t *testing.T) {
	env := newTestEnv(t)

	server := env.seedTestServer(t, "chained-mcp", "calendar.read")
	client := env.registerTestClient(t, "Chained Client")

	conn, err := env.registry.CreateConnection(context.Background(), toConnInput("chained-mcp"))
	require.NoError(t, err)
	env.provisionJourney(t, client.ClientID, server, conn.ID)

	verifier := "chained-verifier"
	authorizePath := "/api/auth/authorize/mcp/chained-mcp/v1"

	q := url.Values{}
	q.Set("client_id", client.ClientID)
	q.Set("redirect_uri", "http://localhost:3000/cb")
	q.Set("scope", "calendar.read")
	q.Set("state", "st-chained")
	q.Set("code_challenge", s256Challenge(verifier))
	q.Set("code_challenge_method", "S256")

	rec := env.do(t, httptest.NewRequest(http.MethodGet, authorizePath+"?"+q.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())
	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	flowID := loc.Query().Get("flow")

	var providerState string
	t.Run("approval redirects to the provider", func(t *testing.T) {
		approve := env.postForm(t, authorizePath, url.Values{
			"flow_id":  {flowID},
			"approved": {"true"},
		})
		require.Equal(t, http.StatusFound, approve.Code, approve.Body.String())

		provider, err := url.Parse(approve.Header().Get("Location"))
		require.NoError(t, err)
		require.Equal(t, "provider.example", provider.Host)
		providerState = provider.Query().Get("state")
		require.NotEmpty(t, providerState)
	})

	var code string
	t.Run("callback completes the journey", func(t *testing.T) {
		cb := url.Values{}
		cb.Set("code", "provider-code")
		cb.Set("state", providerState)
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/callback?"+cb.Encode(), nil))
		require.Equal(t, http.StatusFound, rec.Code, rec.Body.String())

		redirect, err := url.Parse(rec.Header().Get("Location"))
		require.NoError(t, err)
		code = redirect.Query().Get("code")
		require.NotEmpty(t, code)
		require.Equal(t, "st-chained", redirect.Query().Get("state"))
	})

	t.Run("callback with bogus state 404s", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/auth/callback?code=x&state=bogus", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("token exchange serves the provider token", func(t *testing.T) {
		// Redeem the MCP code first to obtain a subject token.
		tok := env.postForm(t, "/api/token", url.Values{
			"grant_type":    {"authorization_code"},
			"code":          {code},
			"redirect_uri":  {"http://localhost:3000/cb"},
			"client_id":     {client.ClientID},
			"code_verifier": {verifier},
		})
		require.Equal(t, http.StatusOK, tok.Code, tok.Body.String())
		pair := decodeBody[authsdk.TokenResponse](t, tok)

		rec := env.postForm(t, "/api/token-exchange/chained-mcp", url.Values{
			"grant_type":         {"urn:ietf:params:oauth:grant-type:token-exchange"},
			"subject_token":      {pair.AccessToken},
			"subject_token_type": {authsdk.SubjectTokenTypeAccessToken},
			"resource":           {conn.ID},
		})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		exchanged := decodeBody[authsdk.TokenExchangeResponse](t, rec)
		require.Equal(t, "prov-access", exchanged.AccessToken)
		require.Equal(t, authsdk.SubjectTokenTypeAccessToken, exchanged.IssuedTokenType)

		t.Run("scope escalation is forbidden", func(t *testing.T) {
			rec := env.postForm(t, "/api/token-exchange/chained-mcp", url.Values{
				"grant_type":         {"urn:ietf:params:oauth:grant-type:token-exchange"},
				"subject_token":      {pair.AccessToken},
				"subject_token_type": {authsdk.SubjectTokenTypeAccessToken},
				"resource":           {conn.ID},
				"scope":              {"https://provider.example/auth/admin"},
			})
			require.Equal(t, http.StatusForbidden, rec.Code)
		})

		t.Run("garbage subject token is a generic 401", func(t *testing.T) {
			rec := env.postForm(t, "/api/token-exchange/chained-mcp", url.Values{
				"grant_type":         {"urn:ietf:params:oauth:grant-type:token-exchange"},
				"subject_token":      {"junk"},
				"subject_token_type": {authsdk.SubjectTokenTypeAccessToken},
				"resource":           {conn.ID},
			})
			require.Equal(t, http.StatusUnauthorized, rec.Code)
		})
	})
}
