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

func (e *testEnv) webLogin(t *testing.T, username, password string) authsdk.TokenResponse {
	t.Helper()
	rec := e.postForm(t, "/api/web/login", url.Values{
		"username": {username},
		"password": {password},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decodeBody[authsdk.TokenResponse](t, rec)
}

func TestWebSessionEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.webAuth.CreateUser(ctx, "admin", "Admin123!pass")
	require.NoError(t, err)

	pair := env.webLogin(t, "admin", "Admin123!pass")
	require.NotEmpty(t, pair.AccessToken)
	require.NotEmpty(t, pair.RefreshToken)

	t.Run("wrong password 401", func(t *testing.T) {
		rec := env.postForm(t, "/api/web/login", url.Values{
			"username": {"admin"},
			"password": {"nope"},
		})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("session echoes claims", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/web/session", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		rec := env.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)
		session := decodeBody[map[string]any](t, rec)
		require.Equal(t, "admin", session["username"])
	})

	t.Run("session without token 401", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/api/web/session", nil))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("refresh rotates and burns", func(t *testing.T) {
		rec := env.postForm(t, "/api/web/refresh", url.Values{"refresh_token": {pair.RefreshToken}})
		require.Equal(t, http.StatusOK, rec.Code)
		rotated := decodeBody[authsdk.TokenResponse](t, rec)
		require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

		replay := env.postForm(t, "/api/web/refresh", url.Values{"refresh_token": {pair.RefreshToken}})
		require.Equal(t, http.StatusUnauthorized, replay.Code)
	})
}

func TestRegistryEndpoints(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.webAuth.CreateUser(ctx, "operator", "Operator123!pass")
	require.NoError(t, err)
	pair := env.webLogin(t, "operator", "Operator123!pass")
	auth := []string{"Authorization", "Bearer " + pair.AccessToken}

	t.Run("unauthenticated is rejected", func(t *testing.T) {
		rec := env.postJSON(t, "/api/registry/servers", map[string]any{"provided_id": "x", "name": "x"})
		require.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("create and read back a server", func(t *testing.T) {
		rec := env.postJSON(t, "/api/registry/servers", map[string]any{
			"provided_id": "registry-mcp",
			"name":        "Registry MCP",
			"scopes":      []map[string]any{{"scope_id": "calendar.read"}},
		}, auth...)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		req := httptest.NewRequest(http.MethodGet, "/api/registry/servers/registry-mcp", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		get := env.do(t, req)
		require.Equal(t, http.StatusOK, get.Code)
		server := decodeBody[map[string]any](t, get)
		require.Equal(t, "Registry MCP", server["name"])
	})

	t.Run("duplicate server conflicts", func(t *testing.T) {
		rec := env.postJSON(t, "/api/registry/servers", map[string]any{
			"provided_id": "registry-mcp",
			"name":        "Registry MCP",
		}, auth...)
		require.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("connection with mappings", func(t *testing.T) {
		rec := env.postJSON(t, "/api/registry/connections", map[string]any{
			"server_provided_id": "registry-mcp",
			"provided_id":        "google",
			"friendly_name":      "Google",
			"client_id":          "g-client",
			"client_secret":      "g-secret",
			"authorize_url":      "https://provider.example/authorize",
			"token_url":          "https://provider.example/token",
			"mappings": map[string]string{
				"calendar.read": "https://provider.example/auth/calendar.readonly",
			},
		}, auth...)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		require.NotContains(t, rec.Body.String(), "g-secret")

		req := httptest.NewRequest(http.MethodGet, "/api/registry/servers/registry-mcp/connections", nil)
		req.Header.Set("Authorization", "Bearer "+pair.AccessToken)
		list := env.do(t, req)
		require.Equal(t, http.StatusOK, list.Code)
		conns := decodeBody[[]map[string]any](t, list)
		require.Len(t, conns, 1)
	})

	t.Run("provision a journey", func(t *testing.T) {
		client := env.registerTestClient(t, "Provisioned Client")
		rec := env.postJSON(t, "/api/registry/journeys", map[string]any{
			"client_id":          client.ClientID,
			"server_provided_id": "registry-mcp",
		}, auth...)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		body := decodeBody[map[string]any](t, rec)
		require.NotEmpty(t, body["journey_id"])
	})
}
