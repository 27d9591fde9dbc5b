package http

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/jwtx"
)

func TestJWKSEndpoint(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, httptest.NewRequest(http.MethodGet, "/.well-known/jwks.json", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	doc := decodeBody[jwtx.JWKS](t, rec)
	require.NotEmpty(t, doc.Keys)
	for _, k := range doc.Keys {
		require.Equal(t, "RSA", k.Kty)
		require.NotEmpty(t, k.Kid)
		require.NotEmpty(t, k.N)
	}
}

func TestMetadataEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seedTestServer(t, "meta-mcp", "calendar.read")

	t.Run("document reflects the forwarded host", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server/mcp/meta-mcp/v1", nil)
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Host", "auth.example")
		rec := env.do(t, req)
		require.Equal(t, http.StatusOK, rec.Code)

		doc := decodeBody[authsdk.MetadataDocument](t, rec)
		require.Equal(t, testIssuer, doc.Issuer)
		require.Equal(t, "https://auth.example/api/auth/authorize/mcp/meta-mcp/v1", doc.AuthorizationEndpoint)
		require.Equal(t, "https://auth.example/api/token", doc.TokenEndpoint)
		require.Equal(t, "https://auth.example/.well-known/jwks.json", doc.JWKSURI)
		require.Equal(t, []string{"calendar.read"}, doc.ScopesSupported)
		require.Equal(t, []string{"S256"}, doc.CodeChallengeMethodsSupported)
	})

	t.Run("unknown server 404", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server/mcp/nope/v1", nil))
		require.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	t.Run("livez", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/livez", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		health := decodeBody[authsdk.HealthResponse](t, rec)
		require.Equal(t, "ok", health.Status)
		require.Equal(t, "test", health.Version)
	})

	t.Run("readyz checks dependencies", func(t *testing.T) {
		rec := env.do(t, httptest.NewRequest(http.MethodGet, "/readyz", nil))
		require.Equal(t, http.StatusOK, rec.Code)
		health := decodeBody[authsdk.HealthResponse](t, rec)
		require.Equal(t, "ok", health.Status)
		require.NotNil(t, health.Checks)
		require.Equal(t, "ok", health.Checks.Database)
		require.Equal(t, "ok", health.Checks.Signer)
	})
}
