package http

import (
	"errors"
	"net/http"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/httpx"
)

// MetadataHandler serves the RFC 8414 authorization server metadata
// document, one per MCP server identifier.
type MetadataHandler struct {
	Issuer string
	Store  store.Store
}

func (h *MetadataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	serverIdentifier := r.PathValue("serverIdentifier")
	version := r.PathValue("version")

	server, err := h.Store.Servers().GetServerByProvidedID(r.Context(), serverIdentifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			authsdk.NewOAuth2Error(http.StatusNotFound,
				authsdk.ErrorCodeInvalidRequest, "unknown server").WriteError(w)
			return
		}
		authsdk.ErrServerError.WriteError(w)
		return
	}

	base := baseURL(r)
	authorize := base + "/api/auth/authorize/mcp/" + serverIdentifier + "/" + version

	httpx.WriteJSON(w, http.StatusOK, authsdk.MetadataDocument{
		Issuer:                            h.Issuer,
		AuthorizationEndpoint:             authorize,
		TokenEndpoint:                     base + "/api/token",
		RegistrationEndpoint:              base + "/api/authz/clients/register",
		JWKSURI:                           base + "/.well-known/jwks.json",
		IntrospectionEndpoint:             base + "/api/introspect",
		ScopesSupported:                   server.ScopeIDs(),
		ResponseTypesSupported:            []string{"code"},
		GrantTypesSupported:               []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken},
		TokenEndpointAuthMethodsSupported: []string{domain.AuthMethodNone, domain.AuthMethodClientSecretPost},
		CodeChallengeMethodsSupported:     []string{"S256"},
	})
}

// baseURL reconstructs the externally visible origin, honouring the
// proxy headers a fronting load balancer sets.
func baseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	host := r.Host
	if fwd := r.Header.Get("X-Forwarded-Host"); fwd != "" {
		host = fwd
	}
	return scheme + "://" + host
}
