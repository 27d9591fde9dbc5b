package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/httpx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// ClientsHandler serves RFC 7591 dynamic client registration plus the
// secret-free read endpoints.
type ClientsHandler struct {
	ClientService *service.ClientService
}

// HandleRegister serves POST /api/authz/clients/register.
// The client secret appears exactly once, in this response.
func (h *ClientsHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req authsdk.RegistrationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	client, secret, err := h.ClientService.Register(ctx, service.RegisterClientInput{
		Name:                    req.ClientName,
		RedirectURIs:            req.RedirectURIs,
		GrantTypes:              req.GrantTypes,
		TokenEndpointAuthMethod: req.TokenEndpointAuthMethod,
		Scopes:                  httpx.ParseSpaceDelimitedFields(req.Scope),
		CodeChallengeMethod:     req.CodeChallengeMethod,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrClientNameTaken):
			authsdk.NewOAuth2Error(http.StatusConflict,
				authsdk.ErrorCodeInvalidClientMetadata, "client name already registered").WriteError(w)
		case errors.Is(err, service.ErrInvalidRedirectURI),
			errors.Is(err, service.ErrInvalidMetadata):
			authsdk.NewOAuth2Error(http.StatusBadRequest,
				authsdk.ErrorCodeInvalidClientMetadata, err.Error()).WriteError(w)
		default:
			log.Error("client registration failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	response := authsdk.RegistrationResponse{
		ClientID:                client.ClientID,
		ClientSecret:            secret,
		ClientName:              client.Name,
		RedirectURIs:            client.RedirectURIs,
		GrantTypes:              client.GrantTypes,
		TokenEndpointAuthMethod: client.TokenEndpointAuthMethod,
		Scope:                   strings.Join(client.Scopes, " "),
		CodeChallengeMethod:     client.CodeChallengeMethod,
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusCreated, response)
}

// HandleGet serves GET /api/authz/clients/{clientID}.
func (h *ClientsHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	client, err := h.ClientService.GetByClientID(r.Context(), r.PathValue("clientID"))
	if err != nil {
		if errors.Is(err, service.ErrClientNotFound) {
			authsdk.NewOAuth2Error(http.StatusNotFound,
				authsdk.ErrorCodeInvalidClient, "client not found").WriteError(w)
			return
		}
		authsdk.ErrServerError.WriteError(w)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, clientInfo(client))
}

// HandleList serves GET /api/authz/clients.
func (h *ClientsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	clients, err := h.ClientService.List(r.Context())
	if err != nil {
		authsdk.ErrServerError.WriteError(w)
		return
	}
	out := make([]authsdk.ClientInfo, 0, len(clients))
	for _, c := range clients {
		out = append(out, clientInfo(c))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

// clientInfo strips the secret hash from the stored client.
func clientInfo(c domain.Client) authsdk.ClientInfo {
	return authsdk.ClientInfo{
		ClientID:                c.ClientID,
		ClientName:              c.Name,
		RedirectURIs:            c.RedirectURIs,
		GrantTypes:              c.GrantTypes,
		TokenEndpointAuthMethod: c.TokenEndpointAuthMethod,
		Scope:                   strings.Join(c.Scopes, " "),
		CodeChallengeMethod:     c.CodeChallengeMethod,
	}
}
