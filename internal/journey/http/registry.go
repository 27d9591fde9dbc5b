package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/pkg/httpx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// RegistryHandler administers the MCP server registry and provisions
// journeys. All endpoints require a web session.
type RegistryHandler struct {
	RegistryService *service.RegistryService
	JourneyService  *service.JourneyService
}

// apiError is the error envelope for the non-OAuth admin endpoints.
type apiError struct {
	Error apiErrorBody `json:"error"`
}

type apiErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	httpx.WriteJSON(w, status, apiError{Error: apiErrorBody{Code: code, Message: message}})
}

type serverScopePayload struct {
	ScopeID     string `json:"scope_id"`
	Description string `json:"description,omitempty"`
}

type serverPayload struct {
	ProvidedID  string               `json:"provided_id"`
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	Scopes      []serverScopePayload `json:"scopes"`
}

// HandleCreateServer serves POST /api/registry/servers.
func (h *RegistryHandler) HandleCreateServer(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req serverPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	in := service.CreateServerInput{
		ProvidedID:  req.ProvidedID,
		Name:        req.Name,
		Description: req.Description,
	}
	for _, sc := range req.Scopes {
		in.Scopes = append(in.Scopes, domain.ServerScope{ScopeID: sc.ScopeID, Description: sc.Description})
	}

	server, err := h.RegistryService.CreateServer(ctx, in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidMetadata):
			writeAPIError(w, http.StatusBadRequest, "invalid_server", "provided_id and name are required")
		case errors.Is(err, service.ErrServerExists):
			writeAPIError(w, http.StatusConflict, "server_exists", "a server with this provided_id already exists")
		default:
			log.Error("create server failed", "err", err)
			writeAPIError(w, http.StatusInternalServerError, "internal", "internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, serverView(server))
}

// HandleGetServer serves GET /api/registry/servers/{serverID}.
func (h *RegistryHandler) HandleGetServer(w http.ResponseWriter, r *http.Request) {
	server, err := h.RegistryService.GetServer(r.Context(), r.PathValue("serverID"))
	if err != nil {
		if errors.Is(err, service.ErrServerNotFound) {
			writeAPIError(w, http.StatusNotFound, "server_not_found", "unknown server")
			return
		}
		writeAPIError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	httpx.WriteJSON(w, http.StatusOK, serverView(server))
}

// HandleListServers serves GET /api/registry/servers.
func (h *RegistryHandler) HandleListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.RegistryService.ListServers(r.Context())
	if err != nil {
		writeAPIError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	out := make([]map[string]any, 0, len(servers))
	for _, s := range servers {
		out = append(out, serverView(s))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type connectionPayload struct {
	ServerProvidedID string            `json:"server_provided_id"`
	ProvidedID       string            `json:"provided_id,omitempty"`
	FriendlyName     string            `json:"friendly_name"`
	ClientID         string            `json:"client_id"`
	ClientSecret     string            `json:"client_secret"`
	AuthorizeURL     string            `json:"authorize_url"`
	TokenURL         string            `json:"token_url"`
	Mappings         map[string]string `json:"mappings,omitempty"`
}

// HandleCreateConnection serves POST /api/registry/connections.
func (h *RegistryHandler) HandleCreateConnection(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req connectionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	conn, err := h.RegistryService.CreateConnection(ctx, service.CreateConnectionInput{
		ServerProvidedID: req.ServerProvidedID,
		ProvidedID:       req.ProvidedID,
		FriendlyName:     req.FriendlyName,
		ClientID:         req.ClientID,
		ClientSecret:     req.ClientSecret,
		AuthorizeURL:     req.AuthorizeURL,
		TokenURL:         req.TokenURL,
		Mappings:         req.Mappings,
	})
	if err != nil {
		switch {
		case errors.Is(err, service.ErrInvalidMetadata):
			writeAPIError(w, http.StatusBadRequest, "invalid_connection", "friendly_name, client_id, authorize_url, and token_url are required")
		case errors.Is(err, service.ErrServerNotFound):
			writeAPIError(w, http.StatusNotFound, "server_not_found", "unknown server")
		default:
			log.Error("create connection failed", "err", err)
			writeAPIError(w, http.StatusInternalServerError, "internal", "internal server error")
		}
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, connectionView(conn))
}

// HandleListConnections serves GET /api/registry/servers/{serverID}/connections.
func (h *RegistryHandler) HandleListConnections(w http.ResponseWriter, r *http.Request) {
	conns, err := h.RegistryService.ListConnections(r.Context(), r.PathValue("serverID"))
	if err != nil {
		if errors.Is(err, service.ErrServerNotFound) {
			writeAPIError(w, http.StatusNotFound, "server_not_found", "unknown server")
			return
		}
		writeAPIError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}
	out := make([]map[string]any, 0, len(conns))
	for _, c := range conns {
		out = append(out, connectionView(c))
	}
	httpx.WriteJSON(w, http.StatusOK, out)
}

type provisionPayload struct {
	ClientID         string   `json:"client_id"`
	ServerProvidedID string   `json:"server_provided_id"`
	ConnectionIDs    []string `json:"connection_ids,omitempty"`
}

// HandleProvisionJourney serves POST /api/registry/journeys: creates the
// journey and flow a client needs before it can start authorizing.
func (h *RegistryHandler) HandleProvisionJourney(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req provisionPayload
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeAPIError(w, http.StatusBadRequest, "invalid_body", "request body is not valid JSON")
		return
	}

	server, err := h.RegistryService.GetServer(ctx, req.ServerProvidedID)
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "server_not_found", "unknown server")
		return
	}
	client, err := h.JourneyService.Store.Clients().GetClientByClientID(ctx, req.ClientID)
	if err != nil {
		writeAPIError(w, http.StatusNotFound, "client_not_found", "unknown client")
		return
	}

	journey, err := h.JourneyService.ProvisionJourney(ctx, client.ID, server.ID, req.ConnectionIDs)
	if err != nil {
		log.Error("provision journey failed", "err", err)
		writeAPIError(w, http.StatusInternalServerError, "internal", "internal server error")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, map[string]any{
		"journey_id": journey.ID,
		"status":     string(journey.Status),
	})
}

// serverView is the JSON projection of a registry server.
func serverView(s domain.Server) map[string]any {
	scopes := make([]serverScopePayload, 0, len(s.Scopes))
	for _, sc := range s.Scopes {
		scopes = append(scopes, serverScopePayload{ScopeID: sc.ScopeID, Description: sc.Description})
	}
	return map[string]any{
		"id":          s.ID,
		"provided_id": s.ProvidedID,
		"name":        s.Name,
		"description": s.Description,
		"scopes":      scopes,
	}
}

// connectionView never includes the provider client secret.
func connectionView(c domain.Connection) map[string]any {
	return map[string]any{
		"id":            c.ID,
		"server_id":     c.ServerID,
		"provided_id":   c.ProvidedID,
		"friendly_name": c.FriendlyName,
		"client_id":     c.ClientID,
		"authorize_url": c.AuthorizeURL,
		"token_url":     c.TokenURL,
	}
}
