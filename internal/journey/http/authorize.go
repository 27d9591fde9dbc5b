package http

import (
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/httpx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// AuthorizeHandler drives the MCP leg of the journey: GET starts the
// authorization request and sends the browser to the consent screen,
// POST records the consent decision and redirects to wherever the
// orchestrator says next (downstream provider, or back to the client).
type AuthorizeHandler struct {
	JourneyService *service.JourneyService
	ConsentURL     string
}

// HandleGet serves GET /api/auth/authorize/mcp/{serverIdentifier}/{version}.
func (h *AuthorizeHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)
	q := r.URL.Query()

	if rt := q.Get("response_type"); rt != "" && rt != "code" {
		authsdk.NewOAuth2Error(http.StatusBadRequest,
			authsdk.ErrorCodeUnsupportedResponseType, "only response_type=code is supported").WriteError(w)
		return
	}

	req := service.AuthorizeRequest{
		ClientID:            q.Get("client_id"),
		RedirectURI:         q.Get("redirect_uri"),
		Scopes:              httpx.ParseSpaceDelimitedFields(q.Get("scope")),
		State:               q.Get("state"),
		CodeChallenge:       q.Get("code_challenge"),
		CodeChallengeMethod: q.Get("code_challenge_method"),
		Resource:            q.Get("resource"),
	}
	if req.ClientID == "" || req.RedirectURI == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	flowID, err := h.JourneyService.ProcessAuthorizationRequest(ctx, r.PathValue("serverIdentifier"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServerNotFound),
			errors.Is(err, service.ErrClientNotFound),
			errors.Is(err, service.ErrFlowNotFound):
			authsdk.NewOAuth2Error(http.StatusNotFound,
				authsdk.ErrorCodeInvalidRequest, "unknown server, client, or flow").WriteError(w)
		case errors.Is(err, service.ErrInvalidRedirectURI):
			// Never redirect to an unregistered URI.
			authsdk.NewOAuth2Error(http.StatusBadRequest,
				authsdk.ErrorCodeInvalidRequest, "redirect_uri is not registered for this client").WriteError(w)
		case errors.Is(err, service.ErrInvalidGrant), errors.Is(err, service.ErrInvalidMetadata):
			authsdk.ErrInvalidRequest.WriteError(w)
		default:
			log.Error("authorization request failed", "err", err)
			redirectError(w, r, req.RedirectURI, req.State, "server_error")
		}
		return
	}

	consent := h.ConsentURL + "?flow=" + url.QueryEscape(flowID)
	http.Redirect(w, r, consent, http.StatusFound)
}

// HandlePost serves POST /api/auth/authorize/mcp/{serverIdentifier}/{version}.
// Form fields: flow_id, approved ("true"/"false").
func (h *AuthorizeHandler) HandlePost(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	flowID := strings.TrimSpace(r.Form.Get("flow_id"))
	if flowID == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	approved := r.Form.Get("approved") == "true"

	redirect, err := h.JourneyService.ProcessConsentDecision(ctx, flowID, approved)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFlowNotFound):
			authsdk.NewOAuth2Error(http.StatusNotFound,
				authsdk.ErrorCodeInvalidRequest, "unknown flow").WriteError(w)
		case errors.Is(err, service.ErrFlowCompleted):
			authsdk.NewOAuth2Error(http.StatusConflict,
				authsdk.ErrorCodeInvalidRequest, "flow already completed").WriteError(w)
		case errors.Is(err, service.ErrDownstreamFailed):
			authsdk.NewOAuth2Error(http.StatusBadGateway,
				authsdk.ErrorCodeServerError, "downstream authorization failed").WriteError(w)
		default:
			log.Error("consent decision failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}

// redirectError sends the browser back to the client with an OAuth error
// code, preserving state.
func redirectError(w http.ResponseWriter, r *http.Request, redirectURI, state, code string) {
	u, err := url.Parse(redirectURI)
	if err != nil || u.Host == "" {
		authsdk.ErrServerError.WriteError(w)
		return
	}
	q := u.Query()
	q.Set("error", code)
	if state != "" {
		q.Set("state", state)
	}
	u.RawQuery = q.Encode()
	http.Redirect(w, r, u.String(), http.StatusFound)
}
