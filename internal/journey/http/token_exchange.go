package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/httpx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// ExchangeHandler serves POST /api/token-exchange/{serverIdentifier}
// (RFC 8693): trades a validated MCP access token for the connection's
// downstream provider token, narrowed to the entitled scopes.
type ExchangeHandler struct {
	ExchangeService *service.ExchangeService
}

func (h *ExchangeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	if gt := r.Form.Get("grant_type"); gt != "urn:ietf:params:oauth:grant-type:token-exchange" {
		authsdk.ErrUnsupportedGrantType.WriteError(w)
		return
	}

	req := service.ExchangeRequest{
		SubjectToken:     r.Form.Get("subject_token"),
		SubjectTokenType: r.Form.Get("subject_token_type"),
		Resource:         strings.TrimSpace(r.Form.Get("resource")),
		Scopes:           httpx.ParseSpaceDelimitedFields(r.Form.Get("scope")),
	}
	if req.SubjectToken == "" || req.Resource == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	result, err := h.ExchangeService.ExchangeToken(ctx, r.PathValue("serverIdentifier"), req)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrServerNotFound),
			errors.Is(err, service.ErrConnectionNotFound):
			authsdk.ErrInvalidTarget.WriteError(w)
		case errors.Is(err, service.ErrInvalidSubjectToken),
			errors.Is(err, service.ErrNoDownstreamAuth):
			// Generic 401, nothing about which check failed.
			authsdk.ErrInvalidGrant.WriteError(w)
		case errors.Is(err, service.ErrInvalidGrant):
			authsdk.ErrInvalidRequest.WriteError(w)
		case errors.Is(err, service.ErrScopeNotEntitled):
			authsdk.NewOAuth2Error(http.StatusForbidden,
				authsdk.ErrorCodeInvalidScope, err.Error()).WriteError(w)
		default:
			log.Error("token exchange failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.TokenExchangeResponse{
		AccessToken:     result.AccessToken,
		IssuedTokenType: result.IssuedTokenType,
		TokenType:       result.TokenType,
		ExpiresIn:       int(result.ExpiresIn),
		Scope:           strings.Join(result.Scope, " "),
	})
}
