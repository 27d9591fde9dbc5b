package http

import (
	"net/http"
	"strings"

	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/httpx"
)

// IntrospectHandler serves POST /api/introspect (RFC 7662). Invalid or
// expired tokens yield {"active":false} with no further detail so the
// endpoint leaks nothing about why a token failed.
type IntrospectHandler struct {
	TokenService *service.TokenService
}

func (h *IntrospectHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if ct := r.Header.Get("Content-Type"); ct != "" &&
		!strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		authsdk.ErrInvalidContentType.WriteError(w)
		return
	}
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}

	token := r.Form.Get("token")
	if token == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}
	callerClientID := strings.TrimSpace(r.Form.Get("client_id"))

	resp := h.TokenService.Introspect(r.Context(), token, callerClientID)

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
