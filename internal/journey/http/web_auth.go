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

// WebAuthHandler serves the human-facing session endpoints used by the
// consent and registry UIs.
type WebAuthHandler struct {
	WebAuthService *service.WebAuthService
}

// HandleLogin serves POST /api/web/login (form-encoded username/password).
func (h *WebAuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	username := strings.TrimSpace(r.Form.Get("username"))
	password := r.Form.Get("password")
	if username == "" || password == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.WebAuthService.Login(ctx, username, password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("web login failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokenPair(w, pair.AccessToken, pair.RefreshToken, int(pair.ExpiresIn.Seconds()), "")
}

// HandleRefresh serves POST /api/web/refresh. Refresh tokens are single
// use; the response carries the replacement.
func (h *WebAuthHandler) HandleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	refresh := r.Form.Get("refresh_token")
	if refresh == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	pair, err := h.WebAuthService.RefreshWebToken(ctx, refresh)
	if err != nil {
		if errors.Is(err, service.ErrInvalidRefresh) {
			authsdk.ErrInvalidGrant.WriteError(w)
			return
		}
		log.Error("web refresh failed", "err", err)
		authsdk.ErrServerError.WriteError(w)
		return
	}

	writeTokenPair(w, pair.AccessToken, pair.RefreshToken, int(pair.ExpiresIn.Seconds()), "")
}

// HandleSession serves GET /api/web/session: echoes the session claims
// placed in the context by the web session middleware.
func (h *WebAuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := httpx.ClaimsFromContext(r.Context())
	if !ok {
		authsdk.ErrInvalidToken.WriteError(w)
		return
	}

	resp := map[string]any{
		"user_id":  claims.Subject,
		"username": claims.Username,
	}
	if claims.ExpiresAt != nil {
		resp["expires_at"] = claims.ExpiresAt.Unix()
	}
	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, resp)
}
