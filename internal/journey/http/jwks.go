package http

import (
	"net/http"

	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/pkg/httpx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// JWKSHandler exposes every non-expired signing key for public key
// discovery, active or rotated-out.
func JWKSHandler(keys *service.KeyService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		doc, err := keys.PublicKeys(r.Context())
		if err != nil {
			slogx.FromContext(r.Context()).Error("jwks lookup failed", "err", err)
			http.Error(w, "internal server error", http.StatusInternalServerError)
			return
		}
		httpx.WriteJSON(w, http.StatusOK, doc)
	}
}
