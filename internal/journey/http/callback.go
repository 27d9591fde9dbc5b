package http

import (
	"errors"
	"net/http"

	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// CallbackHandler receives the downstream provider's redirect. The state
// parameter is the sole correlation key back to the connection flow.
type CallbackHandler struct {
	JourneyService *service.JourneyService
}

func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// Providers deliver parameters in the query on GET and in the form
	// body on POST; ParseForm merges both.
	if err := r.ParseForm(); err != nil {
		authsdk.ErrInvalidFormBody.WriteError(w)
		return
	}
	code := r.Form.Get("code")
	state := r.Form.Get("state")
	providerErr := r.Form.Get("error")
	providerErrDesc := r.Form.Get("error_description")

	if state == "" {
		authsdk.ErrInvalidRequest.WriteError(w)
		return
	}

	redirect, err := h.JourneyService.HandleDownstreamCallback(ctx, code, state, providerErr, providerErrDesc)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrFlowNotFound):
			authsdk.NewOAuth2Error(http.StatusNotFound,
				authsdk.ErrorCodeInvalidRequest, "unknown state").WriteError(w)
		case errors.Is(err, service.ErrDownstreamFailed):
			authsdk.NewOAuth2Error(http.StatusBadGateway,
				authsdk.ErrorCodeServerError, "downstream authorization failed").WriteError(w)
		default:
			log.Error("downstream callback failed", "err", err)
			authsdk.ErrServerError.WriteError(w)
		}
		return
	}

	http.Redirect(w, r, redirect, http.StatusFound)
}
