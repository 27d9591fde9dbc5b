package http

import (
	"errors"
	"net/http"

	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/httpx"
)

// FlowHandler serves GET /api/auth/flow/{flowID}: the consent-screen
// view of an authorization flow.
type FlowHandler struct {
	JourneyService *service.JourneyService
}

func (h *FlowHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	detail, err := h.JourneyService.GetFlow(r.Context(), r.PathValue("flowID"))
	if err != nil {
		if errors.Is(err, service.ErrFlowNotFound) {
			authsdk.NewOAuth2Error(http.StatusNotFound,
				authsdk.ErrorCodeInvalidRequest, "unknown flow").WriteError(w)
			return
		}
		authsdk.ErrServerError.WriteError(w)
		return
	}

	httpx.NoCache(w)
	httpx.WriteJSON(w, http.StatusOK, authsdk.FlowDetail{
		FlowID:             detail.FlowID,
		Status:             string(detail.Status),
		ClientName:         detail.ClientName,
		ServerName:         detail.ServerName,
		ServerIdentifier:   detail.ServerIdentifier,
		Scopes:             detail.Scopes,
		PendingConnections: detail.PendingConnections,
	})
}
