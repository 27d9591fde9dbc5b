package authsdk

import (
	"net/http"
	"strings"
	"time"
)

// SDKClient is a client for the journey authorization service. It covers
// the public surface: registration, the token endpoint, introspection,
// token exchange, JWKS and the metadata document.
type SDKClient struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewSDKClient creates a new client with a sane default timeout.
func NewSDKClient(baseURL string) *SDKClient {
	return &SDKClient{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}
