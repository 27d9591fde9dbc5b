package authsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
)

// RegisterClient performs RFC 7591 dynamic client registration. The
// returned client_secret, if any, is shown exactly once.
func (c *SDKClient) RegisterClient(ctx context.Context, req RegistrationRequest) (*RegistrationResponse, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal registration request: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/authz/clients/register",
		bytes.NewReader(payload),
		map[string]string{"Content-Type": "application/json"},
	)
	if err != nil {
		return nil, err
	}

	var out RegistrationResponse
	if err := decodeJSON(resp, &out, http.StatusCreated); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetClient fetches a registered client's metadata. Secrets are omitted.
func (c *SDKClient) GetClient(ctx context.Context, clientID string) (*ClientInfo, error) {
	resp, err := c.doRequest(ctx, http.MethodGet,
		"/api/authz/clients/"+url.PathEscape(clientID), nil, nil)
	if err != nil {
		return nil, err
	}

	var out ClientInfo
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListClients lists registered clients. Secrets are omitted.
func (c *SDKClient) ListClients(ctx context.Context) ([]ClientInfo, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/authz/clients", nil, nil)
	if err != nil {
		return nil, err
	}

	var out struct {
		Clients []ClientInfo `json:"clients"`
	}
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return out.Clients, nil
}
