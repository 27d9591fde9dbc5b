package authsdk

import (
	"context"
	"net/http"
)

// GetLiveness fetches the liveness probe. A non-200 response is returned
// as an error.
func (c *SDKClient) GetLiveness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/livez", nil, nil)
	if err != nil {
		return nil, err
	}

	var out HealthResponse
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetReadiness fetches the readiness probe. The response body is decoded
// even on 503 so callers can inspect which dependency check degraded.
func (c *SDKClient) GetReadiness(ctx context.Context) (*HealthResponse, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/readyz", nil, nil)
	if err != nil {
		return nil, err
	}

	expected := http.StatusOK
	if resp.StatusCode == http.StatusServiceUnavailable {
		expected = http.StatusServiceUnavailable
	}

	var out HealthResponse
	if err := decodeJSON(resp, &out, expected); err != nil {
		return nil, err
	}
	return &out, nil
}
