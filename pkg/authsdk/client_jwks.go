package authsdk

import (
	"context"
	"net/http"
	"net/url"

	"github.com/tabservice/journeyd/pkg/jwtx"
)

// GetJWKS fetches the server's published JSON Web Key Set.
func (c *SDKClient) GetJWKS(ctx context.Context) (*jwtx.JWKS, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/.well-known/jwks.json", nil, nil)
	if err != nil {
		return nil, err
	}

	var out jwtx.JWKS
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}

// RefreshKeySet fetches the JWKS and resets the given KeySet from it.
// Resource services use this to keep verification keys current across
// rotations.
func (c *SDKClient) RefreshKeySet(ctx context.Context, keys *jwtx.KeySet) error {
	jwks, err := c.GetJWKS(ctx)
	if err != nil {
		return err
	}
	return keys.ResetFromJWKS(*jwks)
}

// GetMetadata fetches the RFC 8414 authorization server metadata document
// for the given MCP server and version.
func (c *SDKClient) GetMetadata(ctx context.Context, serverID, version string) (*MetadataDocument, error) {
	resp, err := c.doRequest(ctx, http.MethodGet,
		"/.well-known/oauth-authorization-server/mcp/"+url.PathEscape(serverID)+"/"+url.PathEscape(version),
		nil, nil)
	if err != nil {
		return nil, err
	}

	var out MetadataDocument
	if err := decodeJSON(resp, &out, http.StatusOK); err != nil {
		return nil, err
	}
	return &out, nil
}
