package authsdk

// ErrorResponse represents a standard OAuth2 error response per RFC 6749.
// This is used internally for parsing HTTP error responses. Client code
// should use the OAuth2Error type from errors.go instead.
type ErrorResponse struct {
	// Error is the OAuth2 error code (e.g., "invalid_request")
	Error string `json:"error"`

	// ErrorDescription is a human-readable description of the error
	ErrorDescription string `json:"error_description"`
}

// RegistrationRequest is the RFC 7591 dynamic client registration payload.
type RegistrationRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types,omitempty"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
	CodeChallengeMethod     string   `json:"code_challenge_method,omitempty"`
}

// RegistrationResponse is returned once, on create. The client secret is
// never retrievable again.
type RegistrationResponse struct {
	ClientID                string   `json:"client_id"`
	ClientSecret            string   `json:"client_secret,omitempty"`
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
	CodeChallengeMethod     string   `json:"code_challenge_method,omitempty"`
}

// ClientInfo is the secret-free view of a registered client.
type ClientInfo struct {
	ClientID                string   `json:"client_id"`
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
	CodeChallengeMethod     string   `json:"code_challenge_method,omitempty"`
}

// TokenResponse represents the OAuth2 token endpoint response per RFC 6749.
type TokenResponse struct {
	// AccessToken is the JWT access token used to authenticate requests
	AccessToken string `json:"access_token"`

	// RefreshToken is the opaque refresh token used to obtain new access
	// tokens
	RefreshToken string `json:"refresh_token,omitempty"`

	// TokenType is always "Bearer"
	TokenType string `json:"token_type"`

	// ExpiresIn is the lifetime in seconds of the access token
	ExpiresIn int `json:"expires_in"`

	// Scope is the space-delimited list of scopes granted to this token
	Scope string `json:"scope,omitempty"`
}

// IntrospectionResponse represents the RFC 7662 token introspection
// response. When a token is inactive only Active is populated.
type IntrospectionResponse struct {
	Active bool `json:"active"`

	// Optional fields (only present when active=true)
	Scope            string   `json:"scope,omitempty"`
	ClientID         string   `json:"client_id,omitempty"`
	TokenType        string   `json:"token_type,omitempty"`
	Exp              int64    `json:"exp,omitempty"`
	Iat              int64    `json:"iat,omitempty"`
	Sub              string   `json:"sub,omitempty"`
	Aud              []string `json:"aud,omitempty"`
	Iss              string   `json:"iss,omitempty"`
	Jti              string   `json:"jti,omitempty"`
	ServerIdentifier string   `json:"server_identifier,omitempty"`
	Resource         string   `json:"resource,omitempty"`
	Version          string   `json:"version,omitempty"`
}

// TokenExchangeResponse is the RFC 8693 token exchange response.
type TokenExchangeResponse struct {
	AccessToken     string `json:"access_token"`
	IssuedTokenType string `json:"issued_token_type"`
	TokenType       string `json:"token_type"`
	ExpiresIn       int    `json:"expires_in"`
	Scope           string `json:"scope,omitempty"`
}

// FlowDetail describes an authorization flow for the consent screen.
type FlowDetail struct {
	FlowID             string   `json:"flow_id"`
	Status             string   `json:"status"`
	ClientName         string   `json:"client_name"`
	ServerName         string   `json:"server_name"`
	ServerIdentifier   string   `json:"server_identifier"`
	Scopes             []string `json:"scopes"`
	PendingConnections int      `json:"pending_connections"`
}

// MetadataDocument is the RFC 8414 authorization server metadata document.
type MetadataDocument struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint"`
	TokenEndpoint                     string   `json:"token_endpoint"`
	RegistrationEndpoint              string   `json:"registration_endpoint"`
	JWKSURI                           string   `json:"jwks_uri"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported"`
	ResponseTypesSupported            []string `json:"response_types_supported"`
	GrantTypesSupported               []string `json:"grant_types_supported"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported"`
}

// HealthResponse is the body of the /livez and /readyz endpoints.
type HealthResponse struct {
	// Status indicates the overall health status (e.g., "ok")
	Status string `json:"status"`

	// Uptime is the service uptime duration as a string (e.g., "1h23m45s")
	Uptime string `json:"uptime,omitempty"`

	// Version is the service version string
	Version string `json:"version,omitempty"`

	// Checks contains readiness check results for critical dependencies (only for /readyz)
	Checks *HealthChecks `json:"checks,omitempty"`
}

// HealthChecks holds per-dependency readiness results.
type HealthChecks struct {
	// Database indicates the database connection status
	Database string `json:"database"`

	// Signer indicates the JWT signing capability status
	Signer string `json:"signer"`
}
