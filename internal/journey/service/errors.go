package service

import "errors"

// Sentinel errors surfaced by the services. The HTTP layer maps these to
// OAuth2 error responses and status codes.
var (
	ErrInvalidClient      = errors.New("invalid_client")
	ErrInvalidGrant       = errors.New("invalid_grant")
	ErrInvalidScope       = errors.New("invalid_scope")
	ErrInvalidRedirectURI = errors.New("invalid_redirect_uri")
	ErrInvalidMetadata    = errors.New("invalid_client_metadata")
	ErrInvalidRefresh     = errors.New("invalid_refresh_token")
	ErrInvalidCredentials = errors.New("invalid_credentials")

	ErrClientNameTaken    = errors.New("client_name_taken")
	ErrUsernameTaken      = errors.New("username_taken")
	ErrServerExists       = errors.New("server_already_exists")
	ErrServerNotFound     = errors.New("server_not_found")
	ErrClientNotFound     = errors.New("client_not_found")
	ErrFlowNotFound       = errors.New("flow_not_found")
	ErrConnectionNotFound = errors.New("connection_not_found")

	// ErrCodeUsed fires on the second redemption of an authorization code.
	ErrCodeUsed = errors.New("authorization_code_used")

	// ErrCodeExpired fires when the code outlived its ten minute window.
	ErrCodeExpired = errors.New("authorization_code_expired")

	// ErrFlowCompleted guards consent replays: once a flow holds a code
	// the consent decision cannot be re-submitted.
	ErrFlowCompleted = errors.New("flow_already_completed")

	ErrConsentRejected = errors.New("user_consent_rejected")

	// ErrDownstreamFailed aborts a journey when a downstream provider
	// authorization fails. The journey must be restarted by the client.
	ErrDownstreamFailed = errors.New("downstream_authorization_failed")

	// ErrJourneyInconsistent reports an impossible flow combination (no
	// pending flows yet not all resolved). Logic error, not user error.
	ErrJourneyInconsistent = errors.New("journey_state_inconsistent")

	// ErrInvalidSubjectToken covers every subject-token verification
	// failure in token exchange. Deliberately generic, no reason leaks.
	ErrInvalidSubjectToken = errors.New("invalid_subject_token")

	// ErrScopeNotEntitled rejects a token-exchange scope escalation.
	ErrScopeNotEntitled = errors.New("scope_not_entitled")

	// ErrNoDownstreamAuth means the connection has no authorized flow (or
	// no refresh token) to satisfy a token exchange.
	ErrNoDownstreamAuth = errors.New("no_downstream_authorization")
)
