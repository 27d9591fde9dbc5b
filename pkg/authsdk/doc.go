/*
Package authsdk provides a client SDK for the journey authorization
service, plus the shared OAuth2 error and response types its HTTP
handlers emit.

# Client usage

	client := authsdk.NewSDKClient("https://auth.example.com")

	// Register an OAuth client (RFC 7591)
	reg, err := client.RegisterClient(ctx, authsdk.RegistrationRequest{
		ClientName:              "my-agent",
		RedirectURIs:            []string{"http://localhost:3000/cb"},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		TokenEndpointAuthMethod: "none",
		CodeChallengeMethod:     "S256",
	})

	// Redeem an authorization code
	tok, err := client.AuthorizationCodeGrant(ctx, reg.ClientID, code, redirectURI, verifier)

	// Trade the access token for a downstream provider token (RFC 8693)
	down, err := client.ExchangeToken(ctx, "my-server", tok.AccessToken, "google", nil)

# Error handling

Failed calls return *OAuth2Error carrying the RFC 6749 error code, the
server's description, and the HTTP status. Token verification failures on
introspection are not errors; they surface as {active:false} with no
reason, per RFC 7662.

# Server usage

The HTTP handlers in internal/journey/http reuse the OAuth2Error values
and response structs defined here so the SDK and the server can never
drift apart on the wire format.
*/
package authsdk
