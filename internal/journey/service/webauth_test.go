package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func newWebAuthService(t *testing.T) *WebAuthService {
	t.Helper()
	return &WebAuthService{
		KeyManager: newTestKeyManager(t),
		Store:      newTestStore(t),
		Issuer:     "https://auth.example",
	}
}

func TestWebLogin(t *testing.T) {
	svc := newWebAuthService(t)
	ctx := context.Background()

	user, err := svc.CreateUser(ctx, "admin", "correct horse battery staple")
	require.NoError(t, err)
	require.Equal(t, "admin", user.Username)

	t.Run("duplicate username rejected", func(t *testing.T) {
		_, err := svc.CreateUser(ctx, "admin", "whatever")
		require.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("valid credentials issue a session pair", func(t *testing.T) {
		pair, err := svc.Login(ctx, "admin", "correct horse battery staple")
		require.NoError(t, err)
		require.NotEmpty(t, pair.AccessToken)
		require.NotEmpty(t, pair.RefreshToken)

		claims, err := svc.ValidateWebToken(ctx, pair.AccessToken)
		require.NoError(t, err)
		require.Equal(t, user.ID, claims.Subject)
		require.Equal(t, "admin", claims.Username)
	})

	t.Run("wrong password", func(t *testing.T) {
		_, err := svc.Login(ctx, "admin", "hunter2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})

	t.Run("unknown user gets the same error", func(t *testing.T) {
		_, err := svc.Login(ctx, "nobody", "hunter2")
		require.ErrorIs(t, err, ErrInvalidCredentials)
	})
}

func TestWebRefreshRotation(t *testing.T) {
	svc := newWebAuthService(t)
	ctx := context.Background()

	_, err := svc.CreateUser(ctx, "operator", "s3cret-passphrase")
	require.NoError(t, err)
	pair, err := svc.Login(ctx, "operator", "s3cret-passphrase")
	require.NoError(t, err)

	rotated, err := svc.RefreshWebToken(ctx, pair.RefreshToken)
	require.NoError(t, err)
	require.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	t.Run("old refresh token is burned", func(t *testing.T) {
		_, err := svc.RefreshWebToken(ctx, pair.RefreshToken)
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})

	t.Run("rotated token still works", func(t *testing.T) {
		_, err := svc.RefreshWebToken(ctx, rotated.RefreshToken)
		require.NoError(t, err)
	})

	t.Run("garbage token rejected", func(t *testing.T) {
		_, err := svc.RefreshWebToken(ctx, "never-issued")
		require.ErrorIs(t, err, ErrInvalidRefresh)
	})
}

func TestValidateWebTokenRejectsMcpTokens(t *testing.T) {
	// An MCP access token must not pass as a web session even though it
	// is signed by the same issuer.
	f := newTokenFixture(t)
	ctx := context.Background()

	pair, err := f.tokens.ExchangeAuthorizationCode(ctx,
		f.client.ClientID, "", f.code, "http://localhost:3000/cb", f.verifier)
	require.NoError(t, err)

	web := &WebAuthService{
		KeyManager: f.tokens.KeyManager,
		Store:      f.store,
		Issuer:     "https://auth.example",
	}
	_, err = web.ValidateWebToken(ctx, pair.AccessToken)
	require.Error(t, err)
}
