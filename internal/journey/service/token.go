package service

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/cryptox"
	"github.com/tabservice/journeyd/pkg/idx"
	"github.com/tabservice/journeyd/pkg/jwtx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// ClaimsVersion is stamped into every issued access token.
const ClaimsVersion = "1.0.0"

// TokenService validates PKCE, redeems authorization codes for token
// pairs, rotates refresh tokens, and introspects issued tokens.
type TokenService struct {
	KeyManager *jwtx.KeyManager
	Store      store.Store
	Issuer     string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
}

func (s *TokenService) accessTTL() time.Duration {
	if s.AccessTTL > 0 {
		return s.AccessTTL
	}
	return jwtx.DefaultAccessTokenTTL
}

func (s *TokenService) refreshTTL() time.Duration {
	if s.RefreshTTL > 0 {
		return s.RefreshTTL
	}
	return 30 * 24 * time.Hour
}

// ExchangeAuthorizationCode implements the authorization_code grant.
//
// Validation order is part of the contract: client match, code unused,
// code unexpired, redirect match, PKCE present, PKCE valid. A failure at
// any step mutates nothing; the code is consumed exactly once via a
// row-version guarded write inside the transaction.
func (s *TokenService) ExchangeAuthorizationCode(
	ctx context.Context,
	clientID, clientSecret, code, redirectURI, codeVerifier string,
) (*domain.TokenPair, error) {
	now := time.Now()
	l := slogx.FromContext(ctx)

	client, err := s.Store.Clients().GetClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	if client.SecretHash != "" {
		if clientSecret == "" || cryptox.VerifySecret(clientSecret, client.SecretHash) != nil {
			l.Info("client authentication failed", slog.String("client_id", clientID))
			return nil, ErrInvalidClient
		}
	}

	code = strings.TrimSpace(code)
	redirectURI = strings.TrimSpace(redirectURI)
	codeVerifier = strings.TrimSpace(codeVerifier)
	if code == "" || redirectURI == "" || codeVerifier == "" {
		return nil, ErrInvalidGrant
	}

	codeHash := cryptox.FingerprintToken(code)

	var result *domain.TokenPair

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		flow, err := tx.McpFlows().GetMcpFlowByCodeHash(ctx, codeHash)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrInvalidGrant
			}
			return err
		}

		if flow.ClientID != client.ID {
			return ErrInvalidClient
		}
		if flow.CodeUsedAt != nil {
			return ErrCodeUsed
		}
		if flow.CodeExpiresAt == nil || now.After(*flow.CodeExpiresAt) {
			return ErrCodeExpired
		}
		if flow.RedirectURI != redirectURI {
			return ErrInvalidGrant
		}
		if flow.CodeChallenge == "" {
			return ErrInvalidGrant
		}
		if !ValidatePKCE(codeVerifier, flow.CodeChallenge, flow.CodeChallengeMethod) {
			return ErrInvalidGrant
		}

		server, err := tx.Servers().GetServerByID(ctx, flow.ServerID)
		if err != nil {
			return err
		}

		if err := tx.McpFlows().MarkMcpFlowCodeUsed(ctx, flow.ID, flow.RowVersion); err != nil {
			if errors.Is(err, store.ErrStaleRow) {
				return ErrCodeUsed
			}
			return err
		}

		journey, err := tx.Journeys().GetJourneyByID(ctx, flow.JourneyID)
		if err != nil {
			return err
		}
		if err := tx.Journeys().UpdateJourneyStatus(ctx, journey.ID, domain.JourneyCodeExchanged, journey.RowVersion); err != nil {
			return err
		}

		accessToken, err := s.signAccess(client, server, flow, now)
		if err != nil {
			return err
		}

		refreshOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return err
		}
		refresh := domain.RefreshToken{
			ID:        idx.New().String(),
			Kind:      domain.RefreshKindMCP,
			SubjectID: flow.ID,
			ClientID:  client.ID,
			TokenHash: cryptox.FingerprintToken(refreshOpaque),
			Scopes:    flow.Scopes,
			ExpiresAt: now.Add(s.refreshTTL()),
		}
		if err := tx.RefreshTokens().CreateRefreshToken(ctx, refresh); err != nil {
			return err
		}

		result = &domain.TokenPair{
			AccessToken:  accessToken,
			RefreshToken: refreshOpaque,
			TokenType:    "Bearer",
			ExpiresIn:    s.accessTTL(),
			Scope:        strings.Join(flow.Scopes, " "),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	l.Info("authorization code exchanged", slog.String("client_id", clientID))
	return result, nil
}

// ExchangeRefreshToken implements the refresh_token grant with rotation:
// the presented token is revoked and a fresh pair is issued atomically.
func (s *TokenService) ExchangeRefreshToken(ctx context.Context, clientID, refreshOpaque string) (*domain.TokenPair, error) {
	now := time.Now()

	client, err := s.Store.Clients().GetClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidClient
		}
		return nil, err
	}

	fp := cryptox.FingerprintToken(refreshOpaque)
	rt, err := s.Store.RefreshTokens().GetRefreshTokenByHash(ctx, fp)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrInvalidRefresh
		}
		return nil, err
	}
	if rt.Kind != domain.RefreshKindMCP || !rt.Usable(now) {
		return nil, ErrInvalidRefresh
	}
	if rt.ClientID != client.ID {
		return nil, ErrInvalidClient
	}

	flow, err := s.Store.McpFlows().GetMcpFlowByID(ctx, rt.SubjectID)
	if err != nil {
		return nil, err
	}
	server, err := s.Store.Servers().GetServerByID(ctx, flow.ServerID)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.signAccess(client, server, flow, now)
	if err != nil {
		return nil, err
	}

	newOpaque, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return nil, err
	}
	newRT := domain.RefreshToken{
		ID:        idx.New().String(),
		Kind:      domain.RefreshKindMCP,
		SubjectID: rt.SubjectID,
		ClientID:  client.ID,
		TokenHash: cryptox.FingerprintToken(newOpaque),
		Scopes:    rt.Scopes,
		ExpiresAt: now.Add(s.refreshTTL()),
	}

	if err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.RefreshTokens().RevokeRefreshToken(ctx, fp); err != nil {
			return err
		}
		return tx.RefreshTokens().CreateRefreshToken(ctx, newRT)
	}); err != nil {
		return nil, err
	}

	return &domain.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: newOpaque,
		TokenType:    "Bearer",
		ExpiresIn:    s.accessTTL(),
		Scope:        strings.Join(rt.Scopes, " "),
	}, nil
}

// Introspect verifies the token per RFC 7662. Any failure, expiry, bad
// signature, unknown kid, yields active=false with no reason attached.
// A caller-supplied client_id must match the token's claim when present.
func (s *TokenService) Introspect(ctx context.Context, token, callerClientID string) authsdk.IntrospectionResponse {
	l := slogx.FromContext(ctx)

	verifier := jwtx.NewCommonRS256(s.KeyManager.KeySet, s.Issuer, nil)
	claims, err := verifier.Verify(token)
	if err != nil {
		l.Info("introspection rejected token", slog.Any("error", err))
		return authsdk.IntrospectionResponse{Active: false}
	}

	if callerClientID != "" && claims.ClientID != callerClientID {
		l.Info("introspection client_id mismatch", slog.String("client_id", callerClientID))
		return authsdk.IntrospectionResponse{Active: false}
	}

	resp := authsdk.IntrospectionResponse{
		Active:           true,
		Scope:            strings.Join(claims.Scopes, " "),
		ClientID:         claims.ClientID,
		TokenType:        "Bearer",
		Sub:              claims.Subject,
		Iss:              claims.Issuer,
		Jti:              claims.ID,
		Aud:              claims.Audience,
		ServerIdentifier: claims.ServerIdentifier,
		Resource:         claims.Resource,
		Version:          claims.Version,
	}
	if claims.ExpiresAt != nil {
		resp.Exp = claims.ExpiresAt.Unix()
	}
	if claims.IssuedAt != nil {
		resp.Iat = claims.IssuedAt.Unix()
	}
	return resp
}

func (s *TokenService) signAccess(client domain.Client, server domain.Server, flow domain.McpFlow, now time.Time) (string, error) {
	signer := s.KeyManager.ActiveSigner()
	if signer == nil {
		return "", jwtx.ErrNoKey
	}

	claims := jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.Issuer,
			Subject:   client.ClientID,
			Audience:  jwt.ClaimStrings{server.ProvidedID},
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL())),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        jwtx.NewJTI(),
		},
		ClientID:         client.ClientID,
		Scopes:           flow.Scopes,
		ServerIdentifier: server.ProvidedID,
		Resource:         flow.Resource,
		Version:          ClaimsVersion,
	}
	return signer.Sign(claims)
}

// ValidatePKCE checks a code verifier against the stored challenge.
// S256 hashes the ASCII verifier and compares the unpadded base64url
// digest; plain compares directly. Both comparisons are constant-time.
func ValidatePKCE(verifier, challenge, method string) bool {
	if challenge == "" || verifier == "" {
		return false
	}
	switch {
	case strings.EqualFold(method, "S256"):
		sum := sha256.Sum256([]byte(verifier))
		expected := base64.RawURLEncoding.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(expected)) == 1
	case method == "" || strings.EqualFold(method, "plain"):
		return subtle.ConstantTimeCompare([]byte(challenge), []byte(verifier)) == 1
	default:
		return false
	}
}
