package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/jwtx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// DefaultRefreshBuffer is the window before downstream token expiry in
// which the token is refreshed rather than returned as-is.
const DefaultRefreshBuffer = 5 * time.Minute

// ExchangeService implements RFC 8693 token exchange: trade a validated
// MCP access token for a scoped downstream provider token.
type ExchangeService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager
	Downstream DownstreamClient
	Issuer     string

	RefreshBuffer time.Duration
}

func (s *ExchangeService) refreshBuffer() time.Duration {
	if s.RefreshBuffer > 0 {
		return s.RefreshBuffer
	}
	return DefaultRefreshBuffer
}

// ExchangeRequest is the parsed RFC 8693 request body.
type ExchangeRequest struct {
	SubjectToken     string
	SubjectTokenType string
	Resource         string // connection id or provided id
	Scopes           []string
}

// ExchangeResult is what the token-exchange endpoint returns.
type ExchangeResult struct {
	AccessToken     string
	IssuedTokenType string
	TokenType       string
	ExpiresIn       int64
	Scope           []string
}

// ExchangeToken validates the subject token against this server's keys,
// resolves the entitled downstream scopes through the mapping table, and
// returns the connection's downstream token, refreshing it transparently
// when it is within the expiry buffer.
func (s *ExchangeService) ExchangeToken(ctx context.Context, serverIdentifier string, req ExchangeRequest) (*ExchangeResult, error) {
	l := slogx.FromContext(ctx)
	now := time.Now()

	server, err := s.resolveServer(ctx, serverIdentifier)
	if err != nil {
		return nil, err
	}

	if req.SubjectTokenType != authsdk.SubjectTokenTypeAccessToken {
		return nil, ErrInvalidGrant
	}

	// Signature and issuer first, then audience against this server.
	verifier := jwtx.NewCommonRS256(s.KeyManager.KeySet, s.Issuer, nil)
	claims, err := verifier.Verify(req.SubjectToken)
	if err != nil {
		l.Info("token exchange rejected subject token", slog.Any("error", err))
		return nil, ErrInvalidSubjectToken
	}
	if err := claims.ValidateAudience([]string{server.ProvidedID}); err != nil {
		l.Info("token exchange audience mismatch", slog.String("server", server.ProvidedID))
		return nil, ErrInvalidSubjectToken
	}
	granted := claims.Scopes

	conn, err := s.resolveConnection(ctx, server.ID, req.Resource)
	if err != nil {
		return nil, err
	}

	entitled, err := s.resolveEntitledScopes(ctx, conn.ID, granted)
	if err != nil {
		return nil, err
	}

	requested := req.Scopes
	if len(requested) == 0 {
		requested = entitled
	} else {
		for _, scope := range requested {
			if !containsScope(entitled, scope) {
				return nil, fmt.Errorf("%w: scope %q not in entitled set %v", ErrScopeNotEntitled, scope, entitled)
			}
		}
		requested = dedupe(requested)
	}

	cf, err := s.Store.ConnectionFlows().GetAuthorizedFlowByConnection(ctx, conn.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoDownstreamAuth
		}
		return nil, err
	}

	if cf.TokenStale(now, s.refreshBuffer()) {
		cf, err = s.refreshDownstream(ctx, conn, cf)
		if err != nil {
			return nil, err
		}
	}

	expiresIn := int64(3600)
	if cf.TokenExpiresAt != nil {
		expiresIn = int64(time.Until(*cf.TokenExpiresAt).Seconds())
		if expiresIn < 0 {
			expiresIn = 0
		}
	}

	l.Info("token exchanged",
		slog.String("server", server.ProvidedID),
		slog.String("connection", conn.ID),
		slog.Any("scopes", requested),
	)
	return &ExchangeResult{
		AccessToken:     cf.AccessToken,
		IssuedTokenType: authsdk.SubjectTokenTypeAccessToken,
		TokenType:       "Bearer",
		ExpiresIn:       expiresIn,
		Scope:           requested,
	}, nil
}

func (s *ExchangeService) resolveServer(ctx context.Context, identifier string) (domain.Server, error) {
	server, err := s.Store.Servers().GetServerByProvidedID(ctx, identifier)
	if err == nil {
		return server, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.Server{}, err
	}
	server, err = s.Store.Servers().GetServerByID(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Server{}, ErrServerNotFound
		}
		return domain.Server{}, err
	}
	return server, nil
}

func (s *ExchangeService) resolveConnection(ctx context.Context, serverID, resource string) (domain.Connection, error) {
	conn, err := s.Store.Connections().GetConnectionByID(ctx, resource)
	if err == nil && conn.ServerID == serverID {
		return conn, nil
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return domain.Connection{}, err
	}
	conn, err = s.Store.Connections().GetConnectionByProvidedID(ctx, serverID, resource)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Connection{}, ErrConnectionNotFound
		}
		return domain.Connection{}, err
	}
	return conn, nil
}

// resolveEntitledScopes collects the de-duplicated downstream scopes the
// granted MCP scopes map to on this connection.
func (s *ExchangeService) resolveEntitledScopes(ctx context.Context, connectionID string, granted []string) ([]string, error) {
	mappings, err := s.Store.ScopeMappings().ListMappingsByConnection(ctx, connectionID)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, m := range mappings {
		if containsScope(granted, m.ScopeID) {
			out = append(out, m.DownstreamScope)
		}
	}
	return dedupe(out), nil
}

// refreshDownstream trades the stored refresh token for a fresh access
// token and persists it before returning. No refresh token means the
// exchange cannot proceed.
func (s *ExchangeService) refreshDownstream(ctx context.Context, conn domain.Connection, cf domain.ConnectionFlow) (domain.ConnectionFlow, error) {
	l := slogx.FromContext(ctx)

	if cf.RefreshToken == "" {
		return domain.ConnectionFlow{}, ErrNoDownstreamAuth
	}

	tok, err := s.Downstream.RefreshToken(ctx, conn, cf.RefreshToken)
	if err != nil {
		l.Warn("downstream refresh failed",
			slog.String("connection_flow_id", cf.ID),
			slog.Any("error", err),
		)
		return domain.ConnectionFlow{}, fmt.Errorf("refresh downstream token: %w", err)
	}

	cf.AccessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		cf.RefreshToken = tok.RefreshToken
	}
	cf.TokenExpiresAt = tok.ExpiresAt

	if err := s.Store.ConnectionFlows().UpdateConnectionFlowTokens(ctx, cf); err != nil {
		if errors.Is(err, store.ErrStaleRow) {
			// Lost the race to a concurrent refresh; serve its result.
			return s.Store.ConnectionFlows().GetConnectionFlowByID(ctx, cf.ID)
		}
		return domain.ConnectionFlow{}, err
	}
	cf.RowVersion++
	return cf, nil
}
