package service

import (
	"context"
	"errors"
	"log/slog"
	"net/url"
	"strings"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/cryptox"
	"github.com/tabservice/journeyd/pkg/idx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// ClientService implements dynamic client registration (RFC 7591) and
// client lookups for the rest of the engine.
type ClientService struct {
	Store store.Store
}

// RegisterClientInput is the validated subset of RFC 7591 metadata this
// server accepts.
type RegisterClientInput struct {
	Name                    string
	RedirectURIs            []string
	GrantTypes              []string
	TokenEndpointAuthMethod string
	Scopes                  []string
	CodeChallengeMethod     string
}

// Register validates the metadata, persists the client, and returns the
// stored client plus the plaintext secret. The secret is surfaced exactly
// once here; only its argon2id hash is kept at rest.
func (s *ClientService) Register(ctx context.Context, in RegisterClientInput) (domain.Client, string, error) {
	l := slogx.FromContext(ctx)

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return domain.Client{}, "", ErrInvalidMetadata
	}

	if len(in.RedirectURIs) == 0 {
		return domain.Client{}, "", ErrInvalidRedirectURI
	}
	for _, raw := range in.RedirectURIs {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			return domain.Client{}, "", ErrInvalidRedirectURI
		}
	}

	// MCP clients must be able to run the full code+refresh dance.
	if !containsScope(in.GrantTypes, domain.GrantTypeAuthorizationCode) ||
		!containsScope(in.GrantTypes, domain.GrantTypeRefreshToken) {
		return domain.Client{}, "", ErrInvalidMetadata
	}

	// "plain" parses but is never accepted at registration.
	method := strings.TrimSpace(in.CodeChallengeMethod)
	if method == "" {
		method = "S256"
	}
	if method != "S256" {
		return domain.Client{}, "", ErrInvalidMetadata
	}

	authMethod := strings.TrimSpace(in.TokenEndpointAuthMethod)
	if authMethod == "" {
		authMethod = domain.AuthMethodNone
	}
	switch authMethod {
	case domain.AuthMethodNone, domain.AuthMethodClientSecretBasic, domain.AuthMethodClientSecretPost:
	default:
		return domain.Client{}, "", ErrInvalidMetadata
	}

	client := domain.Client{
		ID:                      idx.New().String(),
		Name:                    in.Name,
		RedirectURIs:            in.RedirectURIs,
		GrantTypes:              dedupe(in.GrantTypes),
		TokenEndpointAuthMethod: authMethod,
		Scopes:                  dedupe(in.Scopes),
		CodeChallengeMethod:     method,
	}

	clientID, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return domain.Client{}, "", err
	}
	client.ClientID = clientID

	var secret string
	if authMethod != domain.AuthMethodNone {
		secret, err = cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return domain.Client{}, "", err
		}
		client.SecretHash, err = cryptox.HashSecret(secret)
		if err != nil {
			return domain.Client{}, "", err
		}
	}

	if err := s.Store.Clients().CreateClient(ctx, client); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Client{}, "", ErrClientNameTaken
		}
		return domain.Client{}, "", err
	}

	l.Info("client registered",
		slog.String("client_id", client.ClientID),
		slog.String("client_name", client.Name),
		slog.String("auth_method", authMethod),
	)
	return client, secret, nil
}

// GetByClientID returns the client without any secret material.
func (s *ClientService) GetByClientID(ctx context.Context, clientID string) (domain.Client, error) {
	c, err := s.Store.Clients().GetClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrClientNotFound
		}
		return domain.Client{}, err
	}
	return c, nil
}

// List returns all registered clients, newest first.
func (s *ClientService) List(ctx context.Context) ([]domain.Client, error) {
	return s.Store.Clients().ListClients(ctx)
}

// Authenticate resolves the client and, for confidential clients, checks
// the presented secret in constant time. Public clients pass with an
// empty secret.
func (s *ClientService) Authenticate(ctx context.Context, clientID, clientSecret string) (domain.Client, error) {
	c, err := s.Store.Clients().GetClientByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Client{}, ErrInvalidClient
		}
		return domain.Client{}, err
	}
	if c.SecretHash != "" {
		if clientSecret == "" || cryptox.VerifySecret(clientSecret, c.SecretHash) != nil {
			return domain.Client{}, ErrInvalidClient
		}
	}
	return c, nil
}
