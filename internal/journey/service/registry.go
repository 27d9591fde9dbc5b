package service

import (
	"context"
	"errors"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/idx"
)

// RegistryService administers the MCP server registry: servers, their
// scopes, downstream connections, and the scope mapping table. The
// authorization engine itself only reads this data.
type RegistryService struct {
	Store store.Store
}

type CreateServerInput struct {
	ProvidedID  string
	Name        string
	Description string
	Scopes      []domain.ServerScope
}

func (s *RegistryService) CreateServer(ctx context.Context, in CreateServerInput) (domain.Server, error) {
	if in.ProvidedID == "" || in.Name == "" {
		return domain.Server{}, ErrInvalidMetadata
	}
	server := domain.Server{
		ID:          idx.New().String(),
		ProvidedID:  in.ProvidedID,
		Name:        in.Name,
		Description: in.Description,
		Scopes:      in.Scopes,
	}
	if err := s.Store.Servers().CreateServer(ctx, server); err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			return domain.Server{}, ErrServerExists
		}
		return domain.Server{}, err
	}
	return server, nil
}

func (s *RegistryService) GetServer(ctx context.Context, providedID string) (domain.Server, error) {
	server, err := s.Store.Servers().GetServerByProvidedID(ctx, providedID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return domain.Server{}, ErrServerNotFound
		}
		return domain.Server{}, err
	}
	return server, nil
}

func (s *RegistryService) ListServers(ctx context.Context) ([]domain.Server, error) {
	return s.Store.Servers().ListServers(ctx)
}

type CreateConnectionInput struct {
	ServerProvidedID string
	ProvidedID       string
	FriendlyName     string
	ClientID         string
	ClientSecret     string
	AuthorizeURL     string
	TokenURL         string

	// Mappings translate MCP scope ids to this provider's scopes.
	Mappings map[string]string
}

func (s *RegistryService) CreateConnection(ctx context.Context, in CreateConnectionInput) (domain.Connection, error) {
	if in.FriendlyName == "" || in.ClientID == "" || in.AuthorizeURL == "" || in.TokenURL == "" {
		return domain.Connection{}, ErrInvalidMetadata
	}

	server, err := s.GetServer(ctx, in.ServerProvidedID)
	if err != nil {
		return domain.Connection{}, err
	}

	conn := domain.Connection{
		ID:           idx.New().String(),
		ServerID:     server.ID,
		ProvidedID:   in.ProvidedID,
		FriendlyName: in.FriendlyName,
		ClientID:     in.ClientID,
		ClientSecret: in.ClientSecret,
		AuthorizeURL: in.AuthorizeURL,
		TokenURL:     in.TokenURL,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Connections().CreateConnection(ctx, conn); err != nil {
			return err
		}
		for scopeID, downstream := range in.Mappings {
			m := domain.ScopeMapping{
				ID:              idx.New().String(),
				ServerID:        server.ID,
				ConnectionID:    conn.ID,
				ScopeID:         scopeID,
				DownstreamScope: downstream,
			}
			if err := tx.ScopeMappings().CreateScopeMapping(ctx, m); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Connection{}, err
	}
	return conn, nil
}

func (s *RegistryService) ListConnections(ctx context.Context, serverProvidedID string) ([]domain.Connection, error) {
	server, err := s.GetServer(ctx, serverProvidedID)
	if err != nil {
		return nil, err
	}
	return s.Store.Connections().ListConnectionsByServer(ctx, server.ID)
}
