package store

import (
	"context"
	"errors"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
)

var (
	ErrNotFound      = errors.New("store: not found")
	ErrAlreadyExists = errors.New("store: already exists")

	// ErrStaleRow reports an optimistic-concurrency conflict: the row was
	// modified between read and write. Callers should treat the operation
	// as lost to a concurrent writer, not retry blindly.
	ErrStaleRow = errors.New("store: stale row version")
)

// Store is the root data access interface. Concrete drivers (sqlite,
// postgres) implement this. It exposes sub-repositories to keep concerns
// tidy and testable, and a transaction entry point for multi-step
// operations that must be atomic (code redemption, key rotation,
// downstream token refresh).
type Store interface {
	Clients() Clients
	Journeys() Journeys
	McpFlows() McpFlows
	ConnectionFlows() ConnectionFlows
	Servers() Servers
	Connections() Connections
	ScopeMappings() ScopeMappings
	RefreshTokens() RefreshTokens
	SigningKeys() SigningKeys
	Users() Users

	ApplyMigrations() error

	// Tx starts a read/write transaction and returns a Tx-scoped Store.
	// The caller MUST call Commit() or Rollback() on the returned Tx.
	Tx(ctx context.Context) (Tx, error)

	// WithTx executes fn within a transaction. If fn returns an error the
	// transaction is rolled back, otherwise it is committed. This is the
	// recommended way to handle transactions.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	// Close releases any underlying resources.
	Close() error

	// Ping verifies the database connection is still alive.
	Ping(ctx context.Context) error
}

// Tx is a transactional store. It embeds the same repos but adds
// Commit/Rollback.
type Tx interface {
	Store
	Commit() error
	Rollback() error
}

type Clients interface {
	// CreateClient inserts a new client. Duplicate client_name or
	// client_id returns ErrAlreadyExists.
	CreateClient(ctx context.Context, c domain.Client) error

	// GetClientByClientID fetches a client by its public client_id.
	GetClientByClientID(ctx context.Context, clientID string) (domain.Client, error)

	// GetClientByID fetches a client by its ULID.
	GetClientByID(ctx context.Context, id string) (domain.Client, error)

	// ListClients returns all clients ordered by creation date (newest first).
	ListClients(ctx context.Context) ([]domain.Client, error)

	// DeleteClient soft-deletes a client.
	DeleteClient(ctx context.Context, id string) error
}

type Journeys interface {
	// CreateJourney inserts a new journey aggregate root.
	CreateJourney(ctx context.Context, j domain.Journey) error

	// GetJourneyByID fetches a journey by its ULID.
	GetJourneyByID(ctx context.Context, id string) (domain.Journey, error)

	// ListJourneysByServer returns journeys whose MCP flow targets the
	// given server, newest first.
	ListJourneysByServer(ctx context.Context, serverID string) ([]domain.Journey, error)

	// UpdateJourneyStatus transitions the journey status guarded by the
	// row version. Returns ErrStaleRow on a lost race.
	UpdateJourneyStatus(ctx context.Context, id string, status domain.JourneyStatus, rowVersion int64) error
}

type McpFlows interface {
	// CreateMcpFlow inserts the journey's primary flow.
	CreateMcpFlow(ctx context.Context, f domain.McpFlow) error

	// GetMcpFlowByID fetches a flow by its ULID.
	GetMcpFlowByID(ctx context.Context, id string) (domain.McpFlow, error)

	// GetMcpFlowByJourney fetches the 1:1 flow for a journey.
	GetMcpFlowByJourney(ctx context.Context, journeyID string) (domain.McpFlow, error)

	// GetMcpFlowByClientAndServer fetches the pre-provisioned flow for a
	// (client, server) pair. Flows are provisioned out-of-band; the
	// authorization request fails if none exists.
	GetMcpFlowByClientAndServer(ctx context.Context, clientID, serverID string) (domain.McpFlow, error)

	// GetMcpFlowByCodeHash fetches the flow holding the given
	// authorization code fingerprint.
	GetMcpFlowByCodeHash(ctx context.Context, codeHash string) (domain.McpFlow, error)

	// UpdateMcpFlowAuthRequest stores the PKCE and redirect parameters
	// recorded when the authorization request starts.
	UpdateMcpFlowAuthRequest(ctx context.Context, f domain.McpFlow) error

	// UpdateMcpFlowStatus transitions the flow status guarded by the row
	// version. Returns ErrStaleRow on a lost race.
	UpdateMcpFlowStatus(ctx context.Context, id string, status domain.McpFlowStatus, rowVersion int64) error

	// IssueMcpFlowCode stores a freshly minted authorization code
	// fingerprint with its expiry and flips the status in one write.
	IssueMcpFlowCode(ctx context.Context, id, codeHash string, expiresAt time.Time, rowVersion int64) error

	// MarkMcpFlowCodeUsed consumes the authorization code. Guarded by the
	// row version so a code can be redeemed exactly once.
	MarkMcpFlowCodeUsed(ctx context.Context, id string, rowVersion int64) error

	// DeleteExpiredMcpFlowCodes clears code material from flows whose
	// codes expired before the cutoff (housekeeping).
	DeleteExpiredMcpFlowCodes(ctx context.Context) error
}

type ConnectionFlows interface {
	// CreateConnectionFlow inserts one downstream flow row.
	CreateConnectionFlow(ctx context.Context, f domain.ConnectionFlow) error

	// GetConnectionFlowByID fetches a connection flow by its ULID.
	GetConnectionFlowByID(ctx context.Context, id string) (domain.ConnectionFlow, error)

	// GetConnectionFlowByState locates a flow by its CSRF state token.
	// State is the sole correlation key for downstream callbacks.
	GetConnectionFlowByState(ctx context.Context, state string) (domain.ConnectionFlow, error)

	// ListConnectionFlowsByJourney returns all downstream flows for a
	// journey in creation order.
	ListConnectionFlowsByJourney(ctx context.Context, journeyID string) ([]domain.ConnectionFlow, error)

	// GetAuthorizedFlowByConnection returns the newest authorized flow
	// for a connection, used by token exchange.
	GetAuthorizedFlowByConnection(ctx context.Context, connectionID string) (domain.ConnectionFlow, error)

	// UpdateConnectionFlowState persists a freshly generated state token.
	UpdateConnectionFlowState(ctx context.Context, id, state string, rowVersion int64) error

	// UpdateConnectionFlowTokens stores downstream provider credentials
	// and the resulting status, guarded by the row version.
	UpdateConnectionFlowTokens(ctx context.Context, f domain.ConnectionFlow) error

	// UpdateConnectionFlowStatus transitions just the status.
	UpdateConnectionFlowStatus(ctx context.Context, id string, status domain.ConnectionFlowStatus, rowVersion int64) error
}

type Servers interface {
	// CreateServer inserts a registry server with its scopes.
	CreateServer(ctx context.Context, s domain.Server) error

	// GetServerByID fetches a server by ULID.
	GetServerByID(ctx context.Context, id string) (domain.Server, error)

	// GetServerByProvidedID fetches a server by its external identifier.
	GetServerByProvidedID(ctx context.Context, providedID string) (domain.Server, error)

	// ListServers returns all servers, newest first.
	ListServers(ctx context.Context) ([]domain.Server, error)
}

type Connections interface {
	// CreateConnection inserts a downstream provider connection.
	CreateConnection(ctx context.Context, c domain.Connection) error

	// GetConnectionByID fetches a connection by ULID.
	GetConnectionByID(ctx context.Context, id string) (domain.Connection, error)

	// GetConnectionByProvidedID fetches a connection by its external
	// identifier scoped to a server.
	GetConnectionByProvidedID(ctx context.Context, serverID, providedID string) (domain.Connection, error)

	// ListConnectionsByServer returns a server's connections.
	ListConnectionsByServer(ctx context.Context, serverID string) ([]domain.Connection, error)
}

type ScopeMappings interface {
	// CreateScopeMapping inserts one scopeId -> downstreamScope row.
	CreateScopeMapping(ctx context.Context, m domain.ScopeMapping) error

	// ListMappingsByConnection returns all mappings for a connection.
	ListMappingsByConnection(ctx context.Context, connectionID string) ([]domain.ScopeMapping, error)
}

type RefreshTokens interface {
	// CreateRefreshToken stores a new refresh token record.
	CreateRefreshToken(ctx context.Context, t domain.RefreshToken) error

	// GetRefreshTokenByHash returns the token by its fingerprint.
	GetRefreshTokenByHash(ctx context.Context, hash string) (domain.RefreshToken, error)

	// RevokeRefreshToken sets revoked_at, making the token dead.
	RevokeRefreshToken(ctx context.Context, hash string) error

	// DeleteExpiredRefreshTokens is housekeeping.
	DeleteExpiredRefreshTokens(ctx context.Context) error
}

type SigningKeys interface {
	// CreateSigningKey stores a new signing key with encrypted private
	// key material.
	CreateSigningKey(ctx context.Context, key domain.SigningKey) error

	// GetSigningKeyByKid fetches a signing key by its key identifier.
	GetSigningKeyByKid(ctx context.Context, kid string) (domain.SigningKey, error)

	// GetActiveSigningKey returns the newest active, non-expired key.
	GetActiveSigningKey(ctx context.Context) (domain.SigningKey, error)

	// ListSigningKeys returns all signing keys (active or not), newest
	// first. Non-expired keys stay verifiable after rotation.
	ListSigningKeys(ctx context.Context) ([]domain.SigningKey, error)

	// DeactivateSigningKeys flips every active key to inactive. Called
	// inside the rotation transaction before inserting the new key.
	DeactivateSigningKeys(ctx context.Context) error

	// DeleteSigningKeysExpiredBefore soft-deletes keys whose expiry
	// predates the cutoff (grace-period cleanup).
	DeleteSigningKeysExpiredBefore(ctx context.Context, cutoff time.Time) error
}

type Users interface {
	// CreateUser inserts a new user (id is provided by app via ULID).
	CreateUser(ctx context.Context, u domain.User) error

	// GetUserByID returns a user by id.
	GetUserByID(ctx context.Context, id string) (domain.User, error)

	// GetUserByUsername is used during web login.
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
}
