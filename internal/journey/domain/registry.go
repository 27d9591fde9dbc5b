package domain

import "time"

// Server is an MCP server known to the registry. The authorization engine
// treats this data as read-only reference material.
type Server struct {
	ID          string
	ProvidedID  string // external identifier, unique
	Name        string
	Description string
	Scopes      []ServerScope
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ServerScope is one scope an MCP server offers to clients.
type ServerScope struct {
	ScopeID     string
	Description string
}

// ScopeIDs returns the server's scope identifiers.
func (s *Server) ScopeIDs() []string {
	out := make([]string, 0, len(s.Scopes))
	for _, sc := range s.Scopes {
		out = append(out, sc.ScopeID)
	}
	return out
}

// Connection is a downstream third-party OAuth provider an MCP server
// depends on, with the credentials and endpoints needed to run its flow.
type Connection struct {
	ID           string
	ServerID     string
	ProvidedID   string // external identifier, unique when set
	FriendlyName string
	ClientID     string
	ClientSecret string
	AuthorizeURL string
	TokenURL     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ScopeMapping translates one MCP scope into a downstream provider scope
// for a specific connection.
type ScopeMapping struct {
	ID              string
	ServerID        string
	ConnectionID    string
	ScopeID         string
	DownstreamScope string
	CreatedAt       time.Time
}
