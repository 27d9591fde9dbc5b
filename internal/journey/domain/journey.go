package domain

import "time"

// JourneyStatus is a coarse summary of where a journey is, derived from
// its child flows.
type JourneyStatus string

const (
	JourneyNotStarted              JourneyStatus = "not_started"
	JourneyMcpFlowStarted          JourneyStatus = "mcp_auth_flow_started"
	JourneyMcpFlowCompleted        JourneyStatus = "mcp_auth_flow_completed"
	JourneyConnectionsStarted      JourneyStatus = "connections_flow_started"
	JourneyConnectionsCompleted    JourneyStatus = "connections_flow_completed"
	JourneyAuthorizationCodeIssued JourneyStatus = "authorization_code_issued"
	JourneyCodeExchanged           JourneyStatus = "authorization_code_exchanged"
)

// McpFlowStatus tracks the primary MCP authorization flow state machine.
type McpFlowStatus string

const (
	FlowClientNotRegistered  McpFlowStatus = "client_not_registered"
	FlowClientRegistered     McpFlowStatus = "client_registered"
	FlowAuthRequestStarted   McpFlowStatus = "authorization_request_started"
	FlowUserConsentOK        McpFlowStatus = "user_consent_ok"
	FlowUserConsentRejected  McpFlowStatus = "user_consent_rejected"
	FlowWaitingOnDownstream  McpFlowStatus = "waiting_on_downstream_auth"
	FlowAuthCodeIssued       McpFlowStatus = "authorization_code_issued"
	FlowAuthCodeExchanged    McpFlowStatus = "authorization_code_exchanged"
)

// ConnectionFlowStatus tracks one downstream provider authorization.
type ConnectionFlowStatus string

const (
	ConnectionPending    ConnectionFlowStatus = "pending"
	ConnectionAuthorized ConnectionFlowStatus = "authorized"
	ConnectionFailed     ConnectionFlowStatus = "failed"
)

// Journey is the aggregate root spanning one MCP authorization flow and
// its dependent downstream connection flows.
type Journey struct {
	ID         string
	Status     JourneyStatus
	RowVersion int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// McpFlow is the primary OAuth flow between an MCP client and this
// server. One per journey.
type McpFlow struct {
	ID                  string
	JourneyID           string
	ServerID            string
	ClientID            string // registered client ULID, not the public client_id
	Status              McpFlowStatus
	CodeChallenge       string
	CodeChallengeMethod string
	State               string
	RedirectURI         string
	Scopes              []string
	Resource            string
	CodeHash            string // fingerprint of the issued code, "" until issued
	CodeExpiresAt       *time.Time
	CodeUsedAt          *time.Time
	RowVersion          int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// CodeIssued reports whether an authorization code has been minted.
func (f *McpFlow) CodeIssued() bool { return f.CodeHash != "" }

// CodeUsable reports whether the issued code is still redeemable at the
// given time. Checks existence, single-use and expiry, in that order.
func (f *McpFlow) CodeUsable(now time.Time) bool {
	if !f.CodeIssued() || f.CodeUsedAt != nil {
		return false
	}
	return f.CodeExpiresAt != nil && now.Before(*f.CodeExpiresAt)
}

// ConnectionFlow is one downstream provider authorization belonging to a
// journey. One row per (journey, connection) pair.
type ConnectionFlow struct {
	ID             string
	JourneyID      string
	ConnectionID   string
	Status         ConnectionFlowStatus
	State          string // per-connection CSRF token, the sole callback correlation key
	AccessToken    string
	RefreshToken   string
	TokenExpiresAt *time.Time
	RowVersion     int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// TokenStale reports whether the stored downstream access token is
// missing, already expired, or expiring within the buffer window.
func (c *ConnectionFlow) TokenStale(now time.Time, buffer time.Duration) bool {
	if c.AccessToken == "" {
		return true
	}
	if c.TokenExpiresAt == nil {
		return false // no expiry tracked, assume usable
	}
	return now.Add(buffer).After(*c.TokenExpiresAt)
}
