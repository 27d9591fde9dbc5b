package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/cryptox"
	"github.com/tabservice/journeyd/pkg/idx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// DefaultCodeTTL is how long a freshly minted authorization code lives.
const DefaultCodeTTL = 10 * time.Minute

// JourneyService owns the multi-step authorization state machine: the
// primary MCP flow plus the downstream connection flows it depends on.
type JourneyService struct {
	Store      store.Store
	Downstream DownstreamClient

	// CallbackURL is the fixed, provider-agnostic redirect URI registered
	// with every downstream provider.
	CallbackURL string

	// CodeTTL overrides DefaultCodeTTL when positive.
	CodeTTL time.Duration
}

func (s *JourneyService) codeTTL() time.Duration {
	if s.CodeTTL > 0 {
		return s.CodeTTL
	}
	return DefaultCodeTTL
}

// ProvisionJourney creates the journey, its MCP flow, and one pending
// connection flow per downstream connection the server requires. Flows
// are provisioned here, out-of-band of the authorization request.
func (s *JourneyService) ProvisionJourney(ctx context.Context, clientID, serverID string, connectionIDs []string) (domain.Journey, error) {
	journey := domain.Journey{
		ID:     idx.New().String(),
		Status: domain.JourneyNotStarted,
	}
	flow := domain.McpFlow{
		ID:        idx.New().String(),
		JourneyID: journey.ID,
		ServerID:  serverID,
		ClientID:  clientID,
		Status:    domain.FlowClientRegistered,
	}

	err := s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.Journeys().CreateJourney(ctx, journey); err != nil {
			return err
		}
		if err := tx.McpFlows().CreateMcpFlow(ctx, flow); err != nil {
			return err
		}
		for _, connID := range connectionIDs {
			cf := domain.ConnectionFlow{
				ID:           idx.New().String(),
				JourneyID:    journey.ID,
				ConnectionID: connID,
				Status:       domain.ConnectionPending,
			}
			if err := tx.ConnectionFlows().CreateConnectionFlow(ctx, cf); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return domain.Journey{}, err
	}
	return journey, nil
}

// AuthorizeRequest carries the query parameters of the authorization
// request after HTTP parsing.
type AuthorizeRequest struct {
	ClientID            string // public client_id
	RedirectURI         string
	Scopes              []string
	State               string
	CodeChallenge       string
	CodeChallengeMethod string
	Resource            string
}

// ProcessAuthorizationRequest validates the request against the client
// and server, filters scopes against the server's registry (unknown
// scopes are dropped silently), records the PKCE parameters, and
// transitions the pre-provisioned flow. Returns the flow id, used as the
// opaque handle for the consent screen.
func (s *JourneyService) ProcessAuthorizationRequest(ctx context.Context, serverIdentifier string, req AuthorizeRequest) (string, error) {
	l := slogx.FromContext(ctx)

	server, err := s.Store.Servers().GetServerByProvidedID(ctx, serverIdentifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrServerNotFound
		}
		return "", err
	}

	client, err := s.Store.Clients().GetClientByClientID(ctx, req.ClientID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrClientNotFound
		}
		return "", err
	}

	if !client.AllowsRedirectURI(req.RedirectURI) {
		return "", ErrInvalidRedirectURI
	}
	if req.CodeChallenge == "" {
		return "", ErrInvalidGrant
	}

	// Permissive by design: unknown scopes are removed, never rejected.
	granted := intersectScopes(req.Scopes, server.ScopeIDs())

	flow, err := s.Store.McpFlows().GetMcpFlowByClientAndServer(ctx, client.ID, server.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrFlowNotFound
		}
		return "", err
	}

	flow.Status = domain.FlowAuthRequestStarted
	flow.CodeChallenge = req.CodeChallenge
	flow.CodeChallengeMethod = req.CodeChallengeMethod
	flow.State = req.State
	flow.RedirectURI = req.RedirectURI
	flow.Scopes = granted
	flow.Resource = req.Resource

	if err := s.Store.McpFlows().UpdateMcpFlowAuthRequest(ctx, flow); err != nil {
		return "", err
	}

	journey, err := s.Store.Journeys().GetJourneyByID(ctx, flow.JourneyID)
	if err != nil {
		return "", err
	}
	if err := s.Store.Journeys().UpdateJourneyStatus(ctx, journey.ID, domain.JourneyMcpFlowStarted, journey.RowVersion); err != nil {
		return "", err
	}

	l.Info("authorization request started",
		slog.String("flow_id", flow.ID),
		slog.String("server", server.ProvidedID),
		slog.Any("scopes", granted),
	)
	return flow.ID, nil
}

// FlowDetail is what the consent screen needs to render.
type FlowDetail struct {
	FlowID             string
	ClientName         string
	ServerName         string
	ServerIdentifier   string
	Scopes             []string
	Status             domain.McpFlowStatus
	PendingConnections int
}

// GetFlow returns the consent-screen view of a flow.
func (s *JourneyService) GetFlow(ctx context.Context, flowID string) (FlowDetail, error) {
	flow, err := s.Store.McpFlows().GetMcpFlowByID(ctx, flowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return FlowDetail{}, ErrFlowNotFound
		}
		return FlowDetail{}, err
	}

	detail := FlowDetail{
		FlowID: flow.ID,
		Scopes: flow.Scopes,
		Status: flow.Status,
	}
	if client, err := s.Store.Clients().GetClientByID(ctx, flow.ClientID); err == nil {
		detail.ClientName = client.Name
	}
	if server, err := s.Store.Servers().GetServerByID(ctx, flow.ServerID); err == nil {
		detail.ServerName = server.Name
		detail.ServerIdentifier = server.ProvidedID
	}
	if flows, err := s.Store.ConnectionFlows().ListConnectionFlowsByJourney(ctx, flow.JourneyID); err == nil {
		for _, cf := range flows {
			if cf.Status == domain.ConnectionPending {
				detail.PendingConnections++
			}
		}
	}
	return detail, nil
}

// ProcessConsentDecision records the user's decision. Rejection ends the
// journey; approval hands over to downstream sequencing. Returns the URL
// the user agent must be redirected to next.
func (s *JourneyService) ProcessConsentDecision(ctx context.Context, flowID string, approved bool) (string, error) {
	l := slogx.FromContext(ctx)

	flow, err := s.Store.McpFlows().GetMcpFlowByID(ctx, flowID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrFlowNotFound
		}
		return "", err
	}
	if flow.CodeIssued() {
		return "", ErrFlowCompleted
	}

	if !approved {
		if err := s.Store.McpFlows().UpdateMcpFlowStatus(ctx, flow.ID, domain.FlowUserConsentRejected, flow.RowVersion); err != nil {
			return "", err
		}
		l.Info("user rejected consent", slog.String("flow_id", flow.ID))
		return buildRedirect(flow.RedirectURI, url.Values{
			"error": {"access_denied"},
			"state": {flow.State},
		}), nil
	}

	if err := s.Store.McpFlows().UpdateMcpFlowStatus(ctx, flow.ID, domain.FlowUserConsentOK, flow.RowVersion); err != nil {
		return "", err
	}

	journey, err := s.Store.Journeys().GetJourneyByID(ctx, flow.JourneyID)
	if err != nil {
		return "", err
	}
	if err := s.Store.Journeys().UpdateJourneyStatus(ctx, journey.ID, domain.JourneyMcpFlowCompleted, journey.RowVersion); err != nil {
		return "", err
	}

	return s.advance(ctx, flow.JourneyID)
}

// advance inspects the journey's connection flows and decides the next
// hop: redirect to the next pending provider, mint the MCP code when all
// are authorized, or abort when one failed.
func (s *JourneyService) advance(ctx context.Context, journeyID string) (string, error) {
	l := slogx.FromContext(ctx)

	flows, err := s.Store.ConnectionFlows().ListConnectionFlowsByJourney(ctx, journeyID)
	if err != nil {
		return "", err
	}

	if len(flows) == 0 {
		return s.completeFlow(ctx, journeyID)
	}

	var pending *domain.ConnectionFlow
	allAuthorized := true
	anyFailed := false
	for i := range flows {
		switch flows[i].Status {
		case domain.ConnectionPending:
			if pending == nil {
				pending = &flows[i]
			}
			allAuthorized = false
		case domain.ConnectionFailed:
			anyFailed = true
			allAuthorized = false
		case domain.ConnectionAuthorized:
		default:
			allAuthorized = false
		}
	}

	if pending != nil {
		return s.redirectToProvider(ctx, journeyID, pending)
	}
	if allAuthorized {
		return s.completeFlow(ctx, journeyID)
	}
	if anyFailed {
		l.Warn("journey aborted, downstream authorization failed", slog.String("journey_id", journeyID))
		return "", ErrDownstreamFailed
	}
	return "", fmt.Errorf("%w: journey %s has no pending flows and is not resolved", ErrJourneyInconsistent, journeyID)
}

// redirectToProvider stamps a fresh CSRF state on the pending flow and
// builds the provider's authorize URL with the mapped downstream scopes.
func (s *JourneyService) redirectToProvider(ctx context.Context, journeyID string, cf *domain.ConnectionFlow) (string, error) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		return "", err
	}
	if err := s.Store.ConnectionFlows().UpdateConnectionFlowState(ctx, cf.ID, state, cf.RowVersion); err != nil {
		return "", err
	}

	mcpFlow, err := s.Store.McpFlows().GetMcpFlowByJourney(ctx, journeyID)
	if err != nil {
		return "", err
	}
	if mcpFlow.Status != domain.FlowWaitingOnDownstream {
		if err := s.Store.McpFlows().UpdateMcpFlowStatus(ctx, mcpFlow.ID, domain.FlowWaitingOnDownstream, mcpFlow.RowVersion); err != nil {
			return "", err
		}
	}

	journey, err := s.Store.Journeys().GetJourneyByID(ctx, journeyID)
	if err != nil {
		return "", err
	}
	if journey.Status != domain.JourneyConnectionsStarted {
		if err := s.Store.Journeys().UpdateJourneyStatus(ctx, journey.ID, domain.JourneyConnectionsStarted, journey.RowVersion); err != nil {
			return "", err
		}
	}

	conn, err := s.Store.Connections().GetConnectionByID(ctx, cf.ConnectionID)
	if err != nil {
		return "", err
	}

	scopes, err := s.resolveDownstreamScopes(ctx, conn.ID, mcpFlow.Scopes)
	if err != nil {
		return "", err
	}

	return s.Downstream.AuthorizeURL(conn, state, s.CallbackURL, scopes), nil
}

// resolveDownstreamScopes maps the granted MCP scopes through the
// connection's mapping table. Repeated mappings collapse to one entry.
func (s *JourneyService) resolveDownstreamScopes(ctx context.Context, connectionID string, granted []string) ([]string, error) {
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

// HandleDownstreamCallback processes a provider redirect: correlates the
// connection flow by state, exchanges the code for provider tokens, and
// re-enters sequencing for the next pending connection or completion.
func (s *JourneyService) HandleDownstreamCallback(ctx context.Context, code, state, providerErr, providerErrDesc string) (string, error) {
	l := slogx.FromContext(ctx)

	cf, err := s.Store.ConnectionFlows().GetConnectionFlowByState(ctx, state)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", ErrFlowNotFound
		}
		return "", err
	}

	if providerErr != "" {
		if err := s.Store.ConnectionFlows().UpdateConnectionFlowStatus(ctx, cf.ID, domain.ConnectionFailed, cf.RowVersion); err != nil {
			return "", err
		}
		l.Warn("downstream provider returned error",
			slog.String("connection_flow_id", cf.ID),
			slog.String("error", providerErr),
			slog.String("description", providerErrDesc),
		)
		return "", fmt.Errorf("%w: %s", ErrDownstreamFailed, providerErr)
	}

	conn, err := s.Store.Connections().GetConnectionByID(ctx, cf.ConnectionID)
	if err != nil {
		return "", err
	}

	tok, err := s.Downstream.ExchangeCode(ctx, conn, code, s.CallbackURL)
	if err != nil {
		if uerr := s.Store.ConnectionFlows().UpdateConnectionFlowStatus(ctx, cf.ID, domain.ConnectionFailed, cf.RowVersion); uerr != nil {
			l.Error("failed to mark connection flow failed", slog.Any("error", uerr))
		}
		l.Warn("downstream code exchange failed",
			slog.String("connection_flow_id", cf.ID),
			slog.Any("error", err),
		)
		return "", fmt.Errorf("%w: %v", ErrDownstreamFailed, err)
	}

	cf.Status = domain.ConnectionAuthorized
	cf.AccessToken = tok.AccessToken
	cf.RefreshToken = tok.RefreshToken
	cf.TokenExpiresAt = tok.ExpiresAt
	if err := s.Store.ConnectionFlows().UpdateConnectionFlowTokens(ctx, cf); err != nil {
		return "", err
	}

	l.Info("downstream connection authorized", slog.String("connection_flow_id", cf.ID))
	return s.advance(ctx, cf.JourneyID)
}

// completeFlow mints the single-use authorization code and returns the
// client redirect carrying code and state.
func (s *JourneyService) completeFlow(ctx context.Context, journeyID string) (string, error) {
	l := slogx.FromContext(ctx)

	flow, err := s.Store.McpFlows().GetMcpFlowByJourney(ctx, journeyID)
	if err != nil {
		return "", err
	}
	if flow.RedirectURI == "" || flow.State == "" {
		return "", fmt.Errorf("%w: flow %s missing redirect parameters", ErrJourneyInconsistent, flow.ID)
	}

	code, err := cryptox.GenerateToken(cryptox.TokenSize256)
	if err != nil {
		return "", err
	}
	codeHash := cryptox.FingerprintToken(code)
	expiresAt := time.Now().Add(s.codeTTL())

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.McpFlows().IssueMcpFlowCode(ctx, flow.ID, codeHash, expiresAt, flow.RowVersion); err != nil {
			return err
		}
		journey, err := tx.Journeys().GetJourneyByID(ctx, journeyID)
		if err != nil {
			return err
		}
		return tx.Journeys().UpdateJourneyStatus(ctx, journey.ID, domain.JourneyAuthorizationCodeIssued, journey.RowVersion)
	})
	if err != nil {
		return "", err
	}

	l.Info("authorization code issued", slog.String("flow_id", flow.ID))
	return buildRedirect(flow.RedirectURI, url.Values{
		"code":  {code},
		"state": {flow.State},
	}), nil
}

func buildRedirect(base string, params url.Values) string {
	sep := "?"
	if base == "" {
		return "?" + params.Encode()
	}
	if u, err := url.Parse(base); err == nil && u.RawQuery != "" {
		sep = "&"
	}
	return base + sep + params.Encode()
}
