package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/httpx"
	"github.com/tabservice/journeyd/pkg/jwtx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// Router holds shared dependencies for HTTP handlers.
type Router struct {
	Mux         *http.ServeMux
	middlewares []httpx.Middleware

	keys         *jwtx.KeySet
	issuer       string
	consentURL   string
	buildVersion string
	startTime    time.Time
	logger       *slog.Logger

	store           store.Store
	ClientService   *service.ClientService
	JourneyService  *service.JourneyService
	TokenService    *service.TokenService
	ExchangeService *service.ExchangeService
	KeyService      *service.KeyService
	WebAuthService  *service.WebAuthService
	RegistryService *service.RegistryService
}

func NewRouter(
	keys *jwtx.KeySet,
	issuer, consentURL, buildVersion string,
	st store.Store,
	logger *slog.Logger,
) *Router {
	r := &Router{
		Mux:          http.NewServeMux(),
		keys:         keys,
		issuer:       issuer,
		consentURL:   consentURL,
		buildVersion: buildVersion,
		startTime:    time.Now(),
		store:        st,
		logger:       logger,
	}

	r.middlewares = []httpx.Middleware{
		slogx.HTTPMiddleware(r.logger),
	}

	return r
}

func (r *Router) ApplyRoutes() {
	r.registerClients()
	r.registerJourney()
	r.registerTokens()
	r.registerWellKnown()
	r.registerWebAuth()
	r.registerRegistry()
	r.registerSystem()
}

// ServeHTTP implements http.Handler and applies the global middleware chain.
func (r *Router) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	httpx.Chain(r.Mux, r.middlewares...).ServeHTTP(w, req)
}

func (r *Router) registerClients() {
	h := &ClientsHandler{ClientService: r.ClientService}

	// POST /register - moderate rate limit (open RFC 7591 registration)
	r.Mux.Handle("POST /api/authz/clients/register",
		httpx.Chain(http.HandlerFunc(h.HandleRegister),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /api/authz/clients/{clientID}",
		httpx.Chain(http.HandlerFunc(h.HandleGet),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
	r.Mux.Handle("GET /api/authz/clients",
		httpx.Chain(http.HandlerFunc(h.HandleList),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerJourney() {
	authorize := &AuthorizeHandler{
		JourneyService: r.JourneyService,
		ConsentURL:     r.consentURL,
	}

	// GET /authorize - lenient (starts the journey, renders nothing)
	r.Mux.Handle("GET /api/auth/authorize/mcp/{serverIdentifier}/{version}",
		httpx.Chain(http.HandlerFunc(authorize.HandleGet),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)

	// POST /authorize - moderate (consent decisions)
	r.Mux.Handle("POST /api/auth/authorize/mcp/{serverIdentifier}/{version}",
		httpx.Chain(http.HandlerFunc(authorize.HandlePost),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	flow := &FlowHandler{JourneyService: r.JourneyService}
	r.Mux.Handle("GET /api/auth/flow/{flowID}",
		httpx.Chain(flow,
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)

	// Downstream providers redirect the browser here with GET; POST is
	// kept for providers that deliver the callback as a form post.
	callback := &CallbackHandler{JourneyService: r.JourneyService}
	r.Mux.Handle("GET /api/auth/callback",
		httpx.Chain(callback, httpx.RateLimitByIP(httpx.ModerateLimit)),
	)
	r.Mux.Handle("POST /api/auth/callback",
		httpx.Chain(callback, httpx.RateLimitByIP(httpx.ModerateLimit)),
	)
}

func (r *Router) registerTokens() {
	// POST /token - strict rate limit by IP (covers all grant types)
	token := &TokenHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /api/token",
		httpx.Chain(token,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Introspection (RFC 7662) - strict limit, no authn: inactive tokens
	// produce {"active":false} with no detail either way.
	introspect := &IntrospectHandler{TokenService: r.TokenService}
	r.Mux.Handle("POST /api/introspect",
		httpx.Chain(introspect,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)

	// Token exchange (RFC 8693) - strict limit by IP
	exchange := &ExchangeHandler{ExchangeService: r.ExchangeService}
	r.Mux.Handle("POST /api/token-exchange/{serverIdentifier}",
		httpx.Chain(exchange,
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
}

func (r *Router) registerWellKnown() {
	r.Mux.Handle("GET /.well-known/jwks.json",
		httpx.Chain(JWKSHandler(r.KeyService),
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)

	metadata := &MetadataHandler{Issuer: r.issuer, Store: r.store}
	r.Mux.Handle("GET /.well-known/oauth-authorization-server/mcp/{serverIdentifier}/{version}",
		httpx.Chain(metadata,
			httpx.RateLimitByIP(httpx.PublicLimit),
		),
	)
}

func (r *Router) registerWebAuth() {
	h := &WebAuthHandler{WebAuthService: r.WebAuthService}

	// POST /web/login - strict by IP + username to slow brute force
	r.Mux.Handle("POST /api/web/login",
		httpx.Chain(http.HandlerFunc(h.HandleLogin),
			httpx.RateLimitByIPAndFormField(httpx.StrictLimit, "username"),
		),
	)
	r.Mux.Handle("POST /api/web/refresh",
		httpx.Chain(http.HandlerFunc(h.HandleRefresh),
			httpx.RateLimitByIP(httpx.StrictLimit),
		),
	)
	r.Mux.Handle("GET /api/web/session",
		httpx.Chain(http.HandlerFunc(h.HandleSession),
			r.requireWebSession(),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		),
	)
}

func (r *Router) registerRegistry() {
	h := &RegistryHandler{RegistryService: r.RegistryService, JourneyService: r.JourneyService}
	secured := func(next http.Handler) http.Handler {
		return httpx.Chain(next,
			r.requireWebSession(),
			httpx.RateLimitByIP(httpx.ModerateLimit),
		)
	}

	r.Mux.Handle("POST /api/registry/servers", secured(http.HandlerFunc(h.HandleCreateServer)))
	r.Mux.Handle("GET /api/registry/servers", secured(http.HandlerFunc(h.HandleListServers)))
	r.Mux.Handle("GET /api/registry/servers/{serverID}", secured(http.HandlerFunc(h.HandleGetServer)))
	r.Mux.Handle("POST /api/registry/connections", secured(http.HandlerFunc(h.HandleCreateConnection)))
	r.Mux.Handle("GET /api/registry/servers/{serverID}/connections", secured(http.HandlerFunc(h.HandleListConnections)))
	r.Mux.Handle("POST /api/registry/journeys", secured(http.HandlerFunc(h.HandleProvisionJourney)))
}

func (r *Router) registerSystem() {
	// Health endpoints - lenient limits, monitoring systems poll these
	r.Mux.Handle("GET /livez",
		httpx.Chain(LivezHandler(r.startTime, r.buildVersion),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
	r.Mux.Handle("GET /readyz",
		httpx.Chain(ReadyzHandler(r.startTime, r.buildVersion, r.store, r.keys),
			httpx.RateLimitByIP(httpx.LenientLimit),
		),
	)
}

// requireWebSession gates admin endpoints behind a valid web access
// token. MCP access tokens are rejected by the validator.
func (r *Router) requireWebSession() httpx.Middleware {
	return httpx.AuthnMiddleware(func(ctx context.Context, token string) (jwtx.Claims, error) {
		return r.WebAuthService.ValidateWebToken(ctx, token)
	})
}
