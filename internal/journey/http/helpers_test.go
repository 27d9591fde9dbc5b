package http

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/service"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/internal/journey/store/drivers/sqlite"
	"github.com/tabservice/journeyd/pkg/authsdk"
	"github.com/tabservice/journeyd/pkg/jwtx"
)

const (
	testIssuer     = "https://auth.example"
	testConsentURL = "https://auth.example/consent"
)

// testEnv wires a full router against an in-memory store with scripted
// downstream providers.
type testEnv struct {
	router *Router
	store  store.Store
	ds     *fakeDownstream

	journeys *service.JourneyService
	registry *service.RegistryService
	webAuth  *service.WebAuthService
}

type fakeDownstream struct {
	exchangeTok service.DownstreamToken
	exchangeErr error
	refreshTok  service.DownstreamToken
	refreshErr  error
}

func (f *fakeDownstream) AuthorizeURL(conn domain.Connection, state, redirectURI string, scopes []string) string {
	return conn.AuthorizeURL + "?state=" + url.QueryEscape(state) + "&scope=" + url.QueryEscape(strings.Join(scopes, " "))
}

func (f *fakeDownstream) ExchangeCode(ctx context.Context, conn domain.Connection, code, redirectURI string) (service.DownstreamToken, error) {
	if f.exchangeErr != nil {
		return service.DownstreamToken{}, f.exchangeErr
	}
	return f.exchangeTok, nil
}

func (f *fakeDownstream) RefreshToken(ctx context.Context, conn domain.Connection, refreshToken string) (service.DownstreamToken, error) {
	if f.refreshErr != nil {
		return service.DownstreamToken{}, f.refreshErr
	}
	return f.refreshTok, nil
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	_, signer, err := jwtx.GenerateSigningKey(2048, time.Hour, time.Now())
	require.NoError(t, err)
	km := jwtx.NewKeyManager()
	require.NoError(t, km.Install(signer))

	future := time.Now().Add(time.Hour)
	ds := &fakeDownstream{
		exchangeTok: service.DownstreamToken{
			AccessToken:  "prov-access",
			RefreshToken: "prov-refresh",
			ExpiresAt:    &future,
		},
	}

	journeys := &service.JourneyService{
		Store:       st,
		Downstream:  ds,
		CallbackURL: testIssuer + "/api/auth/callback",
	}
	keys := &service.KeyService{Store: st, KeyManager: km}
	_, err = keys.GetOrCreateActiveKey(ctx)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(km.KeySet, testIssuer, testConsentURL, "test", st, logger)
	router.ClientService = &service.ClientService{Store: st}
	router.JourneyService = journeys
	router.TokenService = &service.TokenService{KeyManager: km, Store: st, Issuer: testIssuer}
	router.ExchangeService = &service.ExchangeService{Store: st, KeyManager: km, Downstream: ds, Issuer: testIssuer}
	router.KeyService = keys
	router.WebAuthService = &service.WebAuthService{KeyManager: km, Store: st, Issuer: testIssuer}
	router.RegistryService = &service.RegistryService{Store: st}
	router.ApplyRoutes()

	return &testEnv{
		router:   router,
		store:    st,
		ds:       ds,
		journeys: journeys,
		registry: router.RegistryService,
		webAuth:  router.WebAuthService,
	}
}

func (e *testEnv) do(t *testing.T, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) postForm(t *testing.T, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(t, req)
}

func (e *testEnv) postJSON(t *testing.T, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	return e.do(t, req)
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// registerTestClient registers a public PKCE client over the HTTP API.
func (e *testEnv) registerTestClient(t *testing.T, name string) authsdk.RegistrationResponse {
	t.Helper()
	rec := e.postJSON(t, "/api/authz/clients/register", authsdk.RegistrationRequest{
		ClientName:   name,
		RedirectURIs: []string{"http://localhost:3000/cb"},
		GrantTypes:   []string{"authorization_code", "refresh_token"},
		Scope:        "calendar.read mail.send",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decodeBody[authsdk.RegistrationResponse](t, rec)
}

// seedTestServer creates a registry server directly through the service.
func (e *testEnv) seedTestServer(t *testing.T, providedID string, scopes ...string) domain.Server {
	t.Helper()
	in := service.CreateServerInput{ProvidedID: providedID, Name: providedID}
	for _, sc := range scopes {
		in.Scopes = append(in.Scopes, domain.ServerScope{ScopeID: sc})
	}
	server, err := e.registry.CreateServer(context.Background(), in)
	require.NoError(t, err)
	return server
}

// toConnInput builds a provider connection with a single calendar scope
// mapping.
func toConnInput(serverProvidedID string) service.CreateConnectionInput {
	return service.CreateConnectionInput{
		ServerProvidedID: serverProvidedID,
		ProvidedID:       "google",
		FriendlyName:     "Google",
		ClientID:         "g-client",
		ClientSecret:     "g-secret",
		AuthorizeURL:     "https://provider.example/authorize",
		TokenURL:         "https://provider.example/token",
		Mappings: map[string]string{
			"calendar.read": "https://provider.example/auth/calendar.readonly",
		},
	}
}

// provisionJourney links the registered client to the server, optionally
// with downstream connections.
func (e *testEnv) provisionJourney(t *testing.T, clientID string, server domain.Server, connectionIDs ...string) {
	t.Helper()
	ctx := context.Background()
	client, err := e.store.Clients().GetClientByClientID(ctx, clientID)
	require.NoError(t, err)
	_, err = e.journeys.ProvisionJourney(ctx, client.ID, server.ID, connectionIDs)
	require.NoError(t, err)
}
