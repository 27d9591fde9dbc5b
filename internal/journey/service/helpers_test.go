package service

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/internal/journey/store/drivers/sqlite"
	"github.com/tabservice/journeyd/pkg/jwtx"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()

	s, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.ApplyMigrations())
	return s
}

func newTestKeyManager(t *testing.T) *jwtx.KeyManager {
	t.Helper()

	_, signer, err := jwtx.GenerateSigningKey(2048, time.Hour, time.Now())
	require.NoError(t, err)

	km := jwtx.NewKeyManager()
	require.NoError(t, km.Install(signer))
	return km
}

// fakeDownstream is a scripted DownstreamClient for journey and
// exchange tests.
type fakeDownstream struct {
	exchangeTok  DownstreamToken
	exchangeErr  error
	refreshTok   DownstreamToken
	refreshErr   error
	refreshCalls int
}

func (f *fakeDownstream) AuthorizeURL(conn domain.Connection, state, redirectURI string, scopes []string) string {
	return conn.AuthorizeURL + "?state=" + state + "&scope=" + strings.Join(scopes, "+")
}

func (f *fakeDownstream) ExchangeCode(ctx context.Context, conn domain.Connection, code, redirectURI string) (DownstreamToken, error) {
	if f.exchangeErr != nil {
		return DownstreamToken{}, f.exchangeErr
	}
	return f.exchangeTok, nil
}

func (f *fakeDownstream) RefreshToken(ctx context.Context, conn domain.Connection, refreshToken string) (DownstreamToken, error) {
	f.refreshCalls++
	if f.refreshErr != nil {
		return DownstreamToken{}, f.refreshErr
	}
	return f.refreshTok, nil
}

func s256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

func seedServer(t *testing.T, st store.Store, providedID string, scopes ...string) domain.Server {
	t.Helper()

	reg := &RegistryService{Store: st}
	in := CreateServerInput{ProvidedID: providedID, Name: providedID}
	for _, sc := range scopes {
		in.Scopes = append(in.Scopes, domain.ServerScope{ScopeID: sc})
	}
	server, err := reg.CreateServer(context.Background(), in)
	require.NoError(t, err)
	return server
}

func seedClient(t *testing.T, st store.Store, name string, redirectURIs ...string) domain.Client {
	t.Helper()

	svc := &ClientService{Store: st}
	client, _, err := svc.Register(context.Background(), RegisterClientInput{
		Name:         name,
		RedirectURIs: redirectURIs,
		GrantTypes:   []string{domain.GrantTypeAuthorizationCode, domain.GrantTypeRefreshToken},
		Scopes:       []string{"calendar.read", "mail.send"},
	})
	require.NoError(t, err)
	return client
}
