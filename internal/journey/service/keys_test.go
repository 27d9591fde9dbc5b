package service

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/pkg/idx"
	"github.com/tabservice/journeyd/pkg/jwtx"
)

func newKeyService(t *testing.T) *KeyService {
	t.Helper()
	return &KeyService{
		Store:      newTestStore(t),
		KeyManager: jwtx.NewKeyManager(),
	}
}

func jwksKids(doc jwtx.JWKS) []string {
	kids := make([]string, 0, len(doc.Keys))
	for _, k := range doc.Keys {
		kids = append(kids, k.Kid)
	}
	return kids
}

func TestGetOrCreateActiveKey(t *testing.T) {
	svc := newKeyService(t)
	ctx := context.Background()

	require.False(t, svc.KeyManager.IsReady())

	key, err := svc.GetOrCreateActiveKey(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, key.Kid)
	require.True(t, key.Active)
	require.True(t, svc.KeyManager.IsReady())
	require.Equal(t, key.Kid, svc.KeyManager.ActiveKID())

	// A second call reuses the stored key instead of generating.
	again, err := svc.GetOrCreateActiveKey(ctx)
	require.NoError(t, err)
	require.Equal(t, key.Kid, again.Kid)
}

func TestRotateKey(t *testing.T) {
	svc := newKeyService(t)
	ctx := context.Background()

	first, err := svc.RotateKey(ctx)
	require.NoError(t, err)

	// Sign with the first key before rotating it out.
	oldToken, err := svc.KeyManager.ActiveSigner().Sign(jwtx.Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "https://auth.example",
			Subject:   "rotation-check",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
		},
	})
	require.NoError(t, err)

	second, err := svc.RotateKey(ctx)
	require.NoError(t, err)
	require.NotEqual(t, first.Kid, second.Kid)

	t.Run("only the newest key is active", func(t *testing.T) {
		active, err := svc.Store.SigningKeys().GetActiveSigningKey(ctx)
		require.NoError(t, err)
		require.Equal(t, second.Kid, active.Kid)
		require.Equal(t, second.Kid, svc.KeyManager.ActiveKID())
	})

	t.Run("rotated-out key stays published until expiry", func(t *testing.T) {
		doc, err := svc.PublicKeys(ctx)
		require.NoError(t, err)
		require.ElementsMatch(t, []string{first.Kid, second.Kid}, jwksKids(doc))
	})

	t.Run("tokens signed before rotation still verify", func(t *testing.T) {
		verifier := jwtx.NewCommonRS256(svc.KeyManager.KeySet, "https://auth.example", nil)
		claims, err := verifier.Verify(oldToken)
		require.NoError(t, err)
		require.Equal(t, "rotation-check", claims.Subject)
	})
}

func TestPublicKeysOmitExpired(t *testing.T) {
	svc := newKeyService(t)
	ctx := context.Background()

	live, err := svc.RotateKey(ctx)
	require.NoError(t, err)

	// Insert a key that expired an hour ago.
	past := time.Now().Add(-25 * time.Hour)
	rec, _, err := jwtx.GenerateSigningKey(2048, 24*time.Hour, past)
	require.NoError(t, err)
	expired := domain.SigningKey{
		ID:                  idx.New().String(),
		Kid:                 rec.Kid,
		Algorithm:           rec.Algorithm,
		PublicKeyPEM:        rec.PublicKeyPEM,
		PrivateKeyEncrypted: rec.PrivateKeyEncrypted,
		CreatedAt:           rec.CreatedAt,
		ExpiresAt:           rec.ExpiresAt,
	}
	require.NoError(t, svc.Store.SigningKeys().CreateSigningKey(ctx, expired))

	doc, err := svc.PublicKeys(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{live.Kid}, jwksKids(doc))
}

func TestCleanupExpiredKeys(t *testing.T) {
	svc := newKeyService(t)
	svc.GracePeriod = 24 * time.Hour
	ctx := context.Background()

	insertAt := func(created time.Time) string {
		rec, _, err := jwtx.GenerateSigningKey(2048, time.Hour, created)
		require.NoError(t, err)
		key := domain.SigningKey{
			ID:                  idx.New().String(),
			Kid:                 rec.Kid,
			Algorithm:           rec.Algorithm,
			PublicKeyPEM:        rec.PublicKeyPEM,
			PrivateKeyEncrypted: rec.PrivateKeyEncrypted,
			CreatedAt:           rec.CreatedAt,
			ExpiresAt:           rec.ExpiresAt,
		}
		require.NoError(t, svc.Store.SigningKeys().CreateSigningKey(ctx, key))
		return key.Kid
	}

	now := time.Now()
	ancientKid := insertAt(now.Add(-72 * time.Hour)) // expired well past grace
	recentKid := insertAt(now.Add(-2 * time.Hour))   // expired but within grace
	liveKey, err := svc.RotateKey(ctx)
	require.NoError(t, err)

	require.NoError(t, svc.CleanupExpiredKeys(ctx))

	remaining, err := svc.Store.SigningKeys().ListSigningKeys(ctx)
	require.NoError(t, err)
	kids := make([]string, 0, len(remaining))
	for _, k := range remaining {
		kids = append(kids, k.Kid)
	}
	require.ElementsMatch(t, []string{recentKid, liveKey.Kid}, kids)
	require.NotContains(t, kids, ancientKid)
}
