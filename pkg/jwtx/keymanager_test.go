package jwtx_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tabservice/journeyd/pkg/jwtx"
)

func TestKeyManagerInstallAndRotate(t *testing.T) {
	t.Parallel()

	km := jwtx.NewKeyManager()
	require.False(t, km.IsReady())

	first := newTestSigner(t, "kid-first")
	require.NoError(t, km.Install(first))
	require.True(t, km.IsReady())
	require.Equal(t, "kid-first", km.ActiveKID())

	// Sign a token with the first key, then rotate.
	token, err := km.ActiveSigner().Sign(accessClaims("https://auth.example", "srv-1", time.Minute))
	require.NoError(t, err)

	second := newTestSigner(t, "kid-second")
	require.NoError(t, km.Install(second))
	require.Equal(t, "kid-second", km.ActiveKID())

	// The rotated-out key must still verify already-issued tokens.
	verifier := jwtx.NewCommonRS256(km.KeySet, "https://auth.example", nil)
	_, err = verifier.Verify(token)
	require.NoError(t, err)

	// And both public keys are published.
	jwks := km.KeySet.PublicJWKS()
	kids := make([]string, 0, len(jwks.Keys))
	for _, k := range jwks.Keys {
		kids = append(kids, k.Kid)
	}
	require.ElementsMatch(t, []string{"kid-first", "kid-second"}, kids)
}

func TestKeyManagerResetDropsRetiredKeys(t *testing.T) {
	t.Parallel()

	km := jwtx.NewKeyManager()
	require.NoError(t, km.Install(newTestSigner(t, "kid-old")))
	keep := newTestSigner(t, "kid-keep")
	require.NoError(t, km.Install(keep))

	require.NoError(t, km.KeySet.ResetFromJWKS(jwtx.JWKS{Keys: []jwtx.JWK{keep.PublicJWK()}}))

	_, err := km.KeySet.Get("kid-old")
	require.ErrorIs(t, err, jwtx.ErrNoKey)

	_, err = km.KeySet.Get("kid-keep")
	require.NoError(t, err)
}

func TestGenerateSigningKey(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	rec, signer, err := jwtx.GenerateSigningKey(2048, 24*time.Hour, now)
	require.NoError(t, err)

	require.Equal(t, jwtx.AlgorithmRS256, rec.Algorithm)
	require.True(t, rec.Active)
	require.Equal(t, now.Add(24*time.Hour), rec.ExpiresAt)
	require.NotEmpty(t, rec.PrivateKeyEncrypted)
	require.Contains(t, rec.PublicKeyPEM, "BEGIN PUBLIC KEY")

	// kid is the RFC 7638 thumbprint of the public key.
	require.Equal(t, rec.Kid, signer.KID())
	require.NotEmpty(t, rec.Kid)
}
