package jwtx_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tabservice/journeyd/pkg/jwtx"
)

func TestThumbprintDeterministic(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	a := jwtx.Thumbprint(&key.PublicKey)
	b := jwtx.Thumbprint(&key.PublicKey)
	require.Equal(t, a, b)
	require.NotEmpty(t, a)

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	require.NotEqual(t, a, jwtx.Thumbprint(&other.PublicKey))
}

func TestJWKRoundTrip(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := jwtx.NewRSAJWK("kid-1", "sig", "RS256", &key.PublicKey)
	require.Equal(t, "RSA", jwk.Kty)
	require.Equal(t, "sig", jwk.Use)

	pub, err := jwk.PublicKey()
	require.NoError(t, err)
	require.Zero(t, pub.N.Cmp(key.PublicKey.N))
	require.Equal(t, key.PublicKey.E, pub.E)
}

func TestJWKToPEM(t *testing.T) {
	t.Parallel()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	jwk := jwtx.NewRSAJWK("kid-1", "sig", "RS256", &key.PublicKey)
	pemStr, err := jwk.PEM()
	require.NoError(t, err)
	require.Contains(t, pemStr, "BEGIN PUBLIC KEY")
}
