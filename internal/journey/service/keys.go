package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/internal/journey/store"
	"github.com/tabservice/journeyd/pkg/idx"
	"github.com/tabservice/journeyd/pkg/jwtx"
	"github.com/tabservice/journeyd/pkg/slogx"
)

// KeyService manages the signing key lifecycle: at most one key is
// active at a time, rotation is atomic, and rotated-out keys stay
// published until they expire so issued tokens remain verifiable.
type KeyService struct {
	Store      store.Store
	KeyManager *jwtx.KeyManager

	RSABits     int           // defaults to 2048
	KeyTTL      time.Duration // defaults to 24h
	GracePeriod time.Duration // defaults to 7 days past expiry
}

func (s *KeyService) rsaBits() int {
	if s.RSABits > 0 {
		return s.RSABits
	}
	return 2048
}

func (s *KeyService) keyTTL() time.Duration {
	if s.KeyTTL > 0 {
		return s.KeyTTL
	}
	return 24 * time.Hour
}

func (s *KeyService) gracePeriod() time.Duration {
	if s.GracePeriod > 0 {
		return s.GracePeriod
	}
	return 7 * 24 * time.Hour
}

// GetOrCreateActiveKey returns the newest active non-expired key,
// rotating if none exists.
func (s *KeyService) GetOrCreateActiveKey(ctx context.Context) (domain.SigningKey, error) {
	key, err := s.Store.SigningKeys().GetActiveSigningKey(ctx)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return domain.SigningKey{}, err
	}
	return s.RotateKey(ctx)
}

// RotateKey atomically deactivates every active key and inserts a fresh
// RSA key pair. The previous keys stay in the JWKS until expiry.
func (s *KeyService) RotateKey(ctx context.Context) (domain.SigningKey, error) {
	l := slogx.FromContext(ctx)
	now := time.Now().UTC()

	rec, signer, err := jwtx.GenerateSigningKey(s.rsaBits(), s.keyTTL(), now)
	if err != nil {
		return domain.SigningKey{}, err
	}

	key := domain.SigningKey{
		ID:                  idx.New().String(),
		Kid:                 rec.Kid,
		Algorithm:           rec.Algorithm,
		PublicKeyPEM:        rec.PublicKeyPEM,
		PrivateKeyEncrypted: rec.PrivateKeyEncrypted,
		Active:              true,
		CreatedAt:           rec.CreatedAt,
		ExpiresAt:           rec.ExpiresAt,
	}

	err = s.Store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.SigningKeys().DeactivateSigningKeys(ctx); err != nil {
			return err
		}
		return tx.SigningKeys().CreateSigningKey(ctx, key)
	})
	if err != nil {
		return domain.SigningKey{}, err
	}

	if err := s.KeyManager.Install(signer); err != nil {
		return domain.SigningKey{}, err
	}

	l.Info("signing key rotated",
		slog.String("kid", key.Kid),
		slog.Time("expires_at", key.ExpiresAt),
	)
	return key, nil
}

// PublicKeys returns every non-expired key as a JWKS document, active or
// not, so tokens signed by rotated-out keys stay verifiable.
func (s *KeyService) PublicKeys(ctx context.Context) (jwtx.JWKS, error) {
	keys, err := s.Store.SigningKeys().ListSigningKeys(ctx)
	if err != nil {
		return jwtx.JWKS{}, err
	}

	now := time.Now()
	out := jwtx.JWKS{Keys: []jwtx.JWK{}}
	for i := range keys {
		if keys[i].IsExpired(now) {
			continue
		}
		jwk, err := jwtx.NewRSAJWKFromPEM(keys[i].Kid, keys[i].PublicKeyPEM)
		if err != nil {
			return jwtx.JWKS{}, err
		}
		out.Keys = append(out.Keys, jwk)
	}
	return out, nil
}

// CleanupExpiredKeys soft-deletes keys expired for longer than the grace
// period. Recently expired keys survive so in-flight tokens verify.
func (s *KeyService) CleanupExpiredKeys(ctx context.Context) error {
	cutoff := time.Now().Add(-s.gracePeriod())
	return s.Store.SigningKeys().DeleteSigningKeysExpiredBefore(ctx, cutoff)
}
