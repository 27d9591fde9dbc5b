package store

import (
	"context"

	"github.com/tabservice/journeyd/internal/journey/domain"
	"github.com/tabservice/journeyd/pkg/idx"
	"github.com/tabservice/journeyd/pkg/jwtx"
)

// KeyStoreAdapter bridges the signing key repository to the jwtx
// persistent key manager, converting between the domain record and the
// jwtx record shapes.
type KeyStoreAdapter struct {
	keys SigningKeys
}

var _ jwtx.KeyStore = (*KeyStoreAdapter)(nil)

func NewKeyStoreAdapter(keys SigningKeys) *KeyStoreAdapter {
	return &KeyStoreAdapter{keys: keys}
}

func (a *KeyStoreAdapter) ListSigningKeys(ctx context.Context) ([]jwtx.SigningKeyRecord, error) {
	keys, err := a.keys.ListSigningKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]jwtx.SigningKeyRecord, 0, len(keys))
	for _, k := range keys {
		out = append(out, toRecord(k))
	}
	return out, nil
}

func (a *KeyStoreAdapter) CreateSigningKey(ctx context.Context, rec jwtx.SigningKeyRecord) error {
	key := fromRecord(rec)
	if key.ID == "" {
		key.ID = idx.New().String()
	}
	return a.keys.CreateSigningKey(ctx, key)
}

func toRecord(k domain.SigningKey) jwtx.SigningKeyRecord {
	return jwtx.SigningKeyRecord{
		ID:                  k.ID,
		Kid:                 k.Kid,
		Algorithm:           k.Algorithm,
		PublicKeyPEM:        k.PublicKeyPEM,
		PrivateKeyEncrypted: k.PrivateKeyEncrypted,
		Active:              k.Active,
		CreatedAt:           k.CreatedAt,
		ExpiresAt:           k.ExpiresAt,
	}
}

func fromRecord(rec jwtx.SigningKeyRecord) domain.SigningKey {
	return domain.SigningKey{
		ID:                  rec.ID,
		Kid:                 rec.Kid,
		Algorithm:           rec.Algorithm,
		PublicKeyPEM:        rec.PublicKeyPEM,
		PrivateKeyEncrypted: rec.PrivateKeyEncrypted,
		Active:              rec.Active,
		CreatedAt:           rec.CreatedAt,
		ExpiresAt:           rec.ExpiresAt,
	}
}
