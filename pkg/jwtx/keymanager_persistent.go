package jwtx

import (
	"context"
	"fmt"
	"time"

	"github.com/tabservice/journeyd/pkg/cryptox"
)

// SigningKeyRecord represents a signing key stored in the database.
// This mirrors the domain type without importing it, preventing circular
// dependencies between jwtx and the store packages.
type SigningKeyRecord struct {
	ID                  string
	Kid                 string
	Algorithm           string
	PublicKeyPEM        string
	PrivateKeyEncrypted []byte
	Active              bool
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// IsExpired reports whether the key has passed its expiry at the given time.
func (r SigningKeyRecord) IsExpired(now time.Time) bool {
	return now.After(r.ExpiresAt)
}

// KeyStore defines the minimal interface needed for persistent key
// management during bootstrap. The service layer uses the full store for
// rotation and cleanup.
type KeyStore interface {
	// ListSigningKeys returns all signing keys (including inactive ones)
	// so tokens signed before a rotation stay verifiable.
	ListSigningKeys(ctx context.Context) ([]SigningKeyRecord, error)

	// CreateSigningKey stores a new signing key with encrypted private
	// key material.
	CreateSigningKey(ctx context.Context, key SigningKeyRecord) error
}

// PersistentKeyManagerOptions configures key loading at startup.
type PersistentKeyManagerOptions struct {
	// Store provides access to the signing keys table.
	Store KeyStore

	// RSABits specifies the key size for newly generated keys.
	// Defaults to 2048 if not specified.
	RSABits int

	// KeyTTL is the lifetime of a newly generated key. Defaults to 24h.
	KeyTTL time.Duration
}

// NewPersistentKeyManager loads signing keys from the database. All
// non-expired keys are published for verification; the newest active
// non-expired key becomes the signer. If no usable active key exists a
// fresh one is generated and persisted.
func NewPersistentKeyManager(ctx context.Context, opts PersistentKeyManagerOptions) (*KeyManager, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("jwtx: Store is required for persistent key manager")
	}
	if opts.RSABits == 0 {
		opts.RSABits = 2048
	}
	if opts.KeyTTL <= 0 {
		opts.KeyTTL = 24 * time.Hour
	}

	km := NewKeyManager()
	now := time.Now().UTC()

	records, err := opts.Store.ListSigningKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("jwtx: load signing keys: %w", err)
	}

	var newestActive *SigningKeyRecord
	for i := range records {
		rec := records[i]
		if rec.IsExpired(now) {
			continue
		}

		signer, err := signerFromRecord(rec)
		if err != nil {
			return nil, fmt.Errorf("jwtx: restore key %s: %w", rec.Kid, err)
		}
		if err := km.KeySet.AddSigner(signer); err != nil {
			return nil, fmt.Errorf("jwtx: publish key %s: %w", rec.Kid, err)
		}

		if rec.Active && (newestActive == nil || rec.CreatedAt.After(newestActive.CreatedAt)) {
			newestActive = &records[i]
		}
	}

	if newestActive != nil {
		signer, err := signerFromRecord(*newestActive)
		if err != nil {
			return nil, fmt.Errorf("jwtx: restore active key %s: %w", newestActive.Kid, err)
		}
		if err := km.Install(signer); err != nil {
			return nil, err
		}
		return km, nil
	}

	// No usable active key, mint one.
	rec, signer, err := GenerateSigningKey(opts.RSABits, opts.KeyTTL, now)
	if err != nil {
		return nil, err
	}
	if err := opts.Store.CreateSigningKey(ctx, rec); err != nil {
		return nil, fmt.Errorf("jwtx: store new key: %w", err)
	}
	if err := km.Install(signer); err != nil {
		return nil, err
	}
	return km, nil
}

// GenerateSigningKey mints a fresh RSA key pair, returning both the
// storable record (private key encrypted at rest) and a ready signer.
// The kid is the RFC 7638 thumbprint of the public key. The record's ID
// is left empty for the caller to assign.
func GenerateSigningKey(rsaBits int, ttl time.Duration, now time.Time) (SigningKeyRecord, Signer, error) {
	pemData, err := cryptox.GenerateRSAKey(rsaBits)
	if err != nil {
		return SigningKeyRecord{}, nil, fmt.Errorf("jwtx: generate RSA key: %w", err)
	}

	// Parse once without a kid to learn the public key, then rebuild the
	// signer with the thumbprint kid.
	probe, err := newRS256Signer("", pemData)
	if err != nil {
		return SigningKeyRecord{}, nil, err
	}
	kid := Thumbprint(probe.PublicKey())

	signer, err := newRS256Signer(kid, pemData)
	if err != nil {
		return SigningKeyRecord{}, nil, err
	}

	publicPEM, err := signer.PublicJWK().PEM()
	if err != nil {
		return SigningKeyRecord{}, nil, fmt.Errorf("jwtx: export public key: %w", err)
	}

	encrypted, err := cryptox.EncryptPrivateKey(pemData)
	if err != nil {
		return SigningKeyRecord{}, nil, fmt.Errorf("jwtx: encrypt private key: %w", err)
	}

	rec := SigningKeyRecord{
		Kid:                 kid,
		Algorithm:           AlgorithmRS256,
		PublicKeyPEM:        publicPEM,
		PrivateKeyEncrypted: encrypted,
		Active:              true,
		CreatedAt:           now,
		ExpiresAt:           now.Add(ttl),
	}
	return rec, signer, nil
}

// signerFromRecord decrypts the stored private key and rebuilds a signer.
func signerFromRecord(rec SigningKeyRecord) (Signer, error) {
	pemData, err := cryptox.DecryptPrivateKey(rec.PrivateKeyEncrypted)
	if err != nil {
		return nil, fmt.Errorf("decrypt private key: %w", err)
	}
	if rec.Algorithm != AlgorithmRS256 {
		return nil, fmt.Errorf("unsupported algorithm %q", rec.Algorithm)
	}
	return NewSignerRS256(rec.Kid, pemData)
}
