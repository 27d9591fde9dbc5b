package domain

import "time"

// SigningKey is a JWT signing key stored in the database. At most one key
// is active at a time; rotation deactivates the rest. Private key
// material is encrypted at rest. Expired keys stay retrievable for
// verification until the grace-period cleanup soft-deletes them.
type SigningKey struct {
	ID                  string
	Kid                 string // RFC 7638 thumbprint of the public key
	Algorithm           string // RS256
	PublicKeyPEM        string
	PrivateKeyEncrypted []byte // AES-256-GCM encrypted private key PEM
	Active              bool
	RowVersion          int64
	CreatedAt           time.Time
	ExpiresAt           time.Time
}

// IsActive returns true if the key is flagged active and not expired.
func (k *SigningKey) IsActive(now time.Time) bool {
	return k.Active && now.Before(k.ExpiresAt)
}

// IsExpired returns true if the key has passed its expiration time.
func (k *SigningKey) IsExpired(now time.Time) bool {
	return now.After(k.ExpiresAt)
}
