package jwtx

import (
	"fmt"
	"sync"
)

// Supported JWT signing algorithms. Only RS256 is in use today; the
// constant keeps call sites honest about what they are asking for.
const (
	AlgorithmRS256 = "RS256"
)

// KeyManager holds the single active signing key plus the set of public
// keys still valid for verification. Rotation swaps the active signer and
// leaves the previous public key in the KeySet so already-issued tokens
// stay verifiable until their key expires.
type KeyManager struct {
	KeySet *KeySet

	mu     sync.RWMutex
	active Signer
}

// NewKeyManager returns an empty KeyManager. Callers must Install a
// signer before signing anything.
func NewKeyManager() *KeyManager {
	return &KeyManager{KeySet: NewKeySet()}
}

// Install makes s the active signing key and publishes its public JWK.
// The previous active key stays in the KeySet for verification.
func (km *KeyManager) Install(s Signer) error {
	if s == nil {
		return fmt.Errorf("jwtx: signer cannot be nil")
	}
	if err := s.Validate(); err != nil {
		return err
	}
	if err := km.KeySet.AddSigner(s); err != nil {
		return fmt.Errorf("jwtx: add signer to keyset: %w", err)
	}

	km.mu.Lock()
	km.active = s
	km.mu.Unlock()
	return nil
}

// ActiveSigner returns the current signing key, or nil if none installed.
func (km *KeyManager) ActiveSigner() Signer {
	km.mu.RLock()
	defer km.mu.RUnlock()
	return km.active
}

// ActiveKID returns the kid of the active signing key, or "".
func (km *KeyManager) ActiveKID() string {
	km.mu.RLock()
	defer km.mu.RUnlock()
	if km.active == nil {
		return ""
	}
	return km.active.KID()
}

// IsReady reports whether the manager can both sign and verify.
func (km *KeyManager) IsReady() bool {
	km.mu.RLock()
	active := km.active != nil
	km.mu.RUnlock()
	return active && km.KeySet.IsReady()
}
