// Package refhsm provides a reference HSM implementation for tests and for any
// deployment target without a real secure element: key material is derived
// deterministically from a root secret via PBKDF2-HMAC-SHA512, never persisted on
// its own. It satisfies keystore.HSM. Grounded on the teacher's pkg/keystore, which
// derives its SQLCipher master key the same way (PBKDF2-HMAC-SHA512 over a
// machine-bound root secret) for a no-hardware "zero-touch" story.
package refhsm

import (
	"crypto/sha512"
	"sync"

	"golang.org/x/crypto/pbkdf2"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/keystore"
)

const (
	derivedKeyLen = 32
	pbkdf2Iters   = 100_000
)

// HSM is an in-process stand-in for a hardware secure element. Every alias's key is
// derived on demand from root and the alias itself, so Exists/Generate/Delete only
// need to track which aliases have been "generated" — the key bytes themselves are
// never stored.
type HSM struct {
	root []byte

	mu        sync.Mutex
	generated map[string]bool
	needAuth  map[string]bool
	authed    map[string]bool // aliases whose auth gate is currently open (test hook)
}

// New builds a reference HSM whose keys are all derived from root. Production test
// setups should use a random root per test; a fixed root is useful for golden
// vectors.
func New(root []byte) *HSM {
	return &HSM{
		root:      append([]byte(nil), root...),
		generated: make(map[string]bool),
		needAuth:  make(map[string]bool),
		authed:    make(map[string]bool),
	}
}

func (h *HSM) derive(alias []byte) []byte {
	return pbkdf2.Key(h.root, alias, pbkdf2Iters, derivedKeyLen, sha512.New)
}

// Exists implements keystore.HSM.
func (h *HSM) Exists(alias []byte) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.generated[string(alias)], nil
}

// Generate implements keystore.HSM.
func (h *HSM) Generate(alias []byte, needAuth bool, requirePasswordSet bool) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(alias)
	h.generated[key] = true
	h.needAuth[key] = needAuth
	return nil
}

// Delete implements keystore.HSM. Deleting an absent key is not an error.
func (h *HSM) Delete(alias []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(alias)
	delete(h.generated, key)
	delete(h.needAuth, key)
	delete(h.authed, key)
	return nil
}

// SetAuthed marks alias as having an open user-presence gate, simulating a completed
// device authentication. Test-only hook — a real HSM gates this in hardware.
func (h *HSM) SetAuthed(alias []byte, open bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.authed[string(alias)] = open
}

// Encrypt implements keystore.HSM. Only Decrypt is auth-gated.
func (h *HSM) Encrypt(alias []byte, plaintext, aad []byte) ([]byte, error) {
	ct, err := keystore.AESGCMSeal(h.derive(alias), plaintext, aad)
	if err != nil {
		return nil, asseterr.Wrap(asseterr.CryptoError, err, "reference hsm seal failed")
	}
	return ct, nil
}

// Decrypt implements keystore.HSM.
func (h *HSM) Decrypt(alias []byte, ciphertext, aad []byte) ([]byte, error) {
	if err := h.checkAuthGate(alias); err != nil {
		return nil, err
	}
	pt, err := keystore.AESGCMOpen(h.derive(alias), ciphertext, aad)
	if err != nil {
		return nil, asseterr.Wrap(asseterr.CryptoError, err, "reference hsm open failed")
	}
	return pt, nil
}

func (h *HSM) checkAuthGate(alias []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := string(alias)
	if h.needAuth[key] && !h.authed[key] {
		return asseterr.New(asseterr.AccessDenied, "key requires an open auth session")
	}
	return nil
}

var _ keystore.HSM = (*HSM)(nil)
