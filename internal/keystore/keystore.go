// Package keystore implements the KeyStore binding (§4.4): key-alias derivation,
// AES-256-GCM encrypt/decrypt, and the wrapped DB-key lifecycle that lets the CE/DE
// store encrypt its SQLite key at rest. It is the Go reduction of the original's
// crypto_manager::secret_key (alias derivation) and db_key_operator (wrapped DB key)
// crates, generalized from their HUKS FFI calls to a pluggable HSM capability
// interface, grounded on the teacher's pkg/keystore (hardware-derived master key,
// PBKDF2-wrapped at-rest secrets) for the Go shape of that seam.
package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"

	"golang.org/x/sync/singleflight"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
)

// KeyAliasSize is the fixed output length of the key-alias derivation (§3 invariant 5).
const KeyAliasSize = sha256.Size

// HSM is the abstract hardware-backed key capability §1 calls out as an external
// collaborator. Production wiring talks to the device's secure element; Keystore
// only consumes this interface, so a test double can stand in without touching the
// rest of the service.
type HSM interface {
	// Exists reports whether a key under alias has been generated.
	Exists(alias []byte) (bool, error)
	// Generate creates a key under alias, gated for user presence/auth per needAuth.
	Generate(alias []byte, needAuth bool, requirePasswordSet bool) error
	// Delete removes the key under alias. Deleting a nonexistent key is not an error.
	Delete(alias []byte) error
	// Encrypt produces an AEAD ciphertext (nonce‖tag‖ct, per §3) under alias.
	Encrypt(alias []byte, plaintext, aad []byte) ([]byte, error)
	// Decrypt reverses Encrypt. Requires a valid auth session handle when the key was
	// generated with needAuth; refhsm.HSM enforces this with a per-alias gate opened
	// by its SetAuthed hook.
	Decrypt(alias []byte, ciphertext, aad []byte) ([]byte, error)
}

// KeyTuple is the attribute tuple the key alias is a pure function of (§3 invariant 5,
// §4.4 calculate_key_alias).
type KeyTuple struct {
	UserID             int32
	OwnerType          assettype.OwnerType
	Owner              []byte
	AuthType           assettype.AuthType
	Accessibility      assettype.Accessibility
	RequirePasswordSet bool
}

// DBKeyTuple is the fixed tuple the original reserves for wrapping the DB key itself:
// AuthType::None, Accessibility::DeviceFirstUnlocked, require_password_set=false
// (db_key_operator.rs). Fixing these means the DB key's own wrapping key never
// depends on lock-screen state beyond "device has been unlocked once since boot".
func DBKeyTuple(userID int32, ownerType assettype.OwnerType, owner []byte) KeyTuple {
	return KeyTuple{
		UserID:             userID,
		OwnerType:          ownerType,
		Owner:              owner,
		AuthType:           assettype.AuthTypeNone,
		Accessibility:      assettype.DeviceFirstUnlocked,
		RequirePasswordSet: false,
	}
}

// Alias derives the stable HSM key alias for t: sha256 of the little-endian user_id,
// owner_type, and owner bytes, followed by the three optional "_Tag:value" suffixes
// (AuthType, Accessibility, RequirePasswordSet), each omitted when its value is the
// default (0 / false). This mirrors calculate_key_alias byte-for-byte.
func Alias(t KeyTuple) []byte {
	var buf []byte
	buf = appendLE32(buf, uint32(t.UserID))
	buf = append(buf, '_')
	buf = appendLE32(buf, uint32(t.OwnerType))
	buf = append(buf, '_')
	buf = append(buf, t.Owner...)
	buf = appendAttr(buf, "AuthType", uint32(t.AuthType), t.AuthType != assettype.AuthTypeNone)
	buf = appendAttr(buf, "Accessibility", uint32(t.Accessibility), t.Accessibility != assettype.DevicePowerOn)
	buf = appendAttr(buf, "RequirePasswordSet", boolToU32(t.RequirePasswordSet), t.RequirePasswordSet)
	sum := sha256.Sum256(buf)
	return sum[:]
}

func boolToU32(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}

func appendLE32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendAttr(buf []byte, tag string, value uint32, nonDefault bool) []byte {
	if !nonDefault {
		return buf
	}
	buf = append(buf, '_')
	buf = append(buf, tag...)
	buf = append(buf, ':')
	return appendLE32(buf, value)
}

// deleteCombo is one (Accessibility, AuthType, RequirePasswordSet) point in the
// sweep deleteCombos enumerates.
type deleteCombo struct {
	Accessibility      assettype.Accessibility
	AuthType           assettype.AuthType
	RequirePasswordSet bool
}

// deleteCombos enumerates the 3 accessibilities x {AuthType, RequirePasswordSet}
// combinations the original's SecretKey::delete_by_owner sweeps (3 x 2 x 2 = 12),
// used by DeleteAllForOwner to erase every key an owner could possibly have caused
// to be generated, independent of which combination was actually used.
func deleteCombos() []deleteCombo {
	var out []deleteCombo
	accessibilities := []assettype.Accessibility{
		assettype.DevicePowerOn, assettype.DeviceFirstUnlocked, assettype.DeviceUnlocked,
	}
	authTypes := []assettype.AuthType{assettype.AuthTypeNone, assettype.AuthTypeAny}
	requirePwds := []bool{true, false}
	for _, acc := range accessibilities {
		for _, at := range authTypes {
			for _, rp := range requirePwds {
				out = append(out, deleteCombo{acc, at, rp})
			}
		}
	}
	return out
}

// KeyStore wraps an HSM with the alias-derivation and DB-key lifecycle logic §4.4
// specifies, independent of which concrete HSM backs it.
type KeyStore struct {
	hsm   HSM
	group singleflight.Group
	dbKey DBKeyStore
}

// DBKeyStore persists the opaque wrapped DB-key blob (§4.5's "db_key file").
// Production wiring is a small file on the CE/DE directory; tests use an in-memory
// map. Kept separate from HSM because the wrapped blob is plain storage, not key
// material the HSM itself manages.
type DBKeyStore interface {
	Load(id string) ([]byte, bool, error)
	Save(id string, wrapped []byte) error
	Delete(id string) error
}

// New constructs a KeyStore over hsm and dbKeys.
func New(hsm HSM, dbKeys DBKeyStore) *KeyStore {
	return &KeyStore{hsm: hsm, dbKey: dbKeys}
}

// Exists reports whether t's key has been generated.
func (k *KeyStore) Exists(t KeyTuple) (bool, error) {
	ok, err := k.hsm.Exists(Alias(t))
	if err != nil {
		return false, asseterr.Wrap(asseterr.CryptoError, err, "key existence check failed")
	}
	return ok, nil
}

// Generate creates t's key if absent.
func (k *KeyStore) Generate(t KeyTuple) error {
	alias := Alias(t)
	exists, err := k.hsm.Exists(alias)
	if err != nil {
		return asseterr.Wrap(asseterr.CryptoError, err, "key existence check failed")
	}
	if exists {
		return nil
	}
	needAuth := t.AuthType != assettype.AuthTypeNone
	if err := k.hsm.Generate(alias, needAuth, t.RequirePasswordSet); err != nil {
		return asseterr.Wrap(asseterr.CryptoError, err, "key generation failed")
	}
	return nil
}

// Delete removes t's key. Deleting an absent key is not an error (§4.4).
func (k *KeyStore) Delete(t KeyTuple) error {
	if err := k.hsm.Delete(Alias(t)); err != nil {
		return asseterr.Wrap(asseterr.CryptoError, err, "key deletion failed")
	}
	return nil
}

// Encrypt wraps plaintext under t's key with aad bound in (§3, §4.6.1's AAD walk).
func (k *KeyStore) Encrypt(t KeyTuple, plaintext, aad []byte) ([]byte, error) {
	ct, err := k.hsm.Encrypt(Alias(t), plaintext, aad)
	if err != nil {
		return nil, asseterr.Wrap(asseterr.CryptoError, err, "encryption failed")
	}
	return ct, nil
}

// Decrypt reverses Encrypt. A tampered aad or ciphertext fails AEAD verification.
func (k *KeyStore) Decrypt(t KeyTuple, ciphertext, aad []byte) ([]byte, error) {
	pt, err := k.hsm.Decrypt(Alias(t), ciphertext, aad)
	if err != nil {
		return nil, asseterr.Wrap(asseterr.CryptoError, err, "decryption failed")
	}
	return pt, nil
}

// DeleteAllForOwner erases every key the owner scope (UserID, OwnerType, Owner) could
// have caused to be generated, across all 12 (Accessibility x AuthType x
// RequirePasswordSet) combinations, plus the wrapped DB key. Used on uninstall, user
// removal, and cloud-data-clear (§4.6's lifecycle hooks).
func (k *KeyStore) DeleteAllForOwner(userID int32, ownerType assettype.OwnerType, owner []byte, dbKeyID string) error {
	var firstErr error
	for _, combo := range deleteCombos() {
		t := KeyTuple{
			UserID: userID, OwnerType: ownerType, Owner: owner,
			Accessibility: combo.Accessibility, AuthType: combo.AuthType, RequirePasswordSet: combo.RequirePasswordSet,
		}
		if err := k.Delete(t); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := k.dbKey.Delete(dbKeyID); err != nil && firstErr == nil {
		firstErr = asseterr.Wrap(asseterr.CryptoError, err, "db key deletion failed")
	}
	return firstErr
}

// GetOrCreateDBKey returns the raw 32-byte DB key for dbKeyID, generating and
// persisting a wrapped copy on first use (§4.5). wrapTuple is always DBKeyTuple's
// fixed attribute combination for the owner in question. Concurrent calls for the
// same dbKeyID are coalesced through singleflight so at most one HSM generate/wrap
// round-trip happens even under a thundering herd of first-open requests.
func (k *KeyStore) GetOrCreateDBKey(dbKeyID string, wrapTuple KeyTuple) ([]byte, error) {
	v, err, _ := k.group.Do(dbKeyID, func() (any, error) {
		wrapped, ok, err := k.dbKey.Load(dbKeyID)
		if err != nil {
			return nil, asseterr.Wrap(asseterr.FileOperationError, err, "db key load failed")
		}
		if ok {
			raw, err := k.Decrypt(wrapTuple, wrapped, []byte(dbKeyID))
			if err != nil {
				return nil, asseterr.Wrap(asseterr.DataCorrupted, err, "db key unwrap failed for %s", dbKeyID)
			}
			return raw, nil
		}

		if err := k.Generate(wrapTuple); err != nil {
			return nil, err
		}
		raw := make([]byte, 32)
		if _, err := rand.Read(raw); err != nil {
			return nil, asseterr.Wrap(asseterr.CryptoError, err, "db key entropy generation failed")
		}
		wrapped, err = k.Encrypt(wrapTuple, raw, []byte(dbKeyID))
		if err != nil {
			return nil, err
		}
		if err := k.dbKey.Save(dbKeyID, wrapped); err != nil {
			return nil, asseterr.Wrap(asseterr.FileOperationError, err, "db key persist failed")
		}
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// AESGCMSeal is the stdlib AES-256-GCM primitive a concrete HSM implementation uses
// under the hood; exported so refhsm.HSM and any production adapter share one
// audited seal/open pair instead of each re-deriving nonce handling.
func AESGCMSeal(key, plaintext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("nonce generation: %w", err)
	}
	return gcm.Seal(nonce, nonce, plaintext, aad), nil
}

// AESGCMOpen reverses AESGCMSeal, expecting ciphertext to begin with the nonce.
func AESGCMOpen(key, ciphertext, aad []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher init: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm init: %w", err)
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, fmt.Errorf("ciphertext shorter than nonce")
	}
	nonce, ct := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ct, aad)
}
