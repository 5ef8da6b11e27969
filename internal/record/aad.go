package record

import (
	"encoding/binary"

	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/keystore"
)

// buildAAD concatenates, in the fixed order §4.6.1/§3 specify, every attribute
// present on row: alias, owner, owner_type, group_id, sync_type, accessibility,
// require_password_set, auth_type, is_persistent, version, critical1..4. Bytes
// fields contribute raw bytes; number/bool fields contribute little-endian bytes
// or a single byte. A field absent at read time (nil GroupID) contributes nothing,
// matching the original's crypto_adapter AAD walk.
func buildAAD(row dbstore.Row) []byte {
	var aad []byte
	aad = append(aad, row.Alias...)
	aad = append(aad, row.Owner...)
	aad = appendLE32(aad, uint32(row.OwnerType))
	aad = append(aad, row.GroupID...)
	aad = appendLE32(aad, uint32(row.SyncType))
	aad = appendLE32(aad, uint32(row.Accessibility))
	aad = appendBool(aad, row.RequirePasswordSet)
	aad = appendLE32(aad, uint32(row.AuthType))
	aad = appendBool(aad, row.IsPersistent)
	aad = appendLE32(aad, row.Version)
	aad = append(aad, row.DataLabelCritical1...)
	aad = append(aad, row.DataLabelCritical2...)
	aad = append(aad, row.DataLabelCritical3...)
	aad = append(aad, row.DataLabelCritical4...)
	return aad
}

func appendLE32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func appendBool(buf []byte, b bool) []byte {
	if b {
		return append(buf, 1)
	}
	return append(buf, 0)
}

// keyTupleForRow derives the KeyStore tuple a row's ciphertext was (or will be)
// encrypted under — the fixed subset of attributes the key alias is a pure
// function of (§3 invariant 4).
func keyTupleForRow(scope callerinfo.Scope, row dbstore.Row) keystore.KeyTuple {
	return keystore.KeyTuple{
		UserID:             scope.UserID,
		OwnerType:          scope.OwnerType,
		Owner:              scope.Owner,
		AuthType:           row.AuthType,
		Accessibility:      row.Accessibility,
		RequirePasswordSet: row.RequirePasswordSet,
	}
}
