package keystore_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/keystore"
	"github.com/armorclaw/assetstore/internal/keystore/memdbkeystore"
	"github.com/armorclaw/assetstore/internal/keystore/refhsm"
)

func newStore(t *testing.T) *keystore.KeyStore {
	t.Helper()
	hsm := refhsm.New([]byte("test-root-secret"))
	return keystore.New(hsm, memdbkeystore.New())
}

func TestAliasOmitsDefaultSuffixes(t *testing.T) {
	base := keystore.KeyTuple{UserID: 100, OwnerType: assettype.OwnerHap, Owner: []byte("com.example.app_0")}
	withSuffix := base
	withSuffix.AuthType = assettype.AuthTypeAny

	a1 := keystore.Alias(base)
	a2 := keystore.Alias(withSuffix)
	assert.Len(t, a1, keystore.KeyAliasSize)
	assert.NotEqual(t, a1, a2, "non-default AuthType must change the alias")
}

func TestAliasIsDeterministic(t *testing.T) {
	t1 := keystore.KeyTuple{UserID: 1, OwnerType: assettype.OwnerNative, Owner: []byte("proc")}
	assert.Equal(t, keystore.Alias(t1), keystore.Alias(t1))
}

func TestGenerateThenEncryptDecryptRoundTrip(t *testing.T) {
	ks := newStore(t)
	tuple := keystore.KeyTuple{UserID: 100, OwnerType: assettype.OwnerHap, Owner: []byte("app_0")}
	require.NoError(t, ks.Generate(tuple))

	ct, err := ks.Encrypt(tuple, []byte("super secret"), []byte("aad"))
	require.NoError(t, err)

	pt, err := ks.Decrypt(tuple, ct, []byte("aad"))
	require.NoError(t, err)
	assert.Equal(t, "super secret", string(pt))
}

func TestDecryptFailsOnTamperedAAD(t *testing.T) {
	ks := newStore(t)
	tuple := keystore.KeyTuple{UserID: 1, OwnerType: assettype.OwnerNative, Owner: []byte("proc")}
	require.NoError(t, ks.Generate(tuple))

	ct, err := ks.Encrypt(tuple, []byte("payload"), []byte("aad-a"))
	require.NoError(t, err)

	_, err = ks.Decrypt(tuple, ct, []byte("aad-b"))
	assert.Error(t, err)
}

func TestGetOrCreateDBKeyIsStableAcrossCalls(t *testing.T) {
	ks := newStore(t)
	wrapTuple := keystore.DBKeyTuple(5, assettype.OwnerNative, []byte("proc"))

	k1, err := ks.GetOrCreateDBKey("user-5", wrapTuple)
	require.NoError(t, err)
	assert.Len(t, k1, 32)

	k2, err := ks.GetOrCreateDBKey("user-5", wrapTuple)
	require.NoError(t, err)
	assert.Equal(t, k1, k2)
}

func TestDeleteAllForOwnerRemovesDBKey(t *testing.T) {
	ks := newStore(t)
	wrapTuple := keystore.DBKeyTuple(5, assettype.OwnerNative, []byte("proc"))
	_, err := ks.GetOrCreateDBKey("user-5", wrapTuple)
	require.NoError(t, err)

	require.NoError(t, ks.DeleteAllForOwner(5, assettype.OwnerNative, []byte("proc"), "user-5"))

	_, err = ks.GetOrCreateDBKey("user-5", wrapTuple)
	require.NoError(t, err, "a fresh key should regenerate cleanly after deletion")
}
