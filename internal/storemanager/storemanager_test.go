package storemanager_test

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/keystore"
	"github.com/armorclaw/assetstore/internal/keystore/memdbkeystore"
	"github.com/armorclaw/assetstore/internal/keystore/refhsm"
	"github.com/armorclaw/assetstore/internal/storemanager"
)

func newManager(t *testing.T) *storemanager.Manager {
	t.Helper()
	root := t.TempDir()
	keys := keystore.New(refhsm.New([]byte("root-secret")), memdbkeystore.New())
	return storemanager.New(
		filepath.Join(root, "de"),
		filepath.Join(root, "ce"),
		keys,
		func(userID int32) (assettype.OwnerType, []byte) {
			return assettype.OwnerHap, []byte("com.example.app")
		},
	)
}

func TestStoreOpensDEForSystemUser(t *testing.T) {
	m := newManager(t)
	s, err := m.Store(10, assettype.DevicePowerOn)
	require.NoError(t, err)
	require.NotNil(t, s)
	t.Cleanup(func() { m.CloseAll() })
}

func TestStoreOpensCEForRegularUser(t *testing.T) {
	m := newManager(t)
	s, err := m.Store(100, assettype.DeviceFirstUnlocked)
	require.NoError(t, err)
	require.NotNil(t, s)
	t.Cleanup(func() { m.CloseAll() })
}

func TestStoreCachesPerUser(t *testing.T) {
	m := newManager(t)
	a, err := m.Store(100, assettype.DeviceFirstUnlocked)
	require.NoError(t, err)
	b, err := m.Store(100, assettype.DeviceFirstUnlocked)
	require.NoError(t, err)
	assert.Same(t, a, b)
	t.Cleanup(func() { m.CloseAll() })
}

func TestOpenStoresListsEveryOpenedStore(t *testing.T) {
	m := newManager(t)
	_, err := m.Store(10, assettype.DevicePowerOn)
	require.NoError(t, err)
	_, err = m.Store(100, assettype.DeviceFirstUnlocked)
	require.NoError(t, err)

	assert.Len(t, m.OpenStores(), 2)
	t.Cleanup(func() { m.CloseAll() })
}
