package dbstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/dbstore"
)

func openTestStore(t *testing.T, key []byte) *dbstore.Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asset.db")
	s, err := dbstore.Open(context.Background(), dbstore.Options{Path: path, DBKey: key})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRow(alias string) dbstore.Row {
	return dbstore.Row{
		Secret:             []byte("ciphertext"),
		Alias:              []byte(alias),
		Owner:              []byte("owner"),
		OwnerType:          assettype.OwnerHap,
		SyncType:           assettype.SyncNever,
		Accessibility:      assettype.DeviceFirstUnlocked,
		AuthType:           assettype.AuthTypeNone,
		CreateTime:         []byte("2026-07-31T00:00:00Z"),
		UpdateTime:         []byte("2026-07-31T00:00:00Z"),
		IsPersistent:       false,
		Version:            1,
		RequirePasswordSet: false,
		LocalStatus:        assettype.LocalStatusLocal,
		SyncStatus:         assettype.SyncStatusAdd,
		WrapType:           assettype.WrapNever,
	}
}

func TestInsertAndQueryRoundTrip(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	id, err := s.Insert(ctx, sampleRow("alias-1"))
	require.NoError(t, err)
	assert.Positive(t, id)

	rows, err := s.Query(ctx, dbstore.Where{dbstore.ColAlias: []byte("alias-1")}, dbstore.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "ciphertext", string(rows[0].Secret))
}

func TestInsertRejectsDuplicateAliasForSameOwner(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	_, err := s.Insert(ctx, sampleRow("dup"))
	require.NoError(t, err)
	_, err = s.Insert(ctx, sampleRow("dup"))
	assert.Error(t, err)
}

func TestUpdateAffectsMatchingRows(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	_, err := s.Insert(ctx, sampleRow("alias-2"))
	require.NoError(t, err)

	n, err := s.Update(ctx, dbstore.Where{dbstore.ColAlias: []byte("alias-2")}, dbstore.Set{dbstore.ColSecret: []byte("new-ct")})
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	rows, err := s.Query(ctx, dbstore.Where{dbstore.ColAlias: []byte("alias-2")}, dbstore.QueryOptions{})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "new-ct", string(rows[0].Secret))
}

func TestDeleteWithReverseWhereKeepsMatchingRows(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()

	row := sampleRow("tombstone")
	row.SyncType = assettype.SyncTrustedAccount
	_, err := s.Insert(ctx, row)
	require.NoError(t, err)

	// reverseWhere selects SyncTrustedAccount rows, so they must survive a delete
	// whose where matches everything.
	n, err := s.Delete(ctx, dbstore.Where{}, dbstore.Where{dbstore.ColSyncType: assettype.SyncTrustedAccount})
	require.NoError(t, err)
	assert.EqualValues(t, 0, n)

	exists, err := s.Exists(ctx, dbstore.Where{dbstore.ColAlias: []byte("tombstone")})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestEncryptedStoreOpensWithDBKey(t *testing.T) {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	s := openTestStore(t, key)
	ctx := context.Background()

	_, err := s.Insert(ctx, sampleRow("ce-alias"))
	require.NoError(t, err)

	exists, err := s.Exists(ctx, dbstore.Where{dbstore.ColAlias: []byte("ce-alias")})
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBackupSucceedsOnPopulatedStore(t *testing.T) {
	s := openTestStore(t, nil)
	ctx := context.Background()
	_, err := s.Insert(ctx, sampleRow("backed-up"))
	require.NoError(t, err)
	require.NoError(t, s.Backup(ctx))
}
