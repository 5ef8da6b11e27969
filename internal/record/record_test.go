package record_test

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/keystore"
	"github.com/armorclaw/assetstore/internal/keystore/memdbkeystore"
	"github.com/armorclaw/assetstore/internal/keystore/refhsm"
	"github.com/armorclaw/assetstore/internal/pluginbus"
	"github.com/armorclaw/assetstore/internal/record"
	"github.com/armorclaw/assetstore/internal/session"
)

// singleStoreResolver hands back the same store for every (userID, accessibility)
// pair — enough to exercise the record service without standing up a whole
// per-user CE/DE directory layout.
type singleStoreResolver struct {
	store *dbstore.Store
}

func (r singleStoreResolver) Store(userID int32, accessibility assettype.Accessibility) (*dbstore.Store, error) {
	return r.store, nil
}

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

func newTestService(t *testing.T) *record.Service {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asset.db")
	store, err := dbstore.Open(context.Background(), dbstore.Options{Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	hsm := refhsm.New([]byte("test-root-secret"))
	keys := keystore.New(hsm, memdbkeystore.New())

	return &record.Service{
		Stores: singleStoreResolver{store: store},
		Keys:   keys,
		Cache:  session.New(),
		Bus:    pluginbus.NopBus{},
		Clock:  fixedClock{now: time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)},
	}
}

func testScope() callerinfo.Scope {
	return callerinfo.Scope{
		UserID:    100,
		OwnerType: assettype.OwnerHap,
		Owner:     []byte("com.example.app_0"),
	}
}

func addParams(alias, secret string) assettype.AttributeMap {
	m := assettype.AttributeMap{}
	_ = m.InsertAttr(assettype.Alias, assettype.BytesValue([]byte(alias)))
	_ = m.InsertAttr(assettype.Secret, assettype.BytesValue([]byte(secret)))
	return m
}

func TestAddThenQueryRoundTrip(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, scope, false, false, addParams("alias-1", "top-secret")))

	results, err := svc.Query(ctx, scope, assettype.AttributeMap{})
	require.NoError(t, err)
	require.Len(t, results, 1)

	secret, err := results[0].GetBytesAttr(assettype.Secret)
	require.NoError(t, err)
	assert.Equal(t, "top-secret", string(secret))
}

func TestAddDuplicateAliasThrowsByDefault(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, scope, false, false, addParams("dup", "v1")))
	err := svc.Add(ctx, scope, false, false, addParams("dup", "v2"))
	assert.Error(t, err)
}

func TestAddDuplicateAliasOverwritesWhenRequested(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, scope, false, false, addParams("dup", "v1")))

	params := addParams("dup", "v2")
	_ = params.InsertAttr(assettype.ConflictResolution, assettype.NumberValue(uint32(assettype.Overwrite)))
	require.NoError(t, svc.Add(ctx, scope, false, false, params))

	results, err := svc.Query(ctx, scope, assettype.AttributeMap{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	secret, _ := results[0].GetBytesAttr(assettype.Secret)
	assert.Equal(t, "v2", string(secret))
}

func TestOverwritePersistsNewAttributesNotJustSecret(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, scope, false, false, addParams("dup-2", "v1")))

	params := addParams("dup-2", "v2")
	_ = params.InsertAttr(assettype.ConflictResolution, assettype.NumberValue(uint32(assettype.Overwrite)))
	_ = params.InsertAttr(assettype.AuthType, assettype.NumberValue(uint32(assettype.AuthTypeAny)))
	_ = params.InsertAttr(assettype.DataLabelCritical1, assettype.BytesValue([]byte("label-v2")))

	// Overwrite must persist the full row the new ciphertext's AAD/key tuple were
	// derived from (AuthType, labels), not just Secret/UpdateTime — otherwise a
	// later Query rebuilds the AAD from stale columns and Decrypt fails.
	require.NoError(t, svc.Add(ctx, scope, false, false, params))

	challenge, err := svc.PreQuery(ctx, scope, false, assettype.AttributeMap{})
	require.NoError(t, err)

	q := assettype.AttributeMap{}
	_ = q.InsertAttr(assettype.AuthChallenge, assettype.BytesValue(challenge[:]))
	results, err := svc.Query(ctx, scope, q)
	require.NoError(t, err)
	require.Len(t, results, 1)

	secret, err := results[0].GetBytesAttr(assettype.Secret)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(secret))

	label, err := results[0].GetBytesAttr(assettype.DataLabelCritical1)
	require.NoError(t, err)
	assert.Equal(t, "label-v2", string(label))
}

func TestUpdateRewritesSecretUnderSameKey(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, scope, false, false, addParams("alias-2", "old")))

	upd := assettype.AttributeMap{}
	_ = upd.InsertAttr(assettype.Alias, assettype.BytesValue([]byte("alias-2")))
	_ = upd.InsertAttr(assettype.Secret, assettype.BytesValue([]byte("new")))
	require.NoError(t, svc.Update(ctx, scope, upd))

	results, err := svc.Query(ctx, scope, assettype.AttributeMap{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	secret, _ := results[0].GetBytesAttr(assettype.Secret)
	assert.Equal(t, "new", string(secret))
}

func TestUpdateMissingAliasReturnsNotFound(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	upd := assettype.AttributeMap{}
	_ = upd.InsertAttr(assettype.Alias, assettype.BytesValue([]byte("ghost")))
	_ = upd.InsertAttr(assettype.Secret, assettype.BytesValue([]byte("x")))
	assert.Error(t, svc.Update(ctx, scope, upd))
}

func TestRemoveDeletesMatchingRow(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, scope, false, false, addParams("alias-3", "s")))

	rem := assettype.AttributeMap{}
	require.NoError(t, svc.Remove(ctx, scope, rem))

	_, err := svc.Query(ctx, scope, assettype.AttributeMap{})
	assert.Error(t, err)
}

func TestRemoveTombstonesTrustedAccountRows(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	params := addParams("alias-4", "s")
	_ = params.InsertAttr(assettype.SyncType, assettype.NumberValue(uint32(assettype.SyncTrustedAccount)))
	require.NoError(t, svc.Add(ctx, scope, false, false, params))

	require.NoError(t, svc.Remove(ctx, scope, assettype.AttributeMap{}))

	// A TrustedAccount row is logically, not physically, deleted: the row still
	// exists for the sync plugin to reconcile, but Query must treat it as gone.
	_, err := svc.Query(ctx, scope, assettype.AttributeMap{})
	assert.Error(t, err)

	// Removing it again is idempotent — no error, still tombstoned rather than
	// vanishing.
	require.NoError(t, svc.Remove(ctx, scope, assettype.AttributeMap{}))
}

func TestReAddAfterRemoveReplacesTombstonedRow(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	params := addParams("alias-4b", "s1")
	_ = params.InsertAttr(assettype.SyncType, assettype.NumberValue(uint32(assettype.SyncTrustedAccount)))
	require.NoError(t, svc.Add(ctx, scope, false, false, params))
	require.NoError(t, svc.Remove(ctx, scope, assettype.AttributeMap{}))

	// Default ConflictResolution is ThrowError, but the only row matching this
	// alias is a sync tombstone, not a live duplicate, so re-adding succeeds.
	require.NoError(t, svc.Add(ctx, scope, false, false, addParams("alias-4b", "s2")))

	results, err := svc.Query(ctx, scope, assettype.AttributeMap{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	secret, _ := results[0].GetBytesAttr(assettype.Secret)
	assert.Equal(t, "s2", string(secret))
}

func TestPreQueryThenQueryWithChallengeSucceeds(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	params := addParams("alias-5", "auth-gated")
	_ = params.InsertAttr(assettype.AuthType, assettype.NumberValue(uint32(assettype.AuthTypeAny)))
	require.NoError(t, svc.Add(ctx, scope, false, false, params))

	challenge, err := svc.PreQuery(ctx, scope, false, assettype.AttributeMap{})
	require.NoError(t, err)

	q := assettype.AttributeMap{}
	_ = q.InsertAttr(assettype.AuthChallenge, assettype.BytesValue(challenge[:]))
	results, err := svc.Query(ctx, scope, q)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.NoError(t, svc.PostQuery(ctx, scope, challenge))
}

func TestQueryWithoutChallengeDeniedForAuthAnyRows(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	params := addParams("alias-6", "auth-gated")
	_ = params.InsertAttr(assettype.AuthType, assettype.NumberValue(uint32(assettype.AuthTypeAny)))
	require.NoError(t, svc.Add(ctx, scope, false, false, params))

	_, err := svc.Query(ctx, scope, assettype.AttributeMap{})
	assert.Error(t, err)
}

func TestQuerySyncResultDefaultsToZeroWithNoPlugin(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	result, err := svc.QuerySyncResult(ctx, scope, assettype.AttributeMap{})
	require.NoError(t, err)
	assert.Zero(t, result.TotalCount)
	assert.Zero(t, result.FailedCount)
}

func TestDeleteOnPackageRemovedKeepsPersistentRecords(t *testing.T) {
	svc := newTestService(t)
	scope := testScope()
	ctx := context.Background()

	persistent := addParams("keep-me", "s")
	_ = persistent.InsertAttr(assettype.IsPersistent, assettype.BoolValue(true))
	require.NoError(t, svc.Add(ctx, scope, false, true, persistent))

	require.NoError(t, svc.Add(ctx, scope, false, false, addParams("drop-me", "s")))

	require.NoError(t, svc.DeleteOnPackageRemoved(ctx, scope, "dbkey-"+scope.Key()))

	results, err := svc.Query(ctx, scope, assettype.AttributeMap{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	alias, _ := results[0].GetBytesAttr(assettype.Alias)
	assert.Equal(t, "keep-me", string(alias))
}
