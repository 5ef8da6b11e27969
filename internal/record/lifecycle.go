package record

import (
	"context"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/pluginbus"
)

// DeleteOnPackageRemoved implements the uninstall lifecycle of §3: every non-
// persistent record the owner holds is physically removed, its sessions are
// evicted, and its HSM key material is reclaimed across the full (AuthType,
// Accessibility, RequirePasswordSet) cross-product — not just the tuple a given
// row happens to carry, matching the original's delete_by_owner key sweep rather
// than inferring key tuples from surviving rows. Records with IsPersistent=true
// outlive the uninstall and keep their keys.
func (s *Service) DeleteOnPackageRemoved(ctx context.Context, scope callerinfo.Scope, dbKeyID string) error {
	store, err := s.storeForScope(scope)
	if err != nil {
		return err
	}
	where := scopeWhere(scope)
	nonPersistent := dbstore.Where{}
	for k, v := range where {
		nonPersistent[k] = v
	}
	nonPersistent[dbstore.ColIsPersistent] = false

	if _, err := store.Delete(ctx, nonPersistent, nil); err != nil {
		return err
	}
	s.Cache.OnOwnerRemoved(scope.OwnerType, scope.Owner)

	stillReferenced, err := store.Exists(ctx, where)
	if err != nil {
		return err
	}
	if stillReferenced {
		// Persistent rows remain; their keys must survive too.
		return nil
	}
	return s.Keys.DeleteAllForOwner(scope.UserID, scope.OwnerType, scope.Owner, dbKeyID)
}

// DeleteOnUserRemoved implements the per-user cleanup of §3: every record in
// store (already resolved to the removed user's DE/CE pair by the caller) is
// removed regardless of IsPersistent — a deleted user has no "surviving app
// data" concept.
func (s *Service) DeleteOnUserRemoved(ctx context.Context, store *dbstore.Store) error {
	_, err := store.Delete(ctx, dbstore.Where{}, nil)
	return err
}

// DeleteOnCloudDataCleared implements the admin "clear cloud data" lifecycle of
// §3: rows carrying SyncType=TrustedAccount are removed the same way Remove's
// sync-tombstone path identifies them, then the plugin bus is told the cloud flag
// is clear (§6.4 CleanCloudFlag).
func (s *Service) DeleteOnCloudDataCleared(ctx context.Context, scope callerinfo.Scope) error {
	store, err := s.storeForScope(scope)
	if err != nil {
		return err
	}
	where := scopeWhere(scope)
	where[dbstore.ColSyncType] = uint32(assettype.SyncTrustedAccount)
	if _, err := store.Delete(ctx, where, nil); err != nil {
		return err
	}
	s.Bus.Publish(pluginbus.Event{Type: pluginbus.EventCleanCloudFlag, Scope: scope})
	return nil
}
