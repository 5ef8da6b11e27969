package record

import (
	"context"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/pluginbus"
	"github.com/armorclaw/assetstore/internal/validate"
)

// Remove implements §4.6.6: rows whose sync_type carries TrustedAccount are
// logically deleted (SyncStatus flipped to Del, left in place for the sync plugin
// to reconcile) while every other matching row is physically deleted in the same
// call. HSM key material is left untouched here — a removed record's key alias is
// only reclaimed when the owning app is uninstalled (DeleteOnPackageRemoved).
func (s *Service) Remove(ctx context.Context, scope callerinfo.Scope, params assettype.AttributeMap) error {
	if err := validate.Check(validate.OpRemove, params); err != nil {
		return err
	}

	where := filterFromParams(scope, params)
	store, err := s.storeForScope(scope)
	if err != nil {
		return err
	}

	trustedAccountWhere := dbstore.Where{}
	for k, v := range where {
		trustedAccountWhere[k] = v
	}
	trustedAccountWhere[dbstore.ColSyncType] = uint32(assettype.SyncTrustedAccount)

	tombstoned, err := store.Update(ctx, trustedAccountWhere, dbstore.Set{
		dbstore.ColSyncStatus: uint32(assettype.SyncStatusDel),
		dbstore.ColUpdateTime: timestampBytes(s.Clock.Now()),
	})
	if err != nil {
		return err
	}

	physical, err := store.Delete(ctx, where, trustedAccountWhere)
	if err != nil {
		return err
	}

	if tombstoned == 0 && physical == 0 {
		return asseterr.New(asseterr.NotFound, "no record matched remove filter")
	}

	s.Bus.Publish(pluginbus.Event{Type: pluginbus.EventSync, Scope: scope})
	return nil
}
