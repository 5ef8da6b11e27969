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

// Add implements §4.6.1: validate, apply defaults, reject system-user/accessibility
// and cross-account-sync combinations, then insert-or-overwrite depending on
// ConflictResolution.
func (s *Service) Add(ctx context.Context, scope callerinfo.Scope, isSystemApp, hasPersistentPermission bool, params assettype.AttributeMap) error {
	if err := validate.Check(validate.OpAdd, params); err != nil {
		return err
	}
	if err := validate.CheckPermissions(validate.OpAdd, params, isSystemApp, hasPersistentPermission); err != nil {
		return err
	}

	secret, err := params.GetBytesAttr(assettype.Secret)
	if err != nil {
		return err
	}
	if len(secret) > 1024 {
		return asseterr.New(asseterr.InvalidArgument, "secret exceeds 1024 bytes")
	}
	alias, err := params.GetBytesAttr(assettype.Alias)
	if err != nil {
		return err
	}

	accessibility := assettype.Accessibility(params.GetNumAttrOr(assettype.Accessibility, uint32(assettype.DeviceFirstUnlocked)))
	authType := assettype.AuthType(params.GetNumAttrOr(assettype.AuthType, uint32(assettype.AuthTypeNone)))
	syncType := assettype.SyncType(params.GetNumAttrOr(assettype.SyncType, uint32(assettype.SyncNever)))
	requirePasswordSet, _ := params.GetBoolAttr(assettype.RequirePasswordSet)
	isPersistent, _ := params.GetBoolAttr(assettype.IsPersistent)
	conflictResolution := assettype.ConflictResolution(params.GetNumAttrOr(assettype.ConflictResolution, uint32(assettype.ThrowError)))
	wrapType := assettype.WrapType(params.GetNumAttrOr(assettype.WrapType, uint32(assettype.WrapNever)))

	if accessibility != assettype.DevicePowerOn && scope.UserID <= callerinfo.SystemUserMax {
		return asseterr.New(asseterr.InvalidArgument, "non-DevicePowerOn accessibility is rejected for system users")
	}
	if syncType.Has(assettype.SyncTrustedAccount) {
		if scope.AppIndex > 0 || scope.OwnerType == assettype.OwnerHapGroup {
			return asseterr.New(asseterr.InvalidArgument, "TrustedAccount sync is rejected for cloned apps and group callers")
		}
		if wrapType != assettype.WrapNever {
			return asseterr.New(asseterr.InvalidArgument, "WrapType must be Never when SyncType includes TrustedAccount")
		}
	}

	store, err := s.Stores.Store(scope.UserID, accessibility)
	if err != nil {
		return err
	}

	// existing matches by owner/alias regardless of sync_status: a tombstoned
	// TrustedAccount row (§4.6.6) stays in the table, so the unique index still
	// collides with a plain Insert even though it's logically gone (§8 S6).
	where := ownerAliasWhere(scope, alias)
	existing, err := store.Query(ctx, where, dbstore.QueryOptions{Limit: uintp(1)})
	if err != nil {
		return err
	}
	tombstoned := len(existing) > 0 && existing[0].SyncStatus == assettype.SyncStatusDel

	now := s.Clock.Now()
	row := dbstore.Row{
		Alias: alias, Owner: scope.Owner, OwnerType: scope.OwnerType, GroupID: scope.GroupID,
		SyncType: syncType, Accessibility: accessibility, AuthType: authType,
		CreateTime: timestampBytes(now), UpdateTime: timestampBytes(now),
		IsPersistent: isPersistent, Version: 1, RequirePasswordSet: requirePasswordSet,
		LocalStatus: assettype.LocalStatusLocal, SyncStatus: assettype.SyncStatusAdd, WrapType: wrapType,
		DataLabelCritical1: optionalBytes(params, assettype.DataLabelCritical1),
		DataLabelCritical2: optionalBytes(params, assettype.DataLabelCritical2),
		DataLabelCritical3: optionalBytes(params, assettype.DataLabelCritical3),
		DataLabelCritical4: optionalBytes(params, assettype.DataLabelCritical4),
		DataLabelNormal1:      optionalBytes(params, assettype.DataLabelNormal1),
		DataLabelNormal2:      optionalBytes(params, assettype.DataLabelNormal2),
		DataLabelNormal3:      optionalBytes(params, assettype.DataLabelNormal3),
		DataLabelNormal4:      optionalBytes(params, assettype.DataLabelNormal4),
		DataLabelNormalLocal1: optionalBytes(params, assettype.DataLabelNormalLocal1),
		DataLabelNormalLocal2: optionalBytes(params, assettype.DataLabelNormalLocal2),
		DataLabelNormalLocal3: optionalBytes(params, assettype.DataLabelNormalLocal3),
		DataLabelNormalLocal4: optionalBytes(params, assettype.DataLabelNormalLocal4),
	}
	if len(existing) > 0 {
		row.Version = existing[0].Version + 1
	}

	// keyTupleForRow/buildAAD read row's finalized attributes (accessibility,
	// auth_type, require_password_set, version, labels), so row must carry
	// whatever this call is about to persist before it seals Secret under them
	// (§4.6.1 step 5: the stored row and the AAD the ciphertext was sealed under
	// must never diverge).
	tuple := keyTupleForRow(scope, row)
	if err := s.Keys.Generate(tuple); err != nil {
		return err
	}
	aad := buildAAD(row)
	ct, err := s.Keys.Encrypt(tuple, secret, aad)
	if err != nil {
		return err
	}
	row.Secret = ct

	switch {
	case len(existing) == 0:
		if _, err := store.Insert(ctx, row); err != nil {
			return err
		}
	case tombstoned:
		// Re-adding an alias whose only matching row is a sync tombstone replaces
		// it in place, independent of ConflictResolution (§8 S6: "ok, logical row
		// replaced") — there is no live row here for ThrowError to collide with.
		if _, err := store.Update(ctx, where, fullRowSet(row)); err != nil {
			return err
		}
	case conflictResolution == assettype.ThrowError:
		return asseterr.New(asseterr.Duplicated, "alias already exists for this owner")
	default:
		if _, err := store.Update(ctx, where, fullRowSet(row)); err != nil {
			return err
		}
	}

	if opType, err := params.GetNumAttr(assettype.OperationType); err == nil {
		s.raiseOperationEvent(scope, alias, assettype.OperationType(opType))
	}
	return nil
}

func (s *Service) raiseOperationEvent(scope callerinfo.Scope, alias []byte, op assettype.OperationType) {
	switch op {
	case assettype.OperationNeedSync:
		s.Bus.Publish(pluginbus.Event{Type: pluginbus.EventSync, Scope: scope, Alias: alias})
	case assettype.OperationNeedDeleteCloud:
		s.Bus.Publish(pluginbus.Event{Type: pluginbus.EventDeleteCloudData, Scope: scope, Alias: alias})
	}
}

func ownerAliasWhere(scope callerinfo.Scope, alias []byte) dbstore.Where {
	w := dbstore.Where{
		dbstore.ColOwner:     scope.Owner,
		dbstore.ColOwnerType: scope.OwnerType,
		dbstore.ColAlias:     alias,
	}
	if scope.GroupID != nil {
		w[dbstore.ColGroupID] = scope.GroupID
	}
	return w
}

func optionalBytes(m assettype.AttributeMap, tag assettype.Tag) []byte {
	if v, ok := m[tag]; ok {
		if b, ok := v.Bytes(); ok {
			return b
		}
	}
	return nil
}

func uintp(v uint32) *uint32 { return &v }

// fullRowSet builds the Set an Overwrite or tombstone-resurrect persists: every
// mutable column, not just Secret/UpdateTime (§4.6.1 step 5) — the row on disk
// must match the attributes row's AAD and key tuple were derived from, or a
// later Query rebuilds the wrong AAD and Decrypt fails. Owner/OwnerType/GroupID/
// Alias/CreateTime are left out: same logical row, same identity and history.
func fullRowSet(row dbstore.Row) dbstore.Set {
	return dbstore.Set{
		dbstore.ColSecret:             row.Secret,
		dbstore.ColSyncType:           row.SyncType,
		dbstore.ColAccessibility:      row.Accessibility,
		dbstore.ColAuthType:           row.AuthType,
		dbstore.ColUpdateTime:         row.UpdateTime,
		dbstore.ColIsPersistent:       row.IsPersistent,
		dbstore.ColVersion:            row.Version,
		dbstore.ColRequirePasswordSet: row.RequirePasswordSet,
		dbstore.ColLocalStatus:        row.LocalStatus,
		dbstore.ColSyncStatus:         row.SyncStatus,
		dbstore.ColWrapType:           row.WrapType,
		dbstore.ColDataLabelCritical1: nb(row.DataLabelCritical1),
		dbstore.ColDataLabelCritical2: nb(row.DataLabelCritical2),
		dbstore.ColDataLabelCritical3: nb(row.DataLabelCritical3),
		dbstore.ColDataLabelCritical4: nb(row.DataLabelCritical4),
		dbstore.ColDataLabelNormal1:      nb(row.DataLabelNormal1),
		dbstore.ColDataLabelNormal2:      nb(row.DataLabelNormal2),
		dbstore.ColDataLabelNormal3:      nb(row.DataLabelNormal3),
		dbstore.ColDataLabelNormal4:      nb(row.DataLabelNormal4),
		dbstore.ColDataLabelNormalLocal1: nb(row.DataLabelNormalLocal1),
		dbstore.ColDataLabelNormalLocal2: nb(row.DataLabelNormalLocal2),
		dbstore.ColDataLabelNormalLocal3: nb(row.DataLabelNormalLocal3),
		dbstore.ColDataLabelNormalLocal4: nb(row.DataLabelNormalLocal4),
	}
}

// nb converts a nil []byte into an explicit SQL NULL; database/sql drivers treat
// a nil []byte as NULL already, but a typed nil inside an any can trip some
// driver type-switches, so record mirrors dbstore.Insert's own nullableBytes.
func nb(b []byte) any {
	if b == nil {
		return nil
	}
	return b
}
