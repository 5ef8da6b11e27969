package record

import (
	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
)

// tagColumns maps the subset of tags that double as DB filter predicates (§4.6.3,
// §4.6.6) onto their column name. Tags outside this set (return-shaping tags,
// Secret, auth tags) are never turned into predicates: filterFromParams only
// reads the tags listed here.
var tagColumns = map[assettype.Tag]string{
	assettype.Alias:                  dbstore.ColAlias,
	assettype.Accessibility:          dbstore.ColAccessibility,
	assettype.AuthType:               dbstore.ColAuthType,
	assettype.SyncType:               dbstore.ColSyncType,
	assettype.RequirePasswordSet:     dbstore.ColRequirePasswordSet,
	assettype.DataLabelCritical1:     dbstore.ColDataLabelCritical1,
	assettype.DataLabelCritical2:     dbstore.ColDataLabelCritical2,
	assettype.DataLabelCritical3:     dbstore.ColDataLabelCritical3,
	assettype.DataLabelCritical4:     dbstore.ColDataLabelCritical4,
	assettype.DataLabelNormal1:       dbstore.ColDataLabelNormal1,
	assettype.DataLabelNormal2:       dbstore.ColDataLabelNormal2,
	assettype.DataLabelNormal3:       dbstore.ColDataLabelNormal3,
	assettype.DataLabelNormal4:       dbstore.ColDataLabelNormal4,
	assettype.DataLabelNormalLocal1:  dbstore.ColDataLabelNormalLocal1,
	assettype.DataLabelNormalLocal2:  dbstore.ColDataLabelNormalLocal2,
	assettype.DataLabelNormalLocal3:  dbstore.ColDataLabelNormalLocal3,
	assettype.DataLabelNormalLocal4:  dbstore.ColDataLabelNormalLocal4,
}

// scopeWhere seeds a filter with the caller's owner/owner_type/group_id — every
// operation is implicitly scoped to the calling app (§4.2: callers only ever see
// their own records).
func scopeWhere(scope callerinfo.Scope) dbstore.Where {
	w := dbstore.Where{
		dbstore.ColOwner:     scope.Owner,
		dbstore.ColOwnerType: scope.OwnerType,
	}
	if scope.GroupID != nil {
		w[dbstore.ColGroupID] = scope.GroupID
	}
	return w
}

// filterFromParams extends a scope-seeded Where with every caller-supplied tag
// that maps onto a filterable column, converting enum/bool values to the
// integer/bytes shape the column stores (§4.6.3, §4.6.6).
func filterFromParams(scope callerinfo.Scope, params assettype.AttributeMap) dbstore.Where {
	w := scopeWhere(scope)
	for tag, col := range tagColumns {
		v, ok := params[tag]
		if !ok {
			continue
		}
		switch tag.DataType() {
		case assettype.TypeBytes:
			b, _ := v.Bytes()
			w[col] = b
		case assettype.TypeNumber:
			n, _ := v.Number()
			w[col] = n
		case assettype.TypeBool:
			b, _ := v.Bool()
			w[col] = b
		}
	}
	return w
}

// liveFilterFromParams is filterFromParams narrowed to rows a caller can actually
// see. A tombstoned TrustedAccount row (SyncStatus=Del, §4.6.6) stays in the table
// for the sync plugin to reconcile, but query/pre_query must treat it as gone
// (§8 scenario S6: Query -> NotFound right after remove) — only the sync-facing
// path and Remove's own tombstone/physical-delete logic ever see a Del row. The
// enum only has two members (Add, Del), so equality against Add is exactly
// "not tombstoned".
func liveFilterFromParams(scope callerinfo.Scope, params assettype.AttributeMap) dbstore.Where {
	w := filterFromParams(scope, params)
	w[dbstore.ColSyncStatus] = uint32(assettype.SyncStatusAdd)
	return w
}
