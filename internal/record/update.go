package record

import (
	"context"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/validate"
)

// Update implements §4.6.2: locate by Alias, re-encrypt Secret under the row's
// unchanged key tuple when present, and write Secret, DataLabelNormal1-4 and
// update_time in one UPDATE statement. The key-alias-bearing fields and the
// critical labels are never written; when params carries them they pass
// validation and are not applied.
func (s *Service) Update(ctx context.Context, scope callerinfo.Scope, params assettype.AttributeMap) error {
	if err := validate.Check(validate.OpUpdate, params); err != nil {
		return err
	}
	alias, err := params.GetBytesAttr(assettype.Alias)
	if err != nil {
		return err
	}

	store, err := s.storeForScope(scope)
	if err != nil {
		return err
	}
	where := ownerAliasWhere(scope, alias)
	rows, err := store.Query(ctx, where, dbstore.QueryOptions{Limit: uintp(1)})
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return asseterr.New(asseterr.NotFound, "no record for alias")
	}
	row := rows[0]

	set := dbstore.Set{}
	for _, tag := range []assettype.Tag{
		assettype.DataLabelNormal1, assettype.DataLabelNormal2, assettype.DataLabelNormal3, assettype.DataLabelNormal4,
	} {
		if b := optionalBytes(params, tag); b != nil {
			set[normalLabelColumn(tag)] = b
		}
	}

	if secret, serr := params.GetBytesAttr(assettype.Secret); serr == nil {
		if len(secret) > 1024 {
			return asseterr.New(asseterr.InvalidArgument, "secret exceeds 1024 bytes")
		}
		merged := row
		for col, v := range set {
			applyLabelColumn(&merged, col, v.([]byte))
		}
		tuple := keyTupleForRow(scope, merged)
		aad := buildAAD(merged)
		ct, err := s.Keys.Encrypt(tuple, secret, aad)
		if err != nil {
			return err
		}
		set[dbstore.ColSecret] = ct
	}

	if len(set) == 0 {
		return nil
	}
	set[dbstore.ColUpdateTime] = timestampBytes(s.Clock.Now())

	if _, err := store.Update(ctx, where, set); err != nil {
		return err
	}
	return nil
}

func normalLabelColumn(tag assettype.Tag) string {
	switch tag {
	case assettype.DataLabelNormal1:
		return dbstore.ColDataLabelNormal1
	case assettype.DataLabelNormal2:
		return dbstore.ColDataLabelNormal2
	case assettype.DataLabelNormal3:
		return dbstore.ColDataLabelNormal3
	case assettype.DataLabelNormal4:
		return dbstore.ColDataLabelNormal4
	default:
		return ""
	}
}

func applyLabelColumn(row *dbstore.Row, col string, v []byte) {
	switch col {
	case dbstore.ColDataLabelNormal1:
		row.DataLabelNormal1 = v
	case dbstore.ColDataLabelNormal2:
		row.DataLabelNormal2 = v
	case dbstore.ColDataLabelNormal3:
		row.DataLabelNormal3 = v
	case dbstore.ColDataLabelNormal4:
		row.DataLabelNormal4 = v
	}
}

func (s *Service) storeForScope(scope callerinfo.Scope) (*dbstore.Store, error) {
	// Update doesn't know the row's accessibility until it's located; the resolver
	// (storemanager.Manager) picks CE vs DE from the user id alone, so the
	// accessibility passed here does not change which store is returned.
	return s.Stores.Store(scope.UserID, assettype.DeviceFirstUnlocked)
}
