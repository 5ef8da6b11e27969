package record

import (
	"context"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/session"
	"github.com/armorclaw/assetstore/internal/validate"
)

const (
	defaultReturnLimit  = 100
	defaultReturnOffset = 0
)

// orderableColumns restricts ReturnOrderBy to non-secret label columns (§4.6.3):
// ordering by anything else would leak row shape the caller has no business
// inferring (e.g. ordering by create_time reveals insertion sequence).
var orderableColumns = map[string]bool{
	dbstore.ColDataLabelNormal1: true, dbstore.ColDataLabelNormal2: true,
	dbstore.ColDataLabelNormal3: true, dbstore.ColDataLabelNormal4: true,
	dbstore.ColDataLabelNormalLocal1: true, dbstore.ColDataLabelNormalLocal2: true,
	dbstore.ColDataLabelNormalLocal3: true, dbstore.ColDataLabelNormalLocal4: true,
}

// Query implements §4.6.3: translate the caller's filter to a DB predicate, apply
// the return-shaping defaults, gate AuthType=Any rows behind a verified session (or
// AuthToken), and for ReturnType=All decrypt every matched secret under its row's
// own key tuple and AAD.
func (s *Service) Query(ctx context.Context, scope callerinfo.Scope, params assettype.AttributeMap) ([]assettype.AttributeMap, error) {
	if err := validate.Check(validate.OpQuery, params); err != nil {
		return nil, err
	}

	where := liveFilterFromParams(scope, params)
	store, err := s.storeForScope(scope)
	if err != nil {
		return nil, err
	}

	opts := dbstore.QueryOptions{}
	limit := uint32(params.GetNumAttrOr(assettype.ReturnLimit, defaultReturnLimit))
	offset := params.GetNumAttrOr(assettype.ReturnOffset, defaultReturnOffset)
	opts.Limit = &limit
	opts.Offset = &offset
	if ob, err := params.GetNumAttr(assettype.ReturnOrderBy); err == nil {
		col, ok := tagColumns[assettype.Tag(ob)]
		if !ok || !orderableColumns[col] {
			return nil, asseterr.New(asseterr.InvalidArgument, "ReturnOrderBy does not name an orderable label column")
		}
		opts.OrderBy = col
	}

	returnType := assettype.ReturnType(params.GetNumAttrOr(assettype.ReturnType, uint32(assettype.ReturnAll)))

	rows, err := store.Query(ctx, where, opts)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, asseterr.New(asseterr.NotFound, "no record matched query filter")
	}

	if err := s.checkAuthGate(scope, rows, params); err != nil {
		return nil, err
	}

	out := make([]assettype.AttributeMap, 0, len(rows))
	for _, row := range rows {
		attrs, err := s.rowToAttributes(scope, row, returnType)
		if err != nil {
			return nil, err
		}
		out = append(out, attrs)
	}
	return out, nil
}

// checkAuthGate enforces §4.6.3's access rules: rows with AuthType=Any may only be
// returned to a caller holding a session opened by a matching pre_query (validated
// via AuthChallenge) or a fresh AuthToken bound to that same challenge.
func (s *Service) checkAuthGate(scope callerinfo.Scope, rows []dbstore.Row, params assettype.AttributeMap) error {
	needsAuth := false
	for _, r := range rows {
		if r.AuthType == assettype.AuthTypeAny {
			needsAuth = true
			break
		}
	}
	if !needsAuth {
		return nil
	}

	challengeBytes, err := params.GetBytesAttr(assettype.AuthChallenge)
	if err != nil {
		return asseterr.New(asseterr.AccessDenied, "AuthType=Any records require AuthChallenge")
	}
	if len(challengeBytes) != session.ChallengeSize {
		return asseterr.New(asseterr.InvalidArgument, "AuthChallenge must be %d bytes", session.ChallengeSize)
	}
	var challenge [session.ChallengeSize]byte
	copy(challenge[:], challengeBytes)

	validFor := session.DefaultValidityPeriod
	if v, err := params.GetNumAttr(assettype.AuthValidityPeriod); err == nil {
		validFor = secondsToDuration(v)
	}

	if _, ok := s.Cache.Find(scope, challenge, validFor); ok {
		return nil
	}

	if token, terr := params.GetBytesAttr(assettype.AuthToken); terr == nil && s.Verify != nil {
		if err := s.Verify.Verify(string(token), challenge); err == nil {
			return nil
		}
	}
	return asseterr.New(asseterr.AccessDenied, "no valid session or auth token for challenge")
}

// rowToAttributes renders a matched row back into an AttributeMap. ReturnType=All
// additionally decrypts Secret under the row's key tuple and AAD; ReturnType=
// Attributes never touches the HSM.
func (s *Service) rowToAttributes(scope callerinfo.Scope, row dbstore.Row, rt assettype.ReturnType) (assettype.AttributeMap, error) {
	out := assettype.AttributeMap{}
	_ = out.InsertAttr(assettype.Alias, assettype.BytesValue(row.Alias))
	_ = out.InsertAttr(assettype.Accessibility, assettype.NumberValue(uint32(row.Accessibility)))
	_ = out.InsertAttr(assettype.AuthType, assettype.NumberValue(uint32(row.AuthType)))
	_ = out.InsertAttr(assettype.SyncType, assettype.NumberValue(uint32(row.SyncType)))
	_ = out.InsertAttr(assettype.RequirePasswordSet, assettype.BoolValue(row.RequirePasswordSet))
	_ = out.InsertAttr(assettype.IsPersistent, assettype.BoolValue(row.IsPersistent))
	_ = out.InsertAttr(assettype.Version, assettype.NumberValue(row.Version))
	for tag, b := range map[assettype.Tag][]byte{
		assettype.DataLabelNormal1: row.DataLabelNormal1, assettype.DataLabelNormal2: row.DataLabelNormal2,
		assettype.DataLabelNormal3: row.DataLabelNormal3, assettype.DataLabelNormal4: row.DataLabelNormal4,
		assettype.DataLabelCritical1: row.DataLabelCritical1, assettype.DataLabelCritical2: row.DataLabelCritical2,
		assettype.DataLabelCritical3: row.DataLabelCritical3, assettype.DataLabelCritical4: row.DataLabelCritical4,
	} {
		if b != nil {
			_ = out.InsertAttr(tag, assettype.BytesValue(b))
		}
	}

	if rt != assettype.ReturnAll {
		return out, nil
	}

	tuple := keyTupleForRow(scope, row)
	aad := buildAAD(row)
	plaintext, err := s.Keys.Decrypt(tuple, row.Secret, aad)
	if err != nil {
		return nil, err
	}
	_ = out.InsertAttr(assettype.Secret, assettype.BytesValue(plaintext))
	return out, nil
}
