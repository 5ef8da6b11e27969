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

// PreQuery implements §4.6.4: locate the rows a subsequent Query would match,
// reject an (accessibility, require_password_set) combination that disagrees
// across them (the caller would otherwise get a single challenge that can't
// honestly represent two different unlock requirements), mint a session bound to
// the matched access tuple, and return its challenge.
func (s *Service) PreQuery(ctx context.Context, scope callerinfo.Scope, isSystemApp bool, params assettype.AttributeMap) ([session.ChallengeSize]byte, error) {
	var zero [session.ChallengeSize]byte

	if err := validate.Check(validate.OpPreQuery, params); err != nil {
		return zero, err
	}
	if err := validate.CheckPermissions(validate.OpPreQuery, params, isSystemApp, false); err != nil {
		return zero, err
	}

	where := liveFilterFromParams(scope, params)
	store, err := s.storeForScope(scope)
	if err != nil {
		return zero, err
	}
	rows, err := store.Query(ctx, where, dbstore.QueryOptions{})
	if err != nil {
		return zero, err
	}
	if len(rows) == 0 {
		return zero, asseterr.New(asseterr.NotFound, "no record matched pre_query filter")
	}

	accessibility := rows[0].Accessibility
	requirePasswordSet := rows[0].RequirePasswordSet
	for _, r := range rows[1:] {
		if r.Accessibility != accessibility || r.RequirePasswordSet != requirePasswordSet {
			return zero, asseterr.New(asseterr.Unsupported, "matched rows disagree on accessibility/require_password_set")
		}
	}

	challenge, err := session.NewChallenge()
	if err != nil {
		return zero, err
	}

	validFor := session.DefaultValidityPeriod
	if v, err := params.GetNumAttr(assettype.AuthValidityPeriod); err == nil {
		validFor = secondsToDuration(v)
	}

	sess := session.Session{
		Scope:                scope,
		Challenge:            challenge,
		RequiresDeviceUnlock: accessibility == assettype.DeviceUnlocked,
		CreatedAt:            s.Clock.Now(),
	}
	if err := s.Cache.Insert(scope, challenge, sess, validFor); err != nil {
		return zero, err
	}
	return challenge, nil
}
