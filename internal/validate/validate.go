// Package validate implements the per-operation argument validator (§4.3): required
// and allowed tag sets, value-range bounds, and the enum-range check for Number-typed
// tags. It is the Go reduction of the original's param_check module (required_tag.rs,
// check_tag.rs, tag_value_match.rs), generalized from that module's Add/Update/Query
// three-operation coverage to the full seven-operation surface §4.3 specifies.
package validate

import (
	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
)

// Op identifies which operation's tag rules apply.
type Op int

const (
	OpAdd Op = iota
	OpRemove
	OpUpdate
	OpQuery
	OpPreQuery
	OpPostQuery
	OpQuerySyncResult
)

func (o Op) String() string {
	switch o {
	case OpAdd:
		return "Add"
	case OpRemove:
		return "Remove"
	case OpUpdate:
		return "Update"
	case OpQuery:
		return "Query"
	case OpPreQuery:
		return "PreQuery"
	case OpPostQuery:
		return "PostQuery"
	case OpQuerySyncResult:
		return "QuerySyncResult"
	default:
		return "Op(?)"
	}
}

var criticalLabels = []assettype.Tag{
	assettype.DataLabelCritical1, assettype.DataLabelCritical2,
	assettype.DataLabelCritical3, assettype.DataLabelCritical4,
}

var normalLabels = []assettype.Tag{
	assettype.DataLabelNormal1, assettype.DataLabelNormal2,
	assettype.DataLabelNormal3, assettype.DataLabelNormal4,
}

var normalLocalLabels = []assettype.Tag{
	assettype.DataLabelNormalLocal1, assettype.DataLabelNormalLocal2,
	assettype.DataLabelNormalLocal3, assettype.DataLabelNormalLocal4,
}

var accessTags = []assettype.Tag{
	assettype.Accessibility, assettype.RequirePasswordSet, assettype.AuthType, assettype.SyncType,
}

var returnShapingTags = []assettype.Tag{
	assettype.ReturnType, assettype.ReturnLimit, assettype.ReturnOffset, assettype.ReturnOrderBy,
}

func union(sets ...[]assettype.Tag) []assettype.Tag {
	var out []assettype.Tag
	for _, s := range sets {
		out = append(out, s...)
	}
	return out
}

// rule holds the three tag sets of §4.3 for one operation.
type rule struct {
	required  []assettype.Tag
	allowed   []assettype.Tag // nil means "all tags not explicitly forbidden"
	forbidden []assettype.Tag
}

var rules = map[Op]rule{
	OpAdd: {
		required: []assettype.Tag{assettype.Alias, assettype.Secret},
		forbidden: union(returnShapingTags, []assettype.Tag{
			assettype.AuthChallenge, assettype.AuthToken,
		}),
	},
	OpUpdate: {
		required: []assettype.Tag{assettype.Alias},
		allowed: union(
			[]assettype.Tag{assettype.Alias},
			criticalLabels, normalLabels, accessTags,
			[]assettype.Tag{assettype.Secret},
			normalLabels,
		),
	},
	OpRemove: {
		allowed: union(criticalLabels, normalLabels, []assettype.Tag{
			assettype.SyncType, assettype.Accessibility, assettype.RequirePasswordSet,
			assettype.AuthType, assettype.UserId,
		}),
		forbidden: []assettype.Tag{assettype.Secret},
	},
	OpQuery: {
		forbidden: []assettype.Tag{assettype.Secret},
	},
	OpPreQuery: {
		allowed: union(criticalLabels, normalLabels, accessTags, []assettype.Tag{
			assettype.AuthValidityPeriod, assettype.SpecificUserId,
		}),
	},
	OpPostQuery: {
		required: []assettype.Tag{assettype.AuthChallenge},
		allowed:  []assettype.Tag{assettype.AuthChallenge, assettype.SpecificUserId},
	},
	OpQuerySyncResult: {
		allowed: union(criticalLabels, normalLabels, normalLocalLabels, []assettype.Tag{
			assettype.SyncType,
		}),
	},
}

// boundRule is a byte-length or exact-length check applied to Bytes-typed tags.
type boundRule struct {
	min, max int
	exact    bool
}

var byteBounds = map[assettype.Tag]boundRule{
	assettype.Alias:                {min: 1, max: 256},
	assettype.Secret:                {min: 1, max: 1024},
	assettype.AuthChallenge:         {min: 32, max: 32, exact: true},
	assettype.AuthToken:             {min: 1, max: 1024},
	assettype.DataLabelCritical1:    {min: 0, max: 2048},
	assettype.DataLabelCritical2:    {min: 0, max: 2048},
	assettype.DataLabelCritical3:    {min: 0, max: 2048},
	assettype.DataLabelCritical4:    {min: 0, max: 2048},
	assettype.DataLabelNormal1:      {min: 0, max: 2048},
	assettype.DataLabelNormal2:      {min: 0, max: 2048},
	assettype.DataLabelNormal3:      {min: 0, max: 2048},
	assettype.DataLabelNormal4:      {min: 0, max: 2048},
	assettype.DataLabelNormalLocal1: {min: 0, max: 2048},
	assettype.DataLabelNormalLocal2: {min: 0, max: 2048},
	assettype.DataLabelNormalLocal3: {min: 0, max: 2048},
	assettype.DataLabelNormalLocal4: {min: 0, max: 2048},
	assettype.GroupId:               {min: 1, max: 256},
}

// Check validates params against op's required/allowed/forbidden tag sets and its
// byte-length and enum-range value bounds (§4.3).
func Check(op Op, params assettype.AttributeMap) error {
	r, ok := rules[op]
	if !ok {
		return asseterr.New(asseterr.InvalidArgument, "unrecognized operation %s", op)
	}

	for _, req := range r.required {
		if _, present := params[req]; !present {
			return asseterr.New(asseterr.InvalidArgument, "%s missing required tag %s", op, req)
		}
	}

	forbidden := make(map[assettype.Tag]bool, len(r.forbidden))
	for _, t := range r.forbidden {
		forbidden[t] = true
	}
	var allowed map[assettype.Tag]bool
	if r.allowed != nil {
		allowed = make(map[assettype.Tag]bool, len(r.allowed)+len(r.required))
		for _, t := range r.allowed {
			allowed[t] = true
		}
		for _, t := range r.required {
			allowed[t] = true
		}
	}

	for tag, val := range params {
		if forbidden[tag] {
			return asseterr.New(asseterr.InvalidArgument, "%s forbids tag %s", op, tag)
		}
		if allowed != nil && !allowed[tag] {
			return asseterr.New(asseterr.InvalidArgument, "%s does not accept tag %s", op, tag)
		}
		if err := checkValue(tag, val); err != nil {
			return err
		}
	}
	return nil
}

func checkValue(tag assettype.Tag, val assettype.Value) error {
	if val.Kind() != tag.DataType() {
		return asseterr.New(asseterr.InvalidArgument, "tag %s expects %s, got %s", tag, tag.DataType(), val.Kind())
	}

	switch tag.DataType() {
	case assettype.TypeBytes:
		b, _ := val.Bytes()
		if bound, ok := byteBounds[tag]; ok {
			if bound.exact && len(b) != bound.min {
				return asseterr.New(asseterr.InvalidArgument, "tag %s must be exactly %d bytes, got %d", tag, bound.min, len(b))
			}
			if !bound.exact && (len(b) < bound.min || len(b) > bound.max) {
				return asseterr.New(asseterr.InvalidArgument, "tag %s length %d outside %d..=%d", tag, len(b), bound.min, bound.max)
			}
		}
	case assettype.TypeNumber:
		n, _ := val.Number()
		if err := checkEnumRange(tag, n); err != nil {
			return err
		}
	}
	return nil
}

// checkEnumRange validates Number-typed tags whose wire values are closed enums.
func checkEnumRange(tag assettype.Tag, n uint32) error {
	switch tag {
	case assettype.Accessibility:
		if _, ok := assettype.ParseAccessibility(n); !ok {
			return asseterr.New(asseterr.InvalidArgument, "invalid Accessibility value %d", n)
		}
	case assettype.AuthType:
		if _, ok := assettype.ParseAuthType(n); !ok {
			return asseterr.New(asseterr.InvalidArgument, "invalid AuthType value %d", n)
		}
	case assettype.SyncType:
		if !assettype.ValidSyncType(n) {
			return asseterr.New(asseterr.InvalidArgument, "invalid SyncType bitset %#x", n)
		}
	case assettype.ConflictResolution:
		if _, ok := assettype.ParseConflictResolution(n); !ok {
			return asseterr.New(asseterr.InvalidArgument, "invalid ConflictResolution value %d", n)
		}
	case assettype.ReturnType:
		if _, ok := assettype.ParseReturnType(n); !ok {
			return asseterr.New(asseterr.InvalidArgument, "invalid ReturnType value %d", n)
		}
	}
	return nil
}

// CheckPermissions enforces §4.6.3's permission bits that Check's tag-shape pass
// cannot express: IsPersistent=true on Add requires PersistentDataPermission,
// SpecificUserId on PreQuery requires a system app, and PreQuery rejects AuthType=None explicitly
// (callers that never intend to authenticate should omit AuthType, not set None).
func CheckPermissions(op Op, params assettype.AttributeMap, isSystemApp bool, hasPersistentPermission bool) error {
	if op == OpAdd {
		if persistent, err := params.GetBoolAttr(assettype.IsPersistent); err == nil && persistent && !hasPersistentPermission {
			return asseterr.New(asseterr.PermissionDenied, "IsPersistent=true requires the persistent-data permission")
		}
	}
	if op == OpPreQuery {
		if authType, err := params.GetNumAttr(assettype.AuthType); err == nil && assettype.AuthType(authType) == assettype.AuthTypeNone {
			return asseterr.New(asseterr.InvalidArgument, "PreQuery rejects explicit AuthType=None")
		}
		if _, err := params.GetNumAttr(assettype.SpecificUserId); err == nil && !isSystemApp {
			return asseterr.New(asseterr.PermissionDenied, "SpecificUserId requires a system app")
		}
	}
	return nil
}
