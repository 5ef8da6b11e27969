// Package dispatch implements the request router and transport of §4.8: a fixed
// op-code table over a length-prefixed wire frame, an idle-unload timer, and the
// maintenance cron jobs a long-lived host process needs around the core service.
// Grounded on the teacher's pkg/socket (Unix-socket accept loop, per-connection
// deadline, rate limiting) and pkg/rpc (method-table dispatch shape), reduced from
// their JSON-RPC 2.0 envelope to the fixed u32 op-code/u32 status framing §4.8
// specifies and built on the attribute-map codec (internal/assettype) instead of
// encoding/json.
package dispatch

import (
	"context"

	"github.com/armorclaw/assetstore/internal/asseterr"
	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/record"
)

// Op is the stable, ABI-visible operation code (§4.8).
type Op uint32

const (
	OpAdd Op = iota
	OpRemove
	OpUpdate
	OpPreQuery
	OpQuery
	OpPostQuery
	OpQuerySyncResult
)

// InterfaceToken is the stable token every request parcel must lead with (§6.1).
const InterfaceToken = "security_asset_service"

// DelayedUnloadSeconds is how long the dispatcher waits with zero in-flight
// requests before asking its host to unload the process (§4.8).
const DelayedUnloadSeconds = 20

// DeviceUpgradeExtensionCode and DeviceUpgradeToken identify the OnDeviceUpgrade
// extension call (§6.3).
const (
	DeviceUpgradeExtensionCode = 18100
	DeviceUpgradeToken         = "OHOS.Updater.RestoreData"
)

// Request is one already-decoded inbound call: the op, the caller's raw uid (for
// Resolver.Resolve), and the one or two attribute maps the op expects (Update
// carries a selector map and a values map; every other op carries exactly one).
type Request struct {
	Op         Op
	CallingUID uint64
	Params     []assettype.AttributeMap
}

// Reply is what Handle returns: Code=Success with zero or more result maps, or a
// non-Success Code with Msg set and no maps (§4.8's status/payload split).
type Reply struct {
	Code asseterr.Code
	Msg  string
	Maps []assettype.AttributeMap
	// Challenge carries PreQuery's 32-byte reply; unset for every other op.
	Challenge []byte
	// Sync carries QuerySyncResult's reply; unset for every other op.
	Sync *record.SyncResult
}

// Router resolves callers and owns the record service every op is dispatched
// against.
type Router struct {
	Resolver callerinfo.Resolver
	Service  RecordService
}

// RecordService is the subset of *record.Service the router calls through, kept
// as an interface so tests can inject a stub without standing up real storage.
type RecordService interface {
	Add(ctx context.Context, scope callerinfo.Scope, isSystemApp, hasPersistentPermission bool, params assettype.AttributeMap) error
	Remove(ctx context.Context, scope callerinfo.Scope, params assettype.AttributeMap) error
	Update(ctx context.Context, scope callerinfo.Scope, params assettype.AttributeMap) error
	Query(ctx context.Context, scope callerinfo.Scope, params assettype.AttributeMap) ([]assettype.AttributeMap, error)
	PreQuery(ctx context.Context, scope callerinfo.Scope, isSystemApp bool, params assettype.AttributeMap) ([32]byte, error)
	PostQuery(ctx context.Context, scope callerinfo.Scope, challenge [32]byte) error
	QuerySyncResult(ctx context.Context, scope callerinfo.Scope, params assettype.AttributeMap) (record.SyncResult, error)
}

// Handle routes req to the matching RecordService method and shapes its result
// into the fixed Reply envelope (§4.8). The caller's Identity/Scope is rebuilt on
// every call; the core never caches it across requests.
func (r *Router) Handle(ctx context.Context, req Request) Reply {
	ident, err := r.Resolver.Resolve(req.CallingUID)
	if err != nil {
		return errReply(err)
	}
	scope, err := callerinfo.Build(ident, nil, nil)
	if err != nil {
		return errReply(err)
	}

	if len(req.Params) == 0 {
		return errReply(asseterr.New(asseterr.InvalidArgument, "request carries no parameter map"))
	}

	switch req.Op {
	case OpAdd:
		err := r.Service.Add(ctx, scope, ident.IsSystemApp, ident.Permissions[callerinfo.PersistentDataPermission], req.Params[0])
		return replyFor(err)
	case OpRemove:
		return replyFor(r.Service.Remove(ctx, scope, req.Params[0]))
	case OpUpdate:
		params := req.Params[0]
		if len(req.Params) > 1 {
			params = make(assettype.AttributeMap, len(req.Params[0])+len(req.Params[1]))
			for tag, val := range req.Params[0] {
				params[tag] = val
			}
			for tag, val := range req.Params[1] {
				params[tag] = val
			}
		}
		return replyFor(r.Service.Update(ctx, scope, params))
	case OpPreQuery:
		challenge, err := r.Service.PreQuery(ctx, scope, ident.IsSystemApp, req.Params[0])
		if err != nil {
			return errReply(err)
		}
		return Reply{Code: asseterr.Success, Challenge: challenge[:]}
	case OpQuery:
		maps, err := r.Service.Query(ctx, scope, req.Params[0])
		if err != nil {
			return errReply(err)
		}
		return Reply{Code: asseterr.Success, Maps: maps}
	case OpPostQuery:
		challengeBytes, cerr := req.Params[0].GetBytesAttr(assettype.AuthChallenge)
		if cerr != nil {
			return errReply(cerr)
		}
		var challenge [32]byte
		copy(challenge[:], challengeBytes)
		return replyFor(r.Service.PostQuery(ctx, scope, challenge))
	case OpQuerySyncResult:
		result, err := r.Service.QuerySyncResult(ctx, scope, req.Params[0])
		if err != nil {
			return errReply(err)
		}
		return Reply{Code: asseterr.Success, Sync: &result}
	default:
		return errReply(asseterr.New(asseterr.InvalidArgument, "unrecognized op code %d", req.Op))
	}
}

func replyFor(err error) Reply {
	if err != nil {
		return errReply(err)
	}
	return Reply{Code: asseterr.Success}
}

func errReply(err error) Reply {
	return Reply{Code: asseterr.CodeOf(err), Msg: err.Error()}
}
