package record

import (
	"context"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/validate"
)

// SyncResult is §4.6.7's reply payload: the sync plugin's own bookkeeping, read
// (never computed) by the core.
type SyncResult struct {
	TotalCount   uint32
	FailedCount  uint32
	LastSyncTime []byte
}

// SyncResultSource is the out-of-band table the sync plugin maintains. The core
// has no write path onto it; Service.Sync is nil in deployments with no sync
// plugin registered, and QuerySyncResult degrades to a zeroed result rather than
// erroring (matching the original stub's default-when-absent behavior).
type SyncResultSource interface {
	SyncResult(scope callerinfo.Scope, params assettype.AttributeMap) (SyncResult, error)
}

// QuerySyncResult implements §4.6.7.
func (s *Service) QuerySyncResult(ctx context.Context, scope callerinfo.Scope, params assettype.AttributeMap) (SyncResult, error) {
	if err := validate.Check(validate.OpQuerySyncResult, params); err != nil {
		return SyncResult{}, err
	}
	if s.Sync == nil {
		return SyncResult{}, nil
	}
	return s.Sync.SyncResult(scope, params)
}
