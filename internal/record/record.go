// Package record implements the record service (§4.6): add / remove / update /
// query / pre_query / post_query / query_sync_result, orchestrating validate,
// callerinfo, keystore, dbstore, and session into the operations the dispatch
// layer exposes. Grounded on the original's core_service::operations module
// (operation_add.rs / operation_remove.rs / operation_update.rs /
// operation_pre_query.rs, one file per op, sharing a CallingInfo + AssetMap
// signature), reduced here to one Service with one method per operation.
package record

import (
	"context"
	"time"

	"github.com/armorclaw/assetstore/internal/assettype"
	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/dbstore"
	"github.com/armorclaw/assetstore/internal/keystore"
	"github.com/armorclaw/assetstore/internal/pluginbus"
	"github.com/armorclaw/assetstore/internal/session"
)

// Clock abstracts wall-clock reads so create_time/update_time and session aging
// are testable without sleeping (§1 lists logging/metrics/tracing as external; the
// original's equivalent is its `asset_common::time` FFI shim, generalized here to
// a Go interface rather than a global function so tests can inject a fake).
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now() }

// Service wires every collaborator C6 needs. One Service instance is shared
// process-wide; per-user store selection happens through Stores.
type Service struct {
	Stores StoreResolver
	Keys   *keystore.KeyStore
	Cache  *session.Cache
	Bus    pluginbus.Bus
	Clock  Clock
	Verify *session.TokenVerifier
	// Sync is nil in deployments with no sync plugin registered.
	Sync SyncResultSource
}

// StoreResolver returns the already-open dbstore.Store for a given user (§4.5 file
// layout: CE under el2, DE under el1). storemanager.Manager, wired in cmd/assetsvc,
// chooses DE or CE from userID alone and does not consult accessibility; tests use
// a resolver that returns a single store.
type StoreResolver interface {
	Store(userID int32, accessibility assettype.Accessibility) (*dbstore.Store, error)
}

// timestampBytes is how CreateTime/UpdateTime are rendered to the opaque BLOB
// columns dbstore.Row carries: wall-clock time as RFC 3339 UTC text with
// nanosecond precision.
func timestampBytes(t time.Time) []byte {
	return []byte(t.UTC().Format(time.RFC3339Nano))
}

// secondsToDuration interprets AuthValidityPeriod's wire value (whole seconds) as
// a time.Duration (§4.6.4).
func secondsToDuration(seconds uint32) time.Duration {
	return time.Duration(seconds) * time.Second
}
