package callerinfo

import (
	"fmt"

	"github.com/armorclaw/assetstore/internal/assettype"
)

// LocalResolver is a minimal Resolver for deployments with no host account/bundle
// manager to delegate to: it treats the raw calling uid as both the user id and a
// Native process identity. Production wiring on a real device replaces this with an
// adapter over the host's actual CallerResolver capability (§1); this type exists so
// the service has something to boot against without one.
type LocalResolver struct{}

// Resolve implements Resolver.
func (LocalResolver) Resolve(callingUID uint64) (Identity, error) {
	return Identity{
		UserID:      int32(callingUID),
		OwnerType:   assettype.OwnerNative,
		ProcessName: fmt.Sprintf("uid:%d", callingUID),
		Permissions: map[string]bool{},
	}, nil
}

var _ Resolver = LocalResolver{}
