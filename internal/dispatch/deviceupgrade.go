package dispatch

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/armorclaw/assetstore/internal/callerinfo"
	"github.com/armorclaw/assetstore/internal/pluginbus"
)

// HandleDeviceUpgrade answers extension call DeviceUpgradeExtensionCode (§6.3):
// the host's update coordinator invokes this after restoring a device backup, and
// it publishes pluginbus.EventOnDeviceUpgrade for the decoded user; no stored rows
// are read or changed here. The payload is a single little-endian i32 user id, matching the original's
// OnDeviceUpgrade plugin callback signature.
func (r *Router) HandleDeviceUpgrade(ctx context.Context, bus pluginbus.Bus, payload []byte) error {
	if len(payload) != 4 {
		return fmt.Errorf("device upgrade payload: want 4 bytes, got %d", len(payload))
	}
	userID := int32(binary.LittleEndian.Uint32(payload))

	bus.Publish(pluginbus.Event{
		Type:  pluginbus.EventOnDeviceUpgrade,
		Scope: callerinfo.Scope{UserID: userID},
	})
	return nil
}
