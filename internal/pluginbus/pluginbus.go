// Package pluginbus defines the external plugin/event-bus capability (§1, §6.4):
// the deliberately out-of-scope collaborator that carries Sync, CleanCloudFlag,
// DeleteCloudData, OnAppCall, and OnDeviceUpgrade notifications out of the core.
// Grounded on the teacher's pkg/eventbus for the publish/subscribe shape, reduced
// to the fixed, closed event set §6.4 specifies instead of an open topic string.
package pluginbus

import "github.com/armorclaw/assetstore/internal/callerinfo"

// EventType is the closed set of notifications the core can raise (§6.4).
type EventType int

const (
	EventSync EventType = iota
	EventCleanCloudFlag
	EventDeleteCloudData
	EventOnAppCall
	EventOnDeviceUpgrade
)

func (e EventType) String() string {
	switch e {
	case EventSync:
		return "Sync"
	case EventCleanCloudFlag:
		return "CleanCloudFlag"
	case EventDeleteCloudData:
		return "DeleteCloudData"
	case EventOnAppCall:
		return "OnAppCall"
	case EventOnDeviceUpgrade:
		return "OnDeviceUpgrade"
	default:
		return "Unknown"
	}
}

// Event is one notification raised by the core toward the external plugin surface.
type Event struct {
	Type  EventType
	Scope callerinfo.Scope
	Alias []byte // present for per-record events; nil for bus-wide events
}

// Bus is the abstract plugin bus. Production wiring forwards to the host's sync
// service and cloud-data-clear admin surface; this package only consumes it.
type Bus interface {
	Publish(Event)
}

// NopBus discards every event. Used where no plugin surface is wired yet (tests,
// minimal deployments).
type NopBus struct{}

// Publish implements Bus.
func (NopBus) Publish(Event) {}

var _ Bus = NopBus{}
