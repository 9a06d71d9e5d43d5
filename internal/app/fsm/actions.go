package fsm

import (
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

// Action is a typed input to Reduce. The set is closed: only the types in
// this file are accepted.
type Action interface {
	Name() string
	action()
}

// Tick refreshes phase and remaining time from the clock.
type Tick struct{ Now time.Time }

// Join marks the acting participant online, creating its entry on first join.
type Join struct {
	Participant domain.Participant
	Now         time.Time
}

// Leave takes a participant offline and clears its readiness.
type Leave struct{ Role domain.Role }

type SetReady struct {
	Role  domain.Role
	Ready bool
}

type Start struct{}

type End struct{}

// DevicePatch is a partial DeviceStatus; nil fields are left untouched.
type DevicePatch struct {
	Camera               *bool
	Microphone           *bool
	Speaker              *bool
	CameraPermission     *bool
	MicrophonePermission *bool
}

type UpdateDeviceStatus struct {
	Role  domain.Role
	Patch DevicePatch
}

// NetworkPatch is a partial NetworkQuality. The bucket follows RTTMs.
type NetworkPatch struct {
	RTTMs         *int
	BandwidthKbps *int
	At            time.Time
}

type UpdateNetworkQuality struct {
	Role  domain.Role
	Patch NetworkPatch
}

// PeerJoined reflects the counterpart appearing on the signaling plane.
type PeerJoined struct{ Participant domain.Participant }

// PeerLeft reflects the counterpart disappearing from the signaling plane.
type PeerLeft struct{ Role domain.Role }

// PeerReady reflects the counterpart's announced readiness.
type PeerReady struct {
	Role  domain.Role
	Ready bool
}

// SyncStatus applies a status announced by the counterpart.
type SyncStatus struct{ Status domain.Status }

func (Tick) Name() string                 { return "tick" }
func (Join) Name() string                 { return "join" }
func (Leave) Name() string                { return "leave" }
func (SetReady) Name() string             { return "set_ready" }
func (Start) Name() string                { return "start" }
func (End) Name() string                  { return "end" }
func (UpdateDeviceStatus) Name() string   { return "update_device_status" }
func (UpdateNetworkQuality) Name() string { return "update_network_quality" }
func (PeerJoined) Name() string           { return "peer_joined" }
func (PeerLeft) Name() string             { return "peer_left" }
func (PeerReady) Name() string            { return "peer_ready" }
func (SyncStatus) Name() string           { return "sync_status" }

func (Tick) action()                 {}
func (Join) action()                 {}
func (Leave) action()                {}
func (SetReady) action()             {}
func (Start) action()                {}
func (End) action()                  {}
func (UpdateDeviceStatus) action()   {}
func (UpdateNetworkQuality) action() {}
func (PeerJoined) action()           {}
func (PeerLeft) action()             {}
func (PeerReady) action()            {}
func (SyncStatus) action()           {}
