package core

//go:generate mockgen -destination=mocks/signaling.go -package=mocks github.com/dkeye/Consult/internal/core SignalingClient

import (
	"context"
	"time"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
)

type MediaKind string

const (
	KindAudio MediaKind = "audio"
	KindVideo MediaKind = "video"
)

type TrackSource string

const (
	SourceMicrophone TrackSource = "microphone"
	SourceCamera     TrackSource = "camera"
	SourceScreen     TrackSource = "screen"
)

// LocalTrack is a captured local source. The hardware handle behind it is
// owned by whoever opened it and released by Stop.
type LocalTrack interface {
	ID() string
	Kind() MediaKind
	Source() TrackSource
	DeviceID() string
	Label() string
	Track() webrtc.TrackLocal
	// Stop releases the hardware handle. Safe to call more than once.
	Stop() error
}

// AudioTrack is a microphone track with a live amplitude reading in [0,1].
type AudioTrack interface {
	LocalTrack
	Level() float64
}

type RemoteParticipant struct {
	UserID domain.UserID
}

// ConnectionStats is a transport-level sample of the uplink.
// RTT is negative until a round trip has been measured.
type ConnectionStats struct {
	RTT        time.Duration
	UplinkKbps int
}

// MediaTransport is the media plane the orchestrator drives.
// Join must complete before any Publish; Leave is safe without a prior Join.
type MediaTransport interface {
	Join(ctx context.Context, appID string, channel domain.ChannelID, token string, uid domain.UserID) error
	// Publish and Unpublish are idempotent per track.
	Publish(ctx context.Context, tracks ...LocalTrack) error
	Unpublish(ctx context.Context, tracks ...LocalTrack) error
	Subscribe(ctx context.Context, remote RemoteParticipant, kind MediaKind) error
	Leave(ctx context.Context) error
	Stats(ctx context.Context) (ConnectionStats, error)
	// OnRemotePublished registers the handler fired when a remote participant publishes.
	OnRemotePublished(func(RemoteParticipant, MediaKind))
}

type PeerEventType string

const (
	PeerJoined        PeerEventType = "member_joined"
	PeerLeft          PeerEventType = "member_left"
	PeerUpdated       PeerEventType = "member_updated"
	PeerSessionStatus PeerEventType = "session_status"
	PeerChat          PeerEventType = "chat"
)

// PeerEvent is a roster or status change received over the signaling plane.
type PeerEvent struct {
	Type   PeerEventType
	Member MemberDTO
	Status domain.Status
	Text   string
}

// SignalingClient is the signaling plane, independent of the media plane.
type SignalingClient interface {
	Login(ctx context.Context, appID string, uid domain.UserID, token string) error
	JoinChannel(ctx context.Context, channel domain.ChannelID) error
	SetPresence(ctx context.Context, ready bool) error
	AnnounceStatus(ctx context.Context, status domain.Status) error
	SendChat(ctx context.Context, text string) error
	Logout(ctx context.Context) error
	OnPeerEvent(func(PeerEvent))
}
