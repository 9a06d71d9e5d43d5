package sfu

import (
	"sync/atomic"

	"github.com/dkeye/Consult/internal/core"
	"github.com/pion/webrtc/v4"
)

type TrackState int32

const (
	TrackStateOk TrackState = iota
	TrackStateMuted
	TrackStateDelete
)

// OutTrack is one forwarded copy of a published track on a subscriber's
// PeerConnection.
type OutTrack struct {
	Track  *webrtc.TrackLocalStaticRTP
	Sender *webrtc.RTPSender
	Dst    core.SessionID
	state  atomic.Int32 // Zero by default (TrackStateOk)
}

func NewOutTrack(dst core.SessionID, track *webrtc.TrackLocalStaticRTP, sender *webrtc.RTPSender) *OutTrack {
	return &OutTrack{Track: track, Sender: sender, Dst: dst}
}

func (ot *OutTrack) GetState() TrackState {
	return TrackState(ot.state.Load())
}

func (ot *OutTrack) MarkOk() {
	ot.state.Store(int32(TrackStateOk))
}

func (ot *OutTrack) MarkMuted() {
	ot.state.Store(int32(TrackStateMuted))
}

func (ot *OutTrack) MarkDelete() {
	ot.state.Store(int32(TrackStateDelete))
}
