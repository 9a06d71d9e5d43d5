package sfu

import (
	"context"
	"maps"
	"sync"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/rtp"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"
)

// TrackKey identifies one published track: a publisher session may carry a
// microphone, a camera and a screen at once.
type TrackKey struct {
	SID     core.SessionID
	TrackID string
}

type Relay struct {
	Key       TrackKey
	Publisher domain.UserID
	Src       *webrtc.TrackRemote

	mu        sync.RWMutex
	outTracks map[core.SessionID]*OutTrack

	cancel  context.CancelFunc
	onEnded func(*Relay, []*OutTrack)
}

func NewRelay(key TrackKey, publisher domain.UserID, src *webrtc.TrackRemote, cancel context.CancelFunc) *Relay {
	return &Relay{
		Key:       key,
		Publisher: publisher,
		Src:       src,
		outTracks: make(map[core.SessionID]*OutTrack),
		cancel:    cancel,
	}
}

// Kind is the media kind of the source track.
func (r *Relay) Kind() core.MediaKind {
	if r.Src.Kind() == webrtc.RTPCodecTypeVideo {
		return core.KindVideo
	}
	return core.KindAudio
}

// LocalID is the track id subscribers see. A publisher's camera and screen
// share a kind, so the source track id keeps them apart.
func (r *Relay) LocalID() string {
	return string(r.Kind()) + "-" + string(r.Publisher) + "-" + r.Key.TrackID
}

// loop reads RTP packets from the source track and forwards them to all OutTracks.
func (r *Relay) loop(ctx context.Context, logger *zerolog.Logger) {
	defer r.end()
	for {
		select {
		case <-ctx.Done():
			logger.Info().Msg("relay ctx done, marking all out tracks for delete")
			return
		default:
		}
		pkt, _, err := r.Src.ReadRTP()
		if err != nil {
			logger.Info().Err(err).Msg("relay source ended, stopping")
			return
		}
		r.forward(pkt, logger)
	}
}

func (r *Relay) forward(pkt *rtp.Packet, logger *zerolog.Logger) {
	r.mu.RLock()
	snapshot := make(map[core.SessionID]*OutTrack, len(r.outTracks))
	maps.Copy(snapshot, r.outTracks)
	r.mu.RUnlock()

	dirty := make([]core.SessionID, 0, len(snapshot))
	for dstSID, ot := range snapshot {
		switch ot.GetState() {
		case TrackStateDelete:
			dirty = append(dirty, dstSID)
		case TrackStateMuted:
		case TrackStateOk:
			if err := ot.Track.WriteRTP(pkt); err != nil {
				logger.Error().
					Err(err).
					Str("dst_sid", string(dstSID)).
					Msg("relay write RTP error, marking outtrack as delete")
				ot.MarkDelete()
				dirty = append(dirty, dstSID)
			}
		}
	}

	// Cleanup is done outside the RLock.
	if len(dirty) > 0 {
		r.cleanupDeleted(dirty)
	}
}

func (r *Relay) cleanupDeleted(dirty []core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, sid := range dirty {
		delete(r.outTracks, sid)
	}
}

// end detaches every OutTrack and hands them to onEnded so their senders can be
// removed from the subscribers' PeerConnections.
func (r *Relay) end() {
	r.mu.Lock()
	detached := make([]*OutTrack, 0, len(r.outTracks))
	for sid, ot := range r.outTracks {
		ot.MarkDelete()
		detached = append(detached, ot)
		delete(r.outTracks, sid)
	}
	onEnded := r.onEnded
	r.mu.Unlock()
	if onEnded != nil {
		onEnded(r, detached)
	}
}

func (r *Relay) AddOutTrack(ot *OutTrack) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outTracks[ot.Dst] = ot
}

// RemoveOutTrack detaches dst's copy and returns it.
func (r *Relay) RemoveOutTrack(dst core.SessionID) (*OutTrack, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ot, ok := r.outTracks[dst]
	if ok {
		ot.MarkDelete()
		delete(r.outTracks, dst)
	}
	return ot, ok
}

func (r *Relay) HasSubscriber(dst core.SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.outTracks[dst]
	return ok
}
