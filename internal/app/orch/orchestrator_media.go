package orch

import (
	"context"

	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/sfu"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

// RenegotiateFrame asks a media client to send a fresh offer.
var RenegotiateFrame = core.Frame(`{"type":"renegotiate"}`)

// JoinMedia places the media session sid in ch. Subscriptions start once the
// PeerConnection is up (OnMediaReady).
func (o *Orchestrator) JoinMedia(sid core.SessionID, ch domain.ChannelID) error {
	if _, ok := o.Registry.GetSession(sid); !ok {
		return ErrNotAdmitted
	}
	o.Registry.UpdateChannel(sid, ch)
	return nil
}

func (o *Orchestrator) BindMediaHandlers(mc core.MediaConnection, sid core.SessionID) {
	mc.OnTrack(func(trackCtx context.Context, track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		o.OnTrack(trackCtx, sid, track)
	})
	mc.OnClosed(func() { o.OnMediaDisconnect(sid) })
}

func (o *Orchestrator) OnMediaDisconnect(sid core.SessionID) {
	o.cleanupMedia(sid)
}

// LeaveMedia tears down sid's PeerConnection and leaves the channel.
func (o *Orchestrator) LeaveMedia(sid core.SessionID) {
	o.cleanupMedia(sid)
	o.Registry.RemoveChannel(sid)
}

func (o *Orchestrator) cleanupMedia(sid core.SessionID) {
	if o.Relays != nil {
		o.Relays.StopRelays(sid)
		o.Relays.Unsubscribe(sid)
	}

	if sess, ok := o.Registry.GetSession(sid); ok {
		if mc := sess.Media(); mc != nil && !mc.IsClosed() {
			mc.Close()
		}
	}
}

// OnTrack is called when a new remote media track appears for a given session.
func (o *Orchestrator) OnTrack(ctx context.Context, sid core.SessionID, track *webrtc.TrackRemote) {
	if o.Relays == nil {
		return
	}
	sess, ok := o.Registry.GetSession(sid)
	if !ok || sess.Media() == nil {
		return
	}
	chID, _, ok := o.Registry.ChannelOf(sid)
	if !ok {
		log.Info().
			Str("module", "sfu").
			Str("sid", string(sid)).
			Msg("OnTrack: no channel for sid")
		return
	}

	key := sfu.TrackKey{SID: sid, TrackID: track.ID()}
	o.Relays.StartRelay(ctx, key, sess.Meta().User.ID, track, o.onRelayEnded)

	// Subscribe every other member of the channel to the new track.
	for _, snap := range o.Registry.MembersOfChannel(chID, app.PlaneMedia) {
		if snap.SID == sid {
			continue
		}
		mc := snap.Session.Media()
		if mc == nil || mc.IsClosed() {
			continue
		}
		o.subscribe(key, snap)
	}
}

// OnMediaReady is called when MediaConnection is attached to the session (offer/answer done).
// It subscribes this member to every track already relayed in the channel.
func (o *Orchestrator) OnMediaReady(sid core.SessionID) {
	if o.Relays == nil {
		return
	}
	chID, sess, ok := o.Registry.ChannelOf(sid)
	if !ok || sess.Media() == nil {
		return
	}

	attached := false
	for _, snap := range o.Registry.MembersOfChannel(chID, app.PlaneMedia) {
		if snap.SID == sid {
			continue
		}
		for _, r := range o.Relays.RelaysOf(snap.SID) {
			ot, err := o.Relays.Subscribe(r.Key, sid, sess.Media())
			if err != nil {
				log.Error().Err(err).Str("module", "sfu").Str("sid", string(sid)).Msg("subscribe existing track")
				continue
			}
			attached = attached || ot != nil
		}
	}
	if attached {
		o.renegotiate(sid, sess)
	}
}

func (o *Orchestrator) subscribe(key sfu.TrackKey, dst app.RegSnap) {
	ot, err := o.Relays.Subscribe(key, dst.SID, dst.Session.Media())
	if err != nil {
		log.Error().Err(err).Str("module", "sfu").Str("dst_sid", string(dst.SID)).Msg("subscribe")
		return
	}
	if ot != nil {
		o.renegotiate(dst.SID, dst.Session)
	}
}

// onRelayEnded removes the forwarded copies of a track that stopped.
func (o *Orchestrator) onRelayEnded(r *sfu.Relay, detached []*sfu.OutTrack) {
	for _, ot := range detached {
		sess, ok := o.Registry.GetSession(ot.Dst)
		if !ok {
			continue
		}
		mc := sess.Media()
		if mc == nil || mc.IsClosed() {
			continue
		}
		if err := mc.RemoveSender(ot.Sender); err != nil {
			log.Warn().Err(err).Str("module", "sfu").Str("dst_sid", string(ot.Dst)).Msg("remove sender")
			continue
		}
		o.renegotiate(ot.Dst, sess)
	}
	log.Info().Str("module", "sfu").Str("src_sid", string(r.Key.SID)).Str("track_id", r.LocalID()).Msg("relay ended")
}

func (o *Orchestrator) renegotiate(sid core.SessionID, sess core.MemberSession) {
	sc := sess.Signal()
	if sc == nil {
		return
	}
	if err := sc.TrySend(RenegotiateFrame); err != nil {
		log.Warn().Err(err).Str("module", "sfu").Str("sid", string(sid)).Msg("renegotiate")
	}
}
