package signal

import (
	"encoding/json"

	"github.com/dkeye/Consult/internal/adapters/rtc"
	"github.com/dkeye/Consult/internal/adapters/wire"
	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/security"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

func (ctl *Controller) handleMedia(p *peer, data []byte) {
	typ, err := wire.TypeOf(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}

	switch typ {
	case wire.TypeJoin:
		ctl.handleMediaJoin(p, data)
	case wire.TypeOffer:
		ctl.handleOffer(p, data)
	case wire.TypeCandidate:
		ctl.handleCandidate(p, data)
	case wire.TypeLeave:
		ctl.handleMediaLeave(p)
	case wire.TypePing:
		ctl.sendJSON(p.conn, wire.Simple(wire.TypePong))
	default:
		log.Warn().Str("module", "signal").Str("type", typ).Msg("unknown media message")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrUnknownMessage))
	}
}

func (ctl *Controller) handleMediaJoin(p *peer, data []byte) {
	if p.member != nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrAlreadyIn))
		return
	}
	var req wire.Join
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}
	member, ch, err := ctl.Orch.Admit(security.PlaneMedia, req.AppID, req.UID, req.Token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("uid", string(req.UID)).Msg("media join rejected")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrUnauthorized))
		return
	}
	if req.Channel != ch {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrForbidden))
		return
	}

	sess := core.NewMemberSession(member).UpdateSignal(p.conn)
	ctl.Orch.Registry.Bind(p.sid, app.PlaneMedia, sess, p.cancel)
	if err := ctl.Orch.JoinMedia(p.sid, ch); err != nil {
		ctl.Orch.Registry.Unbind(p.sid)
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotJoined))
		return
	}
	p.member = member
	p.authorized = ch
	p.joined = true

	log.Info().Str("module", "signal").Str("sid", string(p.sid)).Str("uid", string(member.User.ID)).Str("channel", string(ch)).Msg("media join")
	ctl.sendJSON(p.conn, wire.Joined{Type: wire.TypeJoined, Channel: ch})
}

func (ctl *Controller) handleOffer(p *peer, data []byte) {
	if !p.joined {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotJoined))
		return
	}
	var req wire.SDP
	if err := json.Unmarshal(data, &req); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad offer payload")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}
	sess, ok := ctl.Orch.Registry.GetSession(p.sid)
	if !ok {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotJoined))
		return
	}
	offer := webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: req.SDP}

	// Renegotiation on a live connection.
	if mc := sess.Media(); mc != nil && !mc.IsClosed() {
		answer, err := mc.ApplyOfferAndCreateAnswer(offer)
		if err != nil {
			log.Error().Err(err).Str("module", "signal").Str("sid", string(p.sid)).Msg("webrtc renegotiate")
			ctl.sendJSON(p.conn, wire.NewError(wire.ErrNegotiation))
			return
		}
		ctl.sendJSON(p.conn, wire.SDP{Type: wire.TypeAnswer, SDP: answer.SDP})
		return
	}

	wc, err := rtc.NewConnection(ctl.RTC, p.sid)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc new pc")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNegotiation))
		return
	}
	wc.OnICECandidate(func(ci webrtc.ICECandidateInit) {
		ctl.sendJSON(p.conn, wire.NewCandidate(ci))
	})
	ctl.Orch.BindMediaHandlers(wc, p.sid)

	if err = wc.Start(p.ctx); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc start")
		wc.Close()
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNegotiation))
		return
	}
	sess.UpdateMedia(wc)

	answer, err := wc.ApplyOfferAndCreateAnswer(offer)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("webrtc apply offer")
		wc.Close()
		sess.UpdateMedia(nil)
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNegotiation))
		return
	}

	ctl.sendJSON(p.conn, wire.SDP{Type: wire.TypeAnswer, SDP: answer.SDP})
	ctl.Orch.OnMediaReady(p.sid)
}

func (ctl *Controller) handleCandidate(p *peer, data []byte) {
	var req wire.Candidate
	if err := json.Unmarshal(data, &req); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad candidate payload")
		return
	}
	sess, ok := ctl.Orch.Registry.GetSession(p.sid)
	if !ok {
		log.Warn().Str("module", "signal").Str("sid", string(p.sid)).Msg("candidate: no session for")
		return
	}
	mc := sess.Media()
	if mc == nil {
		log.Warn().Str("module", "signal").Str("sid", string(p.sid)).Msg("candidate: no media connection for")
		return
	}
	if err := mc.AddICECandidate(req.Init()); err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("add ice candidate")
	}
}

func (ctl *Controller) handleMediaLeave(p *peer) {
	if p.joined {
		ctl.Orch.LeaveMedia(p.sid)
		ctl.Orch.Registry.Unbind(p.sid)
	}
	p.member = nil
	p.joined = false
	p.authorized = ""
	ctl.sendJSON(p.conn, wire.Simple(wire.TypeLeft))
}
