package signal

import (
	"encoding/json"
	"strings"

	"github.com/dkeye/Consult/internal/adapters/wire"
	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/security"
	"github.com/rs/zerolog/log"
)

const maxChatLen = 2000

func (ctl *Controller) handleSignal(p *peer, data []byte) {
	typ, err := wire.TypeOf(data)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("bad json")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}

	switch typ {
	case wire.TypeLogin:
		ctl.handleLogin(p, data)
	case wire.TypeJoin:
		ctl.handleJoin(p, data)
	case wire.TypePresence:
		ctl.handlePresence(p, data)
	case wire.TypeStatus:
		ctl.handleStatus(p, data)
	case wire.TypeChat:
		ctl.handleChat(p, data)
	case wire.TypeLogout:
		ctl.handleLogout(p)
	case wire.TypePing:
		ctl.sendJSON(p.conn, wire.Simple(wire.TypePong))
	default:
		log.Warn().Str("module", "signal").Str("type", typ).Msg("unknown signal")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrUnknownMessage))
	}
}

func (ctl *Controller) handleLogin(p *peer, data []byte) {
	if p.member != nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrAlreadyIn))
		return
	}
	var req wire.Login
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}
	member, ch, err := ctl.Orch.Admit(security.PlaneSignaling, req.AppID, req.UID, req.Token)
	if err != nil {
		log.Warn().Err(err).Str("module", "signal").Str("uid", string(req.UID)).Msg("login rejected")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrUnauthorized))
		return
	}
	if req.Name != "" {
		if err := member.User.SetDisplayName(req.Name); err != nil {
			ctl.sendJSON(p.conn, wire.NewError(wire.ErrInvalidName))
			return
		}
	}

	sess := core.NewMemberSession(member).UpdateSignal(p.conn)
	ctl.Orch.Registry.Bind(p.sid, app.PlaneSignaling, sess, p.cancel)
	p.member = member
	p.authorized = ch

	log.Info().Str("module", "signal").Str("sid", string(p.sid)).Str("uid", string(member.User.ID)).Str("role", string(member.Role)).Msg("login")
	ctl.sendJSON(p.conn, wire.LoginOK{Type: wire.TypeLoginOK, UID: member.User.ID, Role: member.Role, Channel: ch})
}

func (ctl *Controller) handleJoin(p *peer, data []byte) {
	if p.member == nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotLoggedIn))
		return
	}
	var req wire.Join
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}
	if req.Channel != p.authorized {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrForbidden))
		return
	}

	ch, err := ctl.Orch.JoinChannel(p.sid, req.Channel)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(p.sid)).Msg("join")
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotLoggedIn))
		return
	}
	p.joined = true

	ctl.sendJSON(p.conn, wire.ChannelState{
		Type:    wire.TypeChannelState,
		Channel: req.Channel,
		Members: ch.MembersSnapshot(),
		Count:   ch.MemberCount(),
	})
	ctl.Orch.OnFrame(p.sid, ctl.marshal(wire.MemberEvent{
		Type:   wire.TypeMemberJoined,
		Member: core.NewMemberDTO(p.member),
	}))
}

func (ctl *Controller) handlePresence(p *peer, data []byte) {
	if !p.joined {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotInChannel))
		return
	}
	var req wire.Presence
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}
	ch, ok := ctl.Orch.Channels.Get(p.authorized)
	if !ok {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotInChannel))
		return
	}
	dto, ok := ch.SetReady(p.sid, req.Ready)
	if !ok {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotInChannel))
		return
	}
	ctl.Orch.OnFrame(p.sid, ctl.marshal(wire.MemberEvent{Type: wire.TypeMemberUpdated, Member: dto}))
}

func (ctl *Controller) handleStatus(p *peer, data []byte) {
	if !p.joined {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotInChannel))
		return
	}
	var req wire.Status
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}
	if req.Status != domain.StatusActive && req.Status != domain.StatusCompleted {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrInvalidStatus))
		return
	}
	dto := core.NewMemberDTO(p.member)
	ctl.Orch.OnFrame(p.sid, ctl.marshal(wire.Status{Type: wire.TypeSessionStatus, Status: req.Status, Member: &dto}))
}

func (ctl *Controller) handleChat(p *peer, data []byte) {
	if !p.joined {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrNotInChannel))
		return
	}
	var req wire.Chat
	if err := json.Unmarshal(data, &req); err != nil {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" || len(text) > maxChatLen {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrBadPayload))
		return
	}
	if !ctl.Limiter.Allow(p.member.User.ID) {
		ctl.sendJSON(p.conn, wire.NewError(wire.ErrRateLimited))
		return
	}
	dto := core.NewMemberDTO(p.member)
	ctl.Orch.OnFrame(p.sid, ctl.marshal(wire.Chat{Type: wire.TypeChat, Text: text, From: &dto}))
}

// handleLogout leaves the channel and drops the login; the socket stays open.
func (ctl *Controller) handleLogout(p *peer) {
	ctl.leaveChannel(p)
	if p.member != nil {
		ctl.Limiter.Forget(p.member.User.ID)
		ctl.Orch.Registry.Unbind(p.sid)
	}
	p.member = nil
	p.authorized = ""
	ctl.sendJSON(p.conn, wire.Simple(wire.TypeLoggedOut))
}

func (ctl *Controller) leaveChannel(p *peer) {
	if !p.joined {
		return
	}
	p.joined = false
	ctl.Orch.OnFrame(p.sid, ctl.marshal(wire.MemberEvent{
		Type:   wire.TypeMemberLeft,
		Member: core.NewMemberDTO(p.member),
	}))
	ctl.Orch.LeaveChannel(p.sid)
}
