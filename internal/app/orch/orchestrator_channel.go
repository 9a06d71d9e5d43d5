package orch

import (
	"errors"

	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/security"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotAdmitted   = errors.New("session not admitted")
	ErrWrongChannel  = errors.New("token not valid for channel")
	ErrWrongIdentity = errors.New("token not valid for user")
)

// Admit consumes a media or signaling token presented by uid and returns the
// member it admits and the channel it is scoped to.
func (o *Orchestrator) Admit(plane security.Plane, appID string, uid domain.UserID, token string) (*domain.Member, domain.ChannelID, error) {
	claims, err := o.Tokens.Consume(token, plane)
	if err != nil {
		return nil, "", err
	}
	if claims.AppID != appID {
		return nil, "", security.ErrInvalidToken
	}
	if domain.UserID(claims.Subject) != uid {
		return nil, "", ErrWrongIdentity
	}
	name := string(uid)
	if len(name) > domain.MaxDisplayNameLen {
		name = name[:domain.MaxDisplayNameLen]
	}
	user, err := domain.NewUser(uid, name)
	if err != nil {
		return nil, "", err
	}
	return domain.NewMember(user, claims.Role), claims.Channel, nil
}

// JoinChannel adds the signaling session sid to ch. A session already in
// another channel is moved.
func (o *Orchestrator) JoinChannel(sid core.SessionID, ch domain.ChannelID) (core.ChannelService, error) {
	sess, ok := o.Registry.GetSession(sid)
	if !ok {
		return nil, ErrNotAdmitted
	}
	if cur, _, ok := o.Registry.ChannelOf(sid); ok {
		if cur == ch {
			return o.Channels.GetOrCreate(ch), nil
		}
		o.LeaveChannel(sid)
	}
	channel := o.Channels.GetOrCreate(ch)
	channel.AddMember(sid, sess)
	o.Registry.UpdateChannel(sid, ch)
	o.record(ch, "member_joined", sess.Meta())
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("channel", string(ch)).Msg("joined channel")
	return channel, nil
}

// LeaveChannel removes sid from its channel and drops the channel once empty.
// It reports the channel left, if any.
func (o *Orchestrator) LeaveChannel(sid core.SessionID) (domain.ChannelID, bool) {
	chID, sess, ok := o.Registry.ChannelOf(sid)
	if !ok {
		return "", false
	}
	o.Registry.RemoveChannel(sid)
	if ch, ok := o.Channels.Get(chID); ok {
		ch.RemoveMember(sid)
		if ch.MemberCount() == 0 && len(o.Registry.MembersOfChannel(chID, app.PlaneMedia)) == 0 {
			o.Channels.Stop(chID)
		}
	}
	if plane, _ := o.Registry.PlaneOf(sid); plane == app.PlaneSignaling {
		o.record(chID, "member_left", sess.Meta())
	}
	log.Info().Str("module", "orch").Str("sid", string(sid)).Str("channel", string(chID)).Msg("left channel")
	return chID, true
}

// KickBySID drops sid from the relay and cancels its connection.
func (o *Orchestrator) KickBySID(sid core.SessionID) {
	o.cleanupMedia(sid)
	o.LeaveChannel(sid)
	o.Registry.Cancel(sid)
}

func (o *Orchestrator) EvictChannel(ch domain.ChannelID) {
	for _, plane := range []app.Plane{app.PlaneSignaling, app.PlaneMedia} {
		for _, snap := range o.Registry.MembersOfChannel(ch, plane) {
			o.KickBySID(snap.SID)
		}
	}
	o.Channels.Stop(ch)
}
