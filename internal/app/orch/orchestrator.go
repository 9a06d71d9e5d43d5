// Package orch is the relay server's channel orchestrator: it admits token
// holders to channels, fans signaling frames out and wires the SFU.
package orch

import (
	"context"
	"time"

	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/sfu"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/security"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	Registry *app.Registry
	Channels core.ChannelManager
	Policy   app.Policy
	Relays   *sfu.RelayManager
	Tokens   *security.TokenProvider
	Sink     core.EventSink
}

// OnFrame fans a signaling frame from sid out to its channel and applies the
// backpressure policy to members that could not take it.
func (o *Orchestrator) OnFrame(sid core.SessionID, data core.Frame) core.PublishResult {
	chID, _, ok := o.Registry.ChannelOf(sid)
	if !ok {
		return core.PublishResult{}
	}
	ch, ok := o.Channels.Get(chID)
	if !ok {
		return core.PublishResult{}
	}

	res := ch.Broadcast(sid, data)
	if o.Policy == nil {
		return res
	}
	for _, slow := range res.Dropped {
		switch o.Policy.OnBackPressure(ch, slow) {
		case app.KickMember:
			for _, snap := range o.Registry.MembersOfChannel(chID, app.PlaneSignaling) {
				if snap.Session == slow {
					log.Warn().Str("module", "orch").Str("sid", string(snap.SID)).Msg("kicking slow member")
					o.KickBySID(snap.SID)
				}
			}
		case app.MarkSlow, app.DropFrame, app.NoAction:
		}
	}
	return res
}

func (o *Orchestrator) record(ch domain.ChannelID, action string, m *domain.Member) {
	if o.Sink == nil {
		return
	}
	actor := ""
	if m != nil {
		actor = string(m.Role) + ":" + string(m.User.ID)
	}
	o.Sink.Record(context.Background(), core.Event{
		ID:        uuid.NewString(),
		DisplayID: string(ch),
		Action:    action,
		Actor:     actor,
		At:        time.Now().UTC(),
	})
}
