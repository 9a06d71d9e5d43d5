package session

import (
	"context"
	"time"

	"github.com/dkeye/Consult/internal/app/fsm"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

// Run ticks the phase clock at 1 Hz, drives auto-join and pushes readiness
// changes to the counterpart. When ctx ends the session is left.
// An in-flight join is not cancelled; the leave waits for it.
func (o *Orchestrator) Run(ctx context.Context) error {
	t := time.NewTicker(TickInterval)
	defer t.Stop()
	o.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			o.inflight.Wait()
			o.LeaveSession(context.WithoutCancel(ctx))
			return nil
		case <-t.C:
			o.tick(ctx)
		case <-o.presence:
			o.syncPresence(ctx)
		}
	}
}

// tick refreshes the phase and fires at most one auto-join attempt.
func (o *Orchestrator) tick(ctx context.Context) {
	s, err := o.machine.Dispatch(ctx, fsm.Tick{Now: o.deps.Clock.Now()})
	if err != nil {
		o.log.Error().Err(err).Msg("tick rejected")
		return
	}
	if !o.autoJoin.Load() || o.joined.Load() || o.joining.Load() {
		return
	}
	if s.Phase != domain.PhaseOpen || s.Status == domain.StatusCompleted || ctx.Err() != nil {
		return
	}
	epoch := o.leaves.Load()
	jctx := context.WithoutCancel(ctx)
	o.inflight.Add(1)
	go func() {
		defer o.inflight.Done()
		if err := o.join(jctx, true, epoch); err != nil {
			o.log.Info().Err(err).Msg("auto-join attempt failed")
		}
	}()
}

func (o *Orchestrator) syncPresence(ctx context.Context) {
	if !o.joined.Load() {
		return
	}
	me := o.State().Participant(o.cfg.Self.Role)
	if me == nil {
		return
	}
	if err := o.deps.Signaling.SetPresence(ctx, me.Ready); err != nil {
		o.swallow("signaling.SetPresence", err)
	}
}

// onPeerEvent folds signaling-plane roster and status changes into the state machine.
func (o *Orchestrator) onPeerEvent(ev core.PeerEvent) {
	ctx := context.Background()
	var a fsm.Action
	switch ev.Type {
	case core.PeerJoined, core.PeerUpdated:
		if ev.Member.Role == o.cfg.Self.Role {
			return
		}
		a = fsm.PeerJoined{Participant: domain.Participant{
			UserID:      ev.Member.ID,
			Role:        ev.Member.Role,
			DisplayName: ev.Member.DisplayName,
			Ready:       ev.Member.Ready,
		}}
	case core.PeerLeft:
		if ev.Member.Role == o.cfg.Self.Role {
			return
		}
		a = fsm.PeerLeft{Role: ev.Member.Role}
	case core.PeerSessionStatus:
		a = fsm.SyncStatus{Status: ev.Status}
	case core.PeerChat:
		o.log.Info().Str("from", string(ev.Member.ID)).Str("text", ev.Text).Msg("chat")
		return
	default:
		o.log.Debug().Str("type", string(ev.Type)).Msg("peer event ignored")
		return
	}
	if _, err := o.machine.Dispatch(ctx, a); err != nil {
		o.log.Warn().Str("action", a.Name()).Err(err).Msg("peer event rejected")
	}
}

// onRemotePublished subscribes to whatever the counterpart publishes. Tracks
// can arrive while the rest of the join is still running.
func (o *Orchestrator) onRemotePublished(remote core.RemoteParticipant, kind core.MediaKind) {
	if !o.mediaUp.Load() {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.JoinTimeout)
		defer cancel()
		if err := o.deps.Media.Subscribe(ctx, remote, kind); err != nil {
			o.swallow("media.Subscribe", err)
			return
		}
		o.log.Info().Str("remote", string(remote.UserID)).Str("kind", string(kind)).Msg("subscribed")
	}()
}
