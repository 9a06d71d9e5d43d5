package session

import (
	"context"
	"time"

	"github.com/dkeye/Consult/internal/app/fsm"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/errs"
)

// JoinSession enters the room: fresh tokens, media channel, signaling channel,
// then the acting participant goes online. It is a no-op outside the OPEN phase,
// after completion, while another join is in flight, or when already joined.
// On failure nothing is left half-joined.
func (o *Orchestrator) JoinSession(ctx context.Context) error {
	return o.join(ctx, false, 0)
}

// join is JoinSession; an auto attempt is dropped when a leave happened after
// epoch was read or auto-join has been disarmed meanwhile.
func (o *Orchestrator) join(ctx context.Context, auto bool, epoch uint64) error {
	const op = "session.JoinSession"
	if !o.joining.CompareAndSwap(false, true) {
		return nil
	}
	defer o.joining.Store(false)

	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()
	if o.joined.Load() {
		return nil
	}
	if auto && (o.leaves.Load() != epoch || !o.autoJoin.Load()) {
		o.log.Debug().Msg("auto-join dropped after leave")
		return nil
	}

	now := o.deps.Clock.Now()
	s, err := o.machine.Dispatch(ctx, fsm.Tick{Now: now})
	if err != nil {
		return err
	}
	if s.Phase != domain.PhaseOpen || s.Status == domain.StatusCompleted {
		o.log.Debug().Str("phase", string(s.Phase)).Str("status", string(s.Status)).Msg("join ignored")
		return nil
	}

	jctx, cancel := context.WithTimeout(ctx, o.cfg.JoinTimeout)
	defer cancel()

	self := o.cfg.Self
	tokens, err := o.deps.Tokens.IssueTokens(jctx, o.displayID, core.TokenRequest{UserID: self.UserID, Role: self.Role})
	if err != nil {
		return o.fail(op, classify(err, errs.TokenIssuanceFailed), err)
	}
	if err := o.deps.Media.Join(jctx, tokens.AppID, tokens.Channel, tokens.MediaToken, self.UserID); err != nil {
		o.rollback(ctx, false)
		return o.fail(op, classify(err, errs.TransportJoinFailed), err)
	}
	o.mediaUp.Store(true)
	if err := o.deps.Signaling.Login(jctx, tokens.AppID, self.UserID, tokens.SignalingToken); err != nil {
		o.rollback(ctx, false)
		return o.fail(op, classify(err, errs.TransportJoinFailed), err)
	}
	if err := o.deps.Signaling.JoinChannel(jctx, tokens.Channel); err != nil {
		o.rollback(ctx, true)
		return o.fail(op, classify(err, errs.TransportJoinFailed), err)
	}

	o.pendingMu.Lock()
	self.Device = o.pendingDevice
	network := o.pendingNetwork
	o.pendingMu.Unlock()
	s, err = o.machine.Dispatch(ctx, fsm.Join{Participant: self, Now: o.deps.Clock.Now()})
	if err != nil {
		o.rollback(ctx, true)
		return o.fail(op, errs.Unknown, err)
	}
	if network != nil {
		if err := o.applyNetwork(ctx, *network); err != nil {
			o.swallow("apply network quality", err)
		}
		s = o.State()
	}
	o.channel = tokens.Channel
	o.joined.Store(true)
	o.startStats()
	o.log.Info().Str("channel", string(tokens.Channel)).Str("status", string(s.Status)).Msg("joined session")

	if me := s.Participant(self.Role); me != nil && me.Ready {
		if err := o.deps.Signaling.SetPresence(ctx, true); err != nil {
			o.swallow("signaling.SetPresence", err)
		}
	}
	if o.cfg.PublishOnJoin {
		o.publishDefaults(ctx, s.Type)
	}
	return nil
}

func (o *Orchestrator) publishDefaults(ctx context.Context, typ domain.ConsultationType) {
	if typ == domain.ConsultationChat {
		return
	}
	if err := o.ToggleMicrophone(ctx); err != nil {
		o.swallow("publish microphone", err)
	}
	if typ == domain.ConsultationVideo {
		if err := o.ToggleCamera(ctx); err != nil {
			o.swallow("publish camera", err)
		}
	}
}

// rollback undoes a partial join, best-effort.
func (o *Orchestrator) rollback(ctx context.Context, signaling bool) {
	o.mediaUp.Store(false)
	tctx, cancel := teardownContext(ctx)
	defer cancel()
	if err := o.deps.Media.Leave(tctx); err != nil {
		o.swallow("rollback media.Leave", err)
	}
	if signaling {
		if err := o.deps.Signaling.Logout(tctx); err != nil {
			o.swallow("rollback signaling.Logout", err)
		}
	}
}

// LeaveSession tears everything down and takes the acting participant offline.
// It also disarms auto-join until SetAutoJoin re-arms it.
// Each step is best-effort; the call never fails and is safe to repeat.
func (o *Orchestrator) LeaveSession(ctx context.Context) {
	o.leaves.Add(1)
	if o.autoJoin.Swap(false) {
		o.log.Info().Msg("auto-join disarmed by leave")
	}
	o.lifecycle.Lock()
	defer o.lifecycle.Unlock()

	wasJoined := o.joined.Swap(false)
	o.mediaUp.Store(false)
	o.stopStats()

	tctx, cancel := teardownContext(ctx)
	defer cancel()

	o.releaseLocalMedia(tctx)
	if err := o.deps.Media.Leave(tctx); err != nil {
		o.swallow("media.Leave", err)
	}
	if err := o.deps.Signaling.Logout(tctx); err != nil {
		o.swallow("signaling.Logout", err)
	}

	if _, err := o.machine.Dispatch(tctx, fsm.Leave{Role: o.cfg.Self.Role}); err != nil {
		o.swallow("fsm.Leave", err)
	}
	o.channel = ""
	if wasJoined {
		o.log.Info().Msg("left session")
	}
}

// releaseLocalMedia unpublishes then stops every held local track.
func (o *Orchestrator) releaseLocalMedia(ctx context.Context) {
	o.media.Lock()
	defer o.media.Unlock()

	var published []core.LocalTrack
	if o.micOn && o.mic != nil {
		published = append(published, o.mic)
	}
	if o.camOn && o.cam != nil {
		published = append(published, o.cam)
	}
	if o.screenOn && o.screen != nil {
		published = append(published, o.screen)
	}
	if len(published) > 0 {
		if err := o.deps.Media.Unpublish(ctx, published...); err != nil {
			o.swallow("media.Unpublish", err)
		}
	}

	if o.mic != nil {
		stopTrack(o, "microphone", o.mic)
	}
	if o.cam != nil {
		stopTrack(o, "camera", o.cam)
	}
	if o.screen != nil {
		stopTrack(o, "screen", o.screen)
	}
	o.mic, o.cam, o.screen = nil, nil, nil
	o.micOn, o.camOn, o.screenOn, o.camBeforeShare = false, false, false, false
}

func stopTrack(o *Orchestrator, name string, t core.LocalTrack) {
	if err := t.Stop(); err != nil {
		o.swallow("stop "+name, err)
	}
}

// teardownContext outlives a cancelled caller so cleanup still reaches the network.
func teardownContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), teardownTimeout)
}

func (o *Orchestrator) startStats() {
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	o.statsCancel, o.statsDone = cancel, done
	go o.pollStats(ctx, done)
}

func (o *Orchestrator) stopStats() {
	if o.statsCancel == nil {
		return
	}
	o.statsCancel()
	<-o.statsDone
	o.statsCancel, o.statsDone = nil, nil
}

func (o *Orchestrator) pollStats(ctx context.Context, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(StatsInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			o.sampleStats(ctx)
		}
	}
}

// sampleStats mirrors one transport stats reading into the network quality.
// A negative RTT means the transport has no measurement.
func (o *Orchestrator) sampleStats(ctx context.Context) {
	st, err := o.deps.Media.Stats(ctx)
	if err != nil {
		if ctx.Err() == nil {
			o.log.Debug().Err(err).Msg("stats sample failed")
		}
		return
	}
	rtt := domain.RTTUnmeasured
	if st.RTT >= 0 {
		rtt = int(st.RTT.Milliseconds())
	}
	kbps := st.UplinkKbps
	_, err = o.machine.Dispatch(ctx, fsm.UpdateNetworkQuality{Role: o.cfg.Self.Role, Patch: fsm.NetworkPatch{
		RTTMs:         &rtt,
		BandwidthKbps: &kbps,
		At:            o.deps.Clock.Now(),
	}})
	if err != nil {
		o.log.Debug().Err(err).Msg("stats not applied")
	}
}
