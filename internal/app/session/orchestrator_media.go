package session

import (
	"context"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/errs"
)

// ToggleMicrophone publishes or releases the microphone. No-op when not joined.
// On failure the flag keeps its previous value.
func (o *Orchestrator) ToggleMicrophone(ctx context.Context) error {
	const op = "session.ToggleMicrophone"
	if !o.joined.Load() {
		return nil
	}
	o.media.Lock()
	defer o.media.Unlock()

	if o.micOn {
		if err := o.deps.Media.Unpublish(ctx, o.mic); err != nil {
			return o.fail(op, classify(err, errs.Unknown), err)
		}
		stopTrack(o, "microphone", o.mic)
		o.mic, o.micOn = nil, false
		return nil
	}

	if o.mic == nil {
		mic, err := o.deps.Devices.OpenMicrophone(ctx)
		if err != nil {
			return o.fail(op, classify(err, errs.Unknown), err)
		}
		o.mic = mic
	}
	if err := o.deps.Media.Publish(ctx, o.mic); err != nil {
		stopTrack(o, "microphone", o.mic)
		o.mic = nil
		return o.fail(op, classify(err, errs.Unknown), err)
	}
	o.micOn = true
	return nil
}

// ToggleCamera publishes or releases the camera. While a screen share is live
// the camera stays off the wire and the toggle only changes whether it comes
// back when the share ends.
func (o *Orchestrator) ToggleCamera(ctx context.Context) error {
	const op = "session.ToggleCamera"
	if !o.joined.Load() {
		return nil
	}
	o.media.Lock()
	defer o.media.Unlock()

	if o.screenOn {
		o.camBeforeShare = !o.camBeforeShare
		if !o.camBeforeShare && o.cam != nil {
			stopTrack(o, "camera", o.cam)
			o.cam = nil
		}
		return nil
	}

	if o.camOn {
		if err := o.deps.Media.Unpublish(ctx, o.cam); err != nil {
			return o.fail(op, classify(err, errs.Unknown), err)
		}
		stopTrack(o, "camera", o.cam)
		o.cam, o.camOn = nil, false
		return nil
	}
	if err := o.publishCamera(ctx); err != nil {
		return o.fail(op, classify(err, errs.Unknown), err)
	}
	return nil
}

// publishCamera acquires the camera if needed and publishes it. Caller holds o.media.
func (o *Orchestrator) publishCamera(ctx context.Context) error {
	if o.cam == nil {
		cam, err := o.deps.Devices.OpenCamera(ctx)
		if err != nil {
			return err
		}
		o.cam = cam
	}
	if err := o.deps.Media.Publish(ctx, o.cam); err != nil {
		stopTrack(o, "camera", o.cam)
		o.cam = nil
		return err
	}
	o.camOn = true
	return nil
}

// ToggleScreenShare swaps the camera for a screen capture and back. Intended for
// the expert; the role is not enforced here.
func (o *Orchestrator) ToggleScreenShare(ctx context.Context) error {
	const op = "session.ToggleScreenShare"
	if !o.joined.Load() {
		return nil
	}
	if o.cfg.Self.Role != domain.RoleExpert {
		o.log.Warn().Msg("screen share toggled by non-expert role")
	}
	o.media.Lock()
	defer o.media.Unlock()

	if o.screenOn {
		if err := o.deps.Media.Unpublish(ctx, o.screen); err != nil {
			return o.fail(op, classify(err, errs.Unknown), err)
		}
		stopTrack(o, "screen", o.screen)
		o.screen, o.screenOn = nil, false
		restore := o.camBeforeShare
		o.camBeforeShare = false
		if restore {
			if err := o.publishCamera(ctx); err != nil {
				o.swallow("republish camera", err)
			}
		}
		return nil
	}

	screen, err := o.deps.Devices.OpenScreen(ctx)
	if err != nil {
		return o.fail(op, classify(err, errs.Unknown), err)
	}
	wasCam := o.camOn
	if wasCam {
		if err := o.deps.Media.Unpublish(ctx, o.cam); err != nil {
			stopTrack(o, "screen", screen)
			return o.fail(op, classify(err, errs.Unknown), err)
		}
		o.camOn = false
	}
	if err := o.deps.Media.Publish(ctx, screen); err != nil {
		stopTrack(o, "screen", screen)
		if wasCam {
			if err := o.publishCamera(ctx); err != nil {
				o.swallow("republish camera", err)
			}
		}
		return o.fail(op, classify(err, errs.Unknown), err)
	}
	o.screen, o.screenOn = screen, true
	o.camBeforeShare = wasCam
	return nil
}
