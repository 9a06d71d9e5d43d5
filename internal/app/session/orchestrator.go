// Package session drives one consultation from the point of view of one participant:
// phase ticks, the join/leave envelope around the media and signaling planes,
// local device publishing and peer synchronization.
package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Consult/internal/app/fsm"
	"github.com/dkeye/Consult/internal/app/phase"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/errs"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const (
	TickInterval  = time.Second
	StatsInterval = 2 * time.Second

	defaultJoinTimeout = 15 * time.Second
	teardownTimeout    = 5 * time.Second
)

type Config struct {
	// Self is the acting participant; Role and UserID are required.
	Self          domain.Participant
	AutoJoin      bool
	JoinTimeout   time.Duration
	PublishOnJoin bool
}

type Deps struct {
	Tokens       core.TokenIssuer
	Media        core.MediaTransport
	Signaling    core.SignalingClient
	Reservations core.ReservationClient
	Devices      core.Devices
	Sink         core.EventSink
	Clock        phase.Clock
}

// Failure is the user-facing signal for a failed join or toggle.
type Failure struct {
	Op      string
	Reason  errs.Reason
	Message string
}

// LocalMedia is the local UI view of the acting participant's devices.
type LocalMedia struct {
	Microphone  bool    `json:"microphone"`
	Camera      bool    `json:"camera"`
	ScreenShare bool    `json:"screen_share"`
	MicLevel    float64 `json:"mic_level"`
}

type Orchestrator struct {
	cfg       Config
	deps      Deps
	displayID string
	machine   *fsm.Machine
	log       zerolog.Logger

	lifecycle sync.Mutex
	joined    atomic.Bool
	joining   atomic.Bool
	autoJoin  atomic.Bool
	// mediaUp is set once the media plane accepted the join, ahead of joined.
	mediaUp atomic.Bool
	// leaves counts LeaveSession calls; an auto-join started before a leave is dropped.
	leaves   atomic.Uint64
	inflight sync.WaitGroup
	channel  domain.ChannelID

	media          sync.Mutex
	mic            core.AudioTrack
	cam            core.LocalTrack
	screen         core.LocalTrack
	micOn          bool
	camOn          bool
	screenOn       bool
	camBeforeShare bool

	pendingMu      sync.Mutex
	pendingDevice  domain.DeviceStatus
	pendingNetwork *domain.NetworkQuality

	statsCancel context.CancelFunc
	statsDone   chan struct{}

	presence chan struct{}
	failures chan Failure
}

// Load fetches the session detail from the reservation backend and builds an orchestrator for it.
func Load(ctx context.Context, displayID string, deps Deps, cfg Config) (*Orchestrator, error) {
	const op = "session.Load"
	detail, err := deps.Reservations.GetSessionDetail(ctx, displayID)
	if err != nil {
		return nil, errs.E(errs.ReasonOf(err), op, "load session detail", err)
	}
	return New(detail, deps, cfg)
}

func New(detail core.SessionDetail, deps Deps, cfg Config) (*Orchestrator, error) {
	const op = "session.New"
	if !cfg.Self.Role.Valid() {
		return nil, fmt.Errorf("%s: invalid role %q", op, cfg.Self.Role)
	}
	if cfg.Self.UserID == "" {
		return nil, fmt.Errorf("%s: %w", op, domain.ErrUserIDInvalid)
	}
	r := detail.Reservation
	s, err := domain.NewSession(detail.ID, detail.DisplayID, r.Type, r.StartAt, r.EndAt)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if cfg.JoinTimeout <= 0 {
		cfg.JoinTimeout = defaultJoinTimeout
	}
	if deps.Clock == nil {
		deps.Clock = phase.SystemClock{}
	}

	o := &Orchestrator{
		cfg:       cfg,
		deps:      deps,
		displayID: detail.DisplayID,
		machine:   fsm.NewMachine(s, deps.Sink),
		log: log.With().
			Str("module", "session").
			Str("display_id", detail.DisplayID).
			Str("role", string(cfg.Self.Role)).
			Logger(),
		pendingDevice: cfg.Self.Device,
		presence:      make(chan struct{}, 1),
		failures:      make(chan Failure, 8),
	}
	o.autoJoin.Store(cfg.AutoJoin)

	want := r.ClientID
	if cfg.Self.Role == domain.RoleExpert {
		want = r.ExpertID
	}
	if want != "" && want != cfg.Self.UserID {
		o.log.Warn().Str("uid", string(cfg.Self.UserID)).Str("booked_uid", string(want)).Msg("acting user is not the booked participant")
	}

	deps.Media.OnRemotePublished(o.onRemotePublished)
	deps.Signaling.OnPeerEvent(o.onPeerEvent)
	return o, nil
}

// State returns a snapshot of the session.
func (o *Orchestrator) State() domain.Session {
	return o.machine.Snapshot()
}

func (o *Orchestrator) Joined() bool { return o.joined.Load() }

func (o *Orchestrator) LocalMedia() LocalMedia {
	o.media.Lock()
	defer o.media.Unlock()
	lm := LocalMedia{Microphone: o.micOn, Camera: o.camOn, ScreenShare: o.screenOn}
	if o.mic != nil && o.micOn {
		lm.MicLevel = o.mic.Level()
	}
	return lm
}

// Failures delivers user-facing failure signals. Signals are dropped when nobody reads.
func (o *Orchestrator) Failures() <-chan Failure { return o.failures }

// SetAutoJoin arms or disarms joining on the first OPEN tick. LeaveSession disarms it.
func (o *Orchestrator) SetAutoJoin(on bool) {
	o.autoJoin.Store(on)
	o.log.Info().Bool("auto_join", on).Msg("auto-join preference changed")
}

// SetReady updates the acting participant's readiness. Announcing it to the
// counterpart happens on the background loop.
func (o *Orchestrator) SetReady(ctx context.Context, ready bool) error {
	if _, err := o.machine.Dispatch(ctx, fsm.SetReady{Role: o.cfg.Self.Role, Ready: ready}); err != nil {
		return err
	}
	select {
	case o.presence <- struct{}{}:
	default:
	}
	return nil
}

// UpdateDeviceStatus records a probe result. Before the first join it is kept
// and applied when the participant entry is created.
func (o *Orchestrator) UpdateDeviceStatus(ctx context.Context, st domain.DeviceStatus) error {
	o.pendingMu.Lock()
	o.pendingDevice = st
	o.pendingMu.Unlock()
	if o.State().Participant(o.cfg.Self.Role) == nil {
		return nil
	}
	_, err := o.machine.Dispatch(ctx, fsm.UpdateDeviceStatus{Role: o.cfg.Self.Role, Patch: fsm.DevicePatch{
		Camera:               &st.Camera,
		Microphone:           &st.Microphone,
		Speaker:              &st.Speaker,
		CameraPermission:     &st.Permissions.Camera,
		MicrophonePermission: &st.Permissions.Microphone,
	}})
	return err
}

// UpdateNetworkQuality records a network measurement for the acting participant.
// Before the first join it is kept and applied when the participant entry is created.
func (o *Orchestrator) UpdateNetworkQuality(ctx context.Context, q domain.NetworkQuality) error {
	o.pendingMu.Lock()
	o.pendingNetwork = &q
	o.pendingMu.Unlock()
	if o.State().Participant(o.cfg.Self.Role) == nil {
		return nil
	}
	return o.applyNetwork(ctx, q)
}

func (o *Orchestrator) applyNetwork(ctx context.Context, q domain.NetworkQuality) error {
	patch := fsm.NetworkPatch{RTTMs: &q.RTTMs, BandwidthKbps: &q.BandwidthKbps}
	if q.LastUpdatedEpochMs > 0 {
		patch.At = time.UnixMilli(q.LastUpdatedEpochMs)
	}
	_, err := o.machine.Dispatch(ctx, fsm.UpdateNetworkQuality{Role: o.cfg.Self.Role, Patch: patch})
	return err
}

// StartSession moves a ready waiting room to ACTIVE. Outside that state it is a no-op.
func (o *Orchestrator) StartSession(ctx context.Context) error {
	s, err := o.machine.Dispatch(ctx, fsm.Tick{Now: o.deps.Clock.Now()})
	if err != nil {
		return err
	}
	if s.Status != domain.StatusWaitingRoom || !s.CanStart || s.Phase != domain.PhaseOpen {
		o.log.Debug().Str("status", string(s.Status)).Bool("can_start", s.CanStart).Str("phase", string(s.Phase)).Msg("start ignored")
		return nil
	}
	if err := o.deps.Reservations.StartSession(ctx, o.displayID); err != nil {
		o.swallow("reservation.StartSession", err)
	}
	if _, err := o.machine.Dispatch(ctx, fsm.Start{}); err != nil {
		return err
	}
	o.announce(ctx, domain.StatusActive)
	return nil
}

// EndSession completes the session. The media lifecycle is left to LeaveSession.
func (o *Orchestrator) EndSession(ctx context.Context) error {
	if err := o.deps.Reservations.EndSession(ctx, o.displayID); err != nil {
		o.swallow("reservation.EndSession", err)
	}
	if _, err := o.machine.Dispatch(ctx, fsm.End{}); err != nil {
		return err
	}
	o.announce(ctx, domain.StatusCompleted)
	return nil
}

// SendChat posts a chat line to the counterpart. It is a no-op when not joined.
func (o *Orchestrator) SendChat(ctx context.Context, text string) error {
	if !o.joined.Load() {
		return nil
	}
	return o.deps.Signaling.SendChat(ctx, text)
}

func (o *Orchestrator) announce(ctx context.Context, st domain.Status) {
	if !o.joined.Load() {
		return
	}
	if err := o.deps.Signaling.AnnounceStatus(ctx, st); err != nil {
		o.swallow("signaling.AnnounceStatus", err)
	}
}

// swallow logs a best-effort failure with its typed reason.
func (o *Orchestrator) swallow(step string, err error) {
	o.log.Warn().Str("step", step).Str("reason", string(errs.ReasonOf(err))).Err(err).Msg("best-effort step failed")
}

func (o *Orchestrator) fail(op string, reason errs.Reason, err error) error {
	f := Failure{Op: op, Reason: reason, Message: errs.UserMessage(reason)}
	select {
	case o.failures <- f:
	default:
	}
	o.log.Error().Str("op", op).Str("reason", string(reason)).Err(err).Msg(f.Message)
	return errs.E(reason, op, f.Message, err)
}

// classify keeps a typed reason, maps deadlines to TIMEOUT and falls back otherwise.
func classify(err error, fallback errs.Reason) errs.Reason {
	switch r := errs.ReasonOf(err); r {
	case errs.Unknown, "":
		return fallback
	default:
		return r
	}
}
