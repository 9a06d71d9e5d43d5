// Package probe checks local capture/playback devices and measures network quality.
// Failures come back as data with a typed reason; nothing here returns an error.
package probe

import (
	"context"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/errs"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc"
)

const (
	// SpeakerTimeout bounds how long the speaker check waits for playback to start.
	SpeakerTimeout = 3 * time.Second
	// LevelInterval is the microphone amplitude sampling period.
	LevelInterval = 100 * time.Millisecond
)

type DeviceResult struct {
	Available bool        `json:"available"`
	DeviceID  string      `json:"device_id,omitempty"`
	Label     string      `json:"label,omitempty"`
	Error     errs.Reason `json:"error,omitempty"`
}

type DeviceTestResult struct {
	Camera      DeviceResult       `json:"camera"`
	Microphone  DeviceResult       `json:"microphone"`
	Speaker     DeviceResult       `json:"speaker"`
	Permissions domain.Permissions `json:"permissions"`
}

// Status folds the result into the participant-facing device status.
func (r DeviceTestResult) Status() domain.DeviceStatus {
	return domain.DeviceStatus{
		Camera:      r.Camera.Available,
		Microphone:  r.Microphone.Available,
		Speaker:     r.Speaker.Available,
		Permissions: r.Permissions,
	}
}

type Config struct {
	Endpoints []string
	// Ceiling discards probes at or above this latency.
	Ceiling time.Duration
	// Timeout bounds a single probe request.
	Timeout time.Duration
}

type Option func(*Probe)

func WithHTTPClient(c *http.Client) Option { return func(p *Probe) { p.http = c } }

// Probe owns every handle it acquires until Cleanup.
type Probe struct {
	devices core.Devices
	cfg     Config
	http    *http.Client

	mu          sync.Mutex
	camera      core.LocalTrack
	mic         core.AudioTrack
	playback    core.Playback
	stopSampler context.CancelFunc
	samplerDone chan struct{}

	level atomic.Uint64 // math.Float64bits
}

func New(devices core.Devices, cfg Config, opts ...Option) *Probe {
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = 3 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	p := &Probe{devices: devices, cfg: cfg, http: http.DefaultClient}
	for _, o := range opts {
		o(p)
	}
	return p
}

// RunDeviceTests checks camera, microphone and speaker concurrently.
// Handles from a previous run are released first.
func (p *Probe) RunDeviceTests(ctx context.Context) DeviceTestResult {
	p.Cleanup()

	failed := DeviceResult{Error: errs.Unknown}
	res := DeviceTestResult{Camera: failed, Microphone: failed, Speaker: failed}

	var wg conc.WaitGroup
	wg.Go(func() { res.Camera = p.testCamera(ctx) })
	wg.Go(func() { res.Microphone = p.testMicrophone(ctx) })
	wg.Go(func() { res.Speaker = p.testSpeaker(ctx) })
	if r := wg.WaitAndRecover(); r != nil {
		log.Error().Str("module", "probe").Str("panic", r.String()).Msg("device test panicked")
	}

	res.Permissions = domain.Permissions{
		Camera:     res.Camera.Error != errs.PermissionDenied,
		Microphone: res.Microphone.Error != errs.PermissionDenied,
	}
	return res
}

func (p *Probe) testCamera(ctx context.Context) DeviceResult {
	p.mu.Lock()
	held := p.camera
	p.camera = nil
	p.mu.Unlock()
	if held != nil {
		release("camera", held)
	}

	cam, err := p.devices.OpenCamera(ctx)
	if err != nil {
		return failure("camera", err)
	}
	p.mu.Lock()
	p.camera = cam
	p.mu.Unlock()
	return DeviceResult{Available: true, DeviceID: cam.DeviceID(), Label: cam.Label()}
}

func (p *Probe) testMicrophone(ctx context.Context) DeviceResult {
	p.mu.Lock()
	held := p.mic
	p.mic = nil
	p.mu.Unlock()
	if held != nil {
		release("microphone", held)
	}

	mic, err := p.devices.OpenMicrophone(ctx)
	if err != nil {
		return failure("microphone", err)
	}

	sctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.mu.Lock()
	p.mic = mic
	p.stopSampler = cancel
	p.samplerDone = done
	p.mu.Unlock()
	go p.sample(sctx, mic, done)

	return DeviceResult{Available: true, DeviceID: mic.DeviceID(), Label: mic.Label()}
}

func (p *Probe) sample(ctx context.Context, mic core.AudioTrack, done chan struct{}) {
	defer close(done)
	t := time.NewTicker(LevelInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			p.level.Store(0)
			return
		case <-t.C:
			p.level.Store(math.Float64bits(mic.Level()))
		}
	}
}

// Level is the most recent microphone amplitude in [0,1]; zero when no sampler runs.
func (p *Probe) Level() float64 {
	return math.Float64frombits(p.level.Load())
}

func (p *Probe) testSpeaker(ctx context.Context) DeviceResult {
	ctx, cancel := context.WithTimeout(ctx, SpeakerTimeout)
	defer cancel()

	type started struct {
		pb  core.Playback
		err error
	}
	ch := make(chan started, 1)
	go func() {
		pb, err := p.devices.PlayTone(ctx, Tone())
		ch <- started{pb, err}
	}()

	select {
	case s := <-ch:
		if s.err != nil {
			return failure("speaker", s.err)
		}
		p.mu.Lock()
		p.playback = s.pb
		p.mu.Unlock()
		return DeviceResult{Available: true}
	case <-ctx.Done():
		// playback may still start late; stop it when it does
		go func() {
			if s := <-ch; s.err == nil && s.pb != nil {
				_ = s.pb.Stop()
			}
		}()
		return failure("speaker", errs.E(errs.Timeout, "Probe.testSpeaker", "playback did not start", ctx.Err()))
	}
}

// Cleanup stops the sampler and releases every held handle. Safe to call repeatedly.
func (p *Probe) Cleanup() {
	p.mu.Lock()
	cancel, done := p.stopSampler, p.samplerDone
	mic, cam, pb := p.mic, p.camera, p.playback
	p.stopSampler, p.samplerDone = nil, nil
	p.mic, p.camera, p.playback = nil, nil, nil
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
	if mic != nil {
		release("microphone", mic)
	}
	if cam != nil {
		release("camera", cam)
	}
	if pb != nil {
		if err := pb.Stop(); err != nil {
			log.Warn().Str("module", "probe").Str("device", "speaker").Str("reason", string(errs.ReasonOf(err))).Err(err).Msg("stop playback failed")
		}
	}
}

func release(device string, t core.LocalTrack) {
	if err := t.Stop(); err != nil {
		log.Warn().Str("module", "probe").Str("device", device).Str("reason", string(errs.ReasonOf(err))).Err(err).Msg("release failed")
	}
}

func failure(device string, err error) DeviceResult {
	r := errs.ReasonOf(err)
	log.Info().Str("module", "probe").Str("device", device).Str("reason", string(r)).Err(err).Msg("device unavailable")
	return DeviceResult{Error: r}
}
