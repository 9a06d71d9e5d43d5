// Package devices opens capture and playback hardware on Linux: V4L2 nodes for
// the camera, ALSA through arecord/aplay for the microphone and speaker.
package devices

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/errs"
	"github.com/rs/zerolog/log"
)

var ErrDeviceBusy = errors.New("device busy")

const (
	sampleRate = 16000
	// one level reading per 100 ms of mono S16LE audio
	levelChunk  = sampleRate / 10 * 2
	startupWait = time.Second
	// a player still running after this long has accepted the device
	playSettle = 300 * time.Millisecond
)

type Config struct {
	CameraGlob  string
	SysfsRoot   string
	AudioDevice string
	Arecord     string
	Aplay       string
}

func (c Config) withDefaults() Config {
	if c.CameraGlob == "" {
		c.CameraGlob = "/dev/video*"
	}
	if c.SysfsRoot == "" {
		c.SysfsRoot = "/sys/class/video4linux"
	}
	if c.AudioDevice == "" {
		c.AudioDevice = "default"
	}
	if c.Arecord == "" {
		c.Arecord = "arecord"
	}
	if c.Aplay == "" {
		c.Aplay = "aplay"
	}
	return c
}

// Linux implements core.Devices.
type Linux struct {
	cfg Config
}

func New(cfg Config) *Linux {
	return &Linux{cfg: cfg.withDefaults()}
}

// OpenCamera takes an exclusive lock on the first free V4L2 node.
func (d *Linux) OpenCamera(ctx context.Context) (core.LocalTrack, error) {
	const op = "Devices.OpenCamera"
	nodes, err := filepath.Glob(d.cfg.CameraGlob)
	if err != nil {
		return nil, errs.E(errs.Unknown, op, "bad camera pattern", err)
	}
	if len(nodes) == 0 {
		return nil, errs.E(errs.DeviceNotFound, op, "no camera found", nil)
	}
	sort.Strings(nodes)

	var lastErr error
	for _, node := range nodes {
		if err := ctx.Err(); err != nil {
			return nil, errs.E(errs.ReasonOf(err), op, "camera open canceled", err)
		}
		f, err := openExclusive(node)
		if err != nil {
			lastErr = err
			continue
		}
		t, err := newTrack(core.SourceCamera, node, d.cameraLabel(node), f.Close)
		if err != nil {
			_ = f.Close()
			return nil, errs.E(errs.Unknown, op, "create camera track", err)
		}
		log.Info().Str("module", "devices").Str("device", node).Msg("camera opened")
		return t, nil
	}
	return nil, errs.E(errs.ReasonOf(lastErr), op, "open camera", lastErr)
}

func openExclusive(node string) (*os.File, error) {
	f, err := os.OpenFile(node, os.O_RDWR, 0)
	if err != nil {
		return nil, err
	}
	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		_ = f.Close()
		if errors.Is(err, syscall.EWOULDBLOCK) {
			return nil, fmt.Errorf("%s: %w", node, ErrDeviceBusy)
		}
		return nil, err
	}
	return f, nil
}

func (d *Linux) cameraLabel(node string) string {
	name, err := os.ReadFile(filepath.Join(d.cfg.SysfsRoot, filepath.Base(node), "name"))
	if err != nil {
		return filepath.Base(node)
	}
	return strings.TrimSpace(string(name))
}

// OpenMicrophone starts an arecord capture and returns once audio flows.
func (d *Linux) OpenMicrophone(ctx context.Context) (core.AudioTrack, error) {
	const op = "Devices.OpenMicrophone"
	bin, err := exec.LookPath(d.cfg.Arecord)
	if err != nil {
		return nil, errs.E(errs.DeviceNotFound, op, "arecord not available", err)
	}

	cmd := exec.Command(bin, "-q", "-t", "raw", "-f", "S16_LE", "-c", "1",
		"-r", fmt.Sprint(sampleRate), "-D", d.cfg.AudioDevice)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errs.E(errs.Unknown, op, "capture pipe", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, errs.E(errs.ReasonOf(err), op, "start capture", err)
	}

	mic := &micTrack{}
	release := func() error {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil
	}
	t, err := newTrack(core.SourceMicrophone, d.cfg.AudioDevice, "ALSA "+d.cfg.AudioDevice, release)
	if err != nil {
		_ = release()
		return nil, errs.E(errs.Unknown, op, "create microphone track", err)
	}
	mic.track = t

	started := make(chan error, 1)
	go mic.capture(bufio.NewReaderSize(stdout, levelChunk), started)

	select {
	case err := <-started:
		if err != nil {
			// stderr is complete once the process has been waited for.
			_ = mic.Stop()
			return nil, errs.E(captureReason(stderr.String(), err), op, "microphone capture failed", err)
		}
	case <-time.After(startupWait):
		_ = mic.Stop()
		return nil, errs.E(errs.Timeout, op, "microphone produced no audio", nil)
	case <-ctx.Done():
		_ = mic.Stop()
		return nil, errs.E(errs.ReasonOf(ctx.Err()), op, "microphone open canceled", ctx.Err())
	}
	log.Info().Str("module", "devices").Str("device", d.cfg.AudioDevice).Msg("microphone opened")
	return mic, nil
}

// capture updates the level until the process ends. The first chunk, or the
// first failure, is reported on started.
func (m *micTrack) capture(r io.Reader, started chan<- error) {
	buf := make([]byte, levelChunk)
	first := true
	for {
		_, err := io.ReadFull(r, buf)
		if err != nil {
			if first {
				if errors.Is(err, io.ErrUnexpectedEOF) {
					err = io.EOF
				}
				started <- err
			}
			m.setLevel(0)
			return
		}
		m.setLevel(rms(buf))
		if first {
			first = false
			started <- nil
		}
	}
}

func captureReason(stderr string, err error) errs.Reason {
	msg := strings.ToLower(stderr)
	switch {
	case strings.Contains(msg, "permission denied"):
		return errs.PermissionDenied
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "no such device"), strings.Contains(msg, "cannot find card"):
		return errs.DeviceNotFound
	case errors.Is(err, fs.ErrPermission):
		return errs.PermissionDenied
	}
	return errs.Unknown
}

// OpenScreen returns a synthetic screen capture track.
func (d *Linux) OpenScreen(_ context.Context) (core.LocalTrack, error) {
	const op = "Devices.OpenScreen"
	t, err := newTrack(core.SourceScreen, "screen:0", "Entire screen", nil)
	if err != nil {
		return nil, errs.E(errs.Unknown, op, "create screen track", err)
	}
	return t, nil
}

type playback struct {
	cmd  *exec.Cmd
	done chan struct{}
	err  error // valid after done is closed
}

// Stop ends playback early. Safe after the tone finished.
func (p *playback) Stop() error {
	select {
	case <-p.done:
		return nil
	default:
	}
	if err := p.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return err
	}
	<-p.done
	return nil
}

// PlayTone pipes wav to aplay and returns once the player has survived the
// settle window or finished cleanly within it.
func (d *Linux) PlayTone(ctx context.Context, wav []byte) (core.Playback, error) {
	const op = "Devices.PlayTone"
	bin, err := exec.LookPath(d.cfg.Aplay)
	if err != nil {
		return nil, errs.E(errs.DeviceNotFound, op, "aplay not available", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.E(errs.ReasonOf(err), op, "playback canceled", err)
	}
	cmd := exec.Command(bin, "-q", "-D", d.cfg.AudioDevice, "-")
	cmd.Stdin = bytes.NewReader(wav)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		return nil, errs.E(errs.ReasonOf(err), op, "start playback", err)
	}

	p := &playback{cmd: cmd, done: make(chan struct{})}
	go func() {
		p.err = cmd.Wait()
		if p.err != nil && stderr.Len() > 0 {
			log.Warn().Err(p.err).Str("module", "devices").Str("stderr", strings.TrimSpace(stderr.String())).Msg("playback failed")
		}
		close(p.done)
	}()

	select {
	case <-p.done:
		if p.err != nil {
			// stderr is complete once the process has been waited for.
			return nil, errs.E(captureReason(stderr.String(), p.err), op, "playback failed", p.err)
		}
	case <-time.After(playSettle):
	case <-ctx.Done():
		_ = p.Stop()
		return nil, errs.E(errs.ReasonOf(ctx.Err()), op, "playback canceled", ctx.Err())
	}
	return p, nil
}
