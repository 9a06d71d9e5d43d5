package devices

import (
	"math"
	"sync"
	"sync/atomic"

	"github.com/dkeye/Consult/internal/core"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

// track is a LocalTrack over a pion sample track. release frees the hardware
// handle and runs at most once.
type track struct {
	id       string
	kind     core.MediaKind
	source   core.TrackSource
	deviceID string
	label    string
	local    *webrtc.TrackLocalStaticSample

	once    sync.Once
	release func() error
	err     error
}

func newTrack(source core.TrackSource, deviceID, label string, release func() error) (*track, error) {
	kind, mime := core.KindVideo, webrtc.MimeTypeVP8
	if source == core.SourceMicrophone {
		kind, mime = core.KindAudio, webrtc.MimeTypeOpus
	}
	id := string(source) + "-" + uuid.NewString()[:8]
	local, err := webrtc.NewTrackLocalStaticSample(webrtc.RTPCodecCapability{MimeType: mime}, id, "local")
	if err != nil {
		return nil, err
	}
	return &track{
		id:       id,
		kind:     kind,
		source:   source,
		deviceID: deviceID,
		label:    label,
		local:    local,
		release:  release,
	}, nil
}

func (t *track) ID() string               { return t.id }
func (t *track) Kind() core.MediaKind     { return t.kind }
func (t *track) Source() core.TrackSource { return t.source }
func (t *track) DeviceID() string         { return t.deviceID }
func (t *track) Label() string            { return t.label }
func (t *track) Track() webrtc.TrackLocal { return t.local }

func (t *track) Stop() error {
	t.once.Do(func() {
		if t.release != nil {
			t.err = t.release()
		}
	})
	return t.err
}

// micTrack adds the live capture level.
type micTrack struct {
	*track
	level atomic.Uint64
}

func (m *micTrack) Level() float64 { return math.Float64frombits(m.level.Load()) }

func (m *micTrack) setLevel(v float64) { m.level.Store(math.Float64bits(v)) }

// rms returns the root mean square of little-endian signed 16-bit samples,
// normalized to [0,1].
func rms(pcm []byte) float64 {
	n := len(pcm) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		s := float64(int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8))
		sum += s * s
	}
	v := math.Sqrt(sum/float64(n)) / 32768
	return math.Min(v, 1)
}
