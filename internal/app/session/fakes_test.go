package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
)

// journal records the cross-collaborator call order.
type journal struct {
	mu    sync.Mutex
	calls []string
}

func (j *journal) add(c string) {
	j.mu.Lock()
	j.calls = append(j.calls, c)
	j.mu.Unlock()
}

func (j *journal) list() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.calls...)
}

type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Set(t time.Time) {
	c.mu.Lock()
	c.t = t
	c.mu.Unlock()
}

type fakeTrack struct {
	id     string
	source core.TrackSource
	stops  atomic.Int32
}

func (f *fakeTrack) ID() string               { return f.id }
func (f *fakeTrack) Kind() core.MediaKind     { return core.KindVideo }
func (f *fakeTrack) Source() core.TrackSource { return f.source }
func (f *fakeTrack) DeviceID() string         { return f.id }
func (f *fakeTrack) Label() string            { return string(f.source) }
func (f *fakeTrack) Track() webrtc.TrackLocal { return nil }
func (f *fakeTrack) Level() float64           { return 0.5 }
func (f *fakeTrack) Stop() error              { f.stops.Add(1); return nil }

type fakeDevices struct {
	mu     sync.Mutex
	j      *journal
	err    map[core.TrackSource]error
	opened []*fakeTrack
}

func (d *fakeDevices) open(src core.TrackSource) (*fakeTrack, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err := d.err[src]; err != nil {
		return nil, err
	}
	t := &fakeTrack{id: fmt.Sprintf("%s-%d", src, len(d.opened)), source: src}
	d.opened = append(d.opened, t)
	if d.j != nil {
		d.j.add("open " + string(src))
	}
	return t, nil
}

func (d *fakeDevices) OpenCamera(context.Context) (core.LocalTrack, error) {
	t, err := d.open(core.SourceCamera)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *fakeDevices) OpenMicrophone(context.Context) (core.AudioTrack, error) {
	t, err := d.open(core.SourceMicrophone)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *fakeDevices) OpenScreen(context.Context) (core.LocalTrack, error) {
	t, err := d.open(core.SourceScreen)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (d *fakeDevices) PlayTone(context.Context, []byte) (core.Playback, error) {
	return nil, fmt.Errorf("not used")
}

// count returns how many tracks of src were opened and how many Stop calls they got in total.
func (d *fakeDevices) count(src core.TrackSource) (opened int, stops int32) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, t := range d.opened {
		if t.source == src {
			opened++
			stops += t.stops.Load()
		}
	}
	return opened, stops
}

type fakeMedia struct {
	mu         sync.Mutex
	j          *journal
	joinErr    error
	leaveErr   error
	publishErr error
	stats      core.ConnectionStats
	statsCalls atomic.Int32
	published  map[string]bool
	onRemote   func(core.RemoteParticipant, core.MediaKind)
	subscribed []core.RemoteParticipant
}

func newFakeMedia(j *journal) *fakeMedia {
	return &fakeMedia{j: j, published: map[string]bool{}}
}

func (m *fakeMedia) Join(_ context.Context, appID string, ch domain.ChannelID, token string, uid domain.UserID) error {
	m.j.add("media.Join")
	return m.joinErr
}

func (m *fakeMedia) Publish(_ context.Context, tracks ...core.LocalTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishErr != nil {
		return m.publishErr
	}
	for _, t := range tracks {
		m.j.add("publish " + string(t.Source()))
		m.published[t.ID()] = true
	}
	return nil
}

func (m *fakeMedia) Unpublish(_ context.Context, tracks ...core.LocalTrack) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range tracks {
		m.j.add("unpublish " + string(t.Source()))
		delete(m.published, t.ID())
	}
	return nil
}

func (m *fakeMedia) Subscribe(_ context.Context, remote core.RemoteParticipant, _ core.MediaKind) error {
	m.mu.Lock()
	m.subscribed = append(m.subscribed, remote)
	m.mu.Unlock()
	return nil
}

func (m *fakeMedia) Leave(context.Context) error {
	m.j.add("media.Leave")
	return m.leaveErr
}

func (m *fakeMedia) Stats(context.Context) (core.ConnectionStats, error) {
	m.statsCalls.Add(1)
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stats, nil
}

func (m *fakeMedia) OnRemotePublished(h func(core.RemoteParticipant, core.MediaKind)) {
	m.onRemote = h
}

func (m *fakeMedia) publishedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.published)
}

type nopSink struct{}

func (nopSink) Record(context.Context, core.Event) {}
