package rtc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dkeye/Consult/internal/adapters/wire"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var (
	ErrNotJoined     = errors.New("media transport not joined")
	ErrAlreadyJoined = errors.New("media transport already joined")
	ErrNoRemoteTrack = errors.New("no remote track for participant")
)

const (
	mediaPath          = "/api/ws/media"
	renegotiateTimeout = 10 * time.Second
	// receive slots for the counterpart: microphone, camera and screen.
	recvAudioSlots = 1
	recvVideoSlots = 2
)

type remoteKey struct {
	uid  domain.UserID
	kind core.MediaKind
}

type remoteTrack struct {
	track   *webrtc.TrackRemote
	running atomic.Bool
}

// Transport is the client's media plane: one PeerConnection to the relay,
// negotiated over the relay's media WebSocket. The client always offers; the
// relay asks for a fresh offer when it attaches tracks.
type Transport struct {
	baseURL string
	cfg     webrtc.Configuration

	negMu sync.Mutex

	mu       sync.Mutex
	conn     *wire.Conn
	pc       *webrtc.PeerConnection
	senders  map[string]*webrtc.RTPSender
	remotes  map[remoteKey]*remoteTrack
	received map[domain.UserID]*atomic.Int64
	onRemote func(core.RemoteParticipant, core.MediaKind)

	lastBytes uint64
	lastAt    time.Time
}

func NewTransport(serverURL string, cfg webrtc.Configuration) *Transport {
	return &Transport{
		baseURL:  serverURL,
		cfg:      cfg,
		senders:  make(map[string]*webrtc.RTPSender),
		remotes:  make(map[remoteKey]*remoteTrack),
		received: make(map[domain.UserID]*atomic.Int64),
	}
}

// WebSocketURL turns an http(s) base URL into the ws(s) URL of path.
func WebSocketURL(base, path string) (string, error) {
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https", "wss":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

func (t *Transport) Join(ctx context.Context, appID string, channel domain.ChannelID, token string, uid domain.UserID) error {
	t.mu.Lock()
	joined := t.conn != nil
	t.mu.Unlock()
	if joined {
		return ErrAlreadyJoined
	}

	target, err := WebSocketURL(t.baseURL, mediaPath)
	if err != nil {
		return err
	}
	conn, err := wire.Dial(ctx, target, nil)
	if err != nil {
		return err
	}
	conn.Start(t.onMessage)

	if _, err := conn.Request(ctx, wire.Join{Type: wire.TypeJoin, Channel: channel, AppID: appID, UID: uid, Token: token}, wire.TypeJoined); err != nil {
		_ = conn.Close()
		return fmt.Errorf("media join: %w", err)
	}

	pc, err := webrtc.NewPeerConnection(t.cfg)
	if err != nil {
		_ = conn.Close()
		return err
	}
	if err := addReceiveSlots(pc); err != nil {
		_ = pc.Close()
		_ = conn.Close()
		return err
	}
	pc.OnTrack(t.onTrack)
	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Info().Str("module", "rtc.transport").Str("peer_connection_state", s.String()).Msg("Peer state")
	})

	t.mu.Lock()
	t.conn = conn
	t.pc = pc
	t.mu.Unlock()

	if err := t.negotiate(ctx); err != nil {
		_ = t.Leave(context.WithoutCancel(ctx))
		return fmt.Errorf("media negotiate: %w", err)
	}
	log.Info().Str("module", "rtc.transport").Str("channel", string(channel)).Str("uid", string(uid)).Msg("media joined")
	return nil
}

func addReceiveSlots(pc *webrtc.PeerConnection) error {
	recv := webrtc.RTPTransceiverInit{Direction: webrtc.RTPTransceiverDirectionRecvonly}
	for i := 0; i < recvAudioSlots; i++ {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeAudio, recv); err != nil {
			return err
		}
	}
	for i := 0; i < recvVideoSlots; i++ {
		if _, err := pc.AddTransceiverFromKind(webrtc.RTPCodecTypeVideo, recv); err != nil {
			return err
		}
	}
	return nil
}

// negotiate runs one offer/answer round with the relay.
func (t *Transport) negotiate(ctx context.Context) error {
	t.negMu.Lock()
	defer t.negMu.Unlock()

	t.mu.Lock()
	pc, conn := t.pc, t.conn
	t.mu.Unlock()
	if pc == nil || conn == nil {
		return ErrNotJoined
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		return err
	}
	gathered := webrtc.GatheringCompletePromise(pc)
	if err := pc.SetLocalDescription(offer); err != nil {
		return err
	}
	select {
	case <-gathered:
	case <-ctx.Done():
		return ctx.Err()
	}

	raw, err := conn.Request(ctx, wire.SDP{Type: wire.TypeOffer, SDP: pc.LocalDescription().SDP}, wire.TypeAnswer)
	if err != nil {
		return err
	}
	var answer wire.SDP
	if err := json.Unmarshal(raw, &answer); err != nil {
		return err
	}
	return pc.SetRemoteDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: answer.SDP})
}

func (t *Transport) onMessage(typ string, data []byte) {
	switch typ {
	case wire.TypeRenegotiate:
		// negotiate waits on this read loop for the answer.
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), renegotiateTimeout)
			defer cancel()
			if err := t.negotiate(ctx); err != nil && !errors.Is(err, ErrNotJoined) {
				log.Warn().Err(err).Str("module", "rtc.transport").Msg("renegotiate")
			}
		}()
	case wire.TypeCandidate:
		var c wire.Candidate
		if err := json.Unmarshal(data, &c); err != nil {
			return
		}
		t.mu.Lock()
		pc := t.pc
		t.mu.Unlock()
		if pc != nil {
			if err := pc.AddICECandidate(c.Init()); err != nil {
				log.Debug().Err(err).Str("module", "rtc.transport").Msg("add ice candidate")
			}
		}
	case wire.TypeError:
		log.Warn().Str("module", "rtc.transport").RawJSON("message", data).Msg("relay error")
	case wire.TypePong:
	default:
		log.Debug().Str("module", "rtc.transport").Str("type", typ).Msg("unhandled media message")
	}
}

func (t *Transport) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	kind := core.KindAudio
	if track.Kind() == webrtc.RTPCodecTypeVideo {
		kind = core.KindVideo
	}
	uid := domain.UserID(track.StreamID())
	key := remoteKey{uid: uid, kind: kind}

	t.mu.Lock()
	t.remotes[key] = &remoteTrack{track: track}
	if _, ok := t.received[uid]; !ok {
		t.received[uid] = &atomic.Int64{}
	}
	fn := t.onRemote
	t.mu.Unlock()

	log.Info().Str("module", "rtc.transport").Str("uid", string(uid)).Str("kind", string(kind)).Msg("remote published")
	if fn != nil {
		fn(core.RemoteParticipant{UserID: uid}, kind)
	}
}

func (t *Transport) OnRemotePublished(fn func(core.RemoteParticipant, core.MediaKind)) {
	t.mu.Lock()
	t.onRemote = fn
	t.mu.Unlock()
}

// Subscribe starts consuming a remote participant's track. Packets are
// drained and counted per participant.
func (t *Transport) Subscribe(_ context.Context, remote core.RemoteParticipant, kind core.MediaKind) error {
	t.mu.Lock()
	rt, ok := t.remotes[remoteKey{uid: remote.UserID, kind: kind}]
	counter := t.received[remote.UserID]
	t.mu.Unlock()
	if !ok {
		return ErrNoRemoteTrack
	}
	if !rt.running.CompareAndSwap(false, true) {
		return nil
	}
	go func() {
		defer rt.running.Store(false)
		buf := make([]byte, 1500)
		for {
			n, _, err := rt.track.Read(buf)
			if err != nil {
				log.Debug().Err(err).Str("module", "rtc.transport").Str("uid", string(remote.UserID)).Msg("remote track ended")
				return
			}
			counter.Add(int64(n))
		}
	}()
	return nil
}

// ReceivedBytes is the number of media bytes drained from uid's tracks.
func (t *Transport) ReceivedBytes(uid domain.UserID) int64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	if c, ok := t.received[uid]; ok {
		return c.Load()
	}
	return 0
}

func (t *Transport) Publish(ctx context.Context, tracks ...core.LocalTrack) error {
	t.mu.Lock()
	pc := t.pc
	if pc == nil {
		t.mu.Unlock()
		return ErrNotJoined
	}
	added := false
	for _, tr := range tracks {
		if _, ok := t.senders[tr.ID()]; ok {
			continue
		}
		sender, err := pc.AddTrack(tr.Track())
		if err != nil {
			t.mu.Unlock()
			return fmt.Errorf("add %s track: %w", tr.Source(), err)
		}
		t.senders[tr.ID()] = sender
		go drainSenderRTCP(sender)
		added = true
	}
	t.mu.Unlock()

	if !added {
		return nil
	}
	return t.negotiate(ctx)
}

func drainSenderRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

func (t *Transport) Unpublish(ctx context.Context, tracks ...core.LocalTrack) error {
	t.mu.Lock()
	pc := t.pc
	if pc == nil {
		t.mu.Unlock()
		return ErrNotJoined
	}
	removed := false
	for _, tr := range tracks {
		sender, ok := t.senders[tr.ID()]
		if !ok {
			continue
		}
		delete(t.senders, tr.ID())
		if err := pc.RemoveTrack(sender); err != nil {
			t.mu.Unlock()
			return fmt.Errorf("remove %s track: %w", tr.Source(), err)
		}
		removed = true
	}
	t.mu.Unlock()

	if !removed {
		return nil
	}
	return t.negotiate(ctx)
}

// Leave closes the relay socket and the PeerConnection. Safe without Join.
func (t *Transport) Leave(ctx context.Context) error {
	t.mu.Lock()
	conn, pc := t.conn, t.pc
	t.conn, t.pc = nil, nil
	t.senders = make(map[string]*webrtc.RTPSender)
	t.remotes = make(map[remoteKey]*remoteTrack)
	t.lastBytes, t.lastAt = 0, time.Time{}
	t.mu.Unlock()

	var errList []error
	if conn != nil {
		leaveCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		if _, err := conn.Request(leaveCtx, wire.Simple(wire.TypeLeave), wire.TypeLeft); err != nil {
			log.Debug().Err(err).Str("module", "rtc.transport").Msg("leave not acknowledged")
		}
		cancel()
		if err := conn.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	if pc != nil {
		if err := pc.Close(); err != nil {
			errList = append(errList, err)
		}
	}
	return errors.Join(errList...)
}

// Stats samples the selected candidate pair RTT and the uplink bitrate since
// the previous sample.
func (t *Transport) Stats(_ context.Context) (core.ConnectionStats, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pc == nil {
		return core.ConnectionStats{RTT: -1}, ErrNotJoined
	}

	out := core.ConnectionStats{RTT: -1}
	var sent uint64
	for _, s := range t.pc.GetStats() {
		switch st := s.(type) {
		case webrtc.ICECandidatePairStats:
			if st.Nominated && st.State == webrtc.StatsICECandidatePairStateSucceeded && st.CurrentRoundTripTime > 0 {
				out.RTT = time.Duration(st.CurrentRoundTripTime * float64(time.Second))
			}
		case webrtc.OutboundRTPStreamStats:
			sent += st.BytesSent
		}
	}

	now := time.Now()
	if !t.lastAt.IsZero() && sent >= t.lastBytes {
		if ms := now.Sub(t.lastAt).Milliseconds(); ms > 0 {
			out.UplinkKbps = int((sent - t.lastBytes) * 8 / uint64(ms))
		}
	}
	t.lastBytes, t.lastAt = sent, now
	return out, nil
}
