package sfu

import (
	"context"
	"errors"
	"sync"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrNoRelay = errors.New("no relay for track")

type RelayManager struct {
	mu     sync.RWMutex
	relays map[TrackKey]*Relay
}

func NewRelayManager() *RelayManager {
	return &RelayManager{
		relays: make(map[TrackKey]*Relay),
	}
}

// StartRelay creates a Relay for one published track and starts its loop.
// onEnded runs once the source stops, with the subscriber copies it detached.
func (m *RelayManager) StartRelay(ctx context.Context, key TrackKey, publisher domain.UserID, track *webrtc.TrackRemote, onEnded func(*Relay, []*OutTrack)) *Relay {
	logger := log.With().
		Str("module", "relay").
		Str("sid", string(key.SID)).
		Str("track_id", key.TrackID).
		Logger()

	relayCtx, cancel := context.WithCancel(ctx)
	relay := NewRelay(key, publisher, track, cancel)
	relay.onEnded = func(r *Relay, detached []*OutTrack) {
		m.mu.Lock()
		if m.relays[r.Key] == r {
			delete(m.relays, r.Key)
		}
		m.mu.Unlock()
		if onEnded != nil {
			onEnded(r, detached)
		}
	}

	m.mu.Lock()
	if old, ok := m.relays[key]; ok {
		logger.Info().Msg("replacing existing relay for track")
		if old.cancel != nil {
			old.cancel()
		}
	}
	m.relays[key] = relay
	m.mu.Unlock()

	logger.Info().Str("publisher", string(publisher)).Msg("starting relay loop")

	go relay.loop(relayCtx, &logger)
	return relay
}

// Subscribe forwards the relay's track to dst over mc. The returned OutTrack
// is already receiving packets; the caller renegotiates dst.
func (m *RelayManager) Subscribe(key TrackKey, dst core.SessionID, mc core.MediaConnection) (*OutTrack, error) {
	m.mu.RLock()
	relay, ok := m.relays[key]
	m.mu.RUnlock()
	if !ok {
		return nil, ErrNoRelay
	}
	if relay.HasSubscriber(dst) {
		return nil, nil
	}

	local, err := webrtc.NewTrackLocalStaticRTP(relay.Src.Codec().RTPCodecCapability, relay.LocalID(), string(relay.Publisher))
	if err != nil {
		return nil, err
	}
	sender, err := mc.AddLocalTrack(local)
	if err != nil {
		return nil, err
	}
	go drainRTCP(sender)

	ot := NewOutTrack(dst, local, sender)
	relay.AddOutTrack(ot)
	log.Info().
		Str("module", "relay").
		Str("src_sid", string(key.SID)).
		Str("dst_sid", string(dst)).
		Str("track_id", relay.LocalID()).
		Msg("subscriber attached")
	return ot, nil
}

// drainRTCP keeps the sender's interceptors running until the sender is removed.
func drainRTCP(sender *webrtc.RTPSender) {
	buf := make([]byte, 1500)
	for {
		if _, _, err := sender.Read(buf); err != nil {
			return
		}
	}
}

// Unsubscribe detaches dst from every relay and returns the removed copies.
func (m *RelayManager) Unsubscribe(dst core.SessionID) []*OutTrack {
	m.mu.RLock()
	relays := make([]*Relay, 0, len(m.relays))
	for _, r := range m.relays {
		relays = append(relays, r)
	}
	m.mu.RUnlock()

	out := make([]*OutTrack, 0, len(relays))
	for _, r := range relays {
		if ot, ok := r.RemoveOutTrack(dst); ok {
			out = append(out, ot)
		}
	}
	return out
}

// StopRelays stops every relay published by sid.
func (m *RelayManager) StopRelays(sid core.SessionID) {
	m.mu.Lock()
	stopped := make([]*Relay, 0, 3)
	for key, r := range m.relays {
		if key.SID == sid {
			stopped = append(stopped, r)
		}
	}
	m.mu.Unlock()
	for _, r := range stopped {
		if r.cancel != nil {
			r.cancel()
		}
	}
}

// RelaysOf lists the relays published by sid.
func (m *RelayManager) RelaysOf(sid core.SessionID) []*Relay {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Relay, 0, 3)
	for key, r := range m.relays {
		if key.SID == sid {
			out = append(out, r)
		}
	}
	return out
}

func (m *RelayManager) HasRelay(key TrackKey) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.relays[key]
	return ok
}
