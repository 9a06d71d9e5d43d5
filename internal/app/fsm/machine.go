package fsm

import (
	"context"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Machine serializes Reduce over one session and records every accepted
// transition. Phase-only ticks are not recorded.
type Machine struct {
	mu    sync.Mutex
	state domain.Session
	sink  core.EventSink
	now   func() time.Time
}

func NewMachine(initial domain.Session, sink core.EventSink) *Machine {
	return &Machine{state: initial.Clone(), sink: sink, now: time.Now}
}

// Dispatch applies a and returns the resulting snapshot.
func (m *Machine) Dispatch(ctx context.Context, a Action) (domain.Session, error) {
	m.mu.Lock()
	prev := m.state
	next, err := Reduce(prev, a)
	if err != nil {
		m.mu.Unlock()
		log.Debug().Str("module", "fsm").Str("display_id", prev.DisplayID).Str("action", a.Name()).Err(err).Msg("action rejected")
		return prev.Clone(), err
	}
	m.state = next
	out := next.Clone()
	m.mu.Unlock()

	if _, tick := a.(Tick); tick && prev.Phase == next.Phase {
		return out, nil
	}
	if m.sink != nil {
		m.sink.Record(ctx, core.Event{
			ID:        uuid.NewString(),
			DisplayID: next.DisplayID,
			Action:    a.Name(),
			From:      prev.Status,
			To:        next.Status,
			Actor:     actorOf(a),
			At:        m.now(),
		})
	}
	return out, nil
}

// Snapshot returns a deep copy of the current state.
func (m *Machine) Snapshot() domain.Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.Clone()
}

func actorOf(a Action) string {
	switch act := a.(type) {
	case Join:
		return string(act.Participant.Role)
	case Leave:
		return string(act.Role)
	case SetReady:
		return string(act.Role)
	case UpdateDeviceStatus:
		return string(act.Role)
	case UpdateNetworkQuality:
		return string(act.Role)
	case PeerJoined:
		return string(act.Participant.Role)
	case PeerLeft:
		return string(act.Role)
	case PeerReady:
		return string(act.Role)
	}
	return ""
}
