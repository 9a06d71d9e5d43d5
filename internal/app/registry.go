package app

import (
	"context"
	"sync"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

// Plane tells which connection a session entry belongs to. One participant
// holds one entry per plane.
type Plane string

const (
	PlaneMedia     Plane = "media"
	PlaneSignaling Plane = "signaling"
)

type sessionEntry struct {
	Plane   Plane
	Channel domain.ChannelID
	Session core.MemberSession
	Cancel  context.CancelFunc
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*sessionEntry
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*sessionEntry),
	}
}

func (r *Registry) Bind(sid core.SessionID, plane Plane, sess core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[sid] = &sessionEntry{Plane: plane, Session: sess, Cancel: cancel}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("plane", string(plane)).Msg("bound session")
}

func (r *Registry) GetSession(sid core.SessionID) (core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

func (r *Registry) PlaneOf(sid core.SessionID) (Plane, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Plane, true
	}
	return "", false
}

func (r *Registry) Unbind(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, sid)
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("unbind session")
}

func (r *Registry) ChannelOf(sid core.SessionID) (domain.ChannelID, core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.sessions[sid]
	if !ok || entry.Channel == "" {
		return "", nil, false
	}
	return entry.Channel, entry.Session, true
}

func (r *Registry) UpdateChannel(sid core.SessionID, ch domain.ChannelID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.sessions[sid]
	if !ok {
		return false
	}
	entry.Channel = ch
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Str("channel", string(ch)).Msg("updated channel")
	return true
}

func (r *Registry) RemoveChannel(sid core.SessionID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if entry, ok := r.sessions[sid]; ok {
		entry.Channel = ""
	}
}

type RegSnap struct {
	SID     core.SessionID
	Session core.MemberSession
}

// MembersOfChannel lists the sessions of one plane in ch.
func (r *Registry) MembersOfChannel(ch domain.ChannelID, plane Plane) []RegSnap {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]RegSnap, 0, 2)
	for sid, e := range r.sessions {
		if e.Channel == ch && e.Plane == plane {
			out = append(out, RegSnap{SID: sid, Session: e.Session})
		}
	}
	return out
}

// Cancel stops the connection context bound to sid.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("canceled session")
	return true
}
