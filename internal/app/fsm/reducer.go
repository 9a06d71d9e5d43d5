// Package fsm is the session state machine: one pure transition function and
// a locked holder that records accepted transitions.
package fsm

import (
	"errors"
	"fmt"

	"github.com/dkeye/Consult/internal/app/phase"
	"github.com/dkeye/Consult/internal/domain"
)

var (
	ErrUnknownAction      = errors.New("unknown action")
	ErrUnknownParticipant = errors.New("participant has not joined")
	ErrSessionCompleted   = errors.New("session already completed")
)

// Reduce returns the state after applying a. The input is never mutated.
// A no-op transition returns an equal state and a nil error.
func Reduce(s domain.Session, a Action) (domain.Session, error) {
	next := s.Clone()
	switch act := a.(type) {
	case Tick:
		refreshPhase(&next, act)
	case Join:
		if next.Status == domain.StatusCompleted {
			return s, ErrSessionCompleted
		}
		if !act.Participant.Role.Valid() {
			return s, fmt.Errorf("join: invalid role %q", act.Participant.Role)
		}
		refreshPhase(&next, Tick{Now: act.Now})
		p := upsert(&next, act.Participant)
		p.Online = true
		if p.JoinedAtEpochMs == nil {
			at := act.Now.UnixMilli()
			p.JoinedAtEpochMs = &at
		}
		switch {
		case next.Status == domain.StatusScheduled && next.Phase == domain.PhaseWait:
			next.Status = domain.StatusPreSession
		case next.Status == domain.StatusScheduled && next.Phase == domain.PhaseOpen:
			next.Status = domain.StatusWaitingRoom
		case next.Status == domain.StatusPreSession && next.Phase == domain.PhaseOpen:
			next.Status = domain.StatusWaitingRoom
		}
	case Leave:
		p := next.Participants[act.Role]
		if p == nil {
			return s, nil
		}
		p.Online = false
		p.Ready = false
		if next.Status != domain.StatusCompleted {
			next.Status = domain.StatusScheduled
		}
	case SetReady:
		p := next.Participants[act.Role]
		if p == nil {
			return s, ErrUnknownParticipant
		}
		p.Ready = act.Ready
	case Start:
		if next.Status != domain.StatusWaitingRoom || !next.CanStart || next.Phase != domain.PhaseOpen {
			return s, nil
		}
		next.Status = domain.StatusActive
	case End:
		next.Status = domain.StatusCompleted
	case UpdateDeviceStatus:
		p := next.Participants[act.Role]
		if p == nil {
			return s, ErrUnknownParticipant
		}
		mergeDevice(&p.Device, act.Patch)
	case UpdateNetworkQuality:
		p := next.Participants[act.Role]
		if p == nil {
			return s, ErrUnknownParticipant
		}
		p.Network = mergeNetwork(p.Network, act.Patch)
	case PeerJoined:
		if !act.Participant.Role.Valid() {
			return s, fmt.Errorf("peer joined: invalid role %q", act.Participant.Role)
		}
		p := upsert(&next, act.Participant)
		p.Online = true
		p.Ready = act.Participant.Ready
	case PeerLeft:
		p := next.Participants[act.Role]
		if p == nil {
			return s, nil
		}
		p.Online = false
		p.Ready = false
	case PeerReady:
		p := next.Participants[act.Role]
		if p == nil {
			return s, ErrUnknownParticipant
		}
		p.Ready = act.Ready
	case SyncStatus:
		switch act.Status {
		case domain.StatusActive:
			if next.Status != domain.StatusWaitingRoom {
				return s, nil
			}
			next.Status = domain.StatusActive
		case domain.StatusCompleted:
			next.Status = domain.StatusCompleted
		default:
			return s, nil
		}
	default:
		return s, fmt.Errorf("%w: %T", ErrUnknownAction, a)
	}
	next.CanStart = canStart(next)
	return next, nil
}

func refreshPhase(s *domain.Session, t Tick) {
	ph, left := phase.Compute(t.Now, s.ScheduledStart, s.ScheduledEnd)
	s.Phase = ph
	s.TimeRemainingSeconds = phase.Seconds(left)
}

// upsert keeps an existing entry's readiness, device and network state and
// refreshes its identity fields.
func upsert(s *domain.Session, in domain.Participant) *domain.Participant {
	if s.Participants == nil {
		s.Participants = make(map[domain.Role]*domain.Participant, 2)
	}
	p := s.Participants[in.Role]
	if p == nil {
		p = &domain.Participant{Role: in.Role, Device: in.Device}
		s.Participants[in.Role] = p
	}
	p.UserID = in.UserID
	if in.DisplayName != "" {
		p.DisplayName = in.DisplayName
	}
	if in.AvatarRef != "" {
		p.AvatarRef = in.AvatarRef
	}
	return p
}

func canStart(s domain.Session) bool {
	c, e := s.Participants[domain.RoleClient], s.Participants[domain.RoleExpert]
	return c != nil && e != nil && c.Ready && e.Ready
}

func mergeDevice(d *domain.DeviceStatus, p DevicePatch) {
	if p.Camera != nil {
		d.Camera = *p.Camera
	}
	if p.Microphone != nil {
		d.Microphone = *p.Microphone
	}
	if p.Speaker != nil {
		d.Speaker = *p.Speaker
	}
	if p.CameraPermission != nil {
		d.Permissions.Camera = *p.CameraPermission
	}
	if p.MicrophonePermission != nil {
		d.Permissions.Microphone = *p.MicrophonePermission
	}
}

func mergeNetwork(n *domain.NetworkQuality, p NetworkPatch) *domain.NetworkQuality {
	out := domain.NetworkQuality{RTTMs: domain.RTTUnmeasured}
	if n != nil {
		out = *n
	}
	if p.RTTMs != nil {
		out.RTTMs = *p.RTTMs
	}
	if p.BandwidthKbps != nil && *p.BandwidthKbps >= 0 {
		out.BandwidthKbps = *p.BandwidthKbps
	}
	out.Bucket = domain.BucketForRTT(out.RTTMs)
	if !p.At.IsZero() {
		out.LastUpdatedEpochMs = p.At.UnixMilli()
	}
	return &out
}
