package domain

import (
	"errors"
	"time"
)

var ErrInvalidWindow = errors.New("scheduled end must be after scheduled start")

type Status string

const (
	StatusScheduled   Status = "SCHEDULED"
	StatusPreSession  Status = "PRE_SESSION"
	StatusWaitingRoom Status = "WAITING_ROOM"
	StatusActive      Status = "ACTIVE"
	StatusCompleted   Status = "COMPLETED"
)

type Phase string

const (
	PhaseWait   Phase = "WAIT"
	PhaseOpen   Phase = "OPEN"
	PhaseClosed Phase = "CLOSED"
)

type ConsultationType string

const (
	ConsultationChat  ConsultationType = "chat"
	ConsultationVoice ConsultationType = "voice"
	ConsultationVideo ConsultationType = "video"
)

// Session is the in-memory view of one scheduled consultation.
// Phase, TimeRemainingSeconds and CanStart are derived and never persisted.
type Session struct {
	ID                   string                `json:"id"`
	DisplayID            string                `json:"display_id"`
	Status               Status                `json:"status"`
	Type                 ConsultationType      `json:"consultation_type"`
	ScheduledStart       time.Time             `json:"scheduled_start"`
	ScheduledEnd         time.Time             `json:"scheduled_end"`
	DurationMinutes      int                   `json:"duration_minutes"`
	Phase                Phase                 `json:"phase"`
	TimeRemainingSeconds int                   `json:"time_remaining_seconds"`
	CanStart             bool                  `json:"can_start"`
	Participants         map[Role]*Participant `json:"participants"`
}

// NewSession materializes a SCHEDULED session. Phase starts as WAIT until the first tick.
func NewSession(id, displayID string, typ ConsultationType, start, end time.Time) (Session, error) {
	if !end.After(start) {
		return Session{}, ErrInvalidWindow
	}
	if typ == "" {
		typ = ConsultationVideo
	}
	return Session{
		ID:              id,
		DisplayID:       displayID,
		Status:          StatusScheduled,
		Type:            typ,
		ScheduledStart:  start,
		ScheduledEnd:    end,
		DurationMinutes: int(end.Sub(start).Round(time.Minute) / time.Minute),
		Phase:           PhaseWait,
		Participants:    make(map[Role]*Participant, 2),
	}, nil
}

// Participant returns the entry for role, or nil.
func (s Session) Participant(r Role) *Participant {
	return s.Participants[r]
}

// Clone returns a deep copy safe to hand to readers.
func (s Session) Clone() Session {
	out := s
	out.Participants = make(map[Role]*Participant, len(s.Participants))
	for r, p := range s.Participants {
		out.Participants[r] = p.clone()
	}
	return out
}
