package core

//go:generate mockgen -destination=mocks/collaborators.go -package=mocks github.com/dkeye/Consult/internal/core TokenIssuer,ReservationClient

import (
	"context"
	"time"

	"github.com/dkeye/Consult/internal/domain"
)

type TokenRequest struct {
	UserID domain.UserID `json:"uid"`
	Role   domain.Role   `json:"role"`
}

// Tokens are single-use credentials for one join attempt.
type Tokens struct {
	AppID          string           `json:"appId"`
	Channel        domain.ChannelID `json:"channel"`
	MediaToken     string           `json:"rtcToken"`
	SignalingToken string           `json:"rtmToken"`
}

type TokenIssuer interface {
	IssueTokens(ctx context.Context, displayID string, req TokenRequest) (Tokens, error)
}

type Reservation struct {
	ID       string                  `json:"id"`
	ExpertID domain.UserID           `json:"expertId"`
	ClientID domain.UserID           `json:"clientId"`
	StartAt  time.Time               `json:"startAt"`
	EndAt    time.Time               `json:"endAt"`
	Note     string                  `json:"note,omitempty"`
	Price    float64                 `json:"price"`
	Type     domain.ConsultationType `json:"consultationType,omitempty"`
}

type SessionDetail struct {
	ID          string      `json:"id"`
	DisplayID   string      `json:"displayId"`
	Reservation Reservation `json:"reservation"`
}

// ReservationClient is the booking backend. Start and End are best-effort from
// the orchestrator's point of view.
type ReservationClient interface {
	GetSessionDetail(ctx context.Context, displayID string) (SessionDetail, error)
	StartSession(ctx context.Context, displayID string) error
	EndSession(ctx context.Context, displayID string) error
}

// Playback is a sound that has started playing.
type Playback interface {
	Stop() error
}

// Devices opens local capture and playback hardware.
type Devices interface {
	OpenCamera(ctx context.Context) (LocalTrack, error)
	OpenMicrophone(ctx context.Context) (AudioTrack, error)
	OpenScreen(ctx context.Context) (LocalTrack, error)
	// PlayTone returns once playback has actually started. A player that exits
	// with an error right away is reported as a failure.
	PlayTone(ctx context.Context, wav []byte) (Playback, error)
}

// Event is one accepted transition in a session or channel.
type Event struct {
	ID        string        `json:"id"`
	DisplayID string        `json:"display_id"`
	Action    string        `json:"action"`
	From      domain.Status `json:"from,omitempty"`
	To        domain.Status `json:"to,omitempty"`
	Actor     string        `json:"actor,omitempty"`
	At        time.Time     `json:"at"`
}

// EventSink records events. Implementations must not block the caller for long
// and never fail the caller.
type EventSink interface {
	Record(ctx context.Context, e Event)
}
