// Package wire holds the JSON envelopes spoken on the media and signaling
// WebSockets, and the client end of those sockets.
package wire

import (
	"encoding/json"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/pion/webrtc/v4"
)

// Envelope types. Requests and their replies share one socket; every message
// carries its type.
const (
	TypeLogin         = "login"
	TypeLoginOK       = "login_ok"
	TypeJoin          = "join"
	TypeJoined        = "joined"
	TypeChannelState  = "channel_state"
	TypeMemberJoined  = "member_joined"
	TypeMemberLeft    = "member_left"
	TypeMemberUpdated = "member_updated"
	TypePresence      = "presence"
	TypeStatus        = "status"
	TypeSessionStatus = "session_status"
	TypeChat          = "chat"
	TypeLogout        = "logout"
	TypeLoggedOut     = "logged_out"
	TypePing          = "ping"
	TypePong          = "pong"
	TypeError         = "error"

	TypeOffer       = "offer"
	TypeAnswer      = "answer"
	TypeCandidate   = "candidate"
	TypeRenegotiate = "renegotiate"
	TypeLeave       = "leave"
	TypeLeft        = "left"
)

// Error codes carried by an error envelope.
const (
	ErrBadPayload     = "bad_payload"
	ErrUnauthorized   = "unauthorized"
	ErrNotLoggedIn    = "not_logged_in"
	ErrAlreadyIn      = "already_logged_in"
	ErrForbidden      = "forbidden_channel"
	ErrNotInChannel   = "not_in_channel"
	ErrRateLimited    = "rate_limited"
	ErrInvalidStatus  = "invalid_status"
	ErrInvalidName    = "invalid_name"
	ErrNotJoined      = "not_joined"
	ErrNegotiation    = "negotiation_failed"
	ErrUnknownMessage = "unknown_type"
)

type Envelope struct {
	Type string `json:"type"`
}

// TypeOf returns the type of a raw envelope.
func TypeOf(data []byte) (string, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return "", err
	}
	return env.Type, nil
}

type Login struct {
	Type  string        `json:"type"`
	AppID string        `json:"app_id"`
	UID   domain.UserID `json:"uid"`
	Token string        `json:"token"`
	Name  string        `json:"name,omitempty"`
}

type LoginOK struct {
	Type    string           `json:"type"`
	UID     domain.UserID    `json:"uid"`
	Role    domain.Role      `json:"role"`
	Channel domain.ChannelID `json:"channel"`
}

// Join is used by both planes. The media plane authenticates in the join
// itself; the signaling plane has already logged in.
type Join struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channel"`
	AppID   string           `json:"app_id,omitempty"`
	UID     domain.UserID    `json:"uid,omitempty"`
	Token   string           `json:"token,omitempty"`
}

type Joined struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channel"`
}

type ChannelState struct {
	Type    string           `json:"type"`
	Channel domain.ChannelID `json:"channel"`
	Members []core.MemberDTO `json:"members"`
	Count   int              `json:"count"`
}

type MemberEvent struct {
	Type   string         `json:"type"`
	Member core.MemberDTO `json:"member"`
}

type Presence struct {
	Type  string `json:"type"`
	Ready bool   `json:"ready"`
}

type Status struct {
	Type   string          `json:"type"`
	Status domain.Status   `json:"status"`
	Member *core.MemberDTO `json:"member,omitempty"`
}

type Chat struct {
	Type string          `json:"type"`
	Text string          `json:"text"`
	From *core.MemberDTO `json:"from,omitempty"`
}

type SDP struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

type Candidate struct {
	Type          string `json:"type"`
	Candidate     string `json:"candidate"`
	SDPMid        string `json:"sdpMid,omitempty"`
	SDPMLineIndex uint16 `json:"sdpMLineIndex,omitempty"`
}

func NewCandidate(ci webrtc.ICECandidateInit) Candidate {
	c := Candidate{Type: TypeCandidate, Candidate: ci.Candidate}
	if ci.SDPMid != nil {
		c.SDPMid = *ci.SDPMid
	}
	if ci.SDPMLineIndex != nil {
		c.SDPMLineIndex = *ci.SDPMLineIndex
	}
	return c
}

func (c Candidate) Init() webrtc.ICECandidateInit {
	ci := webrtc.ICECandidateInit{Candidate: c.Candidate}
	if c.SDPMid != "" {
		ci.SDPMid = &c.SDPMid
	}
	idx := c.SDPMLineIndex
	ci.SDPMLineIndex = &idx
	return ci
}

type Error struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

func NewError(code string) Error {
	return Error{Type: TypeError, Error: code}
}

func Simple(typ string) Envelope {
	return Envelope{Type: typ}
}
