package core

import (
	"github.com/dkeye/Consult/internal/domain"
)

// PublishResult reports delivery stats/backpressure to orchestrator.
type PublishResult struct {
	SendTo  int
	Dropped []MemberSession
}

// MemberDTO is a read-only view for APIs (no transport fields).
type MemberDTO struct {
	ID          domain.UserID `json:"uid"`
	Role        domain.Role   `json:"role"`
	DisplayName string        `json:"name"`
	Ready       bool          `json:"ready"`
}

func NewMemberDTO(m *domain.Member) MemberDTO {
	return MemberDTO{ID: m.User.ID, Role: m.Role, DisplayName: m.User.DisplayName, Ready: m.Ready}
}

// ChannelService is the core-facing API of a channel.
// It owns the membership set but never touches transport resources.
type ChannelService interface {
	Channel() *domain.Channel
	MemberCount() int
	MembersSnapshot() []MemberDTO

	AddMember(sid SessionID, ms MemberSession)
	RemoveMember(sid SessionID)
	// SetReady updates a member's readiness and returns its new view.
	SetReady(sid SessionID, ready bool) (MemberDTO, bool)
	Broadcast(from SessionID, data Frame) PublishResult
}

type ChannelInfo struct {
	ID          domain.ChannelID `json:"channel"`
	MemberCount int              `json:"member_count"`
}

type ChannelManager interface {
	GetOrCreate(id domain.ChannelID) ChannelService
	Get(id domain.ChannelID) (ChannelService, bool)
	List() []ChannelInfo
	Stop(id domain.ChannelID)
}
