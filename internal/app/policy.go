package app

import "github.com/dkeye/Consult/internal/core"

type BackpressureAction int

const (
	NoAction BackpressureAction = iota
	MarkSlow
	KickMember
	DropFrame
)

type Policy interface {
	OnBackPressure(ch core.ChannelService, member core.MemberSession) BackpressureAction
}

// SimplePolicy kicks any member that cannot keep up.
type SimplePolicy struct{}

func (SimplePolicy) OnBackPressure(ch core.ChannelService, member core.MemberSession) BackpressureAction {
	return KickMember
}
