package core

import (
	"sync"

	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

// channelImpl is a threadsafe in-memory channel.
// It never closes adapter-owned resources.
type channelImpl struct {
	channel *domain.Channel
	mu      sync.RWMutex
	bySID   map[SessionID]MemberSession
}

func NewChannelService(ch *domain.Channel) ChannelService {
	return &channelImpl{
		channel: ch,
		bySID:   make(map[SessionID]MemberSession),
	}
}

func (c *channelImpl) Channel() *domain.Channel { return c.channel }

func (c *channelImpl) MemberCount() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.bySID)
}

func (c *channelImpl) AddMember(sid SessionID, ms MemberSession) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bySID[sid] = ms
	log.Info().Str("module", "core.channel").Str("channel", string(c.channel.ID)).Str("sid", string(sid)).Msg("member added")
}

func (c *channelImpl) RemoveMember(sid SessionID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.bySID, sid)
	log.Info().Str("module", "core.channel").Str("channel", string(c.channel.ID)).Str("sid", string(sid)).Msg("member removed")
}

func (c *channelImpl) SetReady(sid SessionID, ready bool) (MemberDTO, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ms, ok := c.bySID[sid]
	if !ok {
		return MemberDTO{}, false
	}
	ms.Meta().Ready = ready
	return NewMemberDTO(ms.Meta()), true
}

// Broadcast fans a frame out over the signaling plane. Members without a
// signaling connection are skipped, not dropped.
func (c *channelImpl) Broadcast(from SessionID, data Frame) PublishResult {
	c.mu.RLock()
	defer c.mu.RUnlock()
	res := PublishResult{}
	for sid, m := range c.bySID {
		if sid == from {
			continue
		}
		sc := m.Signal()
		if sc == nil {
			continue
		}
		if err := sc.TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, m)
			continue
		}
		res.SendTo++
	}
	log.Debug().Str("module", "core.channel").Str("from", string(from)).Int("sent_to", res.SendTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}

func (c *channelImpl) MembersSnapshot() []MemberDTO {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]MemberDTO, 0, len(c.bySID))
	for _, ms := range c.bySID {
		out = append(out, NewMemberDTO(ms.Meta()))
	}
	return out
}
