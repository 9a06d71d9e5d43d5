package app

import (
	"sync"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

type ChannelManagerImpl struct {
	mu       sync.RWMutex
	appID    string
	channels map[domain.ChannelID]core.ChannelService
}

func NewChannelManager(appID string) core.ChannelManager {
	return &ChannelManagerImpl{appID: appID, channels: make(map[domain.ChannelID]core.ChannelService)}
}

func (f *ChannelManagerImpl) GetOrCreate(id domain.ChannelID) core.ChannelService {
	f.mu.RLock()
	ch, ok := f.channels[id]
	f.mu.RUnlock()
	if ok {
		return ch
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if ch, ok = f.channels[id]; ok {
		return ch
	}
	ch = core.NewChannelService(&domain.Channel{ID: id, AppID: f.appID})
	f.channels[id] = ch
	return ch
}

func (f *ChannelManagerImpl) Get(id domain.ChannelID) (core.ChannelService, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	ch, ok := f.channels[id]
	return ch, ok
}

func (f *ChannelManagerImpl) List() []core.ChannelInfo {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]core.ChannelInfo, 0, len(f.channels))
	for id, ch := range f.channels {
		out = append(out, core.ChannelInfo{ID: id, MemberCount: ch.MemberCount()})
	}
	return out
}

func (f *ChannelManagerImpl) Stop(id domain.ChannelID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.channels, id)
}
