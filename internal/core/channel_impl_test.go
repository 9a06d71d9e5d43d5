package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/dkeye/Consult/internal/domain"
)

type recordingSignal struct {
	mu     sync.Mutex
	frames []Frame
	err    error
}

func (s *recordingSignal) TrySend(f Frame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	s.frames = append(s.frames, f)
	return nil
}

func (s *recordingSignal) Close() {}

func (s *recordingSignal) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func newMember(t *testing.T, uid domain.UserID, role domain.Role, sc SignalConnection) MemberSession {
	t.Helper()
	u, err := domain.NewUser(uid, string(uid))
	if err != nil {
		t.Fatalf("NewUser: %v", err)
	}
	ms := NewMemberSession(domain.NewMember(u, role))
	if sc != nil {
		ms.UpdateSignal(sc)
	}
	return ms
}

func TestChannel_Broadcast(t *testing.T) {
	ch := NewChannelService(&domain.Channel{ID: "D-1", AppID: "consult"})
	sender := &recordingSignal{}
	ok := &recordingSignal{}
	full := &recordingSignal{err: errors.New("backpressure")}

	ch.AddMember("s1", newMember(t, "u1", domain.RoleClient, sender))
	ch.AddMember("s2", newMember(t, "u2", domain.RoleExpert, ok))
	ch.AddMember("s3", newMember(t, "u3", domain.RoleExpert, full))
	ch.AddMember("s4", newMember(t, "u4", domain.RoleExpert, nil))

	res := ch.Broadcast("s1", Frame(`{"type":"chat"}`))
	if res.SendTo != 1 {
		t.Errorf("SendTo = %d, want 1", res.SendTo)
	}
	if len(res.Dropped) != 1 || res.Dropped[0].Meta().User.ID != "u3" {
		t.Errorf("Dropped = %v, want [u3]", res.Dropped)
	}
	if sender.count() != 0 {
		t.Errorf("sender received %d frames, want 0", sender.count())
	}
	if ok.count() != 1 {
		t.Errorf("receiver got %d frames, want 1", ok.count())
	}
}

func TestChannel_Membership(t *testing.T) {
	ch := NewChannelService(&domain.Channel{ID: "D-1"})
	ch.AddMember("s1", newMember(t, "u1", domain.RoleClient, nil))
	ch.AddMember("s2", newMember(t, "u2", domain.RoleExpert, nil))
	if got := ch.MemberCount(); got != 2 {
		t.Errorf("MemberCount = %d, want 2", got)
	}

	ch.RemoveMember("s1")
	snap := ch.MembersSnapshot()
	if len(snap) != 1 || snap[0].ID != "u2" || snap[0].Role != domain.RoleExpert {
		t.Errorf("MembersSnapshot = %+v, want [u2 expert]", snap)
	}
}

func TestChannel_SetReady(t *testing.T) {
	ch := NewChannelService(&domain.Channel{ID: "D-1"})
	ch.AddMember("s1", newMember(t, "u1", domain.RoleClient, nil))

	dto, ok := ch.SetReady("s1", true)
	if !ok || !dto.Ready || dto.ID != "u1" {
		t.Errorf("SetReady = %+v, %v, want ready u1", dto, ok)
	}
	if snap := ch.MembersSnapshot(); !snap[0].Ready {
		t.Error("snapshot not ready after SetReady")
	}
	if _, ok := ch.SetReady("missing", true); ok {
		t.Error("SetReady(missing) ok = true, want false")
	}
}
