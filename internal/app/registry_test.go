package app

import (
	"testing"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

func member(uid domain.UserID) core.MemberSession {
	return core.NewMemberSession(domain.NewMember(&domain.User{ID: uid, DisplayName: string(uid)}, domain.RoleClient))
}

func TestRegistry_BindAndChannel(t *testing.T) {
	r := NewRegistry()
	sig := member("u1")
	r.Bind("sig-1", PlaneSignaling, sig, nil)
	r.Bind("med-1", PlaneMedia, member("u1"), nil)

	if _, _, ok := r.ChannelOf("sig-1"); ok {
		t.Error("ChannelOf before UpdateChannel ok = true, want false")
	}
	if !r.UpdateChannel("sig-1", "D-1") || !r.UpdateChannel("med-1", "D-1") {
		t.Fatal("UpdateChannel on bound sid = false")
	}
	if r.UpdateChannel("missing", "D-1") {
		t.Error("UpdateChannel(missing) = true, want false")
	}

	ch, sess, ok := r.ChannelOf("sig-1")
	if !ok || ch != "D-1" || sess != sig {
		t.Errorf("ChannelOf = %q, %v, %v, want D-1", ch, sess, ok)
	}
	if plane, _ := r.PlaneOf("med-1"); plane != PlaneMedia {
		t.Errorf("PlaneOf = %q, want %q", plane, PlaneMedia)
	}

	tests := []struct {
		plane Plane
		want  core.SessionID
	}{
		{PlaneSignaling, "sig-1"},
		{PlaneMedia, "med-1"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(string(tt.plane), func(t *testing.T) {
			got := r.MembersOfChannel("D-1", tt.plane)
			if len(got) != 1 || got[0].SID != tt.want {
				t.Errorf("MembersOfChannel = %+v, want [%s]", got, tt.want)
			}
		})
	}

	r.RemoveChannel("sig-1")
	if _, _, ok := r.ChannelOf("sig-1"); ok {
		t.Error("ChannelOf after RemoveChannel ok = true")
	}
	r.Unbind("sig-1")
	if _, ok := r.GetSession("sig-1"); ok {
		t.Error("GetSession after Unbind ok = true")
	}
}

func TestRegistry_Cancel(t *testing.T) {
	r := NewRegistry()
	called := 0
	r.Bind("s1", PlaneSignaling, member("u1"), func() { called++ })
	r.Bind("s2", PlaneSignaling, member("u2"), nil)

	if !r.Cancel("s1") || called != 1 {
		t.Errorf("Cancel(s1) called = %d, want 1", called)
	}
	if !r.Cancel("s2") {
		t.Error("Cancel(s2) with nil cancel = false, want true")
	}
	if r.Cancel("missing") {
		t.Error("Cancel(missing) = true, want false")
	}
}

func TestChannelManager(t *testing.T) {
	m := NewChannelManager("consult")
	a := m.GetOrCreate("D-1")
	if b := m.GetOrCreate("D-1"); a != b {
		t.Error("GetOrCreate returned a different channel for the same id")
	}
	if a.Channel().AppID != "consult" {
		t.Errorf("AppID = %q, want consult", a.Channel().AppID)
	}
	a.AddMember("s1", member("u1"))

	list := m.List()
	if len(list) != 1 || list[0].ID != "D-1" || list[0].MemberCount != 1 {
		t.Errorf("List = %+v, want [D-1 x1]", list)
	}

	m.Stop("D-1")
	if _, ok := m.Get("D-1"); ok {
		t.Error("Get after Stop ok = true")
	}
}

func TestSimplePolicy(t *testing.T) {
	var p Policy = SimplePolicy{}
	if got := p.OnBackPressure(nil, member("u1")); got != KickMember {
		t.Errorf("OnBackPressure = %v, want KickMember", got)
	}
}
