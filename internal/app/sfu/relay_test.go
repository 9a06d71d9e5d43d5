package sfu

import (
	"errors"
	"testing"

	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
)

func TestOutTrack_State(t *testing.T) {
	ot := NewOutTrack("dst", nil, nil)
	if ot.GetState() != TrackStateOk {
		t.Fatalf("initial state = %v, want ok", ot.GetState())
	}
	ot.MarkMuted()
	if ot.GetState() != TrackStateMuted {
		t.Errorf("state = %v, want muted", ot.GetState())
	}
	ot.MarkDelete()
	if ot.GetState() != TrackStateDelete {
		t.Errorf("state = %v, want delete", ot.GetState())
	}
	ot.MarkOk()
	if ot.GetState() != TrackStateOk {
		t.Errorf("state = %v, want ok", ot.GetState())
	}
}

func TestRelay_Subscribers(t *testing.T) {
	r := NewRelay(TrackKey{SID: "pub", TrackID: "mic-1"}, "u1", nil, nil)
	r.AddOutTrack(NewOutTrack("a", nil, nil))
	r.AddOutTrack(NewOutTrack("b", nil, nil))

	if !r.HasSubscriber("a") {
		t.Error("HasSubscriber(a) = false")
	}
	ot, ok := r.RemoveOutTrack("a")
	if !ok || ot.Dst != "a" || ot.GetState() != TrackStateDelete {
		t.Errorf("RemoveOutTrack(a) = %+v, %v", ot, ok)
	}
	if _, ok := r.RemoveOutTrack("a"); ok {
		t.Error("second RemoveOutTrack(a) ok = true")
	}

	var ended []*OutTrack
	r.onEnded = func(_ *Relay, detached []*OutTrack) { ended = detached }
	r.end()
	if len(ended) != 1 || ended[0].Dst != "b" {
		t.Errorf("detached = %v, want [b]", ended)
	}
	if r.HasSubscriber("b") {
		t.Error("subscriber kept after end")
	}
}

func TestRelay_CleanupDeleted(t *testing.T) {
	r := NewRelay(TrackKey{SID: "pub", TrackID: "cam-1"}, "u1", nil, nil)
	r.AddOutTrack(NewOutTrack("a", nil, nil))
	r.AddOutTrack(NewOutTrack("b", nil, nil))
	r.cleanupDeleted([]core.SessionID{"a"})
	if r.HasSubscriber("a") || !r.HasSubscriber("b") {
		t.Error("cleanupDeleted removed the wrong subscribers")
	}
}

func TestRelayManager(t *testing.T) {
	m := NewRelayManager()
	canceled := map[string]bool{}
	add := func(sid core.SessionID, track string) *Relay {
		key := TrackKey{SID: sid, TrackID: track}
		r := NewRelay(key, domain.UserID("u-"+string(sid)), nil, func() { canceled[track] = true })
		m.relays[key] = r
		return r
	}
	mic := add("pub", "mic")
	cam := add("pub", "cam")
	add("other", "mic2")

	if got := len(m.RelaysOf("pub")); got != 2 {
		t.Errorf("RelaysOf(pub) = %d relays, want 2", got)
	}
	if !m.HasRelay(TrackKey{SID: "pub", TrackID: "cam"}) {
		t.Error("HasRelay(pub/cam) = false")
	}

	mic.AddOutTrack(NewOutTrack("sub", nil, nil))
	cam.AddOutTrack(NewOutTrack("sub", nil, nil))
	if got := m.Unsubscribe("sub"); len(got) != 2 {
		t.Errorf("Unsubscribe(sub) = %d tracks, want 2", len(got))
	}
	if got := m.Unsubscribe("sub"); len(got) != 0 {
		t.Errorf("second Unsubscribe(sub) = %d tracks, want 0", len(got))
	}

	m.StopRelays("pub")
	if !canceled["mic"] || !canceled["cam"] || canceled["mic2"] {
		t.Errorf("canceled = %v, want mic and cam only", canceled)
	}

	_, err := m.Subscribe(TrackKey{SID: "nobody", TrackID: "x"}, "sub", nil)
	if !errors.Is(err, ErrNoRelay) {
		t.Errorf("Subscribe(unknown) err = %v, want ErrNoRelay", err)
	}
}
