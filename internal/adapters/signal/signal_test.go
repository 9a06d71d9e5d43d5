package signal

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dkeye/Consult/internal/adapters/rtc"
	"github.com/dkeye/Consult/internal/adapters/wire"
	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/app/sfu"
	"github.com/dkeye/Consult/internal/config"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/dkeye/Consult/internal/security"
	"github.com/gin-gonic/gin"
)

type relay struct {
	url  string
	orch *orch.Orchestrator
}

func newRelay(t *testing.T, chatLimit int) *relay {
	t.Helper()
	gin.SetMode(gin.TestMode)
	o := &orch.Orchestrator{
		Registry: app.NewRegistry(),
		Channels: app.NewChannelManager("consult"),
		Policy:   app.SimplePolicy{},
		Relays:   sfu.NewRelayManager(),
		Tokens:   security.NewTokenProvider("test-secret", "consult", time.Minute),
	}
	ctl := NewController(o, &config.Config{
		ReadLimit:        32768,
		PingPeriod:       time.Minute,
		ChatRateLimit:    chatLimit,
		ChatRateInterval: time.Minute,
	})

	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.GET(signalPath, func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	t.Cleanup(cancel)
	return &relay{url: srv.URL, orch: o}
}

func (r *relay) tokens(t *testing.T, uid domain.UserID, role domain.Role) core.Tokens {
	t.Helper()
	tok, err := r.orch.Tokens.Issue("D-1", uid, role)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	return tok
}

func (r *relay) dial(t *testing.T) *wire.Conn {
	t.Helper()
	target, err := rtc.WebSocketURL(r.url, signalPath)
	if err != nil {
		t.Fatalf("WebSocketURL: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, err := wire.Dial(ctx, target, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	conn.Start(nil)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func (r *relay) login(t *testing.T, name string, uid domain.UserID, role domain.Role) (*Client, chan core.PeerEvent) {
	t.Helper()
	events := make(chan core.PeerEvent, 16)
	c := NewClient(r.url, name)
	c.OnPeerEvent(func(ev core.PeerEvent) { events <- ev })
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.Login(ctx, "consult", uid, r.tokens(t, uid, role).SignalingToken); err != nil {
		t.Fatalf("Login(%s): %v", uid, err)
	}
	if err := c.JoinChannel(ctx, "D-1"); err != nil {
		t.Fatalf("JoinChannel(%s): %v", uid, err)
	}
	t.Cleanup(func() { _ = c.Logout(context.Background()) })
	return c, events
}

func waitEvent(t *testing.T, events <-chan core.PeerEvent, typ core.PeerEventType) core.PeerEvent {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case ev := <-events:
			if ev.Type == typ {
				return ev
			}
		case <-timeout:
			t.Fatalf("no %s event", typ)
			return core.PeerEvent{}
		}
	}
}

func TestSignaling_RosterAndEvents(t *testing.T) {
	r := newRelay(t, 5)
	ctx := context.Background()

	_, expertEvents := r.login(t, "Erin", "u-expert", domain.RoleExpert)
	client, clientEvents := r.login(t, "Cleo", "u-client", domain.RoleClient)

	if ev := waitEvent(t, clientEvents, core.PeerJoined); ev.Member.ID != "u-expert" || ev.Member.DisplayName != "Erin" {
		t.Errorf("replayed member = %+v, want u-expert Erin", ev.Member)
	}
	if ev := waitEvent(t, expertEvents, core.PeerJoined); ev.Member.ID != "u-client" || ev.Member.Role != domain.RoleClient {
		t.Errorf("joined member = %+v, want u-client client", ev.Member)
	}

	if err := client.SetPresence(ctx, true); err != nil {
		t.Fatalf("SetPresence: %v", err)
	}
	if ev := waitEvent(t, expertEvents, core.PeerUpdated); !ev.Member.Ready {
		t.Errorf("updated member = %+v, want ready", ev.Member)
	}

	if err := client.AnnounceStatus(ctx, domain.StatusActive); err != nil {
		t.Fatalf("AnnounceStatus: %v", err)
	}
	if ev := waitEvent(t, expertEvents, core.PeerSessionStatus); ev.Status != domain.StatusActive || ev.Member.ID != "u-client" {
		t.Errorf("status event = %+v, want ACTIVE from u-client", ev)
	}

	if err := client.SendChat(ctx, "  hello  "); err != nil {
		t.Fatalf("SendChat: %v", err)
	}
	if ev := waitEvent(t, expertEvents, core.PeerChat); ev.Text != "hello" || ev.Member.ID != "u-client" {
		t.Errorf("chat event = %+v, want hello from u-client", ev)
	}

	if err := client.Logout(ctx); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if ev := waitEvent(t, expertEvents, core.PeerLeft); ev.Member.ID != "u-client" {
		t.Errorf("left member = %+v, want u-client", ev.Member)
	}
	if err := client.SendChat(ctx, "late"); !errors.Is(err, ErrNotLoggedIn) {
		t.Errorf("SendChat after Logout err = %v, want ErrNotLoggedIn", err)
	}
}

func remoteCode(err error) string {
	var re *wire.RemoteError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

func TestSignaling_Rejections(t *testing.T) {
	r := newRelay(t, 5)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok := r.tokens(t, "u-client", domain.RoleClient)
	conn := r.dial(t)

	steps := []struct {
		name string
		msg  any
		want string
	}{
		{"join before login", wire.Join{Type: wire.TypeJoin, Channel: "D-1"}, wire.ErrNotLoggedIn},
		{"bad token", wire.Login{Type: wire.TypeLogin, AppID: "consult", UID: "u-client", Token: "nope"}, wire.ErrUnauthorized},
		{"media token", wire.Login{Type: wire.TypeLogin, AppID: "consult", UID: "u-client", Token: tok.MediaToken}, wire.ErrUnauthorized},
		{"unknown type", wire.Simple("dance"), wire.ErrUnknownMessage},
	}
	for _, s := range steps {
		s := s
		t.Run(s.name, func(t *testing.T) {
			_, err := conn.Request(ctx, s.msg, wire.TypeLoginOK, wire.TypeChannelState, wire.TypePong)
			if got := remoteCode(err); got != s.want {
				t.Errorf("error = %v, want %s", err, s.want)
			}
		})
	}

	if _, err := conn.Request(ctx, wire.Simple(wire.TypePing), wire.TypePong); err != nil {
		t.Fatalf("ping: %v", err)
	}

	login := wire.Login{Type: wire.TypeLogin, AppID: "consult", UID: "u-client", Token: tok.SignalingToken}
	if _, err := conn.Request(ctx, login, wire.TypeLoginOK); err != nil {
		t.Fatalf("login: %v", err)
	}

	after := []struct {
		name string
		msg  any
		want string
	}{
		{"second login", login, wire.ErrAlreadyIn},
		{"chat before join", wire.Chat{Type: wire.TypeChat, Text: "hi"}, wire.ErrNotInChannel},
		{"other channel", wire.Join{Type: wire.TypeJoin, Channel: "D-2"}, wire.ErrForbidden},
	}
	for _, s := range after {
		s := s
		t.Run(s.name, func(t *testing.T) {
			_, err := conn.Request(ctx, s.msg, wire.TypeLoginOK, wire.TypeChannelState)
			if got := remoteCode(err); got != s.want {
				t.Errorf("error = %v, want %s", err, s.want)
			}
		})
	}

	// A replayed token is refused on a fresh socket.
	other := r.dial(t)
	if _, err := other.Request(ctx, login, wire.TypeLoginOK); remoteCode(err) != wire.ErrUnauthorized {
		t.Errorf("replayed login err = %v, want %s", err, wire.ErrUnauthorized)
	}
}

func TestSignaling_ChatAndStatusLimits(t *testing.T) {
	r := newRelay(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	tok := r.tokens(t, "u-client", domain.RoleClient)
	conn := r.dial(t)
	if _, err := conn.Request(ctx, wire.Login{Type: wire.TypeLogin, AppID: "consult", UID: "u-client", Token: tok.SignalingToken}, wire.TypeLoginOK); err != nil {
		t.Fatalf("login: %v", err)
	}
	if _, err := conn.Request(ctx, wire.Join{Type: wire.TypeJoin, Channel: "D-1"}, wire.TypeChannelState); err != nil {
		t.Fatalf("join: %v", err)
	}

	if err := conn.Send(wire.Chat{Type: wire.TypeChat, Text: "first"}); err != nil {
		t.Fatalf("first chat: %v", err)
	}
	tests := []struct {
		name string
		msg  any
		want string
	}{
		{"rate limited", wire.Chat{Type: wire.TypeChat, Text: "second"}, wire.ErrRateLimited},
		{"blank chat", wire.Chat{Type: wire.TypeChat, Text: "   "}, wire.ErrBadPayload},
		{"waiting room status", wire.Status{Type: wire.TypeStatus, Status: domain.StatusWaitingRoom}, wire.ErrInvalidStatus},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			_, err := conn.Request(ctx, tt.msg, wire.TypePong)
			if got := remoteCode(err); got != tt.want {
				t.Errorf("error = %v, want %s", err, tt.want)
			}
		})
	}

	if _, err := conn.Request(ctx, wire.Simple(wire.TypeLogout), wire.TypeLoggedOut); err != nil {
		t.Fatalf("logout: %v", err)
	}
	if _, ok := r.orch.Channels.Get("D-1"); ok {
		t.Error("channel kept after its only member logged out")
	}
}
