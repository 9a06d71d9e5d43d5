package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/adapters/rtc"
	"github.com/dkeye/Consult/internal/adapters/wire"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/rs/zerolog/log"
)

var ErrNotLoggedIn = errors.New("signaling client not logged in")

const signalPath = "/api/ws/signal"

// Client is the participant's end of the signaling plane.
type Client struct {
	baseURL string
	name    string

	mu      sync.Mutex
	conn    *wire.Conn
	self    domain.UserID
	onEvent func(core.PeerEvent)
}

// NewClient returns a client for the relay at serverURL. name is announced
// as the display name at login.
func NewClient(serverURL, name string) *Client {
	return &Client{baseURL: serverURL, name: name}
}

func (c *Client) Login(ctx context.Context, appID string, uid domain.UserID, token string) error {
	c.mu.Lock()
	if c.conn != nil {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	target, err := rtc.WebSocketURL(c.baseURL, signalPath)
	if err != nil {
		return err
	}
	conn, err := wire.Dial(ctx, target, nil)
	if err != nil {
		return err
	}
	conn.Start(c.onMessage)

	req := wire.Login{Type: wire.TypeLogin, AppID: appID, UID: uid, Token: token, Name: c.name}
	if _, err := conn.Request(ctx, req, wire.TypeLoginOK); err != nil {
		_ = conn.Close()
		return fmt.Errorf("signaling login: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.self = uid
	c.mu.Unlock()
	return nil
}

// JoinChannel joins ch and replays the members already present as joined
// events.
func (c *Client) JoinChannel(ctx context.Context, ch domain.ChannelID) error {
	conn, self, err := c.current()
	if err != nil {
		return err
	}
	raw, err := conn.Request(ctx, wire.Join{Type: wire.TypeJoin, Channel: ch}, wire.TypeChannelState)
	if err != nil {
		return fmt.Errorf("signaling join: %w", err)
	}
	var state wire.ChannelState
	if err := json.Unmarshal(raw, &state); err != nil {
		return err
	}
	for _, m := range state.Members {
		if m.ID == self {
			continue
		}
		c.emit(core.PeerEvent{Type: core.PeerJoined, Member: m})
	}
	return nil
}

func (c *Client) SetPresence(_ context.Context, ready bool) error {
	conn, _, err := c.current()
	if err != nil {
		return err
	}
	return conn.Send(wire.Presence{Type: wire.TypePresence, Ready: ready})
}

func (c *Client) AnnounceStatus(_ context.Context, status domain.Status) error {
	conn, _, err := c.current()
	if err != nil {
		return err
	}
	return conn.Send(wire.Status{Type: wire.TypeStatus, Status: status})
}

func (c *Client) SendChat(_ context.Context, text string) error {
	conn, _, err := c.current()
	if err != nil {
		return err
	}
	return conn.Send(wire.Chat{Type: wire.TypeChat, Text: text})
}

// Logout leaves the channel and closes the socket. Safe without Login.
func (c *Client) Logout(ctx context.Context) error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.self = ""
	c.mu.Unlock()
	if conn == nil {
		return nil
	}

	logoutCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if _, err := conn.Request(logoutCtx, wire.Simple(wire.TypeLogout), wire.TypeLoggedOut); err != nil {
		log.Debug().Err(err).Str("module", "signal.client").Msg("logout not acknowledged")
	}
	return conn.Close()
}

func (c *Client) OnPeerEvent(fn func(core.PeerEvent)) {
	c.mu.Lock()
	c.onEvent = fn
	c.mu.Unlock()
}

func (c *Client) current() (*wire.Conn, domain.UserID, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.conn == nil {
		return nil, "", ErrNotLoggedIn
	}
	return c.conn, c.self, nil
}

func (c *Client) emit(ev core.PeerEvent) {
	c.mu.Lock()
	fn := c.onEvent
	c.mu.Unlock()
	if fn != nil {
		fn(ev)
	}
}

func (c *Client) onMessage(typ string, data []byte) {
	switch typ {
	case wire.TypeMemberJoined, wire.TypeMemberLeft, wire.TypeMemberUpdated:
		var m wire.MemberEvent
		if err := json.Unmarshal(data, &m); err != nil {
			log.Warn().Err(err).Str("module", "signal.client").Msg("bad member event")
			return
		}
		c.emit(core.PeerEvent{Type: core.PeerEventType(typ), Member: m.Member})
	case wire.TypeSessionStatus:
		var s wire.Status
		if err := json.Unmarshal(data, &s); err != nil {
			log.Warn().Err(err).Str("module", "signal.client").Msg("bad status event")
			return
		}
		ev := core.PeerEvent{Type: core.PeerSessionStatus, Status: s.Status}
		if s.Member != nil {
			ev.Member = *s.Member
		}
		c.emit(ev)
	case wire.TypeChat:
		var m wire.Chat
		if err := json.Unmarshal(data, &m); err != nil {
			return
		}
		ev := core.PeerEvent{Type: core.PeerChat, Text: m.Text}
		if m.From != nil {
			ev.Member = *m.From
		}
		c.emit(ev)
	case wire.TypeError:
		log.Warn().Str("module", "signal.client").RawJSON("message", data).Msg("relay error")
	case wire.TypePong:
	default:
		log.Debug().Str("module", "signal.client").Str("type", typ).Msg("unhandled signal message")
	}
}
