// Package signal serves the relay's two WebSocket planes: signaling (roster,
// presence, status, chat) and media negotiation for the SFU.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/dkeye/Consult/internal/adapters/rtc"
	"github.com/dkeye/Consult/internal/app"
	"github.com/dkeye/Consult/internal/app/orch"
	"github.com/dkeye/Consult/internal/config"
	"github.com/dkeye/Consult/internal/core"
	"github.com/dkeye/Consult/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"
)

var ErrBackpressure = errors.New("backpressure")

const sendBuffer = 32

type Controller struct {
	Orch       *orch.Orchestrator
	Limiter    *ChannelRateLimiter
	RTC        webrtc.Configuration
	ReadLimit  int64
	PingPeriod time.Duration
}

func NewController(o *orch.Orchestrator, cfg *config.Config) *Controller {
	return &Controller{
		Orch:       o,
		Limiter:    NewChannelRateLimiter(cfg.ChatRateLimit, cfg.ChatRateInterval),
		RTC:        rtc.DefaultWebRTCConfig(),
		ReadLimit:  cfg.ReadLimit,
		PingPeriod: cfg.PingPeriod,
	}
}

// WsConn is the relay end of one WebSocket. Writes go through a bounded queue
// drained by writePump.
type WsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func newWsConn(ws *websocket.Conn) *WsConn {
	return &WsConn{conn: ws, send: make(chan core.Frame, sendBuffer)}
}

func (c *WsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return errors.New("connection closed")
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *WsConn) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.send)
	_ = c.conn.Close()
	c.mu.Unlock()
}

// peer is the per-socket state owned by its readPump goroutine.
type peer struct {
	sid    core.SessionID
	plane  app.Plane
	conn   *WsConn
	ctx    context.Context
	cancel context.CancelFunc

	// set once the socket is admitted
	member     *domain.Member
	authorized domain.ChannelID
	joined     bool
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ctl.serve(ctx, c, app.PlaneSignaling)
}

func (ctl *Controller) HandleMedia(ctx context.Context, c *gin.Context) {
	ctl.serve(ctx, c, app.PlaneMedia)
}

func (ctl *Controller) serve(ctx context.Context, c *gin.Context, plane app.Plane) {
	sid := core.SessionID(uuid.NewString())
	log.Info().
		Str("module", "signal").
		Str("sid", string(sid)).
		Str("plane", string(plane)).
		Str("client_token", c.GetString("client_token")).
		Msg("new WS connection")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p := &peer{
		sid:    sid,
		plane:  plane,
		conn:   newWsConn(ws),
		ctx:    ctx,
		cancel: cancel,
	}

	go ctl.writePump(ctx, p.conn)
	go ctl.readPump(p)
}

func (ctl *Controller) handle(p *peer, data []byte) {
	if p.plane == app.PlaneMedia {
		ctl.handleMedia(p, data)
		return
	}
	ctl.handleSignal(p, data)
}

// cleanup runs once the socket is gone.
func (ctl *Controller) cleanup(p *peer) {
	switch p.plane {
	case app.PlaneSignaling:
		ctl.leaveChannel(p)
	case app.PlaneMedia:
		ctl.Orch.LeaveMedia(p.sid)
	}
	if p.member != nil {
		ctl.Orch.Registry.Unbind(p.sid)
	}
	p.cancel()
}
