package signal

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

const writeWait = 5 * time.Second

func (ctl *Controller) writePump(ctx context.Context, c *WsConn) {
	ping := time.NewTicker(ctl.pingPeriod())
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("module", "signal").Msg("writePump ctx done")
			c.Close()
			return
		case <-ping.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping")
				c.Close()
				return
			}
		case data, ok := <-c.send:
			if !ok {
				log.Debug().Str("module", "signal").Msg("writePump channel closed")
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				c.Close()
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				c.Close()
				return
			}
		}
	}
}

func (ctl *Controller) readPump(p *peer) {
	defer func() {
		log.Info().Str("module", "signal").Str("sid", string(p.sid)).Msg("readPump closing")
		ctl.cleanup(p)
		p.conn.Close()
	}()

	if ctl.ReadLimit > 0 {
		p.conn.conn.SetReadLimit(ctl.ReadLimit)
	}
	pongWait := ctl.pingPeriod() * 10 / 9
	_ = p.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.conn.SetPongHandler(func(string) error {
		return p.conn.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		select {
		case <-p.ctx.Done():
			log.Info().Str("module", "signal").Str("sid", string(p.sid)).Msg("readPump ctx done")
			return
		default:
			_, data, err := p.conn.conn.ReadMessage()
			if err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Str("module", "signal").Str("sid", string(p.sid)).Msg("readPump read error")
				}
				return
			}
			ctl.handle(p, data)
		}
	}
}

func (ctl *Controller) pingPeriod() time.Duration {
	if ctl.PingPeriod <= 0 {
		return 54 * time.Second
	}
	return ctl.PingPeriod
}

func (ctl *Controller) sendJSON(c *WsConn, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("sendJSON marshal")
		return
	}
	_ = c.TrySend(b)
}

func (ctl *Controller) marshal(v any) []byte {
	b, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("marshal")
		return nil
	}
	return b
}
