package signal

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/dkeye/Chat/internal/core"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

func (ctl *ChatWSController) writePump(ctx context.Context, sid core.SessionID, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			_ = c.ws.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""),
				time.Now().Add(ctl.Cfg.WriteWait))
			log.Debug().Str("module", "signal").Str("sid", string(sid)).Msg("writePump ctx done")
			return
		case <-c.done:
			return
		case n := <-c.send:
			data, err := encodeNotice(n)
			if err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump encode")
				continue
			}
			if err := c.ws.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				return
			}
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump write error")
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("writePump ping error")
				return
			}
		}
	}
}

// readPump owns the session lifetime: whatever ends it, the session is
// disconnected exactly once, here.
func (ctl *ChatWSController) readPump(ctx context.Context, cancel context.CancelFunc, sid core.SessionID, c *wsSignalConn) {
	defer func() {
		cancel()
		c.Close()
		ctl.Orch.Disconnect(sid)
		if ctl.Limiter != nil {
			ctl.Limiter.Forget(sid)
		}
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("readPump closing")
	}()

	c.ws.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.ws.SetReadDeadline(time.Now().Add(ctl.Cfg.IdleTimeout))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(ctl.Cfg.IdleTimeout))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			ctl.logReadError(sid, err)
			return
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(ctl.Cfg.IdleTimeout))
		ctl.handleFrame(ctx, sid, c, data)
	}
}

func (ctl *ChatWSController) handleFrame(ctx context.Context, sid core.SessionID, c *wsSignalConn, data []byte) {
	ev, err := decodeEvent(data)
	if err != nil {
		log.Info().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("bad frame")
		_ = c.TrySend(core.RejectionNotice(err))
		return
	}
	if _, ok := ev.(core.Message); ok && ctl.Limiter != nil && !ctl.Limiter.Allow(sid) {
		_ = c.TrySend(core.RejectionNotice(errRateLimited))
		return
	}
	ctl.Orch.Handle(ctx, sid, ev)
}

func (ctl *ChatWSController) logReadError(sid core.SessionID, err error) {
	var ne net.Error
	switch {
	case errors.As(err, &ne) && ne.Timeout():
		log.Info().Str("module", "signal").Str("sid", string(sid)).Msg("idle timeout")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		log.Warn().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump read error")
	default:
		log.Debug().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("readPump done")
	}
}
