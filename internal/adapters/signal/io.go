package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/confab-live/confab/internal/core"
)

func (ctl *SignalWSController) writePump(ctx context.Context, connID core.ConnID, c *wsSignalConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(ctl.Cfg.WriteWait)); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Str("conn", string(connID)).Msg("writePump write error")
				return
			}
		}
	}
}

// readPump is the single entry point for both inbound events and the
// disconnect transition: however the socket dies, cleanup runs exactly
// once on exit.
func (ctl *SignalWSController) readPump(ctx context.Context, cancel context.CancelFunc, connID core.ConnID, c *wsSignalConn) {
	defer func() {
		log.Info().Str("module", "signal").Str("conn", string(connID)).Msg("readPump closing")
		cancel()
		ctl.Orch.HandleDisconnect(connID)
		c.Close()
	}()

	readWait := ctl.Cfg.PingPeriod + ctl.Cfg.WriteWait
	c.conn.SetReadLimit(ctl.Cfg.ReadLimit)
	_ = c.conn.SetReadDeadline(time.Now().Add(readWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(readWait))
	})

	limiter := NewMessageRateLimiter(ctl.Cfg.MessageRate, time.Second)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := c.conn.ReadMessage()
			if err != nil {
				return
			}
			if !limiter.Allow(connID) {
				log.Warn().Str("module", "signal").Str("conn", string(connID)).Msg("message rate exceeded, dropping frame")
				continue
			}
			ctl.Orch.HandleFrame(connID, data)
		}
	}
}
