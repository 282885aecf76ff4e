// Package signal owns the WebSocket transport for the signaling protocol:
// the upgrade, the per-connection read/write pumps, and backpressure.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/confab-live/confab/internal/app"
	"github.com/confab-live/confab/internal/config"
	"github.com/confab-live/confab/internal/core"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrClosed       = errors.New("connection closed")
)

type SignalWSController struct {
	Orch *app.Orchestrator
	Cfg  *config.Config
}

func NewSignalWSController(orch *app.Orchestrator, cfg *config.Config) *SignalWSController {
	return &SignalWSController{Orch: orch, Cfg: cfg}
}

// wsSignalConn implements core.SignalConnection over a gorilla socket.
// Sends go through a buffered channel drained by the write pump; the
// channel order is the per-recipient delivery order.
type wsSignalConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsSignalConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsSignalConn) Close() {
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

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleSignal upgrades the request and registers the connection. The
// connection id is generated here, unique per transport session; the
// credential gate already ran in the router middleware.
func (ctl *SignalWSController) HandleSignal(ctx context.Context, c *gin.Context) {
	accountID := c.GetString("account_id")

	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}

	connID := core.ConnID(uuid.NewString())
	conn := &wsSignalConn{
		conn: ws,
		send: make(chan core.Frame, ctl.Cfg.SendBuffer),
	}
	ctl.Orch.Connect(connID, conn, accountID)
	log.Info().Str("module", "signal").Str("conn", string(connID)).Str("account", accountID).Msg("new WS connection")

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, connID, conn)
	go ctl.readPump(ctx, cancel, connID, conn)
}
