// Package signal drives the signaling protocol state machine per WebSocket
// connection: decode, validate against the peer session state, dispatch to
// room operations, encode the resulting events.
package signal

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/meshrtc/sfu/internal/config"
	"github.com/meshrtc/sfu/internal/core"
	"github.com/meshrtc/sfu/internal/sfu"
)

var (
	ErrBackpressure = errors.New("backpressure")
	ErrConnClosed   = errors.New("connection closed")
)

type Controller struct {
	Cfg      *config.Config
	Registry *core.Registry
	Relays   *sfu.Manager
}

func NewController(cfg *config.Config, registry *core.Registry, relays *sfu.Manager) *Controller {
	return &Controller{Cfg: cfg, Registry: registry, Relays: relays}
}

// wsConn implements core.SignalSender over one gorilla connection. Sends
// go through a buffered channel so a slow client saturates only itself.
// The closed flag is checked under the same lock that Close holds while
// closing the channel, so a broadcast racing a disconnect gets an error,
// never a send on a closed channel.
type wsConn struct {
	conn *websocket.Conn
	send chan core.Frame

	mu     sync.RWMutex
	closed bool
}

func (c *wsConn) TrySend(f core.Frame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return ErrConnClosed
	}
	select {
	case c.send <- f:
	default:
		return ErrBackpressure
	}
	return nil
}

func (c *wsConn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
	if c.conn != nil {
		_ = c.conn.Close()
	}
}

// connection is the per-client dispatch state. room stays nil until a join
// succeeds; the zero value of the session state machine is Joining.
type connection struct {
	conn *wsConn
	sess *core.PeerSession
	room *core.Room
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (ctl *Controller) HandleSignal(ctx context.Context, c *gin.Context) {
	ws, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("ws upgrade")
		return
	}
	ws.SetReadLimit(ctl.Cfg.ReadLimit)
	log.Info().Str("module", "signal").Str("remote", ws.RemoteAddr().String()).Msg("new WS connection")

	conn := &wsConn{
		conn: ws,
		send: make(chan core.Frame, 32),
	}
	cc := &connection{
		conn: conn,
		sess: core.NewPeerSession(conn),
	}

	ctx, cancel := context.WithCancel(ctx)
	go ctl.writePump(ctx, conn)
	go ctl.readPump(ctx, cancel, cc)
}
