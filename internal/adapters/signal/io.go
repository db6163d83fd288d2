package signal

import (
	"context"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/meshrtc/sfu/internal/core"
	"github.com/meshrtc/sfu/internal/protocol"
)

const writeDeadline = 5 * time.Second

// writePump serializes all socket writes. On any exit it closes the
// connection, so a peer that stopped reading unblocks readPump and the
// implicit leave runs promptly.
func (ctl *Controller) writePump(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(ctl.Cfg.PingPeriod)
	defer ticker.Stop()
	defer c.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deadline := time.Now().Add(writeDeadline)
			if err := c.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				log.Warn().Err(err).Str("module", "signal").Msg("writePump ping failed")
				return
			}
		case data, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeDeadline)); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump set deadline")
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				log.Error().Err(err).Str("module", "signal").Msg("writePump write error")
				return
			}
		}
	}
}

// readPump delivers inbound frames in arrival order, so signaling from a
// single client reaches the room FIFO. On any exit it drives the session
// through its implicit leave exactly once.
func (ctl *Controller) readPump(ctx context.Context, cancel context.CancelFunc, cc *connection) {
	defer func() {
		log.Info().Str("module", "signal").Str("participant", string(cc.sess.ID())).Msg("readPump closing")
		cancel()
		ctl.teardown(cc)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := cc.conn.conn.ReadMessage()
			if err != nil {
				log.Info().Err(err).Str("module", "signal").
					Str("participant", string(cc.sess.ID())).Msg("transport closed")
				return
			}
			if done := ctl.dispatch(ctx, cc, data); done {
				return
			}
		}
	}
}

// reply encodes and queues one message for this connection only.
func (ctl *Controller) reply(cc *connection, msg protocol.ServerMessage) {
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode reply")
		return
	}
	if err := cc.conn.TrySend(core.Frame(data)); err != nil {
		log.Warn().Err(err).Str("module", "signal").
			Str("participant", string(cc.sess.ID())).Msg("reply dropped")
	}
}

func (ctl *Controller) replyError(cc *connection, code int, message string) {
	ctl.reply(cc, protocol.NewError(code, message))
}

// broadcast encodes once and fans out to the room, excluding the sender.
func (ctl *Controller) broadcast(cc *connection, msg protocol.ServerMessage) {
	if cc.room == nil {
		return
	}
	data, err := protocol.Encode(msg)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Msg("encode broadcast")
		return
	}
	cc.room.Broadcast(core.Frame(data), cc.sess.ID())
}
