package ws

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/and161185/chat-relay/internal/errs"
	"github.com/and161185/chat-relay/internal/limiter"
)

const (
	// writeWait bounds a single frame write, pings included.
	writeWait = 10 * time.Second

	// pongWait is how long a silent peer stays alive; pings go out more
	// often than that so a healthy peer always answers in time.
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second

	sendQueueSize = 256
)

// Client is one upgraded connection together with its outbound queue.
// It satisfies registry.Conn.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	done chan struct{}
	lim  limiter.Limiter
	log  *zap.Logger
	addr string

	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, lim limiter.Limiter, log *zap.Logger, addr string) *Client {
	return &Client{
		conn: conn,
		send: make(chan []byte, sendQueueSize),
		done: make(chan struct{}),
		lim:  lim,
		log:  log,
		addr: addr,
	}
}

// Send queues a payload for delivery. It never blocks: a closed connection
// or a full queue fails immediately, so one slow reader cannot stall the
// fan-out to everyone else.
func (c *Client) Send(payload []byte) error {
	select {
	case <-c.done:
		return errs.ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		return errs.ErrSendBufferFull
	}
}

// Close signals teardown. Safe to call from any goroutine, any number of
// times; the write pump finishes the close handshake.
func (c *Client) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

// writePump owns all writes on the connection: queued payloads, keepalive
// pings and the final close frame. It exits on the first write error or
// once Close is called, and tears the socket down so the read pump
// unblocks too.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Close()
		_ = c.conn.Close()
	}()

	for {
		select {
		case payload := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				c.log.Debug("client write failed", zap.String("remote", c.addr), zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}
