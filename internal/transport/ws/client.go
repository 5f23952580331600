package ws

import (
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cory-johannsen/roomsync/internal/config"
	"github.com/cory-johannsen/roomsync/internal/protocol"
	"github.com/cory-johannsen/roomsync/internal/session"
)

// ErrSendBufferFull is returned by Client.Send when the peer is not draining
// its outbound buffer. The client is closed when this happens.
var ErrSendBufferFull = errors.New("send buffer full")

// Client is one WebSocket connection. It satisfies session.Conn; the
// registry keys sessions by the *Client pointer.
type Client struct {
	conn    *websocket.Conn
	outbox  *session.Outbox
	limiter *rate.Limiter
	cfg     config.TransportConfig
	logger  *zap.Logger

	// deliverMu serializes handler calls and guards the held move.
	deliverMu sync.Mutex
	pending   []byte
	flush     *time.Timer
	coalesced int

	closeOnce sync.Once
	done      chan struct{}
}

func newClient(conn *websocket.Conn, cfg config.TransportConfig, logger *zap.Logger) *Client {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}
	return &Client{
		conn:    conn,
		outbox:  session.NewOutbox(cfg.SendBuffer),
		limiter: limiter,
		cfg:     cfg,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Send enqueues data for the write pump without blocking. A full buffer
// closes the client so a slow peer never stalls a room broadcast.
func (c *Client) Send(data []byte) error {
	err := c.outbox.Push(data)
	if errors.Is(err, session.ErrOutboxFull) {
		c.logger.Warn("evicting slow consumer", zap.Int("buffer", c.cfg.SendBuffer))
		c.Close()
		return ErrSendBufferFull
	}
	return err
}

// IsClosed reports whether the client has stopped accepting messages.
func (c *Client) IsClosed() bool {
	return c.outbox.IsClosed()
}

// Close stops the client. The write pump flushes a close frame and the read
// pump then exits, which triggers disconnect handling. Idempotent.
func (c *Client) Close() {
	_ = c.outbox.Close()
}

// RemoteAddr returns the peer address.
func (c *Client) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

// readPump delivers inbound frames to handler until the connection fails.
//
// Postcondition: handler.OnDisconnect has been called for c exactly once.
func (c *Client) readPump(handler Handler) {
	defer func() {
		c.shutdown()
		c.discardPending()
		handler.OnDisconnect(c)
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				c.logger.Info("websocket read failed", zap.Error(err))
			}
			return
		}
		c.receive(handler, message)
	}
}

// receive hands one inbound frame to handler. Moves beyond the rate limit are
// held, newest wins, until a token frees up or another message arrives, which
// first flushes the held move. Every other message is delivered immediately.
func (c *Client) receive(handler Handler, message []byte) {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()

	if c.limiter == nil || !protocol.Coalescable(message) {
		c.flushLocked(handler)
		handler.OnMessage(c, message)
		return
	}
	if c.pending == nil && c.limiter.Allow() {
		handler.OnMessage(c, message)
		return
	}
	if c.pending == nil {
		delay := c.limiter.Reserve().Delay()
		c.flush = time.AfterFunc(delay, func() {
			c.deliverMu.Lock()
			defer c.deliverMu.Unlock()
			if !c.IsClosed() {
				c.flushLocked(handler)
			}
		})
	}
	c.pending = message
	c.coalesced++
	if c.coalesced%100 == 1 {
		c.logger.Debug("move rate exceeded, coalescing", zap.Int("coalesced", c.coalesced))
	}
}

// flushLocked delivers the held move, if any.
//
// Precondition: deliverMu is held.
func (c *Client) flushLocked(handler Handler) {
	if c.pending == nil {
		return
	}
	if c.flush != nil {
		c.flush.Stop()
		c.flush = nil
	}
	message := c.pending
	c.pending = nil
	handler.OnMessage(c, message)
}

// discardPending drops a held move once the connection is gone.
func (c *Client) discardPending() {
	c.deliverMu.Lock()
	defer c.deliverMu.Unlock()
	if c.flush != nil {
		c.flush.Stop()
		c.flush = nil
	}
	c.pending = nil
}

// writePump drains the outbox to the socket and keeps the peer alive with
// pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		c.shutdown()
	}()

	for {
		select {
		case message, ok := <-c.outbox.Events():
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case <-c.done:
			return
		}
	}
}

// shutdown closes the outbox and the socket once, unblocking both pumps.
func (c *Client) shutdown() {
	c.closeOnce.Do(func() {
		c.Close()
		close(c.done)
		_ = c.conn.Close()
	})
}
