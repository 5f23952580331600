// Package broadcast fans serialized messages out to the connections of a room.
package broadcast

import (
	"go.uber.org/zap"

	"github.com/cory-johannsen/roomsync/internal/protocol"
	"github.com/cory-johannsen/roomsync/internal/session"
)

// Recipients resolves the connections currently subscribed to a room.
type Recipients interface {
	Recipients(roomID string) []session.Conn
}

// Router delivers outbound records to single connections or whole rooms.
// Delivery never blocks: each connection's Send is a non-blocking enqueue.
type Router struct {
	recipients Recipients
	logger     *zap.Logger
}

// NewRouter creates a Router.
//
// Precondition: recipients and logger must be non-nil.
func NewRouter(recipients Recipients, logger *zap.Logger) *Router {
	return &Router{recipients: recipients, logger: logger}
}

// Send encodes msg and enqueues it on conn.
//
// Postcondition: Returns false if encoding failed, conn was closed or the
// enqueue was refused.
func (r *Router) Send(conn session.Conn, msg any) bool {
	data, err := protocol.Encode(msg)
	if err != nil {
		r.logger.Error("encoding message", zap.Error(err))
		return false
	}
	return r.deliver(conn, data)
}

// Broadcast encodes msg once and enqueues it on every open connection in
// roomID except exclude, which may be nil.
//
// Postcondition: Returns the number of connections the message was enqueued on.
func (r *Router) Broadcast(roomID string, msg any, exclude session.Conn) int {
	data, err := protocol.Encode(msg)
	if err != nil {
		r.logger.Error("encoding broadcast", zap.String("room", roomID), zap.Error(err))
		return 0
	}

	sent := 0
	for _, conn := range r.recipients.Recipients(roomID) {
		if exclude != nil && conn == exclude {
			continue
		}
		if r.deliver(conn, data) {
			sent++
		}
	}
	return sent
}

func (r *Router) deliver(conn session.Conn, data []byte) bool {
	if conn.IsClosed() {
		return false
	}
	if err := conn.Send(data); err != nil {
		r.logger.Warn("push to connection failed", zap.Error(err))
		return false
	}
	return true
}
