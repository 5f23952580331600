package gameserver

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomsync/internal/protocol"
	"github.com/cory-johannsen/roomsync/internal/session"
	"github.com/cory-johannsen/roomsync/internal/world"
)

// OnConnect registers conn as an Unjoined session and greets it with its
// player id and the room listing.
//
// Precondition: conn must not already be registered.
// Postcondition: Returns the new session, or an error if registration failed.
func (h *Handler) OnConnect(conn session.Conn) (session.Session, error) {
	sess, err := h.registry.Register(conn, h.limits.DefaultName)
	if err != nil {
		return session.Session{}, fmt.Errorf("registering connection: %w", err)
	}
	h.router.Send(conn, protocol.NewWelcome(sess.ID, h.rooms.List()))
	h.logger.Debug("connection registered", zap.String("session_id", sess.ID))
	return sess, nil
}

// OnDisconnect runs the departure path for conn and forgets its session.
// Repeated calls for the same connection are no-ops, so close and error
// events racing each other announce the departure once.
func (h *Handler) OnDisconnect(conn session.Conn) {
	sess, ok := h.registry.Remove(conn)
	if !ok {
		return
	}
	if sess.InRoom() {
		h.leaveRoom(nil, sess)
	}
	h.logger.Info("player disconnected",
		zap.String("session_id", sess.ID),
		zap.String("player_id", sess.PlayerID),
		zap.String("room", sess.RoomID),
	)
}

// leaveRoom removes sess's player from its room, announces the departure to
// the remaining occupants and clears conn's room reference. conn is nil when
// the session has already been removed from the registry.
//
// Precondition: sess.InRoom() is true.
func (h *Handler) leaveRoom(conn session.Conn, sess session.Session) {
	room, ok := h.rooms.Get(sess.RoomID)
	if !ok {
		h.logger.Warn("session names unknown room", zap.String("room", sess.RoomID), zap.Error(world.ErrRoomNotFound))
		return
	}
	room.Apply(func(st *world.State) {
		h.depart(st, sess)
		if conn == nil {
			return
		}
		if _, err := h.registry.Update(conn, func(s *session.Session) { s.RoomID = "" }); err != nil {
			h.logger.Debug("clearing room reference", zap.String("session_id", sess.ID), zap.Error(err))
		}
	})
	h.logger.Info("player left",
		zap.String("room", room.ID),
		zap.String("player_id", sess.PlayerID),
	)
}

// depart removes sess's player from st and tells the room, the leaver
// included while it is still subscribed. A player already gone is not
// announced twice.
//
// Precondition: called inside Apply for sess.RoomID.
func (h *Handler) depart(st *world.State, sess session.Session) {
	if _, ok := st.Remove(sess.PlayerID); !ok {
		return
	}
	h.announce(st, sess.RoomID, sess.Name+" left the room")
	h.router.Broadcast(sess.RoomID, protocol.NewPlayerLeft(sess.PlayerID), nil)
}
