// Package gameserver interprets client messages against the connection
// registry and per-room world state, and fans the results out to rooms.
package gameserver

import (
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/roomsync/internal/broadcast"
	"github.com/cory-johannsen/roomsync/internal/observability"
	"github.com/cory-johannsen/roomsync/internal/protocol"
	"github.com/cory-johannsen/roomsync/internal/session"
	"github.com/cory-johannsen/roomsync/internal/world"
)

// DefaultColor is used when a join carries no color.
const DefaultColor = "#ffffff"

// Limits caps and defaults applied to client-supplied text.
type Limits struct {
	NameMax     int
	ChatMax     int
	ColorMax    int
	ChatTail    int
	DefaultName string
}

// DefaultLimits returns the built-in limits.
func DefaultLimits() Limits {
	return Limits{
		NameMax:     20,
		ChatMax:     200,
		ColorMax:    16,
		ChatTail:    50,
		DefaultName: "Player",
	}
}

// Handler is the per-connection protocol state machine. A connection is
// Unjoined until a join succeeds and InRoom afterwards; disconnect is
// terminal. Messages from one connection must be delivered serially; messages
// from different connections may be handled concurrently.
type Handler struct {
	registry *session.Registry
	rooms    *world.Directory
	router   *broadcast.Router
	spawn    world.Source
	limits   Limits
	now      func() time.Time
	logger   *zap.Logger
}

// NewHandler creates a Handler with the given dependencies.
//
// Precondition: registry, rooms, router, spawn and logger must be non-nil.
func NewHandler(registry *session.Registry, rooms *world.Directory, router *broadcast.Router, spawn world.Source, limits Limits, logger *zap.Logger) *Handler {
	def := DefaultLimits()
	if limits.NameMax <= 0 {
		limits.NameMax = def.NameMax
	}
	if limits.ChatMax <= 0 {
		limits.ChatMax = def.ChatMax
	}
	if limits.ColorMax <= 0 {
		limits.ColorMax = def.ColorMax
	}
	if limits.DefaultName == "" {
		limits.DefaultName = def.DefaultName
	}
	return &Handler{
		registry: registry,
		rooms:    rooms,
		router:   router,
		spawn:    spawn,
		limits:   limits,
		now:      time.Now,
		logger:   logger,
	}
}

// SetClock replaces the time source used for chat and pong timestamps.
func (h *Handler) SetClock(now func() time.Time) {
	h.now = now
}

// Connections returns the number of registered connections.
func (h *Handler) Connections() int {
	return h.registry.Len()
}

// OnMessage decodes and applies one inbound payload from conn. Malformed and
// unknown payloads are dropped without a reply.
func (h *Handler) OnMessage(conn session.Conn, data []byte) {
	msg, err := protocol.Decode(data)
	if err != nil {
		h.logger.Debug("dropping inbound message", zap.Error(err))
		return
	}
	sess, ok := h.registry.Lookup(conn)
	if !ok {
		return
	}
	h.dispatch(conn, sess, msg)
}

// dispatch routes a decoded message to the operation for its type.
func (h *Handler) dispatch(conn session.Conn, sess session.Session, msg any) {
	switch m := msg.(type) {
	case protocol.JoinRoom:
		h.handleJoin(conn, sess, m)
	case protocol.LeaveRoom:
		h.handleLeave(conn, sess)
	case protocol.Move:
		h.handleMove(conn, sess, m)
	case protocol.Chat:
		h.handleChat(sess, m)
	case protocol.PlaceBlock:
		h.handlePlaceBlock(sess, m)
	case protocol.SaveMap:
		h.handleSaveMap(conn, sess, m)
	case protocol.Ping:
		h.router.Send(conn, protocol.NewPong(h.now().UnixMilli()))
	}
}

// handleJoin admits the connection to the requested room, leaving its current
// room first. Capacity, the departure and the admission are decided under the
// locks of every room involved, so a rejected join changes nothing.
func (h *Handler) handleJoin(conn session.Conn, sess session.Session, m protocol.JoinRoom) {
	room, ok := h.rooms.Get(m.RoomID)
	if !ok {
		h.router.Send(conn, protocol.NewError(protocol.TextRoomNotFound))
		return
	}

	name := h.cleanName(m.Name)
	color := h.cleanColor(m.Color)
	player := world.NewPlayer(h.registry.NewPlayerID(), name, color, h.spawn)

	var err error
	old, switching := h.roomOf(sess)
	switch {
	case !switching:
		room.Apply(func(st *world.State) {
			err = h.enter(conn, sess, room, st, nil, player)
		})
	case old == room:
		room.Apply(func(st *world.State) {
			err = h.enter(conn, sess, room, st, st, player)
		})
	default:
		world.ApplyBoth(old, room, func(oldSt, st *world.State) {
			err = h.enter(conn, sess, room, st, oldSt, player)
		})
	}

	logger := observability.ForRoom(h.logger, room.ID)
	switch {
	case errors.Is(err, world.ErrRoomFull):
		logger.Info("join rejected", zap.String("player_id", sess.PlayerID), zap.Error(err))
		h.router.Send(conn, protocol.NewError(protocol.TextRoomFull))
	case err != nil:
		logger.Warn("join failed", zap.Error(err))
	default:
		if switching {
			observability.ForRoom(h.logger, old.ID).Info("player left", zap.String("player_id", sess.PlayerID))
		}
		logger.Info("player joined", zap.String("player_id", player.ID), zap.String("name", name))
	}
}

// enter moves sess into room as player. oldSt is the state of the room sess
// currently occupies, or nil when it is Unjoined; it equals st on a rejoin.
//
// Precondition: called with the locks of room and of the current room held.
// Postcondition: Returns world.ErrRoomFull without any mutation when room has
// no slot for sess.
func (h *Handler) enter(conn session.Conn, sess session.Session, room *world.Room, st, oldSt *world.State, player world.Player) error {
	occupied := st.PlayerCount()
	if oldSt == st {
		if _, ok := st.Player(sess.PlayerID); ok {
			occupied--
		}
	}
	if occupied >= room.Capacity {
		return world.ErrRoomFull
	}

	if oldSt != nil {
		h.depart(oldSt, sess)
	}
	if err := st.Admit(player); err != nil {
		return err
	}
	if _, err := h.registry.Update(conn, func(s *session.Session) {
		s.PlayerID = player.ID
		s.Name = player.Name
		s.Color = player.Color
		s.RoomID = room.ID
	}); err != nil {
		st.Remove(player.ID)
		return err
	}

	h.router.Send(conn, protocol.NewRoomJoined(room, player.ID, st.Snapshot(h.limits.ChatTail)))
	h.router.Broadcast(room.ID, protocol.NewPlayerJoined(player), conn)
	h.announce(st, room.ID, player.Name+" joined the room")
	return nil
}

func (h *Handler) handleLeave(conn session.Conn, sess session.Session) {
	if !sess.InRoom() {
		return
	}
	h.leaveRoom(conn, sess)
}

func (h *Handler) handleMove(conn session.Conn, sess session.Session, m protocol.Move) {
	room, ok := h.roomOf(sess)
	if !ok {
		return
	}
	room.Apply(func(st *world.State) {
		if !st.Move(sess.PlayerID, m.X, m.Y, m.Z, m.RotY) {
			return
		}
		p, _ := st.Player(sess.PlayerID)
		h.router.Broadcast(room.ID, protocol.NewPlayerMoved(p), conn)
	})
}

func (h *Handler) handleChat(sess session.Session, m protocol.Chat) {
	room, ok := h.roomOf(sess)
	if !ok {
		return
	}
	entry := world.ChatEntry{
		Name:      sess.Name,
		Color:     sess.Color,
		Text:      world.Truncate(m.Text, h.limits.ChatMax),
		Timestamp: h.now().UnixMilli(),
	}
	room.Apply(func(st *world.State) {
		st.AppendChat(entry)
		h.router.Broadcast(room.ID, protocol.NewChatMessage(entry), nil)
	})
}

func (h *Handler) handlePlaceBlock(sess session.Session, m protocol.PlaceBlock) {
	room, ok := h.roomOf(sess)
	if !ok {
		return
	}
	room.Apply(func(st *world.State) {
		st.PlaceBlock(m.X, m.Y, m.Z, m.BlockType)
		h.router.Broadcast(room.ID, protocol.NewBlockUpdate(m.X, m.Y, m.Z, m.BlockType), nil)
	})
}

func (h *Handler) handleSaveMap(conn session.Conn, sess session.Session, m protocol.SaveMap) {
	room, ok := h.roomOf(sess)
	if !ok {
		return
	}
	room.Apply(func(st *world.State) {
		st.ReplaceBlocks(m.MapData)
		blocks := st.Blocks()
		h.router.Broadcast(room.ID, protocol.NewMapReload(blocks), nil)
		h.router.Send(conn, protocol.NewInfo(protocol.TextMapSaved))
		observability.ForRoom(h.logger, room.ID).Info("map replaced",
			zap.String("player_id", sess.PlayerID),
			zap.Int("blocks", len(blocks)),
		)
	})
}

// roomOf resolves the room sess is joined to.
//
// Postcondition: Returns false when sess is Unjoined.
func (h *Handler) roomOf(sess session.Session) (*world.Room, bool) {
	if !sess.InRoom() {
		return nil, false
	}
	return h.rooms.Get(sess.RoomID)
}

// announce appends a system chat line to st and broadcasts it to the room.
//
// Precondition: called inside room.Apply for roomID.
func (h *Handler) announce(st *world.State, roomID, text string) {
	entry := world.ChatEntry{
		Name:      world.SystemSender,
		Color:     world.SystemColor,
		Text:      text,
		Timestamp: h.now().UnixMilli(),
	}
	st.AppendChat(entry)
	h.router.Broadcast(roomID, protocol.NewChatMessage(entry), nil)
}

func (h *Handler) cleanName(name string) string {
	name = world.Truncate(strings.TrimSpace(name), h.limits.NameMax)
	if name == "" {
		return h.limits.DefaultName
	}
	return name
}

func (h *Handler) cleanColor(color string) string {
	color = world.Truncate(strings.TrimSpace(color), h.limits.ColorMax)
	if color == "" {
		return DefaultColor
	}
	return color
}
