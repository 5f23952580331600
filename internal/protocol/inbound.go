// Package protocol defines the JSON records exchanged with clients. Every
// record is a flat object whose "type" field selects its shape.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cory-johannsen/roomsync/internal/world"
)

// ErrMalformed is returned for payloads that are not a valid record.
var ErrMalformed = errors.New("malformed message")

// ErrUnknownType is returned for records with an unrecognized type.
var ErrUnknownType = errors.New("unknown message type")

// Inbound message types.
const (
	TypeJoinRoom   = "join_room"
	TypeLeaveRoom  = "leave_room"
	TypeMove       = "move"
	TypeChat       = "chat"
	TypePlaceBlock = "place_block"
	TypeSaveMap    = "save_map"
	TypePing       = "ping"
)

// JoinRoom asks to enter a room.
type JoinRoom struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
	Color  string `json:"color"`
}

// LeaveRoom asks to leave the current room without disconnecting.
type LeaveRoom struct{}

// Move reports the sender's new position and heading.
type Move struct {
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	RotY float64 `json:"rotY"`
}

// Chat carries a chat line.
type Chat struct {
	Text string `json:"text"`
}

// PlaceBlock sets one cell; BlockType "air" clears it.
type PlaceBlock struct {
	X         int             `json:"x"`
	Y         int             `json:"y"`
	Z         int             `json:"z"`
	BlockType world.BlockType `json:"blockType"`
}

// SaveMap replaces the whole block map.
type SaveMap struct {
	MapData []world.Block `json:"mapData"`
}

// Ping requests a pong.
type Ping struct{}

type envelope struct {
	Type string `json:"type"`
}

// Coalescable reports whether data is a position update, which a newer one
// fully supersedes. Unparseable data is not.
func Coalescable(data []byte) bool {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return false
	}
	return env.Type == TypeMove
}

// Decode parses one inbound record into its typed form: one of JoinRoom,
// LeaveRoom, Move, Chat, PlaceBlock, SaveMap or Ping.
//
// Postcondition: Returns a typed value, or an error wrapping ErrMalformed or
// ErrUnknownType.
func Decode(data []byte) (any, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		msg any
		err error
	)
	switch env.Type {
	case TypeJoinRoom:
		var m JoinRoom
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeLeaveRoom:
		msg = LeaveRoom{}
	case TypeMove:
		var m Move
		err = json.Unmarshal(data, &m)
		msg = m
	case TypeChat:
		var m Chat
		err = json.Unmarshal(data, &m)
		msg = m
	case TypePlaceBlock:
		var m PlaceBlock
		if err = json.Unmarshal(data, &m); err == nil && !m.BlockType.Valid() {
			err = fmt.Errorf("unknown block type %q", m.BlockType)
		}
		msg = m
	case TypeSaveMap:
		var m SaveMap
		err = json.Unmarshal(data, &m)
		msg = m
	case TypePing:
		msg = Ping{}
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrMalformed, env.Type, err)
	}
	return msg, nil
}
