package protocol

import (
	"encoding/json"

	"github.com/cory-johannsen/roomsync/internal/world"
)

// Outbound message types.
const (
	TypeWelcome      = "welcome"
	TypeRoomJoined   = "room_joined"
	TypePlayerJoined = "player_joined"
	TypePlayerMoved  = "player_moved"
	TypePlayerLeft   = "player_left"
	TypeBlockUpdate  = "block_update"
	TypeMapReload    = "map_reload"
	TypeError        = "error"
	TypeInfo         = "info"
	TypePong         = "pong"
	// TypeChat is shared with the inbound chat record.
)

// Client-facing error texts.
const (
	TextRoomNotFound = "Room not found"
	TextRoomFull     = "Room is full"
	TextMapSaved     = "Map saved"
)

// Welcome greets a new connection.
type Welcome struct {
	Type     string           `json:"type"`
	PlayerID string           `json:"playerId"`
	Rooms    []world.RoomInfo `json:"rooms"`
}

// RoomJoined carries the full room snapshot to a joiner.
type RoomJoined struct {
	Type        string            `json:"type"`
	RoomID      string            `json:"roomId"`
	RoomName    string            `json:"roomName"`
	PlayerID    string            `json:"playerId"`
	Players     []world.Player    `json:"players"`
	MapData     []world.Block     `json:"mapData"`
	ChatHistory []world.ChatEntry `json:"chatHistory"`
}

// PlayerJoined announces a new occupant.
type PlayerJoined struct {
	Type   string       `json:"type"`
	Player world.Player `json:"player"`
}

// PlayerMoved relays an occupant's new position.
type PlayerMoved struct {
	Type string  `json:"type"`
	ID   string  `json:"id"`
	X    float64 `json:"x"`
	Y    float64 `json:"y"`
	Z    float64 `json:"z"`
	RotY float64 `json:"rotY"`
}

// PlayerLeft announces a departure.
type PlayerLeft struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ChatMessage relays one chat entry.
type ChatMessage struct {
	Type    string          `json:"type"`
	Message world.ChatEntry `json:"message"`
}

// BlockUpdate relays a single-cell change.
type BlockUpdate struct {
	Type      string          `json:"type"`
	X         int             `json:"x"`
	Y         int             `json:"y"`
	Z         int             `json:"z"`
	BlockType world.BlockType `json:"blockType"`
}

// MapReload carries a whole replaced block map.
type MapReload struct {
	Type    string        `json:"type"`
	MapData []world.Block `json:"mapData"`
}

// Notice is an error or info text for one connection.
type Notice struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Pong answers a ping with the server time in Unix milliseconds.
type Pong struct {
	Type string `json:"type"`
	TS   int64  `json:"ts"`
}

// NewWelcome builds a welcome record.
func NewWelcome(playerID string, rooms []world.RoomInfo) Welcome {
	return Welcome{Type: TypeWelcome, PlayerID: playerID, Rooms: nonNil(rooms)}
}

// NewRoomJoined builds a room_joined record from a snapshot.
func NewRoomJoined(room *world.Room, playerID string, snap world.Snapshot) RoomJoined {
	return RoomJoined{
		Type:        TypeRoomJoined,
		RoomID:      room.ID,
		RoomName:    room.Name,
		PlayerID:    playerID,
		Players:     nonNil(snap.Players),
		MapData:     nonNil(snap.Blocks),
		ChatHistory: nonNil(snap.Chat),
	}
}

// NewPlayerJoined builds a player_joined record.
func NewPlayerJoined(p world.Player) PlayerJoined {
	return PlayerJoined{Type: TypePlayerJoined, Player: p}
}

// NewPlayerMoved builds a player_moved record.
func NewPlayerMoved(p world.Player) PlayerMoved {
	return PlayerMoved{Type: TypePlayerMoved, ID: p.ID, X: p.X, Y: p.Y, Z: p.Z, RotY: p.RotY}
}

// NewPlayerLeft builds a player_left record.
func NewPlayerLeft(id string) PlayerLeft {
	return PlayerLeft{Type: TypePlayerLeft, ID: id}
}

// NewChatMessage builds a chat record.
func NewChatMessage(e world.ChatEntry) ChatMessage {
	return ChatMessage{Type: TypeChat, Message: e}
}

// NewBlockUpdate builds a block_update record.
func NewBlockUpdate(x, y, z int, t world.BlockType) BlockUpdate {
	return BlockUpdate{Type: TypeBlockUpdate, X: x, Y: y, Z: z, BlockType: t}
}

// NewMapReload builds a map_reload record.
func NewMapReload(blocks []world.Block) MapReload {
	return MapReload{Type: TypeMapReload, MapData: nonNil(blocks)}
}

// NewError builds an error record.
func NewError(text string) Notice {
	return Notice{Type: TypeError, Text: text}
}

// NewInfo builds an info record.
func NewInfo(text string) Notice {
	return Notice{Type: TypeInfo, Text: text}
}

// NewPong builds a pong record.
func NewPong(ts int64) Pong {
	return Pong{Type: TypePong, TS: ts}
}

// Encode serializes an outbound record.
func Encode(msg any) ([]byte, error) {
	return json.Marshal(msg)
}

// nonNil keeps empty collections encoding as [] rather than null.
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
