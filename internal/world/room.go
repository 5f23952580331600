package world

import (
	"errors"
	"fmt"
	"sync"
)

// ErrRoomFull is returned when admitting a player would exceed capacity.
var ErrRoomFull = errors.New("room is full")

// ErrRoomNotFound reports a room id the Directory does not hold.
var ErrRoomNotFound = errors.New("room not found")

// RoomInfo is the listing view of a room.
type RoomInfo struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	PlayerCount int    `json:"playerCount"`
	MaxPlayers  int    `json:"maxPlayers"`
}

// Snapshot is a consistent copy of a room's state.
type Snapshot struct {
	Players []Player
	Blocks  []Block
	Chat    []ChatEntry
}

// State is a room's mutable state. It is only reachable through Room.Apply,
// which holds the room lock for the lifetime of the callback.
type State struct {
	capacity int
	players  map[string]*Player
	order    []string
	blocks   *BlockMap
	chat     *ChatLog
}

// Room is a long-lived, isolated namespace of world state.
//
// Invariant: len(players) <= Capacity at all times.
type Room struct {
	ID       string
	Name     string
	Capacity int

	mu    sync.Mutex
	state *State
}

// NewRoom creates a room seeded with blocks and an empty chat history.
//
// Precondition: id non-empty; capacity >= 1; chatHistory >= 1.
// Postcondition: Returns a room with no occupants, or an error.
func NewRoom(id, name string, capacity, chatHistory int, blocks []Block) (*Room, error) {
	if id == "" {
		return nil, errors.New("room id must not be empty")
	}
	if capacity < 1 {
		return nil, fmt.Errorf("room %q: capacity must be >= 1, got %d", id, capacity)
	}
	if name == "" {
		name = id
	}
	return &Room{
		ID:       id,
		Name:     name,
		Capacity: capacity,
		state: &State{
			capacity: capacity,
			players:  make(map[string]*Player),
			blocks:   NewBlockMap(blocks),
			chat:     NewChatLog(chatHistory),
		},
	}, nil
}

// Apply runs fn with exclusive access to the room's state. Reads, mutations
// and the enqueueing of resulting broadcasts made inside fn are atomic with
// respect to every other Apply on the same room. Different rooms contend only
// inside ApplyBoth.
//
// Precondition: fn must not block on I/O or call Apply on any room.
func (r *Room) Apply(fn func(st *State)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fn(r.state)
}

// ApplyBoth runs fn with exclusive access to two rooms at once, so a player
// can move between them in one step. Locks are taken in room id order.
//
// Precondition: a and b are distinct; fn must not block on I/O or call Apply.
func ApplyBoth(a, b *Room, fn func(sa, sb *State)) {
	first, second := a, b
	if b.ID < a.ID {
		first, second = b, a
	}
	first.mu.Lock()
	defer first.mu.Unlock()
	second.mu.Lock()
	defer second.mu.Unlock()
	fn(a.state, b.state)
}

// Info returns the room's listing view.
func (r *Room) Info() RoomInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return RoomInfo{
		ID:          r.ID,
		Name:        r.Name,
		PlayerCount: len(r.state.players),
		MaxPlayers:  r.Capacity,
	}
}

// PlayerCount returns the number of occupants.
func (r *Room) PlayerCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.state.players)
}

// Full reports whether no further player can be admitted.
func (s *State) Full() bool {
	return len(s.players) >= s.capacity
}

// PlayerCount returns the number of occupants.
func (s *State) PlayerCount() int {
	return len(s.players)
}

// Admit adds p to the player set.
//
// Postcondition: Returns ErrRoomFull without mutation when at capacity, or an
// error if p.ID is already present.
func (s *State) Admit(p Player) error {
	if s.Full() {
		return ErrRoomFull
	}
	if _, exists := s.players[p.ID]; exists {
		return fmt.Errorf("player %q already in room", p.ID)
	}
	cp := p
	s.players[p.ID] = &cp
	s.order = append(s.order, p.ID)
	return nil
}

// Remove deletes the player with id.
//
// Postcondition: Returns the removed player and true, or false if absent.
func (s *State) Remove(id string) (Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	delete(s.players, id)
	for i, pid := range s.order {
		if pid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return *p, true
}

// Player returns a copy of the player with id.
func (s *State) Player(id string) (Player, bool) {
	p, ok := s.players[id]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Move overwrites a player's position and heading. Coordinates are not
// validated.
//
// Postcondition: Returns false if the player is not in the room.
func (s *State) Move(id string, x, y, z, rotY float64) bool {
	p, ok := s.players[id]
	if !ok {
		return false
	}
	p.X, p.Y, p.Z, p.RotY = x, y, z, rotY
	return true
}

// Players returns copies of every occupant in admission order.
func (s *State) Players() []Player {
	out := make([]Player, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, *s.players[id])
	}
	return out
}

// PlaceBlock sets the block at (x, y, z); Air clears it.
func (s *State) PlaceBlock(x, y, z int, t BlockType) {
	s.blocks.Set(Coord{X: x, Y: y, Z: z}, t)
}

// ReplaceBlocks replaces the whole block map.
func (s *State) ReplaceBlocks(blocks []Block) {
	s.blocks.Replace(blocks)
}

// Blocks returns a copy of the block map.
func (s *State) Blocks() []Block {
	return s.blocks.Blocks()
}

// AppendChat appends e to the bounded history.
func (s *State) AppendChat(e ChatEntry) {
	s.chat.Append(e)
}

// Snapshot copies the player set, the full block map and the newest chatTail
// chat entries.
func (s *State) Snapshot(chatTail int) Snapshot {
	return Snapshot{
		Players: s.Players(),
		Blocks:  s.blocks.Blocks(),
		Chat:    s.chat.Tail(chatTail),
	}
}
