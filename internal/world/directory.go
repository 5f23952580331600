package world

import (
	"fmt"
)

// Directory is the fixed set of rooms created at startup. Rooms are never
// added or removed afterwards, so lookups need no locking.
type Directory struct {
	rooms map[string]*Room
	order []*Room
}

// NewDirectory indexes rooms by id, preserving roster order for listing.
//
// Precondition: rooms must be non-nil.
// Postcondition: Returns a Directory, or an error on a duplicate room id.
func NewDirectory(rooms []*Room) (*Directory, error) {
	d := &Directory{rooms: make(map[string]*Room, len(rooms))}
	for _, r := range rooms {
		if _, exists := d.rooms[r.ID]; exists {
			return nil, fmt.Errorf("duplicate room ID: %q", r.ID)
		}
		d.rooms[r.ID] = r
		d.order = append(d.order, r)
	}
	return d, nil
}

// BuildOptions controls room construction from a roster.
type BuildOptions struct {
	// DefaultCapacity applies to specs with Capacity <= 0.
	DefaultCapacity int
	// ChatHistory is the per-room chat bound.
	ChatHistory int
	// Seed is combined with each room id to seed its default map.
	Seed int64
}

// BuildDirectory creates one room per spec, each with a generated default map.
//
// Precondition: opts.DefaultCapacity >= 1; opts.ChatHistory >= 1.
// Postcondition: Returns a Directory listing rooms in spec order, or an error.
func BuildDirectory(specs []RoomSpec, opts BuildOptions) (*Directory, error) {
	rooms := make([]*Room, 0, len(specs))
	for _, spec := range specs {
		capacity := spec.Capacity
		if capacity <= 0 {
			capacity = opts.DefaultCapacity
		}
		blocks := GenerateDefaultMap(NewSeededSource(RoomSeed(opts.Seed, spec.ID)))
		room, err := NewRoom(spec.ID, spec.Name, capacity, opts.ChatHistory, blocks)
		if err != nil {
			return nil, fmt.Errorf("building room: %w", err)
		}
		rooms = append(rooms, room)
	}
	return NewDirectory(rooms)
}

// Get returns the room with the given id.
//
// Postcondition: Returns (room, true) if found, or (nil, false) otherwise.
func (d *Directory) Get(id string) (*Room, bool) {
	r, ok := d.rooms[id]
	return r, ok
}

// List returns the listing view of every room in roster order.
func (d *Directory) List() []RoomInfo {
	out := make([]RoomInfo, 0, len(d.order))
	for _, r := range d.order {
		out = append(out, r.Info())
	}
	return out
}

// Len returns the number of rooms.
func (d *Directory) Len() int {
	return len(d.order)
}

// TotalPlayers sums occupants across every room.
func (d *Directory) TotalPlayers() int {
	n := 0
	for _, r := range d.order {
		n += r.PlayerCount()
	}
	return n
}
