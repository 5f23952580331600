// Package world provides per-room world state: occupants, the sparse block map,
// bounded chat history, and the fixed directory of rooms created at startup.
package world

import (
	"sort"
)

// BlockType is a material name from a closed set, or Air.
type BlockType string

// Air is the sentinel meaning "no block here". Placing Air removes a block.
const Air BlockType = "air"

// Solid materials.
const (
	Grass       BlockType = "grass"
	Dirt        BlockType = "dirt"
	Stone       BlockType = "stone"
	Wood        BlockType = "wood"
	Planks      BlockType = "planks"
	Brick       BlockType = "brick"
	Sand        BlockType = "sand"
	Glass       BlockType = "glass"
	Leaves      BlockType = "leaves"
	Water       BlockType = "water"
	Cobblestone BlockType = "cobblestone"
	Gold        BlockType = "gold"
)

// Materials lists every solid block type in a stable order.
var Materials = []BlockType{
	Grass, Dirt, Stone, Wood, Planks, Brick,
	Sand, Glass, Leaves, Water, Cobblestone, Gold,
}

var validTypes = func() map[BlockType]bool {
	m := make(map[BlockType]bool, len(Materials)+1)
	for _, t := range Materials {
		m[t] = true
	}
	m[Air] = true
	return m
}()

// Valid reports whether t is a known material or Air.
func (t BlockType) Valid() bool {
	return validTypes[t]
}

// Coord is a point in the integer block lattice.
type Coord struct {
	X, Y, Z int
}

// Block is a typed voxel at a lattice coordinate.
type Block struct {
	X    int       `json:"x"`
	Y    int       `json:"y"`
	Z    int       `json:"z"`
	Type BlockType `json:"type"`
}

// Coord returns the block's lattice position.
func (b Block) Coord() Coord {
	return Coord{X: b.X, Y: b.Y, Z: b.Z}
}

// BlockMap is a sparse set of blocks keyed by coordinate.
//
// Invariant: at most one entry per coordinate; no entry ever holds Air.
// BlockMap is not safe for concurrent use; Room serializes access.
type BlockMap struct {
	cells map[Coord]BlockType
}

// NewBlockMap returns a map populated from blocks, applying them in order.
func NewBlockMap(blocks []Block) *BlockMap {
	m := &BlockMap{cells: make(map[Coord]BlockType, len(blocks))}
	for _, b := range blocks {
		m.Set(b.Coord(), b.Type)
	}
	return m
}

// Set removes any block at c and, unless t is Air, stores t there.
//
// Postcondition: Get(c) reports t, or absence when t is Air.
func (m *BlockMap) Set(c Coord, t BlockType) {
	delete(m.cells, c)
	if t != Air {
		m.cells[c] = t
	}
}

// Get returns the block type at c.
//
// Postcondition: Returns (type, true) if a block exists, or ("", false) otherwise.
func (m *BlockMap) Get(c Coord) (BlockType, bool) {
	t, ok := m.cells[c]
	return t, ok
}

// Replace discards every block and loads blocks in order. Entries with an
// invalid type or Air are skipped; a repeated coordinate keeps the last entry.
func (m *BlockMap) Replace(blocks []Block) {
	m.cells = make(map[Coord]BlockType, len(blocks))
	for _, b := range blocks {
		if b.Type == Air || !b.Type.Valid() {
			continue
		}
		m.cells[b.Coord()] = b.Type
	}
}

// Len returns the number of blocks.
func (m *BlockMap) Len() int {
	return len(m.cells)
}

// Blocks returns a copy of every block ordered by (y, x, z).
func (m *BlockMap) Blocks() []Block {
	out := make([]Block, 0, len(m.cells))
	for c, t := range m.cells {
		out = append(out, Block{X: c.X, Y: c.Y, Z: c.Z, Type: t})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Y != b.Y {
			return a.Y < b.Y
		}
		if a.X != b.X {
			return a.X < b.X
		}
		return a.Z < b.Z
	})
	return out
}
