package world

// Default map layout constants.
const (
	// MapHalfSize is the ground extent: x and z span [-MapHalfSize, MapHalfSize).
	MapHalfSize = 16
	// WallHeight is the height of the perimeter wall above the ground layer.
	WallHeight = 3
	// TowerHeight is the height of the corner tower.
	TowerHeight = 8
	// DecorationCount is the number of randomly scattered decorative blocks.
	DecorationCount = 24
)

var decorations = []BlockType{Leaves, Sand, Gold, Wood, Glass, Water}

// GenerateDefaultMap builds a playable starting world: a grass ground layer,
// a raised stone platform, a brick perimeter wall, a plank tower with a glass
// cap, and decorations drawn from src. The same src sequence always yields
// the same map.
//
// Precondition: src must be non-nil.
// Postcondition: No two returned blocks share a coordinate.
func GenerateDefaultMap(src Source) []Block {
	m := NewBlockMap(nil)

	for x := -MapHalfSize; x < MapHalfSize; x++ {
		for z := -MapHalfSize; z < MapHalfSize; z++ {
			m.Set(Coord{X: x, Y: 0, Z: z}, Grass)
		}
	}

	// platform
	for x := 4; x < 10; x++ {
		for z := 4; z < 10; z++ {
			m.Set(Coord{X: x, Y: 1, Z: z}, Stone)
		}
	}
	for x := 5; x < 9; x++ {
		for z := 5; z < 9; z++ {
			m.Set(Coord{X: x, Y: 2, Z: z}, Cobblestone)
		}
	}

	// perimeter
	lo, hi := -MapHalfSize, MapHalfSize-1
	for y := 1; y <= WallHeight; y++ {
		for i := lo; i <= hi; i++ {
			m.Set(Coord{X: i, Y: y, Z: lo}, Brick)
			m.Set(Coord{X: i, Y: y, Z: hi}, Brick)
			m.Set(Coord{X: lo, Y: y, Z: i}, Brick)
			m.Set(Coord{X: hi, Y: y, Z: i}, Brick)
		}
	}

	// tower: hollow 3x3 column with a doorway and a glass cap
	tx, tz := -12, -12
	for y := 1; y <= TowerHeight; y++ {
		for dx := 0; dx < 3; dx++ {
			for dz := 0; dz < 3; dz++ {
				if dx == 1 && dz == 1 {
					continue
				}
				if y <= 2 && dx == 1 && dz == 2 {
					continue
				}
				m.Set(Coord{X: tx + dx, Y: y, Z: tz + dz}, Planks)
			}
		}
	}
	for dx := 0; dx < 3; dx++ {
		for dz := 0; dz < 3; dz++ {
			m.Set(Coord{X: tx + dx, Y: TowerHeight + 1, Z: tz + dz}, Glass)
		}
	}

	// decorations inside the wall, on the ground layer
	inner := 2*MapHalfSize - 2
	for i := 0; i < DecorationCount; i++ {
		x := lo + 1 + src.Intn(inner)
		z := lo + 1 + src.Intn(inner)
		t := decorations[src.Intn(len(decorations))]
		c := Coord{X: x, Y: 1, Z: z}
		if _, taken := m.Get(c); taken {
			continue
		}
		m.Set(c, t)
	}

	return m.Blocks()
}
