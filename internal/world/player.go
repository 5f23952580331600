package world

// Spawn placement constants.
const (
	// SpawnRadius bounds the random x and z spawn offsets to [-SpawnRadius, SpawnRadius].
	SpawnRadius = 8
	// SpawnHeight is the fixed y coordinate of every spawn.
	SpawnHeight = 10.0
	// StartingHealth is the status value given to every new occupant.
	StartingHealth = 100
)

// Player is one occupant's state inside a room.
type Player struct {
	ID     string  `json:"id"`
	Name   string  `json:"name"`
	Color  string  `json:"color"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Z      float64 `json:"z"`
	RotY   float64 `json:"rotY"`
	Health int     `json:"health"`
}

// NewPlayer creates a player at a freshly drawn spawn point with zero heading.
//
// Precondition: src must be non-nil.
func NewPlayer(id, name, color string, src Source) Player {
	return Player{
		ID:     id,
		Name:   name,
		Color:  color,
		X:      float64(src.Intn(2*SpawnRadius+1) - SpawnRadius),
		Y:      SpawnHeight,
		Z:      float64(src.Intn(2*SpawnRadius+1) - SpawnRadius),
		RotY:   0,
		Health: StartingHealth,
	}
}
