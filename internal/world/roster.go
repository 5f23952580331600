package world

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// RoomSpec describes one roster entry.
type RoomSpec struct {
	ID       string `yaml:"id"`
	Name     string `yaml:"name"`
	Capacity int    `yaml:"capacity"`
}

// yamlRosterFile is the top-level YAML structure for roster files.
type yamlRosterFile struct {
	Rooms []RoomSpec `yaml:"rooms"`
}

// DefaultRoster is used when no roster file is configured.
func DefaultRoster() []RoomSpec {
	return []RoomSpec{
		{ID: "lobby", Name: "Lobby"},
		{ID: "build", Name: "Build Plaza"},
		{ID: "arena", Name: "Arena"},
	}
}

// LoadRosterFromFile reads and validates a YAML roster file.
//
// Precondition: path must point to a readable YAML file.
// Postcondition: Returns a validated roster or a non-nil error.
func LoadRosterFromFile(path string) ([]RoomSpec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading roster file %s: %w", path, err)
	}
	return LoadRosterFromBytes(data)
}

// LoadRosterFromBytes parses and validates a roster from YAML bytes.
//
// Postcondition: Returns a non-empty roster with unique, non-empty ids and
// non-negative capacities, or a non-nil error.
func LoadRosterFromBytes(data []byte) ([]RoomSpec, error) {
	var file yamlRosterFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing roster YAML: %w", err)
	}
	if err := validateRoster(file.Rooms); err != nil {
		return nil, fmt.Errorf("validating roster: %w", err)
	}
	return file.Rooms, nil
}

func validateRoster(specs []RoomSpec) error {
	if len(specs) == 0 {
		return errors.New("roster must contain at least one room")
	}
	seen := make(map[string]bool, len(specs))
	for i, s := range specs {
		if s.ID == "" {
			return fmt.Errorf("room %d: id must not be empty", i)
		}
		if seen[s.ID] {
			return fmt.Errorf("duplicate room ID: %q", s.ID)
		}
		seen[s.ID] = true
		if s.Capacity < 0 {
			return fmt.Errorf("room %q: capacity must not be negative", s.ID)
		}
	}
	return nil
}
