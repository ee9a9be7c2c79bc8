package config

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/nstehr/vimy/vimy-instance/instance"
	"github.com/nstehr/vimy/vimy-instance/model"
)

// Match is a multiplayer setup read from YAML. Waypoints lists scenario
// waypoint cells in order; -1 leaves a waypoint unset.
type Match struct {
	MaxPlayers int                `yaml:"max_players"`
	Ghosts     bool               `yaml:"ghosts"`
	MapWidth   int                `yaml:"map_width"`
	Waypoints  []model.Cell       `yaml:"waypoints"`
	Players    []model.PlayerInfo `yaml:"players"`
}

// DecodeMatch reads a match file. Unknown keys are errors.
func DecodeMatch(r io.Reader) (Match, error) {
	var m Match
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return Match{}, fmt.Errorf("decode match: %w", err)
	}
	if len(m.Players) == 0 {
		return Match{}, fmt.Errorf("decode match: no players")
	}
	if len(m.Waypoints) > model.MaxWaypoints {
		return Match{}, fmt.Errorf("decode match: %d waypoints, at most %d", len(m.Waypoints), model.MaxWaypoints)
	}
	return m, nil
}

func LoadMatch(path string) (Match, error) {
	f, err := os.Open(path)
	if err != nil {
		return Match{}, fmt.Errorf("open match: %w", err)
	}
	defer f.Close()
	return DecodeMatch(f)
}

// Options converts the file into registration options.
func (m Match) Options() instance.MatchOptions {
	wp := model.NewWaypoints(m.MapWidth)
	copy(wp.Cells[:], m.Waypoints)
	return instance.MatchOptions{
		MaxPlayers: m.MaxPlayers,
		Ghosts:     m.Ghosts,
		Waypoints:  wp,
	}
}
