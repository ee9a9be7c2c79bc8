// Package registry maps instance-server player ids onto engine houses and
// performs the multiplayer house, color and start-location assignment.
package registry

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"

	"github.com/nstehr/vimy/vimy-instance/model"
)

var (
	ErrNoPlayers      = errors.New("no players to register")
	ErrTooManyPlayers = errors.New("too many players")
	ErrDuplicateColor = errors.New("duplicate player color")
)

// Slot is one registered player and the house it was assigned.
type Slot struct {
	Index         int              `json:"index"` // registration order
	Player        model.PlayerInfo `json:"player"`
	House         model.HouseID    `json:"house"`
	StartLocation int              `json:"startLocation"`
}

// IsHuman reports the player's controller at registration time. The live
// flag belongs to the engine house.
func (s Slot) IsHuman() bool { return !s.Player.IsAI }

// Assignment is the outcome of Register.
type Assignment struct {
	Slots []Slot
	// Ghosts are houses no player was assigned to. They must be marked
	// permanently defeated so they drop out of tick iteration.
	Ghosts []model.HouseID
	// PreassignedStarts is true when at least one player declared a
	// concrete start location.
	PreassignedStarts bool
}

// Registry is the fixed-size slot table. It owns no simulation state.
type Registry struct {
	slots  []Slot
	allies [model.MaxPlayers][model.MaxPlayers]bool
}

func New() *Registry {
	return &Registry{}
}

// Register assigns houses to players. The step order is part of the
// compatibility contract: shuffle unclaimed start locations once, order
// players by ascending color, assign houses in that order, then resolve
// alliances by team.
func (r *Registry) Register(players []model.PlayerInfo, maxPlayers int, wp model.Waypoints, rng *rand.Rand) (Assignment, error) {
	limit := min(model.MaxPlayers, maxPlayers)
	if len(players) <= 0 {
		return Assignment{}, ErrNoPlayers
	}
	if len(players) > limit {
		return Assignment{}, fmt.Errorf("register %d players (limit %d): %w", len(players), limit, ErrTooManyPlayers)
	}

	pool, preassigned := unclaimedStartLocations(players, wp.StartLocationCount())
	shuffle(pool, rng)

	slots := make([]Slot, len(players))
	assigned := make([]bool, len(players))
	next := 0
	for i := range players {
		index := lowestColor(players, assigned)
		assigned[index] = true

		loc := players[index].StartLocation
		if loc == model.RandomStartLocation {
			if next < len(pool) {
				loc = pool[next]
				next++
			} else {
				loc = model.NoStartLocation
			}
		}

		slots[index] = Slot{
			Index:         index,
			Player:        players[index],
			House:         model.HouseID(i),
			StartLocation: loc,
		}
	}

	r.slots = slots
	r.allies = [model.MaxPlayers][model.MaxPlayers]bool{}
	r.resolveAlliances()

	var ghosts []model.HouseID
	for h := len(players); h < model.MaxPlayers; h++ {
		ghosts = append(ghosts, model.HouseID(h))
	}

	for _, s := range slots {
		slog.Info("player assigned",
			"player", s.Player.ID,
			"name", s.Player.Name,
			"color", s.Player.Color,
			"team", s.Player.Team,
			"house", s.House,
			"startLocation", s.StartLocation,
		)
	}

	return Assignment{
		Slots:             r.Slots(),
		Ghosts:            ghosts,
		PreassignedStarts: preassigned,
	}, nil
}

// Restore reinstates a slot table captured by Slots, e.g. after loading a
// save. Alliances are recomputed from team ids.
func (r *Registry) Restore(slots []Slot) {
	r.slots = append([]Slot(nil), slots...)
	r.allies = [model.MaxPlayers][model.MaxPlayers]bool{}
	r.resolveAlliances()
}

// Reset clears the table at session end.
func (r *Registry) Reset() {
	r.slots = nil
	r.allies = [model.MaxPlayers][model.MaxPlayers]bool{}
}

func (r *Registry) Count() int { return len(r.slots) }

// Slots returns a copy of the table in registration order.
func (r *Registry) Slots() []Slot {
	return append([]Slot(nil), r.slots...)
}

func (r *Registry) Slot(i int) (Slot, bool) {
	if i < 0 || i >= len(r.slots) {
		return Slot{}, false
	}
	return r.slots[i], true
}

// IndexOf returns the registration index of id, or -1.
func (r *Registry) IndexOf(id model.PlayerID) int {
	for i, s := range r.slots {
		if s.Player.ID == id {
			return i
		}
	}
	return -1
}

// IndexOfHouse returns the registration index owning house h, or -1.
func (r *Registry) IndexOfHouse(h model.HouseID) int {
	for i, s := range r.slots {
		if s.House == h {
			return i
		}
	}
	return -1
}

func (r *Registry) LookupHouse(id model.PlayerID) (model.HouseID, bool) {
	i := r.IndexOf(id)
	if i < 0 {
		return model.HouseNone, false
	}
	return r.slots[i].House, true
}

// LookupPlayer returns the player bound to h, or NoPlayer.
func (r *Registry) LookupPlayer(h model.HouseID) model.PlayerID {
	i := r.IndexOfHouse(h)
	if i < 0 {
		return model.NoPlayer
	}
	return r.slots[i].Player.ID
}

func (r *Registry) IsAlly(a, b model.HouseID) bool {
	if !a.Valid() || !b.Valid() {
		return false
	}
	return r.allies[a][b]
}

// Allies lists the houses allied with h in house order.
func (r *Registry) Allies(h model.HouseID) []model.HouseID {
	if !h.Valid() {
		return nil
	}
	var out []model.HouseID
	for other, ok := range r.allies[h] {
		if ok {
			out = append(out, model.HouseID(other))
		}
	}
	return out
}

func (r *Registry) resolveAlliances() {
	for i, a := range r.slots {
		for j, b := range r.slots {
			if i == j || a.Player.Team != b.Player.Team {
				continue
			}
			if a.House.Valid() && b.House.Valid() {
				r.allies[a.House][b.House] = true
			}
		}
	}
}

// ValidateColors reports duplicate colors. Register itself accepts them and
// breaks ties by registration index.
func ValidateColors(players []model.PlayerInfo) error {
	seen := make(map[int]model.PlayerID, len(players))
	for _, p := range players {
		if prev, ok := seen[p.Color]; ok {
			return fmt.Errorf("color %d used by players %d and %d: %w", p.Color, prev, p.ID, ErrDuplicateColor)
		}
		seen[p.Color] = p.ID
	}
	return nil
}

// unclaimedStartLocations lists start locations no player declared
// concretely, and whether any player declared one.
func unclaimedStartLocations(players []model.PlayerInfo, count int) ([]int, bool) {
	claimed := make(map[int]bool, len(players))
	for _, p := range players {
		if p.StartLocation >= 0 && p.StartLocation < count {
			claimed[p.StartLocation] = true
		}
	}
	pool := make([]int, 0, count)
	for loc := 0; loc < count; loc++ {
		if !claimed[loc] {
			pool = append(pool, loc)
		}
	}
	return pool, len(claimed) > 0
}

// shuffle is a forward Fisher-Yates pass.
func shuffle(pool []int, rng *rand.Rand) {
	n := len(pool)
	if n <= 1 {
		return
	}
	for i := 0; i < n-1; i++ {
		j := i + rng.IntN(n-i)
		pool[i], pool[j] = pool[j], pool[i]
	}
}

// lowestColor returns the unassigned player with the lowest color; the
// earliest registration index wins ties.
func lowestColor(players []model.PlayerInfo, assigned []bool) int {
	index := -1
	for j, p := range players {
		if assigned[j] {
			continue
		}
		if index < 0 || p.Color < players[index].Color {
			index = j
		}
	}
	return index
}
