package model

import "fmt"

// PlayerID is the opaque identifier the instance server uses for a player.
// Zero means "not a tracked multiplayer player".
type PlayerID uint64

// NoPlayer is returned by lookups that find no tracked player.
const NoPlayer PlayerID = 0

// HouseID indexes the engine's house table. Multiplayer houses occupy
// 0..MaxPlayers-1 in assignment order.
type HouseID int

// HouseNone marks an unassigned or missing house.
const HouseNone HouseID = -1

func (h HouseID) String() string {
	if h == HouseNone {
		return "none"
	}
	return fmt.Sprintf("multi%d", int(h)+1)
}

// Valid reports whether h addresses a multiplayer house slot.
func (h HouseID) Valid() bool { return h >= 0 && int(h) < MaxPlayers }

const (
	MaxPlayers   = 8
	MaxWaypoints = 26

	// RandomStartLocation asks the registry to draw an unclaimed start location.
	RandomStartLocation = 0x7f
	// NoStartLocation means no start location could be bound.
	NoStartLocation = -1
)

// PlayerInfo is one entry of the multiplayer setup list.
type PlayerInfo struct {
	ID            PlayerID `json:"id" yaml:"id"`
	Name          string   `json:"name" yaml:"name"`
	House         int      `json:"house" yaml:"house"` // faction preference
	Color         int      `json:"color" yaml:"color"`
	Team          int      `json:"team" yaml:"team"`
	StartLocation int      `json:"startLocation" yaml:"start_location"`
	IsAI          bool     `json:"isAI" yaml:"is_ai"`
}

// SpecialKeys is the ctrl/alt/shift modifier state a player last reported.
type SpecialKeys uint8

const (
	KeyCtrl SpecialKeys = 1 << iota
	KeyAlt
	KeyShift
)

func (k SpecialKeys) Has(flag SpecialKeys) bool { return k&flag != 0 }
