package model

// FactoryState is the production state of one house factory.
type FactoryState string

const (
	FactoryIdle      FactoryState = "idle"
	FactoryBuilding  FactoryState = "building"
	FactoryOnHold    FactoryState = "on_hold"
	FactoryCompleted FactoryState = "completed"
)

// SidebarEntry is one buildable as a player sees it on their sidebar.
type SidebarEntry struct {
	Kind     Kind         `json:"kind"`
	ID       int          `json:"id"`
	State    FactoryState `json:"state"`
	Progress int          `json:"progress"`
}

// SidebarState is the per-player sidebar view returned to the instance
// server. It must only ever reflect the house of the requesting player.
type SidebarState struct {
	Player  PlayerID       `json:"player"`
	House   HouseID        `json:"house"`
	Frame   uint32         `json:"frame"`
	Entries []SidebarEntry `json:"entries"`
}

// HouseStatus is the per-house state the multiplexing layer reads.
type HouseStatus struct {
	House           HouseID `json:"house"`
	Name            string  `json:"name"`
	Color           int     `json:"color"`
	Faction         int     `json:"faction"`
	StartLocation   int     `json:"startLocation"`
	IsHuman         bool    `json:"isHuman"`
	WasHuman        bool    `json:"wasHuman"`
	IsDefeated      bool    `json:"isDefeated"`
	IsPlayerControl bool    `json:"isPlayerControl"`
}

// Outcome is one player's line in the game-over event. Scores are the
// engine's concern and are not carried here.
type Outcome struct {
	Player   PlayerID `json:"player"`
	Name     string   `json:"name"`
	House    HouseID  `json:"house"`
	Team     int      `json:"team"`
	Human    bool     `json:"human"` // human now or at any point
	WasHuman bool     `json:"wasHuman"`
	Won      bool     `json:"won"`
	Defeated bool     `json:"defeated"`
}

// GameOver is emitted once when a tick reports a terminal state.
type GameOver struct {
	Frame       uint32    `json:"frame"`
	Multiplayer bool      `json:"multiplayer"`
	PlayerWon   bool      `json:"playerWon"`
	Outcomes    []Outcome `json:"outcomes"`
}

// MessageType tags user-visible messages raised by the multiplexing layer.
type MessageType string

const (
	MessageComputerTaunt      MessageType = "computer_taunt"
	MessagePlayerDisconnected MessageType = "player_disconnected"
	MessageCannotComply       MessageType = "cannot_comply"
)

// Message is a user-visible message event.
type Message struct {
	Type    MessageType `json:"type"`
	House   HouseID     `json:"house"`
	Index   int         `json:"index"`
	Timeout float64     `json:"timeout"`
	Text    string      `json:"text,omitempty"`
}
