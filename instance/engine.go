package instance

import (
	"encoding/json"

	"github.com/google/uuid"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/queue"
)

// Engine is the simulation the instance multiplexes players onto. Every
// per-house call is made while the session context points at that house.
type Engine interface {
	Reset()
	AssignHouse(status model.HouseStatus)
	SetAlly(a, b model.HouseID)
	MarkGhost(h model.HouseID)

	House(h model.HouseID) (model.HouseStatus, bool)
	Houses() []model.HouseStatus
	IsHuman(h model.HouseID) bool
	SetPlayerControl(h model.HouseID, on bool)
	SwitchToAI(h model.HouseID)
	Defeat(h model.HouseID)

	Flags() (wins, loses bool)
	SetFlags(wins, loses bool)
	ClearFlags()

	// AI is the shared per-tick update.
	AI()
	SidebarAI(h model.HouseID)
	SidebarRecalc(h model.HouseID)
	Sidebar(h model.HouseID) []model.SidebarEntry
	Factory(h model.HouseID, kind model.Kind) (model.FactoryState, int, bool)
	Buildable(kind model.Kind, id int) bool

	Execute(cmd queue.Command)
	ShowMessage(m model.Message)

	MarshalState() (json.RawMessage, error)
	// RestoreState replaces all engine state. On error the engine must be
	// left as it was.
	RestoreState(raw json.RawMessage) error
}

// contextBinder is implemented by engines that want to observe the active
// house directly.
type contextBinder interface {
	BindContext(src func() model.HouseID)
}

// Listener receives events raised by the instance. Callbacks run after the
// instance lock is released and may call back into the instance.
type Listener interface {
	OnGameOver(ev model.GameOver)
	OnMessage(m model.Message)
}

// Recorder persists executed commands and outcomes. Implementations must
// not block.
type Recorder interface {
	Executed(instance uuid.UUID, frame uint32, cmds []queue.Command)
	GameOver(instance uuid.UUID, ev model.GameOver)
}
