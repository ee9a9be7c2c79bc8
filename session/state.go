// Package session owns the single "active player" binding that the engine's
// player-centric logic reads. Every rebind goes through State.
package session

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/registry"
)

// Mode distinguishes single-player sessions, where the context never moves,
// from multiplayer sessions driven by the instance server.
type Mode int

const (
	SinglePlayer Mode = iota
	Multiplayer
)

func (m Mode) String() string {
	if m == Multiplayer {
		return "multiplayer"
	}
	return "single_player"
}

// Houses is the slice of the engine house table the switcher touches.
type Houses interface {
	IsHuman(h model.HouseID) bool
	SetPlayerControl(h model.HouseID, on bool)
}

// State is the session's active-context record. It is owned by one
// orchestrator and is not safe for concurrent use.
type State struct {
	mode   Mode
	reg    *registry.Registry
	houses Houses

	active      int // registration index of the active slot
	activeHouse model.HouseID

	sel  selection
	keys [model.MaxPlayers]model.SpecialKeys

	switches int
}

func New(reg *registry.Registry, houses Houses) *State {
	return &State{
		reg:         reg,
		houses:      houses,
		activeHouse: model.HouseNone,
		sel:         selection{context: model.HouseNone},
	}
}

func (s *State) Mode() Mode { return s.mode }

// BeginSinglePlayer binds the sole local house. Context never changes after.
func (s *State) BeginSinglePlayer(h model.HouseID) {
	s.mode = SinglePlayer
	s.active = 0
	s.activeHouse = h
	s.sel.clearAll()
	s.sel.setContext(h)
}

// BeginMultiplayer binds the first registered player, re-running every
// rebind side effect.
func (s *State) BeginMultiplayer() bool {
	s.mode = Multiplayer
	s.sel.clearAll()
	s.active = 0
	slot, ok := s.reg.Slot(0)
	if !ok {
		return false
	}
	return s.SetActive(slot.Player.ID, true)
}

// SetActive binds the context to player id. Unknown ids fail and callers
// must drop the whole request. With force unset, re-activating the
// current slot is free of side effects.
func (s *State) SetActive(id model.PlayerID, force bool) bool {
	if s.mode == SinglePlayer {
		s.sel.setContext(s.activeHouse)
		return true
	}

	i := s.reg.IndexOf(id)
	if i < 0 {
		slog.Debug("set active: unknown player", "player", id)
		return false
	}
	if !force && i == s.active && s.activeHouse != model.HouseNone {
		return true
	}
	s.bind(i)
	return true
}

// SwitchForHouse is the engine-side rebind used while iterating houses.
// Houses that belong to no registered slot are ignored.
func (s *State) SwitchForHouse(h model.HouseID) {
	if s.mode == SinglePlayer {
		s.sel.setContext(s.activeHouse)
		return
	}
	if h == model.HouseNone {
		return
	}
	i := s.reg.IndexOfHouse(h)
	if i < 0 || (i == s.active && s.activeHouse != model.HouseNone) {
		return
	}
	s.bind(i)
}

// SwitchForObject rebinds to the owner of ref. Objects that cannot be owned
// are ignored.
func (s *State) SwitchForObject(ref model.ObjectRef) {
	if !ref.Kind.IsTechno() {
		return
	}
	s.SwitchForHouse(ref.House)
}

func (s *State) bind(i int) {
	slot, ok := s.reg.Slot(i)
	if !ok {
		return
	}
	s.activeHouse = slot.House
	s.sel.setContext(slot.House)
	s.active = i
	s.refreshControlFlags()
	s.switches++
}

// refreshControlFlags gives player control to the active house only, and
// only while it is still human.
func (s *State) refreshControlFlags() {
	if s.houses == nil {
		return
	}
	for i, slot := range s.reg.Slots() {
		if !slot.House.Valid() {
			continue
		}
		on := i == s.active && s.houses.IsHuman(slot.House)
		s.houses.SetPlayerControl(slot.House, on)
	}
}

// Active returns the active slot index, house and player.
func (s *State) Active() (int, model.HouseID, model.PlayerID) {
	return s.active, s.activeHouse, s.reg.LookupPlayer(s.activeHouse)
}

func (s *State) ActiveHouse() model.HouseID { return s.activeHouse }

// Switches counts rebinds that ran their side effects.
func (s *State) Switches() int { return s.switches }

// Reset clears the context at session end.
func (s *State) Reset() {
	s.mode = SinglePlayer
	s.active = 0
	s.activeHouse = model.HouseNone
	s.sel.clearAll()
	s.sel.setContext(model.HouseNone)
	s.keys = [model.MaxPlayers]model.SpecialKeys{}
}

func (s *State) SetSpecialKeys(k model.SpecialKeys) { s.keys[s.active] = k }

func (s *State) SpecialKeys() model.SpecialKeys { return s.keys[s.active] }

// Select adds ref to the active house's selection. Objects owned by other
// houses are refused.
func (s *State) Select(ref model.ObjectRef) bool {
	if ref.House != s.activeHouse {
		return false
	}
	s.sel.add(ref)
	return true
}

func (s *State) ClearSelection() { s.sel.clear() }

func (s *State) Selection() []model.ObjectRef {
	return append([]model.ObjectRef(nil), s.sel.current()...)
}

// Forget removes a dead object from all selections and groups.
func (s *State) Forget(ref model.ObjectRef) { s.sel.forget(ref) }

// ControlGroupAction is one of the control group requests.
type ControlGroupAction int

const (
	GroupToggle ControlGroupAction = iota
	GroupAdd
	GroupCreate
)

// ControlGroup applies a control group request to the active house.
func (s *State) ControlGroup(action ControlGroupAction, n int) bool {
	if n < 0 || n >= MaxControlGroups || !s.activeHouse.Valid() {
		return false
	}
	switch action {
	case GroupCreate:
		s.sel.createGroup(n)
	case GroupAdd:
		s.sel.addToGroup(n)
	case GroupToggle:
		s.sel.selectGroup(n)
	default:
		return false
	}
	return true
}

// Group returns the members of control group n for the active house.
func (s *State) Group(n int) []model.ObjectRef {
	if n < 0 || n >= MaxControlGroups || !s.activeHouse.Valid() {
		return nil
	}
	return s.sel.group(n)
}

// Snapshot is the persisted part of State.
type Snapshot struct {
	Mode        Mode                                `json:"mode"`
	Active      int                                 `json:"active"`
	ActiveHouse model.HouseID                       `json:"activeHouse"`
	Keys        [model.MaxPlayers]model.SpecialKeys `json:"keys"`
}

func (s *State) Snapshot() Snapshot {
	return Snapshot{Mode: s.mode, Active: s.active, ActiveHouse: s.activeHouse, Keys: s.keys}
}

// Restore reinstates a snapshot. Callers force a rebind afterwards so the
// engine-side flags match.
func (s *State) Restore(snap Snapshot) {
	s.mode = snap.Mode
	s.active = snap.Active
	s.activeHouse = snap.ActiveHouse
	s.keys = snap.Keys
	s.sel.clearAll()
	s.sel.setContext(snap.ActiveHouse)
}
