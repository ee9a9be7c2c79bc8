// Package sim is a small in-memory stand-in for the simulation engine. It
// keeps one house per multiplayer slot with factories and sidebars, executes
// queued commands, and raises the global win and lose flags.
package sim

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/queue"
)

// Catalog lists buildable item ids per kind.
type Catalog map[model.Kind][]int

// DefaultCatalog is a small mixed tech tree.
func DefaultCatalog() Catalog {
	return Catalog{
		model.KindBuilding: {0, 1, 2, 3, 4},
		model.KindInfantry: {0, 1, 2},
		model.KindUnit:     {0, 1, 2, 3},
		model.KindAircraft: {0, 1},
		model.KindVessel:   {0, 1},
		model.KindSpecial:  {0},
	}
}

// Structure is a placed building.
type Structure struct {
	Ref  model.ObjectRef `json:"ref"`
	Cell model.Cell      `json:"cell"`
}

type house struct {
	Status    model.HouseStatus       `json:"status"`
	Assigned  bool                    `json:"assigned"`
	Allies    [model.MaxPlayers]bool  `json:"allies"`
	Factories map[model.Kind]*factory `json:"factories"`
	Sidebar   []model.SidebarEntry    `json:"sidebar"`
	Services  int                     `json:"services"`
	Recalcs   int                     `json:"recalcs"`
	Delivered []model.ObjectRef       `json:"delivered"`
}

// World is the reference engine. It is driven by one orchestrator and is not
// safe for concurrent use.
type World struct {
	catalog   Catalog
	kinds     []model.Kind // catalog kinds in order
	buildStep int

	houses     [model.MaxPlayers]*house
	structures []Structure
	nextID     int

	playerWins  bool
	playerLoses bool
	defeats     int

	aiTicks  int
	executed []queue.Command
	messages []model.Message

	context    func() model.HouseID
	mismatches int
}

// New returns a world where every factory finishes after 100/buildStep
// shared ticks.
func New(catalog Catalog, buildStep int) *World {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if buildStep < 1 {
		buildStep = 25
	}
	w := &World{catalog: catalog, buildStep: buildStep}
	for kind := range catalog {
		w.kinds = append(w.kinds, kind)
	}
	slices.Sort(w.kinds)
	w.Reset()
	return w
}

// Reset clears every house at session end.
func (w *World) Reset() {
	for i := range w.houses {
		w.houses[i] = w.newHouse(model.HouseID(i))
	}
	w.structures = nil
	w.playerWins, w.playerLoses = false, false
	w.defeats = 0
	w.aiTicks = 0
	w.executed = nil
	w.messages = nil
}

func (w *World) newHouse(h model.HouseID) *house {
	hs := &house{
		Status:    model.HouseStatus{House: h, Name: h.String(), StartLocation: model.NoStartLocation},
		Factories: make(map[model.Kind]*factory),
	}
	for kind := range w.catalog {
		hs.Factories[kind] = newFactory()
	}
	return hs
}

// BindContext lets the world check which house the caller's context points
// at while it services per-house sidebars.
func (w *World) BindContext(src func() model.HouseID) { w.context = src }

// ContextMismatches counts sidebar passes that ran for a house other than
// the bound context.
func (w *World) ContextMismatches() int { return w.mismatches }

func (w *World) house(h model.HouseID) *house {
	if !h.Valid() {
		return nil
	}
	return w.houses[h]
}

// AssignHouse sets up one multiplayer house.
func (w *World) AssignHouse(status model.HouseStatus) {
	hs := w.house(status.House)
	if hs == nil {
		return
	}
	hs.Status = status
	hs.Assigned = true
	w.recalc(hs)
}

// SetAlly makes b an ally of a. Callers set both directions.
func (w *World) SetAlly(a, b model.HouseID) {
	if hs := w.house(a); hs != nil && b.Valid() {
		hs.Allies[b] = true
	}
}

func (w *World) IsAlly(a, b model.HouseID) bool {
	hs := w.house(a)
	return hs != nil && b.Valid() && hs.Allies[b]
}

// MarkGhost fills an unused slot with a permanently defeated AI house.
func (w *World) MarkGhost(h model.HouseID) {
	if hs := w.house(h); hs != nil {
		hs.Status.IsHuman = false
		hs.Status.IsDefeated = true
	}
}

func (w *World) House(h model.HouseID) (model.HouseStatus, bool) {
	hs := w.house(h)
	if hs == nil {
		return model.HouseStatus{}, false
	}
	return hs.Status, true
}

// Houses returns the status of every house in house order.
func (w *World) Houses() []model.HouseStatus {
	out := make([]model.HouseStatus, 0, len(w.houses))
	for _, hs := range w.houses {
		out = append(out, hs.Status)
	}
	return out
}

func (w *World) IsHuman(h model.HouseID) bool {
	hs := w.house(h)
	return hs != nil && hs.Status.IsHuman
}

func (w *World) SetPlayerControl(h model.HouseID, on bool) {
	if hs := w.house(h); hs != nil {
		hs.Status.IsPlayerControl = on
	}
}

// SwitchToAI hands a house to the computer. WasHuman is kept so outcomes
// still list the player.
func (w *World) SwitchToAI(h model.HouseID) {
	hs := w.house(h)
	if hs == nil {
		return
	}
	if hs.Status.IsHuman {
		hs.Status.WasHuman = true
	}
	hs.Status.IsHuman = false
	hs.Status.IsPlayerControl = false
}

// Defeat marks a house defeated. Victory is checked on the next AI pass.
func (w *World) Defeat(h model.HouseID) {
	hs := w.house(h)
	if hs == nil || hs.Status.IsDefeated {
		return
	}
	hs.Status.IsDefeated = true
	w.defeats++
	slog.Info("house defeated", "house", h)
}

func (w *World) Flags() (wins, loses bool) { return w.playerWins, w.playerLoses }

func (w *World) SetFlags(wins, loses bool) { w.playerWins, w.playerLoses = wins, loses }

func (w *World) ClearFlags() { w.playerWins, w.playerLoses = false, false }

// AI runs the shared per-tick update once for every house.
func (w *World) AI() {
	w.aiTicks++
	for _, hs := range w.houses {
		if !hs.Assigned || hs.Status.IsDefeated {
			continue
		}
		for _, kind := range w.kinds {
			f := hs.Factories[kind]
			f.advance(w.buildStep)
			// Units leave the factory on their own; structures and
			// specials wait to be placed.
			if f.State == model.FactoryCompleted && kind != model.KindBuilding && kind != model.KindSpecial {
				w.deliver(hs, kind, f)
			}
		}
	}
	if w.defeats > 0 {
		w.checkVictory()
	}
}

func (w *World) AITicks() int { return w.aiTicks }

// checkVictory raises PlayerWins once every surviving house is on one team.
func (w *World) checkVictory() {
	var alive []model.HouseID
	for _, hs := range w.houses {
		if hs.Assigned && !hs.Status.IsDefeated {
			alive = append(alive, hs.Status.House)
		}
	}
	if len(alive) == 0 {
		w.playerLoses = true
		return
	}
	for _, a := range alive {
		for _, b := range alive {
			if a != b && !w.IsAlly(a, b) {
				return
			}
		}
	}
	w.playerWins = true
}

// SidebarAI services the sidebar of h. It runs once per player before the
// shared tick.
func (w *World) SidebarAI(h model.HouseID) {
	hs := w.house(h)
	if hs == nil {
		return
	}
	w.checkContext(h)
	hs.Services++
}

// SidebarRecalc rebuilds the sidebar of h from its factories.
func (w *World) SidebarRecalc(h model.HouseID) {
	hs := w.house(h)
	if hs == nil {
		return
	}
	w.checkContext(h)
	hs.Recalcs++
	w.recalc(hs)
}

func (w *World) checkContext(h model.HouseID) {
	if w.context != nil && w.context() != h {
		w.mismatches++
		slog.Warn("sidebar serviced under foreign context", "house", h, "context", w.context())
	}
}

func (w *World) recalc(hs *house) {
	entries := hs.Sidebar[:0]
	for _, kind := range w.kinds {
		f := hs.Factories[kind]
		for _, id := range w.catalog[kind] {
			e := model.SidebarEntry{Kind: kind, ID: id, State: model.FactoryIdle}
			if f != nil && f.Item == id {
				e.State, e.Progress = f.State, f.Progress
			}
			entries = append(entries, e)
		}
	}
	hs.Sidebar = entries
}

// Sidebar returns the last recomputed sidebar of h.
func (w *World) Sidebar(h model.HouseID) []model.SidebarEntry {
	hs := w.house(h)
	if hs == nil {
		return nil
	}
	return slices.Clone(hs.Sidebar)
}

// SidebarCounters returns how often the sidebar of h was serviced and
// recomputed.
func (w *World) SidebarCounters(h model.HouseID) (services, recalcs int) {
	hs := w.house(h)
	if hs == nil {
		return 0, 0
	}
	return hs.Services, hs.Recalcs
}

// Factory reports the production line of h for kind.
func (w *World) Factory(h model.HouseID, kind model.Kind) (model.FactoryState, int, bool) {
	hs := w.house(h)
	if hs == nil {
		return model.FactoryIdle, -1, false
	}
	f, ok := hs.Factories[kind]
	if !ok {
		return model.FactoryIdle, -1, false
	}
	return f.State, f.Item, true
}

// Buildable reports whether id of kind is in the catalog.
func (w *World) Buildable(kind model.Kind, id int) bool {
	return slices.Contains(w.catalog[kind], id)
}

// Execute applies a due command to its originating house.
func (w *World) Execute(cmd queue.Command) {
	w.executed = append(w.executed, cmd)
	hs := w.house(cmd.House)
	if hs == nil {
		return
	}
	ok := true
	switch cmd.Kind {
	case queue.CommandProduce:
		ok = w.onFactory(hs, cmd.Object.Kind, func(f *factory) bool { return f.start(cmd.Object.ID) })
	case queue.CommandSuspend:
		ok = w.onFactory(hs, cmd.Object.Kind, (*factory).suspend)
	case queue.CommandAbandon:
		ok = w.onFactory(hs, cmd.Object.Kind, (*factory).abandon)
	case queue.CommandPlace:
		ok = w.place(hs, cmd)
	case queue.CommandSpecialPlace:
		ok = w.onFactory(hs, model.KindSpecial, func(f *factory) bool { return f.take(cmd.Object.ID) })
	case queue.CommandSell:
		ok = w.sell(cmd)
	case queue.CommandAlly:
		if cmd.Object.House.Valid() {
			hs.Allies[cmd.Object.House] = !hs.Allies[cmd.Object.House]
		}
	case queue.CommandExit:
		w.Defeat(cmd.House)
	}
	if !ok {
		slog.Debug("command had no effect", "command", cmd.String())
	}
	w.recalc(hs)
}

func (w *World) onFactory(hs *house, kind model.Kind, fn func(*factory) bool) bool {
	f, ok := hs.Factories[kind]
	if !ok {
		return false
	}
	return fn(f)
}

func (w *World) place(hs *house, cmd queue.Command) bool {
	f, ok := hs.Factories[model.KindBuilding]
	if !ok || !f.take(cmd.Object.ID) {
		return false
	}
	w.nextID++
	w.structures = append(w.structures, Structure{
		Ref:  model.ObjectRef{Kind: model.KindBuilding, ID: w.nextID, House: cmd.House},
		Cell: cmd.Cell,
	})
	return true
}

func (w *World) sell(cmd queue.Command) bool {
	n := len(w.structures)
	w.structures = slices.DeleteFunc(w.structures, func(s Structure) bool {
		return s.Ref.ID == cmd.Object.ID && s.Ref.House == cmd.House
	})
	return len(w.structures) != n
}

func (w *World) deliver(hs *house, kind model.Kind, f *factory) {
	w.nextID++
	hs.Delivered = append(hs.Delivered, model.ObjectRef{Kind: kind, ID: w.nextID, House: hs.Status.House})
	*f = *newFactory()
}

// Delivered returns the units h has produced.
func (w *World) Delivered(h model.HouseID) []model.ObjectRef {
	hs := w.house(h)
	if hs == nil {
		return nil
	}
	return slices.Clone(hs.Delivered)
}

// Structures returns the placed buildings.
func (w *World) Structures() []Structure { return slices.Clone(w.structures) }

// Executed returns every command the world has run, in order.
func (w *World) Executed() []queue.Command { return slices.Clone(w.executed) }

// ShowMessage records a user-visible message.
func (w *World) ShowMessage(m model.Message) { w.messages = append(w.messages, m) }

func (w *World) Messages() []model.Message { return slices.Clone(w.messages) }

type state struct {
	Houses     [model.MaxPlayers]*house `json:"houses"`
	Structures []Structure              `json:"structures"`
	NextID     int                      `json:"nextId"`
	Defeats    int                      `json:"defeats"`
}

// MarshalState encodes the house table for a save.
func (w *World) MarshalState() (json.RawMessage, error) {
	b, err := json.Marshal(state{Houses: w.houses, Structures: w.structures, NextID: w.nextID, Defeats: w.defeats})
	if err != nil {
		return nil, fmt.Errorf("marshal world: %w", err)
	}
	return b, nil
}

// RestoreState replaces the world with one produced by MarshalState. The
// world is left unchanged when raw cannot be decoded.
func (w *World) RestoreState(raw json.RawMessage) error {
	var s state
	if err := json.Unmarshal(raw, &s); err != nil {
		return fmt.Errorf("unmarshal world: %w", err)
	}
	w.Reset()
	for i, hs := range s.Houses {
		if hs == nil {
			hs = w.newHouse(model.HouseID(i))
		}
		if hs.Factories == nil {
			hs.Factories = make(map[model.Kind]*factory)
		}
		for kind := range w.catalog {
			if hs.Factories[kind] == nil {
				hs.Factories[kind] = newFactory()
			}
		}
		w.houses[i] = hs
	}
	w.structures = s.Structures
	w.nextID = s.NextID
	w.defeats = s.Defeats
	w.playerWins, w.playerLoses = false, false
	return nil
}
