package instance

import (
	"log/slog"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/rules"
	"github.com/nstehr/vimy/vimy-instance/session"
)

// SidebarRequest is a construction or placement request from one player.
// Action is one of the rules.Request* names.
type SidebarRequest struct {
	Player model.PlayerID
	Action string
	Kind   model.Kind
	ID     int
	Cell   model.Cell
}

// HandleSidebarRequest validates req with the rules engine and stages the
// resulting command for the player's house. The bool is false when the
// request was dropped because the player is unknown.
func (in *Instance) HandleSidebarRequest(req SidebarRequest) (rules.Decision, bool) {
	in.mu.Lock()
	defer in.unlock()

	if !in.started || in.gameOver != nil || !in.state.SetActive(req.Player, false) {
		return rules.Decision{}, false
	}
	h := in.state.ActiveHouse()
	if !h.Valid() {
		return rules.Decision{}, false
	}

	state, item, hasFactory := in.engine.Factory(h, req.Kind)
	hs, _ := in.engine.House(h)
	d := in.rules.Decide(rules.RequestEnv{
		Action:      req.Action,
		Kind:        req.Kind.String(),
		ID:          req.ID,
		Factory:     string(state),
		FactoryItem: item,
		HasFactory:  hasFactory,
		Buildable:   in.engine.Buildable(req.Kind, req.ID),
		IsHuman:     hs.IsHuman,
		IsDefeated:  hs.IsDefeated,
	})

	if d.Queues() {
		obj := model.ObjectRef{Kind: req.Kind, ID: req.ID, House: h}
		if !in.enqueue(d.Command, obj, req.Cell) {
			return d, true
		}
	}

	switch d.Placement {
	case rules.PlacementStart:
		in.placement[h] = &model.ObjectRef{Kind: req.Kind, ID: req.ID, House: h}
	case rules.PlacementCancel:
		in.placement[h] = nil
	}

	switch d.Reject {
	case "":
	case rules.RejectCannotComply:
		in.showMessage(model.Message{Type: model.MessageCannotComply, House: h, Index: -1, Timeout: cannotComplyTimeout})
	default:
		slog.Debug("sidebar request rejected", "player", req.Player, "house", h, "reason", d.Reject)
	}
	return d, true
}

// Placement returns the object the player is currently placing.
func (in *Instance) Placement(id model.PlayerID) (model.ObjectRef, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	h, ok := in.reg.LookupHouse(id)
	if in.state.Mode() == session.SinglePlayer {
		h, ok = in.state.ActiveHouse(), true
	}
	if !ok || !h.Valid() || in.placement[h] == nil {
		return model.ObjectRef{}, false
	}
	return *in.placement[h], true
}

// SidebarState returns the sidebar of the player's own house.
func (in *Instance) SidebarState(id model.PlayerID) (model.SidebarState, bool) {
	in.mu.Lock()
	defer in.unlock()
	if !in.started || !in.state.SetActive(id, false) {
		return model.SidebarState{}, false
	}
	_, h, player := in.state.Active()
	if in.state.Mode() == session.SinglePlayer {
		player = id
	}
	return model.SidebarState{
		Player:  player,
		House:   h,
		Frame:   in.frame,
		Entries: in.engine.Sidebar(h),
	}, true
}

func (in *Instance) HandleControlGroupRequest(id model.PlayerID, action session.ControlGroupAction, n int) bool {
	in.mu.Lock()
	defer in.unlock()
	if !in.started || !in.state.SetActive(id, false) {
		return false
	}
	return in.state.ControlGroup(action, n)
}

// SelectObject adds ref to the player's selection. Objects of other houses
// are refused.
func (in *Instance) SelectObject(id model.PlayerID, ref model.ObjectRef) bool {
	in.mu.Lock()
	defer in.unlock()
	if !in.started || !in.state.SetActive(id, false) {
		return false
	}
	return in.state.Select(ref)
}

func (in *Instance) ClearSelection(id model.PlayerID) bool {
	in.mu.Lock()
	defer in.unlock()
	if !in.started || !in.state.SetActive(id, false) {
		return false
	}
	in.state.ClearSelection()
	return true
}

func (in *Instance) Selection(id model.PlayerID) ([]model.ObjectRef, bool) {
	in.mu.Lock()
	defer in.unlock()
	if !in.started || !in.state.SetActive(id, false) {
		return nil, false
	}
	return in.state.Selection(), true
}

func (in *Instance) SetSpecialKeys(id model.PlayerID, keys model.SpecialKeys) bool {
	in.mu.Lock()
	defer in.unlock()
	if !in.started || !in.state.SetActive(id, false) {
		return false
	}
	in.state.SetSpecialKeys(keys)
	return true
}

// ObjectDestroyed drops a dead object from every selection and group.
func (in *Instance) ObjectDestroyed(ref model.ObjectRef) {
	in.mu.Lock()
	defer in.unlock()
	in.state.Forget(ref)
}
