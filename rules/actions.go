package rules

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-instance/queue"
)

// Reject reasons. They surface to players as user-visible messages.
const (
	RejectCannotComply = "cannot_comply"
	RejectDefeated     = "defeated"
	RejectUnbuildable  = "unbuildable"
)

// Decision is the outcome of a sidebar request. A zero Decision means the
// request has no effect.
type Decision struct {
	Rule      string            `json:"rule,omitempty"`
	Command   queue.CommandKind `json:"command,omitempty"`
	Placement PlacementChange   `json:"placement,omitempty"`
	Reject    string            `json:"reject,omitempty"`
}

// PlacementChange updates the requesting player's placement mode.
type PlacementChange string

const (
	PlacementNone   PlacementChange = ""
	PlacementStart  PlacementChange = "start"
	PlacementCancel PlacementChange = "cancel"
)

// Queues reports whether the decision stages a command.
func (d Decision) Queues() bool { return d.Command != "" }

func (d Decision) String() string {
	switch {
	case d.Reject != "":
		return "reject:" + d.Reject
	case d.Command != "":
		return string(d.Command)
	case d.Placement != PlacementNone:
		return "placement:" + string(d.Placement)
	}
	return "none"
}

func ActionProduce(RequestEnv) Decision { return Decision{Command: queue.CommandProduce} }

func ActionSuspend(RequestEnv) Decision { return Decision{Command: queue.CommandSuspend} }

// ActionAbandon also ends placement mode.
func ActionAbandon(RequestEnv) Decision {
	return Decision{Command: queue.CommandAbandon, Placement: PlacementCancel}
}

// ActionPlace places a completed structure, or fires a completed special.
func ActionPlace(env RequestEnv) Decision {
	if env.IsSpecial() {
		return Decision{Command: queue.CommandSpecialPlace, Placement: PlacementCancel}
	}
	return Decision{Command: queue.CommandPlace, Placement: PlacementCancel}
}

func ActionStartPlacement(RequestEnv) Decision { return Decision{Placement: PlacementStart} }

func ActionCancelPlacement(RequestEnv) Decision { return Decision{Placement: PlacementCancel} }

func ActionCannotComply(RequestEnv) Decision { return Decision{Reject: RejectCannotComply} }

func ActionDefeated(RequestEnv) Decision { return Decision{Reject: RejectDefeated} }

func ActionUnbuildable(RequestEnv) Decision { return Decision{Reject: RejectUnbuildable} }

// ActionIgnore accepts the request without effect.
func ActionIgnore(RequestEnv) Decision { return Decision{} }

var actionsByName = map[string]ActionFunc{
	"produce":          ActionProduce,
	"suspend":          ActionSuspend,
	"abandon":          ActionAbandon,
	"place":            ActionPlace,
	"start_placement":  ActionStartPlacement,
	"cancel_placement": ActionCancelPlacement,
	"cannot_comply":    ActionCannotComply,
	"defeated":         ActionDefeated,
	"unbuildable":      ActionUnbuildable,
	"ignore":           ActionIgnore,
}

// LookupAction resolves an action by the name used in rule files.
func LookupAction(name string) (ActionFunc, error) {
	fn, ok := actionsByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown rule action %q", name)
	}
	return fn, nil
}
