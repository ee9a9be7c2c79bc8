package ipc

import "github.com/nstehr/vimy/vimy-instance/model"

// Per-player request types. Every request names the player it acts for;
// requests for unknown players are acknowledged as dropped.
const (
	TypeEnqueueCommand      = "enqueue_command"
	TypeSidebarRequest      = "sidebar_request"
	TypeControlGroupRequest = "control_group_request"
	TypeSelectObject        = "select_object"
	TypeClearSelection      = "clear_selection"
	TypeSpecialKeys         = "special_keys"
)

// EnqueueCommand stages a raw simulation command for the player's house.
type EnqueueCommand struct {
	Player model.PlayerID  `json:"player"`
	Kind   string          `json:"kind"`
	Object model.ObjectRef `json:"object"`
	Cell   model.Cell      `json:"cell"`
}

type SidebarRequestCommand struct {
	Player model.PlayerID `json:"player"`
	Action string         `json:"action"`
	Kind   model.Kind     `json:"kind"`
	ID     int            `json:"id"`
	Cell   model.Cell     `json:"cell"`
}

// SidebarDecision is the reply to a sidebar request.
type SidebarDecision struct {
	Status  string `json:"status"`
	Rule    string `json:"rule,omitempty"`
	Command string `json:"command,omitempty"`
	Reject  string `json:"reject,omitempty"`
}

// ControlGroupCommand Action is one of "toggle", "add" or "create".
type ControlGroupCommand struct {
	Player model.PlayerID `json:"player"`
	Action string         `json:"action"`
	Group  int            `json:"group"`
}

type SelectObjectCommand struct {
	Player model.PlayerID  `json:"player"`
	Object model.ObjectRef `json:"object"`
}

type ClearSelectionCommand struct {
	Player model.PlayerID `json:"player"`
}

type SpecialKeysCommand struct {
	Player model.PlayerID `json:"player"`
	Ctrl   bool           `json:"ctrl,omitempty"`
	Alt    bool           `json:"alt,omitempty"`
	Shift  bool           `json:"shift,omitempty"`
}
