// Package queue stages commands generated under the active player context and
// replays them, frame-gated and at most once, for every connected human house.
package queue

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-instance/model"
)

// CommandKind identifies the simulation action a command performs.
type CommandKind string

const (
	CommandProduce      CommandKind = "produce"
	CommandAbandon      CommandKind = "abandon"
	CommandSuspend      CommandKind = "suspend"
	CommandPlace        CommandKind = "place"
	CommandSpecialPlace CommandKind = "special_place"
	CommandScatter      CommandKind = "scatter"
	CommandIdle         CommandKind = "idle"
	CommandSell         CommandKind = "sell"
	CommandRepair       CommandKind = "repair"
	CommandPrimary      CommandKind = "primary"
	CommandDeploy       CommandKind = "deploy"
	CommandAlly         CommandKind = "ally"
	CommandExit         CommandKind = "exit"
)

var commandKinds = map[CommandKind]bool{
	CommandProduce: true, CommandAbandon: true, CommandSuspend: true,
	CommandPlace: true, CommandSpecialPlace: true, CommandScatter: true,
	CommandIdle: true, CommandSell: true, CommandRepair: true,
	CommandPrimary: true, CommandDeploy: true, CommandAlly: true,
	CommandExit: true,
}

// ParseCommandKind validates a kind received over the wire.
func ParseCommandKind(s string) (CommandKind, error) {
	k := CommandKind(s)
	if !commandKinds[k] {
		return "", fmt.Errorf("unknown command kind %q", s)
	}
	return k, nil
}

// Command is one deferred simulation action. House is the originating house
// and never changes after the command is staged.
type Command struct {
	Kind     CommandKind     `json:"kind"`
	House    model.HouseID   `json:"house"`
	Object   model.ObjectRef `json:"object"`
	Cell     model.Cell      `json:"cell"`
	Frame    uint32          `json:"frame"`
	Executed bool            `json:"executed"`
	Seq      uint64          `json:"seq"`
}

func (c Command) String() string {
	return fmt.Sprintf("%s#%d %v %s/%d @%d", c.Kind, c.Seq, c.House, c.Object.Kind, c.Object.ID, c.Frame)
}

// due reports whether the command may run at frame.
func (c Command) due(frame uint32) bool {
	return !c.Executed && frame >= c.Frame
}

// spent reports whether the command can be dropped from the head of the
// pending list: it already ran, or its frame passed without it running.
func (c Command) spent(frame uint32) bool {
	return c.Executed || frame > c.Frame
}
