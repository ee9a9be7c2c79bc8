package rules

import (
	"slices"

	"github.com/nstehr/vimy/vimy-instance/model"
)

// Sidebar request actions as they arrive from the instance server.
const (
	RequestStart           = "start"
	RequestHold            = "hold"
	RequestCancel          = "cancel"
	RequestStartPlacement  = "start_placement"
	RequestCancelPlacement = "cancel_placement"
	RequestPlace           = "place"
)

// RequestEnv describes one sidebar request and the requesting house's
// production line for the requested kind. Its methods are callable from
// rule conditions.
type RequestEnv struct {
	Action      string
	Kind        string
	ID          int
	Factory     string // factory state for Kind
	FactoryItem int    // item on the line, -1 when idle
	HasFactory  bool   // the house has a production line for Kind
	Buildable   bool   // Kind/ID is on the house's sidebar
	IsHuman     bool
	IsDefeated  bool
}

func (e RequestEnv) Idle() bool      { return e.Factory == string(model.FactoryIdle) }
func (e RequestEnv) Building() bool  { return e.Factory == string(model.FactoryBuilding) }
func (e RequestEnv) OnHold() bool    { return e.Factory == string(model.FactoryOnHold) }
func (e RequestEnv) Completed() bool { return e.Factory == string(model.FactoryCompleted) }

// Busy reports whether the line holds any item.
func (e RequestEnv) Busy() bool { return e.HasFactory && !e.Idle() }

// SameItem reports whether the line holds the requested item.
func (e RequestEnv) SameItem() bool { return e.FactoryItem == e.ID }

// IsStructure reports whether the requested kind is placed on the map when
// complete.
func (e RequestEnv) IsStructure() bool { return e.Kind == model.KindBuilding.String() }

func (e RequestEnv) IsSpecial() bool { return e.Kind == model.KindSpecial.String() }

// ActionIn reports whether the request action is one of names.
func (e RequestEnv) ActionIn(names ...string) bool {
	return slices.Contains(names, e.Action)
}
