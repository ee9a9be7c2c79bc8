package queue

import (
	"log/slog"
	"slices"

	"github.com/nstehr/vimy/vimy-instance/model"
)

// DefaultPendingCapacity bounds the pending list. Commands drained past it
// are dropped.
const DefaultPendingCapacity = 1024

// Executor runs a due command against the engine.
type Executor interface {
	Execute(cmd Command)
}

// HouseView is the part of the engine house table the reconciler reads.
// HouseAt walks registered slots in registration order.
type HouseView interface {
	HouseCount() int
	HouseAt(i int) (model.HouseID, bool)
	IsHuman(h model.HouseID) bool
}

// Result summarizes one reconciliation pass.
type Result struct {
	Drained   int
	Dropped   int
	Executed  []Command
	Compacted int
	Stale     int // compacted without ever running
}

// Reconciler owns the pending list shared by every house.
type Reconciler struct {
	pending  []Command
	capacity int
}

func NewReconciler(capacity int) *Reconciler {
	if capacity < 1 {
		capacity = DefaultPendingCapacity
	}
	return &Reconciler{capacity: capacity}
}

// ReconcileTick drains out into the pending list, executes every due command
// once, then drops spent commands from the head of the list.
func (r *Reconciler) ReconcileTick(frame uint32, out *Outgoing, houses HouseView, exec Executor) Result {
	var res Result

	for _, cmd := range out.Drain() {
		if len(r.pending) >= r.capacity {
			res.Dropped++
			slog.Warn("pending list full, dropping command", "command", cmd.String())
			continue
		}
		cmd.Executed = false
		r.pending = append(r.pending, cmd)
		res.Drained++
	}

	// Houses outer, commands inner. The executed flag is shared, so a
	// command runs once however many humans are connected.
	for i := 0; i < houses.HouseCount(); i++ {
		h, ok := houses.HouseAt(i)
		if !ok || !houses.IsHuman(h) {
			continue
		}
		for j := range r.pending {
			cmd := &r.pending[j]
			if !cmd.due(frame) {
				continue
			}
			// A command from a house that left before its frame goes stale.
			if !houses.IsHuman(cmd.House) {
				continue
			}
			exec.Execute(*cmd)
			cmd.Executed = true
			res.Executed = append(res.Executed, *cmd)
		}
	}

	n := 0
	for n < len(r.pending) && r.pending[n].spent(frame) {
		if !r.pending[n].Executed {
			res.Stale++
			slog.Debug("dropping stale command", "command", r.pending[n].String(), "frame", frame)
		}
		n++
	}
	if n > 0 {
		r.pending = slices.Delete(r.pending, 0, n)
		res.Compacted = n
	}
	return res
}

// Pending returns a copy of the pending list in execution order.
func (r *Reconciler) Pending() []Command {
	return slices.Clone(r.pending)
}

// Restore replaces the pending list, e.g. after loading a save. The order
// given is kept as is.
func (r *Reconciler) Restore(cmds []Command) {
	r.pending = slices.Clone(cmds)
}

func (r *Reconciler) Len() int { return len(r.pending) }

func (r *Reconciler) Reset() { r.pending = nil }
