package instance

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/nstehr/vimy/vimy-instance/registry"
	"github.com/nstehr/vimy/vimy-instance/session"
	"github.com/nstehr/vimy/vimy-instance/snapshot"
)

// Snapshot captures the multiplexing state and the engine house table.
func (in *Instance) Snapshot() (*snapshot.Snapshot, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.snapshot()
}

func (in *Instance) snapshot() (*snapshot.Snapshot, error) {
	if !in.started {
		return nil, ErrNotStarted
	}
	raw, err := in.engine.MarshalState()
	if err != nil {
		return nil, fmt.Errorf("snapshot engine: %w", err)
	}
	return &snapshot.Snapshot{
		Header: snapshot.Header{
			Version:     snapshot.Version,
			InstanceID:  in.id,
			Frame:       in.frame,
			Multiplayer: in.state.Mode() == session.Multiplayer,
			SavedAt:     time.Now().UTC(),
		},
		Ghosts:    in.ghosts,
		Slots:     in.reg.Slots(),
		Session:   in.state.Snapshot(),
		Pending:   in.rec.Pending(),
		Outgoing:  in.out.Peek(),
		Seq:       in.out.Seq(),
		Placement: in.placement,
		Houses:    in.engine.Houses(),
		Engine:    raw,
	}, nil
}

// Save writes the session to path.
func (in *Instance) Save(path string) error {
	in.mu.Lock()
	defer in.mu.Unlock()
	snap, err := in.snapshot()
	if err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	if err := snapshot.WriteFile(path, snap); err != nil {
		return fmt.Errorf("save instance: %w", err)
	}
	slog.Info("instance saved", "instance", in.id, "frame", in.frame, "path", path, "pending", len(snap.Pending))
	return nil
}

// Load replaces the session with the one saved at path.
func (in *Instance) Load(path string) error {
	snap, err := snapshot.ReadFile(path)
	if err != nil {
		return fmt.Errorf("load instance: %w", err)
	}
	return in.Restore(snap)
}

// Restore reinstates snap. The shared tick is skipped on the next frame and
// the saved active player is rebound with every side effect. A snapshot that
// cannot be applied leaves the running match untouched.
func (in *Instance) Restore(snap *snapshot.Snapshot) error {
	in.mu.Lock()
	defer in.unlock()

	var bind registry.Slot
	if snap.Header.Multiplayer {
		s, ok := slotAt(snap.Slots, snap.Session.Active)
		if !ok {
			s, ok = slotAt(snap.Slots, 0)
		}
		if !ok {
			return fmt.Errorf("restore instance: no player to bind")
		}
		bind = s
	}

	if len(snap.Engine) > 0 {
		if err := in.engine.RestoreState(snap.Engine); err != nil {
			return fmt.Errorf("restore instance: %w", err)
		}
	} else {
		in.engine.Reset()
		for _, hs := range snap.Houses {
			in.engine.AssignHouse(hs)
		}
	}

	in.id = snap.Header.InstanceID
	in.frame = snap.Header.Frame
	in.ghosts = snap.Ghosts
	in.gameOver = nil
	in.firstTick = true
	in.placement = snap.Placement

	in.reg.Restore(snap.Slots)
	in.state.Restore(snap.Session)
	in.rec.Restore(snap.Pending)
	if dropped := in.out.Restore(snap.Outgoing, snap.Seq); dropped > 0 {
		slog.Warn("outgoing commands dropped on restore", "dropped", dropped)
	}
	in.started = true

	if snap.Header.Multiplayer {
		if !in.state.SetActive(bind.Player.ID, true) {
			return fmt.Errorf("restore instance: bind player %d", bind.Player.ID)
		}
	} else {
		in.engine.SetPlayerControl(snap.Session.ActiveHouse, true)
	}

	slog.Info("instance restored", "instance", in.id, "frame", in.frame, "pending", len(snap.Pending), "players", len(snap.Slots))
	return nil
}

func slotAt(slots []registry.Slot, i int) (registry.Slot, bool) {
	if i < 0 || i >= len(slots) {
		return registry.Slot{}, false
	}
	return slots[i], true
}
