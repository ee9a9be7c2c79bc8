package session

import (
	"testing"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/registry"
)

type fakeHouses struct {
	human   map[model.HouseID]bool
	control map[model.HouseID]bool
	writes  int
}

func newFakeHouses() *fakeHouses {
	return &fakeHouses{
		human:   map[model.HouseID]bool{0: true, 1: true, 2: false},
		control: map[model.HouseID]bool{},
	}
}

func (f *fakeHouses) IsHuman(h model.HouseID) bool { return f.human[h] }

func (f *fakeHouses) SetPlayerControl(h model.HouseID, on bool) {
	f.control[h] = on
	f.writes++
}

func newMultiplayerState(t *testing.T) (*State, *fakeHouses) {
	t.Helper()
	reg := registry.New()
	players := []model.PlayerInfo{
		{ID: 11, Color: 0},
		{ID: 22, Color: 1},
		{ID: 33, Color: 2, IsAI: true},
	}
	if _, err := reg.Register(players, model.MaxPlayers, model.NewWaypoints(64), registry.NewRand(1)); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	houses := newFakeHouses()
	s := New(reg, houses)
	if !s.BeginMultiplayer() {
		t.Fatal("BeginMultiplayer failed")
	}
	return s, houses
}

func TestBeginMultiplayerBindsFirstPlayer(t *testing.T) {
	s, houses := newMultiplayerState(t)
	i, h, id := s.Active()
	if i != 0 || h != 0 || id != 11 {
		t.Fatalf("expected slot 0 / house 0 / player 11, got %d / %v / %d", i, h, id)
	}
	if !houses.control[0] || houses.control[1] || houses.control[2] {
		t.Errorf("expected only house 0 under player control, got %+v", houses.control)
	}
}

func TestSetActiveIsIdempotent(t *testing.T) {
	s, houses := newMultiplayerState(t)

	if !s.SetActive(22, false) {
		t.Fatal("SetActive(22) failed")
	}
	switches, writes := s.Switches(), houses.writes
	controlBefore := map[model.HouseID]bool{0: houses.control[0], 1: houses.control[1], 2: houses.control[2]}

	if !s.SetActive(22, false) {
		t.Fatal("second SetActive(22) failed")
	}
	if s.Switches() != switches {
		t.Errorf("expected no rebind, switches went %d -> %d", switches, s.Switches())
	}
	if houses.writes != writes {
		t.Errorf("expected no control flag writes, got %d new", houses.writes-writes)
	}
	for h, on := range controlBefore {
		if houses.control[h] != on {
			t.Errorf("control flag for %v changed on idempotent call", h)
		}
	}
}

func TestSetActiveForceReruns(t *testing.T) {
	s, _ := newMultiplayerState(t)
	before := s.Switches()
	if !s.SetActive(11, true) {
		t.Fatal("forced SetActive failed")
	}
	if s.Switches() != before+1 {
		t.Errorf("expected forced rebind, switches %d -> %d", before, s.Switches())
	}
}

func TestSetActiveUnknownPlayer(t *testing.T) {
	s, _ := newMultiplayerState(t)
	if s.SetActive(999, false) {
		t.Fatal("expected unknown player to fail")
	}
	if _, h, _ := s.Active(); h != 0 {
		t.Errorf("expected context to stay on house 0, got %v", h)
	}
}

func TestControlFlagsOnlyForActiveHuman(t *testing.T) {
	s, houses := newMultiplayerState(t)

	s.SetActive(22, false)
	if houses.control[0] || !houses.control[1] {
		t.Errorf("expected only house 1 controlled, got %+v", houses.control)
	}

	// AI house never gets player control, even while active.
	s.SetActive(33, false)
	for h, on := range houses.control {
		if on {
			t.Errorf("expected no controlled house while AI active, %v is", h)
		}
	}
}

func TestSwitchForObject(t *testing.T) {
	s, _ := newMultiplayerState(t)

	s.SwitchForObject(model.ObjectRef{Kind: model.KindOverlay, ID: 3, House: 1})
	if s.ActiveHouse() != 0 {
		t.Errorf("overlay should not switch context, active %v", s.ActiveHouse())
	}

	s.SwitchForObject(model.ObjectRef{Kind: model.KindUnit, ID: 3, House: 1})
	if s.ActiveHouse() != 1 {
		t.Errorf("expected switch to house 1, active %v", s.ActiveHouse())
	}

	before := s.Switches()
	s.SwitchForObject(model.ObjectRef{Kind: model.KindInfantry, ID: 9, House: 1})
	if s.Switches() != before {
		t.Error("switching to the active house should be free")
	}

	s.SwitchForHouse(model.HouseID(6)) // ghost house, no slot
	if s.ActiveHouse() != 1 {
		t.Errorf("unregistered house should be ignored, active %v", s.ActiveHouse())
	}
	s.SwitchForHouse(model.HouseNone)
	if s.ActiveHouse() != 1 {
		t.Errorf("HouseNone should be ignored, active %v", s.ActiveHouse())
	}
}

func TestSinglePlayerAlwaysSucceeds(t *testing.T) {
	s := New(registry.New(), newFakeHouses())
	s.BeginSinglePlayer(0)
	if !s.SetActive(12345, false) {
		t.Fatal("single player SetActive should always succeed")
	}
	s.SwitchForHouse(3)
	if s.ActiveHouse() != 0 {
		t.Errorf("single player context moved to %v", s.ActiveHouse())
	}
	if s.Switches() != 0 {
		t.Errorf("expected no rebinds in single player, got %d", s.Switches())
	}
}

func TestSelectionIsolation(t *testing.T) {
	s, _ := newMultiplayerState(t)

	tank := model.ObjectRef{Kind: model.KindUnit, ID: 1, House: 0}
	if !s.Select(tank) {
		t.Fatal("expected select of own unit")
	}
	if s.Select(model.ObjectRef{Kind: model.KindUnit, ID: 2, House: 1}) {
		t.Error("selected another house's unit")
	}

	s.SetActive(22, false)
	if got := s.Selection(); len(got) != 0 {
		t.Errorf("player 22 sees residue of player 11's selection: %+v", got)
	}

	s.SetActive(11, false)
	if got := s.Selection(); len(got) != 1 || got[0] != tank {
		t.Errorf("expected player 11 selection preserved, got %+v", got)
	}
}

func TestControlGroups(t *testing.T) {
	s, _ := newMultiplayerState(t)
	a := model.ObjectRef{Kind: model.KindUnit, ID: 1, House: 0}
	b := model.ObjectRef{Kind: model.KindInfantry, ID: 2, House: 0}

	s.Select(a)
	if !s.ControlGroup(GroupCreate, 1) {
		t.Fatal("create group failed")
	}
	s.ClearSelection()
	s.Select(b)
	s.ControlGroup(GroupAdd, 1)
	if got := s.Group(1); len(got) != 2 {
		t.Fatalf("expected 2 members in group 1, got %+v", got)
	}

	s.ClearSelection()
	s.ControlGroup(GroupToggle, 1)
	if got := s.Selection(); len(got) != 2 {
		t.Errorf("expected group selected, got %+v", got)
	}

	s.SetActive(22, false)
	if got := s.Group(1); len(got) != 0 {
		t.Errorf("group 1 leaked to player 22: %+v", got)
	}
	if s.ControlGroup(GroupCreate, MaxControlGroups) {
		t.Error("expected out of range group to fail")
	}

	s.SetActive(11, false)
	s.Forget(a)
	if got := s.Group(1); len(got) != 1 || got[0] != b {
		t.Errorf("expected dead unit removed from group, got %+v", got)
	}
}

func TestSpecialKeysPerSlot(t *testing.T) {
	s, _ := newMultiplayerState(t)
	s.SetSpecialKeys(model.KeyCtrl | model.KeyShift)
	s.SetActive(22, false)
	if s.SpecialKeys() != 0 {
		t.Errorf("expected clean keys for player 22, got %v", s.SpecialKeys())
	}
	s.SetActive(11, false)
	if !s.SpecialKeys().Has(model.KeyShift) {
		t.Error("expected shift held for player 11")
	}
}

func TestSnapshotRestore(t *testing.T) {
	s, _ := newMultiplayerState(t)
	s.SetActive(22, false)
	s.SetSpecialKeys(model.KeyAlt)
	snap := s.Snapshot()

	s.Reset()
	if s.ActiveHouse() != model.HouseNone {
		t.Fatalf("expected no active house after reset, got %v", s.ActiveHouse())
	}
	s.Restore(snap)
	if i, h, _ := s.Active(); i != 1 || h != 1 {
		t.Errorf("expected slot 1 / house 1 after restore, got %d / %v", i, h)
	}
	if !s.SpecialKeys().Has(model.KeyAlt) {
		t.Error("expected keys restored")
	}
}

func TestSwitchForHouseBindsWhenUnbound(t *testing.T) {
	s, houses := newMultiplayerState(t)
	s.Restore(Snapshot{Mode: Multiplayer, Active: 0, ActiveHouse: model.HouseNone})
	houses.control[0] = false
	before := s.Switches()

	s.SwitchForHouse(0)
	if s.ActiveHouse() != 0 {
		t.Fatalf("expected house 0 bound, got %v", s.ActiveHouse())
	}
	if s.Switches() != before+1 {
		t.Errorf("expected a rebind, switches %d -> %d", before, s.Switches())
	}
	if !houses.control[0] {
		t.Error("expected house 0 under player control")
	}
}
