package agent

import (
	"path/filepath"
	"testing"

	"github.com/nstehr/vimy/vimy-instance/instance"
	"github.com/nstehr/vimy/vimy-instance/ipc"
	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/sim"
)

type sent struct {
	msgType string
	data    any
}

type fakeSender struct{ out []sent }

func (f *fakeSender) Send(msgType string, data any) error {
	f.out = append(f.out, sent{msgType, data})
	return nil
}

func (f *fakeSender) ofType(msgType string) []any {
	var out []any
	for _, s := range f.out {
		if s.msgType == msgType {
			out = append(out, s.data)
		}
	}
	return out
}

func newAgent(t *testing.T) (*Agent, *fakeSender) {
	t.Helper()
	inst, err := instance.New(instance.Options{Engine: sim.New(nil, 0), Seed: 3})
	if err != nil {
		t.Fatalf("instance.New failed: %v", err)
	}
	out := &fakeSender{}
	a := New(inst, out)
	a.Attach()
	t.Cleanup(a.Detach)
	return a, out
}

func call(t *testing.T, a *Agent, msgType string, data any) ipc.Envelope {
	t.Helper()
	env, err := ipc.NewEnvelope(msgType, data)
	if err != nil {
		t.Fatalf("NewEnvelope failed: %v", err)
	}
	resp, err := a.Handlers().Dispatch(env)
	if err != nil {
		t.Fatalf("%s failed: %v", msgType, err)
	}
	if resp == nil {
		t.Fatalf("%s: expected a reply", msgType)
	}
	return *resp
}

func ackStatus(t *testing.T, env ipc.Envelope) string {
	t.Helper()
	var ack ipc.AckMessage
	if err := env.Decode(&ack); err != nil {
		t.Fatalf("decode ack: %v", err)
	}
	return ack.Status
}

func register(t *testing.T, a *Agent) {
	t.Helper()
	resp := call(t, a, ipc.TypeRegisterPlayers, ipc.RegisterPlayersMessage{
		Players: []model.PlayerInfo{
			{ID: 11, Name: "P1", Color: 0, Team: 1},
			{ID: 22, Name: "P2", Color: 1, Team: 2},
		},
	})
	if s := ackStatus(t, resp); s != ipc.StatusOK {
		t.Fatalf("expected ok, got %s", s)
	}
}

func TestHelloAck(t *testing.T) {
	a, _ := newAgent(t)
	resp := call(t, a, ipc.TypeHello, ipc.HelloMessage{Client: "instance-server"})
	if resp.Type != ipc.TypeAck || ackStatus(t, resp) != ipc.StatusOK {
		t.Errorf("expected ok ack, got %+v", resp)
	}
	if a.Client != "instance-server" {
		t.Errorf("expected client recorded, got %q", a.Client)
	}
}

func TestAdvanceTickReply(t *testing.T) {
	a, _ := newAgent(t)
	register(t, a)

	resp := call(t, a, ipc.TypeAdvanceTick, ipc.AdvanceTickMessage{Player: 11})
	if resp.Type != ipc.TypeTickResult {
		t.Fatalf("expected tick_result, got %s", resp.Type)
	}
	var res ipc.TickResultMessage
	resp.Decode(&res)
	if !res.Running || res.Frame != 1 {
		t.Errorf("expected running at frame 1, got %+v", res)
	}
}

func TestUnknownPlayerIsDropped(t *testing.T) {
	a, _ := newAgent(t)
	register(t, a)

	resp := call(t, a, ipc.TypeEnqueueCommand, ipc.EnqueueCommand{Player: 99, Kind: "produce", Cell: model.NoCell})
	if s := ackStatus(t, resp); s != ipc.StatusDropped {
		t.Errorf("expected dropped, got %s", s)
	}

	resp = call(t, a, ipc.TypeSidebarRequest, ipc.SidebarRequestCommand{Player: 99, Action: "start", Kind: model.KindUnit})
	var d ipc.SidebarDecision
	resp.Decode(&d)
	if d.Status != ipc.StatusDropped {
		t.Errorf("expected dropped sidebar request, got %+v", d)
	}
}

func TestBadCommandKindIsAnError(t *testing.T) {
	a, _ := newAgent(t)
	register(t, a)
	env, _ := ipc.NewEnvelope(ipc.TypeEnqueueCommand, ipc.EnqueueCommand{Player: 11, Kind: "teleport"})
	if _, err := a.HandleEnqueueCommand(env); err == nil {
		t.Error("expected error for unknown command kind")
	}
}

func TestSidebarRequestDecision(t *testing.T) {
	a, _ := newAgent(t)
	register(t, a)

	resp := call(t, a, ipc.TypeSidebarRequest, ipc.SidebarRequestCommand{Player: 22, Action: "start", Kind: model.KindInfantry, ID: 1, Cell: model.NoCell})
	var d ipc.SidebarDecision
	resp.Decode(&d)
	if d.Status != ipc.StatusOK || d.Command != "produce" || d.Rule != "start-construction" {
		t.Errorf("expected produce decision, got %+v", d)
	}

	call(t, a, ipc.TypeAdvanceTick, ipc.AdvanceTickMessage{Player: 11})
	resp = call(t, a, ipc.TypeSidebarState, ipc.SidebarStateRequest{Player: 22})
	var state model.SidebarState
	resp.Decode(&state)
	if state.House != 1 {
		t.Fatalf("expected house 1 sidebar, got %+v", state)
	}
	building := false
	for _, e := range state.Entries {
		if e.Kind == model.KindInfantry && e.ID == 1 && e.State == model.FactoryBuilding {
			building = true
		}
	}
	if !building {
		t.Errorf("expected infantry 1 in production, got %+v", state.Entries)
	}
}

func TestDisconnectPushesMessagesAndHouseEvents(t *testing.T) {
	a, out := newAgent(t)
	register(t, a)
	call(t, a, ipc.TypeAdvanceTick, ipc.AdvanceTickMessage{Player: 11})

	if s := ackStatus(t, call(t, a, ipc.TypeForceDisconnect, ipc.ForceDisconnectMessage{Player: 22})); s != ipc.StatusOK {
		t.Fatalf("expected ok, got %s", s)
	}
	msgs := out.ofType(ipc.TypeMessage)
	if len(msgs) != 2 {
		t.Fatalf("expected disconnect and taunt messages, got %+v", msgs)
	}
	if m := msgs[0].(model.Message); m.Type != model.MessagePlayerDisconnected {
		t.Errorf("expected disconnect message first, got %+v", m)
	}

	call(t, a, ipc.TypeAdvanceTick, ipc.AdvanceTickMessage{Player: 11})
	var kinds []string
	for _, d := range out.ofType(ipc.TypeHouseEvent) {
		kinds = append(kinds, d.(ipc.HouseEventMessage).Kind)
	}
	if len(kinds) != 2 || kinds[0] != string(EventSwitchedToAI) || kinds[1] != string(EventLastHuman) {
		t.Errorf("expected switched_to_ai then last_human, got %v", kinds)
	}
}

func TestGameOverPushedOnce(t *testing.T) {
	a, out := newAgent(t)
	register(t, a)
	call(t, a, ipc.TypeAdvanceTick, ipc.AdvanceTickMessage{Player: 11})
	call(t, a, ipc.TypeHumanTeamWins, ipc.HumanTeamWinsMessage{Quitting: 22})

	resp := call(t, a, ipc.TypeAdvanceTick, ipc.AdvanceTickMessage{Player: 11})
	var res ipc.TickResultMessage
	resp.Decode(&res)
	if res.Running {
		t.Fatal("expected match to end")
	}
	resp = call(t, a, ipc.TypeAdvanceTick, ipc.AdvanceTickMessage{Player: 11})
	resp.Decode(&res)
	if res.Running {
		t.Error("expected ticks after game over to report not running")
	}

	overs := out.ofType(ipc.TypeGameOver)
	if len(overs) != 1 {
		t.Fatalf("expected one game over push, got %d", len(overs))
	}
	if ev := overs[0].(model.GameOver); !ev.PlayerWon || !ev.Outcomes[0].Won {
		t.Errorf("expected P1 to win, got %+v", ev)
	}
}

func TestSaveLoadConfinedToSaveDir(t *testing.T) {
	a, _ := newAgent(t)
	a.SaveDir = t.TempDir()
	register(t, a)
	call(t, a, ipc.TypeAdvanceTick, ipc.AdvanceTickMessage{Player: 11})

	if s := ackStatus(t, call(t, a, ipc.TypeSave, ipc.SaveMessage{Path: "../../escape.snap"})); s != ipc.StatusOK {
		t.Fatalf("expected ok, got %s", s)
	}
	if got := a.savePath("../../escape.snap"); got != filepath.Join(a.SaveDir, "escape.snap") {
		t.Errorf("expected path inside save dir, got %s", got)
	}
	if s := ackStatus(t, call(t, a, ipc.TypeLoad, ipc.SaveMessage{Path: "escape.snap"})); s != ipc.StatusOK {
		t.Fatalf("expected ok, got %s", s)
	}
	if a.Instance.Frame() != 1 {
		t.Errorf("expected frame 1 after load, got %d", a.Instance.Frame())
	}
}
