// Package agent bridges one instance server connection to the running
// instance: it decodes requests, calls the instance, and pushes game over,
// message and house events back.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"

	"github.com/nstehr/vimy/vimy-instance/instance"
	"github.com/nstehr/vimy/vimy-instance/ipc"
	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/queue"
	"github.com/nstehr/vimy/vimy-instance/session"
)

// Sender pushes unsolicited messages to the connected client.
type Sender interface {
	Send(msgType string, data any) error
}

// Agent serves a single instance server connection.
type Agent struct {
	Instance *instance.Instance
	Out      Sender
	Client   string
	// SaveDir confines save and load paths. Empty allows any path.
	SaveDir string

	mu   sync.Mutex
	prev *stateSnapshot
}

func New(inst *instance.Instance, out Sender) *Agent {
	return &Agent{Instance: inst, Out: out}
}

// Attach subscribes the agent to instance events. Detach must be called
// when the connection ends.
func (a *Agent) Attach() { a.Instance.AddListener(a) }

func (a *Agent) Detach() { a.Instance.RemoveListener(a) }

// Handlers returns the dispatch table for this agent.
func (a *Agent) Handlers() ipc.Handlers {
	return ipc.Handlers{
		ipc.TypeHello:               a.HandleHello,
		ipc.TypeRegisterPlayers:     a.HandleRegisterPlayers,
		ipc.TypeStartSingle:         a.HandleStartSingle,
		ipc.TypeSetActivePlayer:     a.HandleSetActivePlayer,
		ipc.TypeAdvanceTick:         a.HandleAdvanceTick,
		ipc.TypeForceDisconnect:     a.HandleForceDisconnect,
		ipc.TypeHumanTeamWins:       a.HandleHumanTeamWins,
		ipc.TypeEnqueueCommand:      a.HandleEnqueueCommand,
		ipc.TypeSidebarRequest:      a.HandleSidebarRequest,
		ipc.TypeSidebarState:        a.HandleSidebarState,
		ipc.TypeControlGroupRequest: a.HandleControlGroup,
		ipc.TypeSelectObject:        a.HandleSelectObject,
		ipc.TypeClearSelection:      a.HandleClearSelection,
		ipc.TypeSpecialKeys:         a.HandleSpecialKeys,
		ipc.TypeSave:                a.HandleSave,
		ipc.TypeLoad:                a.HandleLoad,
	}
}

// HandleHello completes the handshake so the server knows the bridge is ready.
func (a *Agent) HandleHello(env ipc.Envelope) (*ipc.Envelope, error) {
	var hello ipc.HelloMessage
	if err := env.Decode(&hello); err != nil {
		return nil, err
	}
	a.Client = hello.Client
	slog.Info("client identified", "client", a.Client, "instance", a.Instance.ID())
	return ipc.Ack(true)
}

func (a *Agent) HandleRegisterPlayers(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.RegisterPlayersMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	opts := instance.MatchOptions{MaxPlayers: msg.MaxPlayers, Ghosts: msg.Ghosts, Waypoints: model.NewWaypoints(0)}
	if msg.Waypoints != nil {
		opts.Waypoints = *msg.Waypoints
	}
	if err := a.Instance.RegisterPlayers(msg.Players, opts); err != nil {
		return nil, err
	}
	a.resetEvents()
	return ipc.Ack(true)
}

func (a *Agent) HandleStartSingle(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.StartSingleMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	if err := a.Instance.StartSinglePlayer(msg.House); err != nil {
		return nil, err
	}
	a.resetEvents()
	return ipc.Ack(true)
}

func (a *Agent) HandleSetActivePlayer(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.SetActivePlayerMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	return ipc.Ack(a.Instance.SetActivePlayer(msg.Player, msg.Force))
}

// HandleAdvanceTick runs one frame and pushes any house events it caused.
func (a *Agent) HandleAdvanceTick(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.AdvanceTickMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	running, err := a.Instance.AdvanceTick(context.Background(), msg.Player)
	if err != nil && !errors.Is(err, instance.ErrGameOver) {
		return nil, fmt.Errorf("advance tick: %w", err)
	}
	frame := a.Instance.Frame()
	a.pushHouseEvents(frame)
	return ipc.Reply(ipc.TypeTickResult, ipc.TickResultMessage{Frame: frame, Running: running})
}

func (a *Agent) HandleForceDisconnect(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.ForceDisconnectMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	return ipc.Ack(a.Instance.ForceDisconnect(msg.Player))
}

func (a *Agent) HandleHumanTeamWins(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.HumanTeamWinsMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	return ipc.Ack(a.Instance.ForceHumanTeamWins(msg.Quitting))
}

func (a *Agent) HandleEnqueueCommand(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.EnqueueCommand
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	kind, err := queue.ParseCommandKind(msg.Kind)
	if err != nil {
		return nil, err
	}
	return ipc.Ack(a.Instance.PlayerCommand(msg.Player, kind, msg.Object, msg.Cell))
}

func (a *Agent) HandleSidebarRequest(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.SidebarRequestCommand
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	d, ok := a.Instance.HandleSidebarRequest(instance.SidebarRequest{
		Player: msg.Player,
		Action: msg.Action,
		Kind:   msg.Kind,
		ID:     msg.ID,
		Cell:   msg.Cell,
	})
	if !ok {
		return ipc.Reply(ipc.TypeAck, ipc.SidebarDecision{Status: ipc.StatusDropped})
	}
	return ipc.Reply(ipc.TypeAck, ipc.SidebarDecision{
		Status:  ipc.StatusOK,
		Rule:    d.Rule,
		Command: string(d.Command),
		Reject:  d.Reject,
	})
}

func (a *Agent) HandleSidebarState(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.SidebarStateRequest
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	state, ok := a.Instance.SidebarState(msg.Player)
	if !ok {
		return ipc.Ack(false)
	}
	return ipc.Reply(ipc.TypeSidebarState, state)
}

var controlGroupActions = map[string]session.ControlGroupAction{
	"toggle": session.GroupToggle,
	"add":    session.GroupAdd,
	"create": session.GroupCreate,
}

func (a *Agent) HandleControlGroup(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.ControlGroupCommand
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	action, ok := controlGroupActions[msg.Action]
	if !ok {
		return nil, fmt.Errorf("unknown control group action %q", msg.Action)
	}
	return ipc.Ack(a.Instance.HandleControlGroupRequest(msg.Player, action, msg.Group))
}

func (a *Agent) HandleSelectObject(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.SelectObjectCommand
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	return ipc.Ack(a.Instance.SelectObject(msg.Player, msg.Object))
}

func (a *Agent) HandleClearSelection(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.ClearSelectionCommand
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	return ipc.Ack(a.Instance.ClearSelection(msg.Player))
}

func (a *Agent) HandleSpecialKeys(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.SpecialKeysCommand
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	var keys model.SpecialKeys
	if msg.Ctrl {
		keys |= model.KeyCtrl
	}
	if msg.Alt {
		keys |= model.KeyAlt
	}
	if msg.Shift {
		keys |= model.KeyShift
	}
	return ipc.Ack(a.Instance.SetSpecialKeys(msg.Player, keys))
}

func (a *Agent) HandleSave(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.SaveMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	if err := a.Instance.Save(a.savePath(msg.Path)); err != nil {
		return nil, err
	}
	return ipc.Ack(true)
}

func (a *Agent) HandleLoad(env ipc.Envelope) (*ipc.Envelope, error) {
	var msg ipc.SaveMessage
	if err := env.Decode(&msg); err != nil {
		return nil, err
	}
	if err := a.Instance.Load(a.savePath(msg.Path)); err != nil {
		return nil, err
	}
	a.resetEvents()
	return ipc.Ack(true)
}

func (a *Agent) savePath(p string) string {
	if a.SaveDir == "" {
		return p
	}
	return filepath.Join(a.SaveDir, filepath.Base(p))
}

// OnGameOver implements instance.Listener.
func (a *Agent) OnGameOver(ev model.GameOver) {
	if err := a.Out.Send(ipc.TypeGameOver, ev); err != nil {
		slog.Error("failed to push game over", "error", err)
	}
}

// OnMessage implements instance.Listener.
func (a *Agent) OnMessage(m model.Message) {
	if err := a.Out.Send(ipc.TypeMessage, m); err != nil {
		slog.Error("failed to push message", "type", m.Type, "error", err)
	}
}

func (a *Agent) resetEvents() {
	a.mu.Lock()
	a.prev = nil
	a.mu.Unlock()
}

func (a *Agent) pushHouseEvents(frame uint32) {
	players := make(map[model.HouseID]model.PlayerID)
	for _, s := range a.Instance.Slots() {
		players[s.House] = s.Player.ID
	}
	houses := a.Instance.Houses()

	a.mu.Lock()
	events := detectEvents(frame, houses, players, a.prev)
	snap := takeSnapshot(frame, houses, players)
	a.prev = &snap
	a.mu.Unlock()

	for _, e := range events {
		slog.Info("house event", "kind", e.Kind, "house", e.House, "player", e.Player, "frame", e.Frame)
		err := a.Out.Send(ipc.TypeHouseEvent, ipc.HouseEventMessage{
			Kind:   string(e.Kind),
			Frame:  e.Frame,
			House:  e.House,
			Player: e.Player,
			Detail: e.Detail,
		})
		if err != nil {
			slog.Error("failed to push house event", "error", err)
		}
	}
}
