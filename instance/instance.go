// Package instance runs one match: it owns the player registry, the active
// player context and the command queues, and drives the engine one frame at
// a time on behalf of many remote players.
package instance

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand/v2"
	"slices"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/queue"
	"github.com/nstehr/vimy/vimy-instance/registry"
	"github.com/nstehr/vimy/vimy-instance/rules"
	"github.com/nstehr/vimy/vimy-instance/session"
)

var (
	ErrNotStarted = errors.New("no session started")
	ErrGameOver   = errors.New("game is over")
)

const tracerName = "github.com/nstehr/vimy/vimy-instance/instance"

// Message timeouts in seconds.
const (
	disconnectTimeout   = 60
	tauntTimeout        = 15
	cannotComplyTimeout = 5
)

// Options configures a new Instance. Only Engine is required.
type Options struct {
	Engine   Engine
	Rules    *rules.Engine
	Recorder Recorder
	Tracer   trace.Tracer

	OutgoingCapacity int
	PendingCapacity  int
	// CommandDelay is added to the current frame for every staged command.
	CommandDelay uint32
	// Seed drives start-location shuffles and taunts. Zero seeds from the
	// clock.
	Seed uint64
}

// MatchOptions are the per-match settings passed with the player list.
type MatchOptions struct {
	MaxPlayers int
	// Ghosts enables AI fill-in taunts. Any AI player implies it.
	Ghosts    bool
	Waypoints model.Waypoints
}

// Instance is safe for concurrent use; every operation runs under one lock.
type Instance struct {
	mu sync.Mutex

	id     uuid.UUID
	engine Engine
	rules  *rules.Engine
	tracer trace.Tracer
	record Recorder
	rng    *rand.Rand
	delay  uint32

	reg   *registry.Registry
	state *session.State
	out   *queue.Outgoing
	rec   *queue.Reconciler

	started   bool
	firstTick bool
	ghosts    bool
	frame     uint32
	gameOver  *model.GameOver
	placement [model.MaxPlayers]*model.ObjectRef

	listeners []Listener
	messages  []model.Message
	overs     []model.GameOver
}

func New(opts Options) (*Instance, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("new instance: nil engine")
	}
	re := opts.Rules
	if re == nil {
		var err error
		if re, err = rules.NewEngine(rules.DefaultRules()); err != nil {
			return nil, fmt.Errorf("new instance: %w", err)
		}
	}
	tracer := opts.Tracer
	if tracer == nil {
		tracer = otel.Tracer(tracerName)
	}
	seed := opts.Seed
	if seed == 0 {
		seed = registry.TimeSeed()
	}
	outCap := opts.OutgoingCapacity
	if outCap < 1 {
		outCap = queue.DefaultOutgoingCapacity
	}

	reg := registry.New()
	in := &Instance{
		id:     uuid.New(),
		engine: opts.Engine,
		rules:  re,
		tracer: tracer,
		record: opts.Recorder,
		rng:    registry.NewRand(seed),
		delay:  opts.CommandDelay,
		reg:    reg,
		state:  session.New(reg, opts.Engine),
		out:    queue.NewOutgoing(outCap),
		rec:    queue.NewReconciler(opts.PendingCapacity),
	}
	if b, ok := opts.Engine.(contextBinder); ok {
		b.BindContext(in.state.ActiveHouse)
	}
	return in, nil
}

func (in *Instance) ID() uuid.UUID {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.id
}

func (in *Instance) AddListener(l Listener) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.listeners = append(in.listeners, l)
}

func (in *Instance) RemoveListener(l Listener) {
	in.mu.Lock()
	defer in.mu.Unlock()
	in.listeners = slices.DeleteFunc(in.listeners, func(x Listener) bool { return x == l })
}

// unlock releases the lock and then delivers events raised while it was
// held.
func (in *Instance) unlock() {
	msgs, overs := in.messages, in.overs
	in.messages, in.overs = nil, nil
	listeners := slices.Clone(in.listeners)
	in.mu.Unlock()

	for _, l := range listeners {
		for _, m := range msgs {
			l.OnMessage(m)
		}
		for _, ev := range overs {
			l.OnGameOver(ev)
		}
	}
}

func (in *Instance) showMessage(m model.Message) {
	in.engine.ShowMessage(m)
	in.messages = append(in.messages, m)
}

// RegisterPlayers starts a multiplayer match. It fails without touching
// the current session when the player count is out of range.
func (in *Instance) RegisterPlayers(players []model.PlayerInfo, opts MatchOptions) error {
	in.mu.Lock()
	defer in.unlock()

	maxPlayers := opts.MaxPlayers
	if maxPlayers <= 0 {
		maxPlayers = model.MaxPlayers
	}
	if err := registry.ValidateColors(players); err != nil {
		slog.Warn("registering players with duplicate colors", "error", err)
	}
	a, err := in.reg.Register(players, maxPlayers, opts.Waypoints, in.rng)
	if err != nil {
		return fmt.Errorf("register players: %w", err)
	}

	in.resetMatch()
	in.ghosts = opts.Ghosts
	for _, s := range a.Slots {
		in.engine.AssignHouse(model.HouseStatus{
			House:         s.House,
			Name:          s.Player.Name,
			Color:         s.Player.Color,
			Faction:       s.Player.House,
			StartLocation: s.StartLocation,
			IsHuman:       s.IsHuman(),
		})
		if !s.IsHuman() {
			in.ghosts = true
		}
	}
	for _, s := range a.Slots {
		for _, ally := range in.reg.Allies(s.House) {
			in.engine.SetAlly(s.House, ally)
		}
	}
	for _, h := range a.Ghosts {
		in.engine.MarkGhost(h)
	}

	in.started = true
	if !in.state.BeginMultiplayer() {
		return fmt.Errorf("register players: bind first player")
	}
	slog.Info("multiplayer match registered", "instance", in.id, "players", len(a.Slots), "ghosts", in.ghosts)
	return nil
}

// StartSinglePlayer starts a session with one local house. The context
// never moves afterwards.
func (in *Instance) StartSinglePlayer(h model.HouseID) error {
	in.mu.Lock()
	defer in.unlock()
	if !h.Valid() {
		return fmt.Errorf("start single player: invalid house %v", h)
	}
	in.reg.Reset()
	in.resetMatch()
	in.engine.AssignHouse(model.HouseStatus{House: h, Name: h.String(), StartLocation: model.NoStartLocation, IsHuman: true})
	in.state.BeginSinglePlayer(h)
	in.engine.SetPlayerControl(h, true)
	in.started = true
	slog.Info("single player session started", "instance", in.id, "house", h)
	return nil
}

func (in *Instance) resetMatch() {
	in.engine.Reset()
	in.rec.Reset()
	in.out.Drain()
	in.frame = 0
	in.firstTick = true
	in.gameOver = nil
	in.ghosts = false
	in.placement = [model.MaxPlayers]*model.ObjectRef{}
	in.id = uuid.New()
}

// Stop ends the session and clears all per-match state.
func (in *Instance) Stop() {
	in.mu.Lock()
	defer in.unlock()
	in.resetMatch()
	in.reg.Reset()
	in.state.Reset()
	in.started = false
}

func (in *Instance) SetActivePlayer(id model.PlayerID, force bool) bool {
	in.mu.Lock()
	defer in.unlock()
	return in.started && in.state.SetActive(id, force)
}

// EnqueueCommand stages a command for the active house. It is scheduled
// CommandDelay frames from now.
func (in *Instance) EnqueueCommand(kind queue.CommandKind, obj model.ObjectRef, cell model.Cell) bool {
	in.mu.Lock()
	defer in.unlock()
	if !in.started {
		return false
	}
	return in.enqueue(kind, obj, cell)
}

// PlayerCommand binds the context to id and stages a command for it in one
// step. Unknown players are dropped.
func (in *Instance) PlayerCommand(id model.PlayerID, kind queue.CommandKind, obj model.ObjectRef, cell model.Cell) bool {
	in.mu.Lock()
	defer in.unlock()
	if !in.started || !in.state.SetActive(id, false) {
		return false
	}
	return in.enqueue(kind, obj, cell)
}

// scheduleFrame is the frame new commands run at. The offset is the same for
// every command so the pending list stays in frame order. It saturates
// instead of wrapping.
func (in *Instance) scheduleFrame() uint32 {
	if in.frame > math.MaxUint32-in.delay {
		return math.MaxUint32
	}
	return in.frame + in.delay
}

func (in *Instance) enqueue(kind queue.CommandKind, obj model.ObjectRef, cell model.Cell) bool {
	h := in.state.ActiveHouse()
	if !h.Valid() {
		return false
	}
	cmd, ok := in.out.Push(queue.Command{Kind: kind, House: h, Object: obj, Cell: cell, Frame: in.scheduleFrame()})
	if !ok {
		slog.Warn("outgoing list full, dropping command", "house", h, "kind", kind)
		return false
	}
	slog.Debug("command staged", "command", cmd.String())
	return true
}

// ForceDisconnect hands the player's house to the computer. Commands it
// already staged go stale instead of running.
func (in *Instance) ForceDisconnect(id model.PlayerID) bool {
	in.mu.Lock()
	defer in.unlock()

	if !in.started || in.gameOver != nil || in.state.Mode() != session.Multiplayer {
		return false
	}
	if wins, loses := in.engine.Flags(); wins || loses {
		return false
	}
	if id == model.NoPlayer || !in.state.SetActive(id, false) {
		return false
	}

	h := in.state.ActiveHouse()
	in.engine.SwitchToAI(h)
	in.state.SetActive(id, true)
	in.showMessage(model.Message{Type: model.MessagePlayerDisconnected, House: h, Index: -1, Timeout: disconnectTimeout})
	slog.Info("player switched to AI", "player", id, "house", h)

	if in.humanCount() == 1 {
		in.computerTaunt(true)
	}
	return true
}

func (in *Instance) humanCount() int {
	n := 0
	for _, s := range in.reg.Slots() {
		if hs, ok := in.engine.House(s.House); ok && hs.IsHuman && !hs.IsDefeated {
			n++
		}
	}
	return n
}

// computerTaunt raises a taunt from a random surviving AI house.
func (in *Instance) computerTaunt(lastHuman bool) {
	var ai []model.HouseID
	for _, hs := range in.engine.Houses() {
		if hs.House.Valid() && !hs.IsHuman && !hs.IsDefeated {
			ai = append(ai, hs.House)
		}
	}
	if len(ai) == 0 {
		return
	}
	pick := 0
	if len(ai) > 1 {
		pick = in.rng.IntN(len(ai))
	}
	index := 13
	if !lastHuman {
		index = in.rng.IntN(13)
	}
	in.showMessage(model.Message{Type: model.MessageComputerTaunt, House: ai[pick], Index: index, Timeout: tauntTimeout})
}

// ForceHumanTeamWins ends the match in favor of the team of the first
// remaining human other than quitting. Everyone else is defeated.
func (in *Instance) ForceHumanTeamWins(quitting model.PlayerID) bool {
	in.mu.Lock()
	defer in.unlock()
	if !in.started || in.gameOver != nil || in.state.Mode() != session.Multiplayer {
		return false
	}

	slots := in.reg.Slots()
	winning := -1
	found := false
	for _, s := range slots {
		if s.Player.ID == quitting {
			continue
		}
		if hs, ok := in.engine.House(s.House); ok && hs.IsHuman && !hs.IsDefeated {
			winning, found = s.Player.Team, true
			break
		}
	}
	for _, s := range slots {
		if !found || s.Player.Team != winning {
			in.engine.Defeat(s.House)
		}
	}
	in.engine.SetFlags(true, false)
	slog.Info("human team forced to win", "quitting", quitting, "team", winning, "found", found)
	return true
}

func (in *Instance) Frame() uint32 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.frame
}

// GameOver returns the terminal event once the match has ended.
func (in *Instance) GameOver() (model.GameOver, bool) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.gameOver == nil {
		return model.GameOver{}, false
	}
	return *in.gameOver, true
}

// Active returns the player and house the context is bound to.
func (in *Instance) Active() (model.PlayerID, model.HouseID) {
	in.mu.Lock()
	defer in.mu.Unlock()
	_, h, id := in.state.Active()
	return id, h
}

// Slots returns the registered players in registration order.
func (in *Instance) Slots() []registry.Slot {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.reg.Slots()
}

func (in *Instance) IsAlly(a, b model.PlayerID) bool {
	in.mu.Lock()
	defer in.mu.Unlock()
	ha, ok := in.reg.LookupHouse(a)
	if !ok {
		return false
	}
	hb, ok := in.reg.LookupHouse(b)
	return ok && in.reg.IsAlly(ha, hb)
}

// Houses returns the engine status of every house.
func (in *Instance) Houses() []model.HouseStatus {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.engine.Houses()
}

// Pending returns the pending command list in execution order.
func (in *Instance) Pending() []queue.Command {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.rec.Pending()
}
