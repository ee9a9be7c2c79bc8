package ipc

import "github.com/nstehr/vimy/vimy-instance/model"

// Session and tick message types.
const (
	TypeHello           = "hello"
	TypeAck             = "ack"
	TypeRegisterPlayers = "register_players"
	TypeStartSingle     = "start_single_player"
	TypeSetActivePlayer = "set_active_player"
	TypeAdvanceTick     = "advance_tick"
	TypeTickResult      = "tick_result"
	TypeForceDisconnect = "force_disconnect"
	TypeHumanTeamWins   = "human_team_wins"
	TypeSidebarState    = "sidebar_state"
	TypeSave            = "save"
	TypeLoad            = "load"

	// Pushed by the server.
	TypeGameOver   = "game_over"
	TypeMessage    = "message"
	TypeHouseEvent = "house_event"
)

// Ack statuses.
const (
	StatusOK      = "ok"
	StatusDropped = "dropped"
	StatusError   = "error"
)

type HelloMessage struct {
	Client string `json:"client"`
}

type AckMessage struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type RegisterPlayersMessage struct {
	Players    []model.PlayerInfo `json:"players"`
	MaxPlayers int                `json:"maxPlayers,omitempty"`
	Ghosts     bool               `json:"ghosts,omitempty"`
	Waypoints  *model.Waypoints   `json:"waypoints,omitempty"`
}

type StartSingleMessage struct {
	House model.HouseID `json:"house"`
}

type SetActivePlayerMessage struct {
	Player model.PlayerID `json:"player"`
	Force  bool           `json:"force,omitempty"`
}

type AdvanceTickMessage struct {
	Player model.PlayerID `json:"player"`
}

type TickResultMessage struct {
	Frame   uint32 `json:"frame"`
	Running bool   `json:"running"`
}

type ForceDisconnectMessage struct {
	Player model.PlayerID `json:"player"`
}

type HumanTeamWinsMessage struct {
	Quitting model.PlayerID `json:"quitting"`
}

type SidebarStateRequest struct {
	Player model.PlayerID `json:"player"`
}

type SaveMessage struct {
	Path string `json:"path"`
}

// HouseEventMessage reports a change in a house's status between ticks.
type HouseEventMessage struct {
	Kind   string         `json:"kind"`
	Frame  uint32         `json:"frame"`
	House  model.HouseID  `json:"house"`
	Player model.PlayerID `json:"player"`
	Detail string         `json:"detail,omitempty"`
}

// Ack builds an "ok" or "dropped" acknowledgement.
func Ack(ok bool) (*Envelope, error) {
	status := StatusOK
	if !ok {
		status = StatusDropped
	}
	env, err := NewEnvelope(TypeAck, AckMessage{Status: status})
	if err != nil {
		return nil, err
	}
	return &env, nil
}

// Error builds an error acknowledgement carrying err's text.
func Error(err error) (*Envelope, error) {
	env, mErr := NewEnvelope(TypeAck, AckMessage{Status: StatusError, Error: err.Error()})
	if mErr != nil {
		return nil, mErr
	}
	return &env, nil
}

// Reply wraps data as a typed response.
func Reply(msgType string, data any) (*Envelope, error) {
	env, err := NewEnvelope(msgType, data)
	if err != nil {
		return nil, err
	}
	return &env, nil
}
