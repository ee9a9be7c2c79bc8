package agent

import (
	"fmt"

	"github.com/nstehr/vimy/vimy-instance/model"
)

// EventKind identifies a change in house status worth pushing to the
// instance server.
type EventKind string

const (
	EventDefeated     EventKind = "defeated"
	EventSwitchedToAI EventKind = "switched_to_ai"
	EventLastHuman    EventKind = "last_human"
	EventNoHumans     EventKind = "no_humans"
)

// Event is detected by diffing house status between consecutive ticks.
type Event struct {
	Kind   EventKind
	Frame  uint32
	House  model.HouseID
	Player model.PlayerID
	Detail string
}

// stateSnapshot captures the diffable house fields after a tick.
type stateSnapshot struct {
	frame  uint32
	houses map[model.HouseID]model.HouseStatus
	humans int
}

// takeSnapshot records the status of registered houses only. Ghost houses
// never change and are left out.
func takeSnapshot(frame uint32, houses []model.HouseStatus, players map[model.HouseID]model.PlayerID) stateSnapshot {
	snap := stateSnapshot{
		frame:  frame,
		houses: make(map[model.HouseID]model.HouseStatus, len(players)),
	}
	for _, hs := range houses {
		if _, ok := players[hs.House]; !ok {
			continue
		}
		snap.houses[hs.House] = hs
		if hs.IsHuman && !hs.IsDefeated {
			snap.humans++
		}
	}
	return snap
}

// detectEvents compares the current house table against the previous
// snapshot. Returns nil if prev is nil (first tick).
func detectEvents(frame uint32, houses []model.HouseStatus, players map[model.HouseID]model.PlayerID, prev *stateSnapshot) []Event {
	if prev == nil {
		return nil
	}

	var events []Event
	cur := takeSnapshot(frame, houses, players)

	for _, h := range sortedHouses(cur.houses) {
		now := cur.houses[h]
		before, ok := prev.houses[h]
		if !ok {
			continue
		}
		if now.IsDefeated && !before.IsDefeated {
			events = append(events, Event{
				Kind:   EventDefeated,
				Frame:  frame,
				House:  h,
				Player: players[h],
				Detail: fmt.Sprintf("%s defeated", now.Name),
			})
		}
		if before.IsHuman && !now.IsHuman {
			events = append(events, Event{
				Kind:   EventSwitchedToAI,
				Frame:  frame,
				House:  h,
				Player: players[h],
				Detail: fmt.Sprintf("%s handed to the computer", now.Name),
			})
		}
	}

	switch {
	case prev.humans > 1 && cur.humans == 1:
		h := lastHuman(cur)
		events = append(events, Event{
			Kind:   EventLastHuman,
			Frame:  frame,
			House:  h,
			Player: players[h],
			Detail: "one human player remains",
		})
	case prev.humans > 0 && cur.humans == 0:
		events = append(events, Event{
			Kind:   EventNoHumans,
			Frame:  frame,
			House:  model.HouseNone,
			Detail: "no human players remain",
		})
	}

	return events
}

func lastHuman(s stateSnapshot) model.HouseID {
	for _, h := range sortedHouses(s.houses) {
		if hs := s.houses[h]; hs.IsHuman && !hs.IsDefeated {
			return h
		}
	}
	return model.HouseNone
}

func sortedHouses(m map[model.HouseID]model.HouseStatus) []model.HouseID {
	out := make([]model.HouseID, 0, len(m))
	for h := model.HouseID(0); h < model.MaxPlayers; h++ {
		if _, ok := m[h]; ok {
			out = append(out, h)
		}
	}
	return out
}
