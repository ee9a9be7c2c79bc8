package agent

import (
	"testing"

	"github.com/nstehr/vimy/vimy-instance/model"
)

// baseHouses returns two human houses, one AI house and a ghost.
func baseHouses() []model.HouseStatus {
	return []model.HouseStatus{
		{House: 0, Name: "P1", IsHuman: true, IsPlayerControl: true},
		{House: 1, Name: "P2", IsHuman: true},
		{House: 2, Name: "CPU"},
		{House: 3, IsDefeated: true},
	}
}

var basePlayers = map[model.HouseID]model.PlayerID{0: 11, 1: 22, 2: 33}

func findEvent(events []Event, kind EventKind) (Event, bool) {
	for _, e := range events {
		if e.Kind == kind {
			return e, true
		}
	}
	return Event{}, false
}

func TestDetectEvents_NoEvents(t *testing.T) {
	houses := baseHouses()
	prev := takeSnapshot(10, houses, basePlayers)

	// Control flags move every request and are not events.
	houses[0].IsPlayerControl = false
	houses[1].IsPlayerControl = true
	events := detectEvents(11, houses, basePlayers, &prev)
	if len(events) != 0 {
		t.Errorf("expected 0 events, got %d: %+v", len(events), events)
	}
}

func TestDetectEvents_NilPrev(t *testing.T) {
	events := detectEvents(1, baseHouses(), basePlayers, nil)
	if events != nil {
		t.Errorf("expected nil events for nil prev, got %+v", events)
	}
}

func TestDetectEvents_GhostsIgnored(t *testing.T) {
	snap := takeSnapshot(1, baseHouses(), basePlayers)
	if _, ok := snap.houses[3]; ok {
		t.Error("expected ghost house left out of the snapshot")
	}
	if snap.humans != 2 {
		t.Errorf("expected 2 humans, got %d", snap.humans)
	}
}

func TestDetectEvents_SwitchedToAIAndLastHuman(t *testing.T) {
	houses := baseHouses()
	prev := takeSnapshot(10, houses, basePlayers)

	houses[1].IsHuman = false
	houses[1].WasHuman = true
	events := detectEvents(11, houses, basePlayers, &prev)

	e, ok := findEvent(events, EventSwitchedToAI)
	if !ok {
		t.Fatalf("expected switched_to_ai event, got %+v", events)
	}
	if e.House != 1 || e.Player != 22 || e.Frame != 11 {
		t.Errorf("unexpected switched_to_ai event %+v", e)
	}
	last, ok := findEvent(events, EventLastHuman)
	if !ok {
		t.Fatalf("expected last_human event, got %+v", events)
	}
	if last.House != 0 || last.Player != 11 {
		t.Errorf("expected P1 to be the last human, got %+v", last)
	}
}

func TestDetectEvents_Defeated(t *testing.T) {
	houses := baseHouses()
	prev := takeSnapshot(10, houses, basePlayers)

	houses[2].IsDefeated = true
	events := detectEvents(11, houses, basePlayers, &prev)
	if len(events) != 1 || events[0].Kind != EventDefeated || events[0].Player != 33 {
		t.Errorf("expected one defeated event for the AI house, got %+v", events)
	}
}

func TestDetectEvents_NoHumans(t *testing.T) {
	houses := baseHouses()
	houses[1].IsHuman = false
	prev := takeSnapshot(10, houses, basePlayers)

	houses[0].IsDefeated = true
	events := detectEvents(11, houses, basePlayers, &prev)
	if _, ok := findEvent(events, EventNoHumans); !ok {
		t.Errorf("expected no_humans event, got %+v", events)
	}
	if _, ok := findEvent(events, EventLastHuman); ok {
		t.Error("did not expect last_human when going from one human to none")
	}
}
