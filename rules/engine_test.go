package rules

import (
	"testing"

	"github.com/nstehr/vimy/vimy-instance/model"
	"github.com/nstehr/vimy/vimy-instance/queue"
)

func newDefaultEngine(t *testing.T) *Engine {
	t.Helper()
	engine, err := NewEngine(DefaultRules())
	if err != nil {
		t.Fatalf("NewEngine(DefaultRules()) failed: %v", err)
	}
	return engine
}

func TestDefaultRulesCompile(t *testing.T) {
	engine := newDefaultEngine(t)
	if len(engine.rules) != 10 {
		t.Errorf("expected 10 rules, got %d", len(engine.rules))
	}
	// Verify priority ordering (descending).
	for i := 1; i < len(engine.rules); i++ {
		if engine.rules[i].Priority > engine.rules[i-1].Priority {
			t.Errorf("rules not sorted by priority: %s (%d) > %s (%d)",
				engine.rules[i].Name, engine.rules[i].Priority,
				engine.rules[i-1].Name, engine.rules[i-1].Priority)
		}
	}
}

func request(action string, kind model.Kind, id int, state model.FactoryState, item int) RequestEnv {
	return RequestEnv{
		Action:      action,
		Kind:        kind.String(),
		ID:          id,
		Factory:     string(state),
		FactoryItem: item,
		HasFactory:  true,
		Buildable:   true,
		IsHuman:     true,
	}
}

func TestDefaultDecisions(t *testing.T) {
	engine := newDefaultEngine(t)

	tests := []struct {
		name string
		env  RequestEnv
		want Decision
	}{
		{"start idle", request(RequestStart, model.KindUnit, 2, model.FactoryIdle, -1), Decision{Rule: "start-construction", Command: queue.CommandProduce}},
		{"resume held", request(RequestStart, model.KindUnit, 2, model.FactoryOnHold, 2), Decision{Rule: "start-construction", Command: queue.CommandProduce}},
		{"start while building", request(RequestStart, model.KindUnit, 2, model.FactoryBuilding, 2), Decision{Rule: "start-while-building", Reject: RejectCannotComply}},
		{"start other item", request(RequestStart, model.KindUnit, 3, model.FactoryBuilding, 2), Decision{Rule: "factory-busy", Reject: RejectCannotComply}},
		{"start completed", request(RequestStart, model.KindBuilding, 1, model.FactoryCompleted, 1), Decision{Rule: "start-completed", Placement: PlacementStart}},
		{"hold building", request(RequestHold, model.KindInfantry, 0, model.FactoryBuilding, 0), Decision{Rule: "hold-construction", Command: queue.CommandSuspend}},
		{"hold held", request(RequestHold, model.KindInfantry, 0, model.FactoryOnHold, 0), Decision{}},
		{"cancel", request(RequestCancel, model.KindInfantry, 0, model.FactoryOnHold, 0), Decision{Rule: "cancel-construction", Command: queue.CommandAbandon, Placement: PlacementCancel}},
		{"cancel idle", request(RequestCancel, model.KindInfantry, 0, model.FactoryIdle, -1), Decision{}},
		{"place", request(RequestPlace, model.KindBuilding, 4, model.FactoryCompleted, 4), Decision{Rule: "place", Command: queue.CommandPlace, Placement: PlacementCancel}},
		{"place special", request(RequestPlace, model.KindSpecial, 0, model.FactoryCompleted, 0), Decision{Rule: "place", Command: queue.CommandSpecialPlace, Placement: PlacementCancel}},
		{"place unfinished", request(RequestPlace, model.KindBuilding, 4, model.FactoryBuilding, 4), Decision{}},
		{"cancel placement", request(RequestCancelPlacement, model.KindBuilding, 4, model.FactoryCompleted, 4), Decision{Rule: "cancel-placement", Placement: PlacementCancel}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := engine.Decide(tt.env)
			if got != tt.want {
				t.Errorf("expected %+v, got %+v", tt.want, got)
			}
		})
	}
}

func TestDefeatedAndUnbuildable(t *testing.T) {
	engine := newDefaultEngine(t)

	env := request(RequestStart, model.KindUnit, 1, model.FactoryIdle, -1)
	env.IsDefeated = true
	if d := engine.Decide(env); d.Reject != RejectDefeated {
		t.Errorf("expected defeated reject, got %+v", d)
	}

	env = request(RequestStart, model.KindUnit, 1, model.FactoryIdle, -1)
	env.Buildable = false
	if d := engine.Decide(env); d.Reject != RejectUnbuildable {
		t.Errorf("expected unbuildable reject, got %+v", d)
	}
}

func TestSwapKeepsOldRulesOnError(t *testing.T) {
	engine := newDefaultEngine(t)
	bad := []*Rule{{Name: "broken", ConditionSrc: `NoSuchField > 1`, Action: ActionIgnore}}
	if err := engine.Swap(bad); err == nil {
		t.Fatal("expected compile error")
	}
	if len(engine.Names()) != 10 {
		t.Errorf("expected default rules kept, got %v", engine.Names())
	}

	good := []*Rule{{Name: "freeze", ConditionSrc: `true`, Action: ActionCannotComply}}
	if err := engine.Swap(good); err != nil {
		t.Fatalf("Swap failed: %v", err)
	}
	d := engine.Decide(request(RequestStart, model.KindUnit, 1, model.FactoryIdle, -1))
	if d.Reject != RejectCannotComply || d.Rule != "freeze" {
		t.Errorf("expected freeze rule to decide, got %+v", d)
	}
}

func TestRuleWithoutAction(t *testing.T) {
	if _, err := NewEngine([]*Rule{{Name: "x", ConditionSrc: `true`}}); err == nil {
		t.Error("expected error for rule without action")
	}
}
