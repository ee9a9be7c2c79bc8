package rules

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// Engine decides sidebar requests with compiled rules. Rules are tried in
// priority order and the first match decides.
type Engine struct {
	mu    sync.RWMutex
	rules []*Rule
}

// NewEngine compiles all rule conditions into expr bytecode and sorts by priority.
func NewEngine(rules []*Rule) (*Engine, error) {
	compiled, err := compileRules(rules)
	if err != nil {
		return nil, err
	}
	return &Engine{rules: compiled}, nil
}

// Decide evaluates env against the rule set. A request no rule matches has
// no effect.
func (e *Engine) Decide(env RequestEnv) Decision {
	e.mu.RLock()
	rules := e.rules
	e.mu.RUnlock()

	for _, r := range rules {
		result, err := vm.Run(r.program, env)
		if err != nil {
			slog.Warn("rule condition error", "rule", r.Name, "error", err)
			continue
		}
		match, ok := result.(bool)
		if !ok || !match {
			continue
		}

		d := r.Action(env)
		d.Rule = r.Name
		slog.Debug("rule fired",
			"rule", r.Name,
			"priority", r.Priority,
			"category", r.Category,
			"action", env.Action,
			"kind", env.Kind,
			"id", env.ID,
			"decision", d.String(),
		)
		return d
	}
	slog.Debug("no rule matched", "action", env.Action, "kind", env.Kind, "id", env.ID, "factory", env.Factory)
	return Decision{}
}

// Swap atomically replaces the rule set. Compiles first; if compilation
// fails the old rules remain active.
func (e *Engine) Swap(newRules []*Rule) error {
	compiled, err := compileRules(newRules)
	if err != nil {
		return err
	}
	names := make([]string, len(compiled))
	for i, r := range compiled {
		names[i] = r.Name
	}
	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()
	slog.Info("rule set swapped", "count", len(compiled), "rules", names)
	return nil
}

// Names lists the active rules in evaluation order.
func (e *Engine) Names() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	names := make([]string, len(e.rules))
	for i, r := range e.rules {
		names[i] = r.Name
	}
	return names
}

func compileRules(rules []*Rule) ([]*Rule, error) {
	for _, r := range rules {
		if r.Action == nil {
			return nil, fmt.Errorf("compile rule %q: no action", r.Name)
		}
		prog, err := expr.Compile(r.ConditionSrc, expr.Env(RequestEnv{}), expr.AsBool())
		if err != nil {
			return nil, fmt.Errorf("compile rule %q: %w", r.Name, err)
		}
		r.program = prog
	}
	sort.SliceStable(rules, func(i, j int) bool {
		return rules[i].Priority > rules[j].Priority
	})
	return rules, nil
}
