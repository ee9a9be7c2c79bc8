package rules

import (
	"github.com/expr-lang/expr/vm"
)

// ActionFunc turns a matched sidebar request into a decision.
type ActionFunc func(env RequestEnv) Decision

// Rule is a condition → action pair. The engine evaluates rules by priority
// and the first match decides the request.
type Rule struct {
	Name         string      // human-readable identifier
	Priority     int         // higher = evaluated first
	Category     string      // grouping for logs
	ConditionSrc string      // expr source (preserved for serialization)
	program      *vm.Program // compiled bytecode
	Action       ActionFunc
}
