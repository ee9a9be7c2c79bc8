package rules

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// DefaultRules reproduces the legacy sidebar behavior for multiplayer
// construction requests.
func DefaultRules() []*Rule {
	return []*Rule{
		{
			Name:         "defeated-house",
			Priority:     1000,
			Category:     "guard",
			ConditionSrc: `IsDefeated`,
			Action:       ActionDefeated,
		},
		{
			Name:         "cancel-placement",
			Priority:     950,
			Category:     "placement",
			ConditionSrc: `Action == "cancel_placement"`,
			Action:       ActionCancelPlacement,
		},
		{
			Name:         "unbuildable",
			Priority:     925,
			Category:     "guard",
			ConditionSrc: `!Buildable || !HasFactory`,
			Action:       ActionUnbuildable,
		},
		{
			// The line is busy with a different item.
			Name:         "factory-busy",
			Priority:     900,
			Category:     "guard",
			ConditionSrc: `ActionIn("start", "hold", "cancel", "start_placement") && Busy() && !SameItem()`,
			Action:       ActionCannotComply,
		},
		{
			Name:         "cancel-construction",
			Priority:     800,
			Category:     "construction",
			ConditionSrc: `Action == "cancel" && Busy()`,
			Action:       ActionAbandon,
		},
		{
			Name:         "hold-construction",
			Priority:     790,
			Category:     "construction",
			ConditionSrc: `Action == "hold" && Building()`,
			Action:       ActionSuspend,
		},
		{
			Name:         "start-while-building",
			Priority:     780,
			Category:     "construction",
			ConditionSrc: `ActionIn("start", "start_placement") && Building()`,
			Action:       ActionCannotComply,
		},
		{
			Name:         "start-completed",
			Priority:     770,
			Category:     "placement",
			ConditionSrc: `ActionIn("start", "start_placement") && Completed()`,
			Action:       ActionStartPlacement,
		},
		{
			Name:         "start-construction",
			Priority:     700,
			Category:     "construction",
			ConditionSrc: `Action == "start" && (Idle() || OnHold())`,
			Action:       ActionProduce,
		},
		{
			Name:         "place",
			Priority:     600,
			Category:     "placement",
			ConditionSrc: `Action == "place" && Completed() && SameItem() && (IsStructure() || IsSpecial())`,
			Action:       ActionPlace,
		},
	}
}

// Spec is the file form of a rule. Do names an action, e.g. "produce".
type Spec struct {
	Name     string `yaml:"name"`
	Priority int    `yaml:"priority"`
	Category string `yaml:"category"`
	When     string `yaml:"when"`
	Do       string `yaml:"do"`
}

// File is a rules file. With Extend set the file's rules are added to the
// defaults instead of replacing them.
type File struct {
	Extend bool   `yaml:"extend"`
	Rules  []Spec `yaml:"rules"`
}

// Compile turns specs into rules. Conditions are compiled later by NewEngine
// or Swap.
func Compile(specs []Spec) ([]*Rule, error) {
	out := make([]*Rule, 0, len(specs))
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("rule without name (when %q)", s.When)
		}
		action, err := LookupAction(s.Do)
		if err != nil {
			return nil, fmt.Errorf("rule %q: %w", s.Name, err)
		}
		out = append(out, &Rule{
			Name:         s.Name,
			Priority:     s.Priority,
			Category:     s.Category,
			ConditionSrc: s.When,
			Action:       action,
		})
	}
	return out, nil
}

// Load reads a YAML rules file and returns the rule set it describes.
func Load(r io.Reader) ([]*Rule, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	rules, err := Compile(f.Rules)
	if err != nil {
		return nil, err
	}
	if f.Extend {
		rules = append(DefaultRules(), rules...)
	}
	return rules, nil
}
