package compose

import (
	"fmt"

	"github.com/ayusman/yubimoji/internal/motion"
)

// ModifierRule maps a base shape held with a directional modifier to the id
// of its variant symbol.
type ModifierRule struct {
	Base     int             `yaml:"base" toml:"base" json:"base"`
	Modifier motion.Modifier `yaml:"modifier" toml:"modifier" json:"modifier"`
	Result   int             `yaml:"result" toml:"result" json:"result"`
}

type modifierKey struct {
	base int
	mod  motion.Modifier
}

// ModifierTable resolves (base id, modifier) pairs to final symbol ids.
type ModifierTable struct {
	rules map[modifierKey]int
}

// NewModifierTable builds a table from rules. Rules keyed on motion.None and
// conflicting duplicates are rejected.
func NewModifierTable(rules []ModifierRule) (*ModifierTable, error) {
	t := &ModifierTable{rules: make(map[modifierKey]int, len(rules))}
	for i, r := range rules {
		if r.Modifier == motion.None {
			return nil, fmt.Errorf("modifier rule %d: base %d has no modifier", i, r.Base)
		}
		key := modifierKey{r.Base, r.Modifier}
		if prev, ok := t.rules[key]; ok && prev != r.Result {
			return nil, fmt.Errorf("modifier rule %d: base %d %s maps to both %d and %d",
				i, r.Base, r.Modifier, prev, r.Result)
		}
		t.rules[key] = r.Result
	}
	return t, nil
}

// Resolve returns the final symbol id. Unmapped pairs pass base through.
func (t *ModifierTable) Resolve(base int, mod motion.Modifier) int {
	if t == nil || mod == motion.None {
		return base
	}
	if id, ok := t.rules[modifierKey{base, mod}]; ok {
		return id
	}
	return base
}

// Len returns the number of rules.
func (t *ModifierTable) Len() int {
	if t == nil {
		return 0
	}
	return len(t.rules)
}
